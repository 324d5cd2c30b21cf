package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry())
	assert.Equal(t, 3, cfg.Sync.FindingWorkers)
	assert.Equal(t, 10, cfg.Sync.AssetWorkers)
	assert.Equal(t, 30, cfg.Sync.CacheSize)
	assert.False(t, cfg.Sync.ScheduleEnabled())
	assert.Empty(t, cfg.Server.AllowedOrigins)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SERVER_ENV", "production")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("SYNC_FINDING_WORKERS", "5")
	t.Setenv("SYNC_GATEWAY_RPS", "2.5")
	t.Setenv("SYNC_SCHEDULE", "0 2 * * *")
	t.Setenv("SYNC_SCHEDULE_INTEGRATION", "file")
	t.Setenv("SYNC_SCHEDULE_PLAN_ID", "12")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Server.IsDevelopment())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5, cfg.Sync.FindingWorkers)
	assert.Equal(t, 2.5, cfg.Sync.GatewayRPS)
	assert.Equal(t, uint(12), cfg.Sync.SchedulePlanID)
	assert.True(t, cfg.Sync.ScheduleEnabled())
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.DSN())
}
