package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Sync      SyncConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

// RateLimitConfig throttles inbound HTTP requests.
type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// SyncConfig tunes the reconciliation engine and its outbound calls.
type SyncConfig struct {
	FindingWorkers int
	AssetWorkers   int
	CacheSize      int

	// Outbound calls against the compliance system
	GatewayRPS   float64
	GatewayBurst int

	// Assessor used when a sync carries no user of its own
	DefaultUserID string

	// Optional periodic sync, standard 5-field cron expression
	Schedule            string
	ScheduleIntegration string
	ScheduleSource      string
	SchedulePlanID      uint
}

type LogConfig struct {
	Level string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

// ScheduleEnabled reports whether a periodic sync is configured.
func (s *SyncConfig) ScheduleEnabled() bool {
	return s.Schedule != "" && s.ScheduleIntegration != "" && s.SchedulePlanID != 0
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "scansync")
	v.SetDefault("DATABASE_PASSWORD", "scansync_secret")
	v.SetDefault("DATABASE_NAME", "scansync")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("SYNC_FINDING_WORKERS", 3)
	v.SetDefault("SYNC_ASSET_WORKERS", 10)
	v.SetDefault("SYNC_CACHE_SIZE", 30)
	v.SetDefault("SYNC_GATEWAY_RPS", 20)
	v.SetDefault("SYNC_GATEWAY_BURST", 5)
	v.SetDefault("SYNC_DEFAULT_USER_ID", "")
	v.SetDefault("SYNC_SCHEDULE", "")
	v.SetDefault("SYNC_SCHEDULE_INTEGRATION", "")
	v.SetDefault("SYNC_SCHEDULE_SOURCE", "")
	v.SetDefault("SYNC_SCHEDULE_PLAN_ID", 0)
	v.SetDefault("LOG_LEVEL", "")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Sync: SyncConfig{
			FindingWorkers:      v.GetInt("SYNC_FINDING_WORKERS"),
			AssetWorkers:        v.GetInt("SYNC_ASSET_WORKERS"),
			CacheSize:           v.GetInt("SYNC_CACHE_SIZE"),
			GatewayRPS:          v.GetFloat64("SYNC_GATEWAY_RPS"),
			GatewayBurst:        v.GetInt("SYNC_GATEWAY_BURST"),
			DefaultUserID:       v.GetString("SYNC_DEFAULT_USER_ID"),
			Schedule:            v.GetString("SYNC_SCHEDULE"),
			ScheduleIntegration: v.GetString("SYNC_SCHEDULE_INTEGRATION"),
			ScheduleSource:      v.GetString("SYNC_SCHEDULE_SOURCE"),
			SchedulePlanID:      v.GetUint("SYNC_SCHEDULE_PLAN_ID"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
