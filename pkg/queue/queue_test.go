package queue

import (
	"testing"

	"github.com/hugh/scansync/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestRedisOpt(t *testing.T) {
	opt := redisOpt(&config.RedisConfig{Host: "redis", Port: 6380, Password: "secret"})

	assert.Equal(t, "redis:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
}
