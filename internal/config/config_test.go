package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_USER", "lounge")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "lounge")
	t.Setenv("JWT_SECRET", "secret")
}

func TestFromViperDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromViper(New())
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.DB.LockWait)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())
	assert.Equal(t, 4, cfg.Outbox.Workers)
	assert.Equal(t, 64, cfg.Outbox.Buffer)
	assert.False(t, cfg.BookingConsumer)
	assert.True(t, cfg.Cache.Methods["GET"])
	assert.Equal(t, "avail", cfg.Cache.Prefix)
	assert.Equal(t, 10, cfg.RateLimit.Capacity)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address())
}

func TestFromViperEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_LOCK_WAIT_TIMEOUT", "2")
	t.Setenv("LOUNGE_TZ", "UTC")
	t.Setenv("OUTBOX_WORKERS", "0")
	t.Setenv("BOOKING_CONSUMER", "true")
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := FromViper(New())
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.DB.LockWait)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 1, cfg.Outbox.Workers)
	assert.True(t, cfg.BookingConsumer)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Cache.Methods)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.TTL)
	assert.Equal(t, "cache:6380", cfg.Redis.Address())
}

func TestFromViperMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_NAME", "")

	_, err := FromViper(New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_NAME")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestFromViperBadTimeZone(t *testing.T) {
	setRequired(t)
	t.Setenv("LOUNGE_TZ", "Mars/Olympus")

	_, err := FromViper(New())
	assert.ErrorContains(t, err, "LOUNGE_TZ")
}
