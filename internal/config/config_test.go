package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "3s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_KEY_STRATEGY", "bogus")

	cfg := LoadRateLimitConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 5, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 3*time.Second, cfg.RefillInterval)
	assert.Equal(t, 15*time.Second, cfg.TTL, "ttl is raised to five refill periods")
	assert.Equal(t, KeyByIPRoute, cfg.KeyStrategy)
}

func TestLoadBookingConfig(t *testing.T) {
	cfg := LoadBookingConfig()
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 62, cfg.MaxRangeDays)

	t.Setenv("BOOKING_RETRY_ATTEMPTS", "0")
	t.Setenv("BOOKING_MAX_RANGE_DAYS", "notanumber")
	t.Setenv("BOOKING_TX_TIMEOUT", "250ms")
	cfg = LoadBookingConfig()
	assert.Equal(t, 1, cfg.RetryAttempts)
	assert.Equal(t, 62, cfg.MaxRangeDays)
	assert.Equal(t, 250*time.Millisecond, cfg.TxTimeout)
}

func TestLoadRabbitConfig(t *testing.T) {
	t.Setenv("AMQP_URL", "amqp://broker:5672/")
	cfg := LoadRabbitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "amqp://broker:5672/", cfg.URL)
	assert.Equal(t, "payment.events", cfg.PaymentQueue)

	t.Setenv("RABBITMQ_URL", "amqp://primary:5672/")
	t.Setenv("RABBITMQ_ENABLED", "yes")
	cfg = LoadRabbitConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "amqp://primary:5672/", cfg.URL)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("CACHE_TTL", "1m")
	cfg := LoadCacheConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, time.Minute, cfg.TTL)
	assert.Equal(t, "cache", cfg.Prefix)
}

func TestLoadMemoryDriverNeedsNoDatabase(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("STORE_DRIVER", "Memory")
	cfg := Load()
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "9090", cfg.Port)
}
