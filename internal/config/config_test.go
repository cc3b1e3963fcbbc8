package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PIX_TEST_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.Session.UsesRedis())
	assert.Equal(t, "localhost:6379", cfg.Session.RedisAddress())
	assert.Equal(t, 4*time.Second, cfg.Checkout.PollInterval)
	assert.Equal(t, 45, cfg.Checkout.PollAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Checkout.Expiry)
	assert.Equal(t, 10*time.Minute, cfg.Trade.Window)
	assert.Equal(t, 20*time.Second, cfg.Trade.TeardownDelay)
	assert.Equal(t, 15, cfg.Identity.Attempts)
	assert.Equal(t, 300*time.Millisecond, cfg.Identity.Delay)
	assert.Equal(t, 5*time.Minute, cfg.Sales.CacheTTL)
	assert.Empty(t, cfg.Admin.IDs)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ZEROONE_SECRET_KEY", "sk")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SESSION_TYPE", "redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("ADMIN_IDS", "111, 222")
	t.Setenv("CHECKOUT_POLL_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Address())
	assert.True(t, cfg.Session.UsesRedis())
	assert.Equal(t, "cache:6379", cfg.Session.RedisAddress())
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Checkout.PollInterval)
	assert.True(t, cfg.Admin.IsAdmin("222"))
	assert.True(t, cfg.Admin.IsAdmin("111"))
	assert.False(t, cfg.Admin.IsAdmin("333"))
	assert.False(t, cfg.Admin.IsAdmin(""))
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "missing secret", env: map[string]string{}, want: "ZEROONE_SECRET_KEY"},
		{name: "driver", env: map[string]string{"PIX_TEST_MODE": "true", "DB_DRIVER": "postgres"}, want: "DB_DRIVER"},
		{name: "session", env: map[string]string{"PIX_TEST_MODE": "true", "SESSION_TYPE": "disk"}, want: "SESSION_TYPE"},
		{name: "attempts", env: map[string]string{"PIX_TEST_MODE": "true", "CHECKOUT_POLL_ATTEMPTS": "0"}, want: "CHECKOUT_POLL_ATTEMPTS"},
		{name: "bad duration", env: map[string]string{"PIX_TEST_MODE": "true", "CHECKOUT_EXPIRY": "soon"}, want: "failed to load config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PIX_TEST_MODE", "false")
			t.Setenv("ZEROONE_SECRET_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMustLoadPanics(t *testing.T) {
	t.Setenv("PIX_TEST_MODE", "false")
	t.Setenv("ZEROONE_SECRET_KEY", "")
	assert.Panics(t, func() { MustLoad() })
}
