package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setBaseEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "memory")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, TransportCookie, cfg.RefreshTransport)
	assert.Equal(t, "refresh_token", cfg.RefreshCookieName)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "authsession", cfg.JWTIssuer)
	assert.Equal(t, "web", cfg.JWTAudience)
	assert.Equal(t, 10, cfg.RateLimit.Capacity)
	assert.Equal(t, 6*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address())

	p := cfg.Argon2()
	assert.Equal(t, uint32(64*1024), p.Memory)
	assert.Equal(t, uint8(2), p.Threads)
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ACCESS_TOKEN_TTL", "900s")
	t.Setenv("REFRESH_TOKEN_TTL", "30d")
	t.Setenv("REFRESH_TRANSPORT", "body")
	t.Setenv("SECURE_COOKIES", "false")
	t.Setenv("REQUEST_TIMEOUT", "2s")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("RATE_LIMIT_CAPACITY", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, TransportBody, cfg.RefreshTransport)
	assert.False(t, cfg.SecureCookies)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "cache:6380", cfg.Redis.Address())
	assert.Equal(t, 1, cfg.RateLimit.Capacity, "capacity is clamped to at least one")
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":      {"JWT_SECRET": ""},
		"short secret":        {"JWT_SECRET": "too-short"},
		"malformed ttl":       {"ACCESS_TOKEN_TTL": "fifteen minutes"},
		"zero ttl":            {"REFRESH_TOKEN_TTL": "0d"},
		"refresh <= access":   {"ACCESS_TOKEN_TTL": "2h", "REFRESH_TOKEN_TTL": "1h"},
		"unknown transport":   {"REFRESH_TRANSPORT": "both"},
		"unknown store":       {"STORE_DRIVER": "postgres"},
		"mysql without creds": {"STORE_DRIVER": "mysql"},
		"weak argon2":         {"ARGON2_MEMORY_KB": "1024"},
		"bad sample ratio":    {"OTEL_SAMPLE_RATIO": "1.5"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDatabase(t *testing.T) {
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "auth")

	cfg, err := LoadDatabase()
	require.NoError(t, err)
	assert.Equal(t, "3306", cfg.DBPort)

	t.Setenv("DB_HOST", "")
	_, err = LoadDatabase()
	assert.Error(t, err)
}
