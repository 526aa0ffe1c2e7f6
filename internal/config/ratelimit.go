package config

import (
	"time"

	"github.com/spf13/viper"
)

// RateLimitConfig drives the Redis token bucket in front of the public auth
// routes. Capacity is the bucket size; RefillTokens are added every
// RefillInterval.
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"RATE_LIMIT_ENABLED"`
	Capacity       int           `mapstructure:"RATE_LIMIT_CAPACITY"`
	RefillTokens   int           `mapstructure:"RATE_LIMIT_REFILL_TOKENS"`
	RefillInterval time.Duration `mapstructure:"RATE_LIMIT_REFILL_INTERVAL"`
	TTL            time.Duration `mapstructure:"RATE_LIMIT_TTL"`
	KeyStrategy    string        `mapstructure:"RATE_LIMIT_KEY_STRATEGY"`
	Prefix         string        `mapstructure:"RATE_LIMIT_PREFIX"`
	Debug          bool          `mapstructure:"RATE_LIMIT_DEBUG"`
}

// Credential endpoints are the brute-force surface, so the default bucket is
// small: 10 attempts, one more every 6 seconds, keyed per IP and route.
func setRateLimitDefaults(v *viper.Viper) {
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_CAPACITY", 10)
	v.SetDefault("RATE_LIMIT_REFILL_TOKENS", 1)
	v.SetDefault("RATE_LIMIT_REFILL_INTERVAL", "6s")
	v.SetDefault("RATE_LIMIT_TTL", "10m")
	v.SetDefault("RATE_LIMIT_KEY_STRATEGY", "ip_route")
	v.SetDefault("RATE_LIMIT_PREFIX", "rl:auth")
	v.SetDefault("RATE_LIMIT_DEBUG", false)
}

// normalize clamps values so the Lua script never sees a zero interval or an
// empty bucket, and keeps keys alive for at least a few refill periods.
func (rl *RateLimitConfig) normalize() {
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillTokens < 1 {
		rl.RefillTokens = 1
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	if minTTL := 5 * rl.RefillInterval; rl.TTL < minTTL {
		rl.TTL = minTTL
	}
	if rl.Prefix == "" {
		rl.Prefix = "rl"
	}
}
