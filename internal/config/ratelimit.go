package config

import (
	"time"

	"github.com/spf13/viper"
)

// RateLimitConfig configures the Redis token bucket in front of booking
// creation.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func rateLimitDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.capacity", 10)
	v.SetDefault("rate_limit.refill_tokens", 1)
	v.SetDefault("rate_limit.refill_interval", "6s")
	v.SetDefault("rate_limit.ttl", "10m")
	v.SetDefault("rate_limit.key_strategy", "ip_user_route")
	v.SetDefault("rate_limit.prefix", "rl")
	v.SetDefault("rate_limit.debug", false)
}

func loadRateLimit(v *viper.Viper) RateLimitConfig {
	c := RateLimitConfig{
		Enabled:        v.GetBool("rate_limit.enabled"),
		Capacity:       v.GetInt("rate_limit.capacity"),
		RefillTokens:   v.GetInt("rate_limit.refill_tokens"),
		RefillInterval: v.GetDuration("rate_limit.refill_interval"),
		TTL:            v.GetDuration("rate_limit.ttl"),
		KeyStrategy:    v.GetString("rate_limit.key_strategy"),
		Prefix:         v.GetString("rate_limit.prefix"),
		Debug:          v.GetBool("rate_limit.debug"),
	}
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	// Keep idle buckets around long enough to refill completely.
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
