package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig describes one token bucket. Auth endpoints and write
// endpoints get separate buckets with their own capacity.
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

// RateLimits groups the buckets applied by the router.
type RateLimits struct {
	Auth  RateLimitConfig
	Write RateLimitConfig
}

// LoadRateLimitConfig builds both buckets. Defaults allow 5 auth requests and
// 30 write requests per minute per client.
func LoadRateLimitConfig() RateLimits {
	return RateLimits{
		Auth:  loadBucket("RATE_LIMIT_AUTH", "rl:auth", 5, "ip"),
		Write: loadBucket("RATE_LIMIT_WRITE", "rl:write", 30, "ip_user"),
	}
}

func loadBucket(envPrefix, keyPrefix string, perMinute int, strategy string) RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt(envPrefix+"_CAPACITY", perMinute),
		RefillTokens:   envInt(envPrefix+"_REFILL_TOKENS", perMinute),
		RefillInterval: envDur(envPrefix+"_REFILL_INTERVAL", time.Minute),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr(envPrefix+"_KEY_STRATEGY", strategy),
		Prefix:         keyPrefix,
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Minute
	}
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
