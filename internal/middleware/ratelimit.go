package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
	"github.com/iliyamo/wetwo-backend/internal/config"
	"github.com/iliyamo/wetwo-backend/internal/metrics"
)

// decision is the outcome of taking one token from a bucket.
type decision struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

// bucket takes one token for key.
type bucket interface {
	take(ctx context.Context, key string) (decision, error)
}

// NewTokenBucket returns a rate limiting middleware for one bucket. With a
// Redis client the bucket state is shared by every instance through a Lua
// script; without one each process keeps its own in-memory limiters. A
// limited request is answered with HTTP 429 and error code BAD_REQUEST.
func NewTokenBucket(name string, cfg config.RateLimitConfig, rdb *redis.Client, m *metrics.Collector) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	var b bucket
	if rdb != nil {
		b = &redisBucket{cfg: cfg, rdb: rdb}
	} else {
		b = newMemoryBucket(cfg)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)

			d, err := b.take(c.Request().Context(), key)
			if err != nil {
				// Fail open.
				slog.Warn("rate limiter unavailable", slog.String("key", key), slog.Any("error", err))
				return next(c)
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))

			if !d.allowed {
				secs := int(math.Ceil(d.retry.Seconds()))
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				m.RecordRateLimited(name)
				if cfg.Debug {
					slog.Info("rate limit block", slog.String("key", key), slog.Int("retry_after", secs))
				}
				return apperror.TooManyRequests("")
			}

			if cfg.Debug {
				c.Response().Header().Set("X-RateLimit-Key", key)
			}
			return next(c)
		}
	}
}

var limiterScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// redisBucket keeps the bucket state in a Redis hash per key.
type redisBucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

func (b *redisBucket) take(ctx context.Context, key string) (decision, error) {
	args := []interface{}{
		time.Now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL / time.Second),
	}
	vals, err := limiterScript.Run(ctx, b.rdb, []string{key}, args...).Result()
	if err != nil {
		return decision{}, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return decision{}, fmt.Errorf("unexpected script result %#v", vals)
	}
	return decision{
		allowed:   asInt64(arr[0]) == 1,
		remaining: asInt64(arr[1]),
		retry:     time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, nil
}

// keyLimiter is one in-memory bucket and the last time it was used.
type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// memoryBucket is the single-process fallback built on x/time/rate. Idle
// limiters are dropped once they have not been used for cfg.TTL.
type memoryBucket struct {
	cfg      config.RateLimitConfig
	every    rate.Limit
	now      func() time.Time
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	lastGC   time.Time
}

func newMemoryBucket(cfg config.RateLimitConfig) *memoryBucket {
	perToken := cfg.RefillInterval / time.Duration(cfg.RefillTokens)
	return &memoryBucket{
		cfg:      cfg,
		every:    rate.Every(perToken),
		now:      time.Now,
		limiters: make(map[string]*keyLimiter),
	}
}

func (b *memoryBucket) take(_ context.Context, key string) (decision, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.gc(now)

	kl, ok := b.limiters[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(b.every, b.cfg.Capacity)}
		b.limiters[key] = kl
	}
	kl.lastAccess = now

	if kl.limiter.AllowN(now, 1) {
		return decision{allowed: true, remaining: int64(kl.limiter.TokensAt(now))}, nil
	}
	// Time until one full token is available again.
	missing := 1 - kl.limiter.TokensAt(now)
	retry := time.Duration(missing / float64(b.every) * float64(time.Second))
	return decision{allowed: false, remaining: 0, retry: retry}, nil
}

// gc drops idle limiters at most once per TTL. The caller holds b.mu.
func (b *memoryBucket) gc(now time.Time) {
	if now.Sub(b.lastGC) < b.cfg.TTL {
		return
	}
	b.lastGC = now
	for k, kl := range b.limiters {
		if now.Sub(kl.lastAccess) > b.cfg.TTL {
			delete(b.limiters, k)
		}
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case float32:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	strategy := strings.ToLower(cfg.KeyStrategy)
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := UserID(c)
	if uid == "" {
		uid = "anon"
	}
	route := c.Request().Method + " " + c.Path()

	switch strategy {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
