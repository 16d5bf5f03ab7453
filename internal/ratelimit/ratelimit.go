// Package ratelimit implements the Receiver's per-client rate limiter: a
// fixed window of rate_limit_window seconds allowing rate_limit_requests
// requests, keyed by remote address.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentrel/sentrel/internal/metrics"
)

// Result carries the decision plus the bookkeeping needed to set
// Retry-After and X-RateLimit-* response headers.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetSecs int
}

// Limiter decides whether a client may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
	Close() error
}

type redisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// fixedWindowScript atomically increments the per-window counter and
// reports its TTL, so a single round-trip yields both the allow decision
// and the reset time needed for Retry-After.
const fixedWindowScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = redis.call('INCR', key)
if current == 1 then
	redis.call('EXPIRE', key, window)
end
local ttl = redis.call('TTL', key)
if ttl < 0 then
	redis.call('EXPIRE', key, window)
	ttl = window
end

return {current, ttl}
`

// NewRedisLimiter connects to Redis and returns a fixed-window Limiter.
func NewRedisLimiter(redisURL string, limit int, window time.Duration) (Limiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &redisLimiter{client: client, limit: limit, window: window}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	windowSecs := int(r.window.Seconds())
	if windowSecs <= 0 {
		windowSecs = 1
	}

	res, err := r.client.Eval(ctx, fixedWindowScript, []string{"ratelimit:" + key}, r.limit, windowSecs).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return Result{}, fmt.Errorf("unexpected rate limit script result: %#v", res)
	}
	current := toInt(values[0])
	ttl := toInt(values[1])

	remaining := r.limit - current
	if remaining < 0 {
		remaining = 0
	}

	result := Result{
		Allowed:   current <= r.limit,
		Limit:     r.limit,
		Remaining: remaining,
		ResetSecs: ttl,
	}
	if !result.Allowed {
		metrics.RateLimitHits.WithLabelValues(key).Inc()
	}
	return result, nil
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func (r *redisLimiter) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// NoOpLimiter always allows requests; used when rate_limit_enabled is false.
type NoOpLimiter struct{}

func (NoOpLimiter) Allow(ctx context.Context, key string) (Result, error) {
	return Result{Allowed: true}, nil
}

func (NoOpLimiter) Close() error { return nil }
