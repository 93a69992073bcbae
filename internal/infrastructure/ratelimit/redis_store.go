package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

const defaultRateLimitKeyPrefix = "sync:ratelimit:"

// acquireScript consumes tokens only when the window has capacity left. The
// check and increment run as one script so concurrent callers cannot overshoot
// the limit. Returns {granted, used}.
var acquireScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
local cost = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
if used + cost > limit then
	return {0, used}
end
if cost > 0 then
	used = redis.call('INCRBY', KEYS[1], cost)
	redis.call('PEXPIREAT', KEYS[1], tonumber(ARGV[3]))
end
return {1, used}
`)

// RedisRateLimiter implements sync.RateLimiter on Redis. It is suitable for
// distributed deployments where multiple instances share one token budget.
// Each window is a plain counter key that expires shortly after the window
// closes.
type RedisRateLimiter struct {
	client    *redis.Client
	limits    Limits
	keyPrefix string
}

// NewRedisRateLimiter creates a Redis-backed rate limiter with an existing
// client. This is useful for testing or when sharing a client across
// components.
func NewRedisRateLimiter(client *redis.Client, limits Limits, keyPrefix string) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = defaultRateLimitKeyPrefix
	}
	return &RedisRateLimiter{
		client:    client,
		limits:    limits,
		keyPrefix: keyPrefix,
	}
}

// Acquire consumes cost tokens if capacity remains in the current window.
func (r *RedisRateLimiter) Acquire(ctx context.Context, platform syncdomain.Platform, cost int64, now time.Time) (syncdomain.AcquireResult, error) {
	if !platform.IsValid() {
		return syncdomain.AcquireResult{}, syncdomain.ErrInvalidPlatform
	}
	if cost < 0 {
		cost = 0
	}

	start, end := syncdomain.HourWindow(now)
	limit := r.limits.For(platform)
	key := r.windowKey(platform, start)

	// The key lives a minute past the window close so late readers still see
	// the final count before it is garbage collected.
	expireAt := end.Add(time.Minute).UnixMilli()

	raw, err := acquireScript.Run(ctx, r.client, []string{key}, cost, limit, expireAt).Result()
	if err != nil {
		return syncdomain.AcquireResult{}, fmt.Errorf("failed to acquire rate limit tokens: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return syncdomain.AcquireResult{}, fmt.Errorf("unexpected rate limit script reply: %v", raw)
	}
	granted := values[0].(int64) == 1
	used := values[1].(int64)

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return syncdomain.AcquireResult{
		OK:        granted,
		ResetAt:   end,
		Remaining: remaining,
	}, nil
}

// Bucket returns the current window's usage as a bucket snapshot.
func (r *RedisRateLimiter) Bucket(ctx context.Context, platform syncdomain.Platform, now time.Time) (*syncdomain.RateLimitBucket, error) {
	if !platform.IsValid() {
		return nil, syncdomain.ErrInvalidPlatform
	}

	start, _ := syncdomain.HourWindow(now)
	key := r.windowKey(platform, start)

	used, err := r.client.Get(ctx, key).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read rate limit window: %w", err)
	}

	bucket := syncdomain.NewRateLimitBucket(platform, r.limits.For(platform), now)
	bucket.Used = used
	return bucket, nil
}

func (r *RedisRateLimiter) windowKey(platform syncdomain.Platform, windowStart time.Time) string {
	return fmt.Sprintf("%s%s:%d", r.keyPrefix, platform, windowStart.Unix())
}

// Ensure RedisRateLimiter implements sync.RateLimiter
var _ syncdomain.RateLimiter = (*RedisRateLimiter)(nil)
