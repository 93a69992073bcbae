package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

func setupRedisLimiter(t *testing.T, limits Limits) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisRateLimiter(client, limits, ""), mr
}

func TestRedisRateLimiter_AcquireWithinBudget(t *testing.T) {
	limiter, _ := setupRedisLimiter(t, DefaultLimits())
	now := time.Date(2026, 3, 14, 10, 15, 0, 0, time.UTC)

	result, err := limiter.Acquire(context.Background(), syncdomain.PlatformShopify, 5000, now)

	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, int64(5000), result.Remaining)
	assert.Equal(t, time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC), result.ResetAt)
}

func TestRedisRateLimiter_RejectsWhenBudgetExhausted(t *testing.T) {
	limiter, mr := setupRedisLimiter(t, DefaultLimits())
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 15, 0, 0, time.UTC)
	mr.SetTime(now)

	first, err := limiter.Acquire(ctx, syncdomain.PlatformShopify, 5000, now)
	require.NoError(t, err)
	require.True(t, first.OK)

	second, err := limiter.Acquire(ctx, syncdomain.PlatformShopify, 6000, now)
	require.NoError(t, err)
	assert.False(t, second.OK)
	assert.Equal(t, int64(5000), second.Remaining)

	bucket, err := limiter.Bucket(ctx, syncdomain.PlatformShopify, now)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), bucket.Used)
}

func TestRedisRateLimiter_WindowRollover(t *testing.T) {
	limiter, _ := setupRedisLimiter(t, DefaultLimits())
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 59, 0, 0, time.UTC)

	_, err := limiter.Acquire(ctx, syncdomain.PlatformMeta, 9999, now)
	require.NoError(t, err)

	result, err := limiter.Acquire(ctx, syncdomain.PlatformMeta, 9999, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, int64(1), result.Remaining)
}

func TestRedisRateLimiter_WindowKeyExpires(t *testing.T) {
	limiter, mr := setupRedisLimiter(t, DefaultLimits())
	now := time.Date(2026, 3, 14, 10, 15, 0, 0, time.UTC)
	mr.SetTime(now)

	_, err := limiter.Acquire(context.Background(), syncdomain.PlatformShopify, 100, now)
	require.NoError(t, err)

	start, _ := syncdomain.HourWindow(now)
	key := limiter.windowKey(syncdomain.PlatformShopify, start)
	require.True(t, mr.Exists(key))

	// Counter keys are garbage collected a minute after the window closes.
	ttl := mr.TTL(key)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 46*time.Minute)
}

func TestRedisRateLimiter_PlatformsHaveIndependentBudgets(t *testing.T) {
	limiter, _ := setupRedisLimiter(t, DefaultLimits())
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	_, err := limiter.Acquire(ctx, syncdomain.PlatformShopify, 10000, now)
	require.NoError(t, err)

	result, err := limiter.Acquire(ctx, syncdomain.PlatformMeta, 10000, now)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, int64(0), result.Remaining)
}

func TestRedisRateLimiter_InvalidPlatform(t *testing.T) {
	limiter, _ := setupRedisLimiter(t, DefaultLimits())

	_, err := limiter.Acquire(context.Background(), syncdomain.Platform("ebay"), 1, time.Now())

	assert.ErrorIs(t, err, syncdomain.ErrInvalidPlatform)
}
