package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

func setupLimiterDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:ratelimit_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&RateLimitBucketModel{}))
	return db
}

func TestGormRateLimiter_AcquireWithinBudget(t *testing.T) {
	limiter := NewGormRateLimiter(setupLimiterDB(t), DefaultLimits())
	now := time.Date(2026, 3, 14, 10, 15, 0, 0, time.UTC)

	result, err := limiter.Acquire(context.Background(), syncdomain.PlatformShopify, 5000, now)

	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, int64(5000), result.Remaining)
	assert.Equal(t, time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC), result.ResetAt)
}

func TestGormRateLimiter_RejectsWhenBudgetExhausted(t *testing.T) {
	limiter := NewGormRateLimiter(setupLimiterDB(t), DefaultLimits())
	now := time.Date(2026, 3, 14, 10, 15, 0, 0, time.UTC)
	ctx := context.Background()

	first, err := limiter.Acquire(ctx, syncdomain.PlatformShopify, 5000, now)
	require.NoError(t, err)
	require.True(t, first.OK)

	// 6000 more would overshoot; the counter must stay at 5000.
	second, err := limiter.Acquire(ctx, syncdomain.PlatformShopify, 6000, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, second.OK)
	assert.Equal(t, int64(5000), second.Remaining)
	assert.Equal(t, time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC), second.ResetAt)

	bucket, err := limiter.Bucket(ctx, syncdomain.PlatformShopify, now)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), bucket.Used)
}

func TestGormRateLimiter_WindowRollover(t *testing.T) {
	limiter := NewGormRateLimiter(setupLimiterDB(t), DefaultLimits())
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 59, 0, 0, time.UTC)

	_, err := limiter.Acquire(ctx, syncdomain.PlatformMeta, 9999, now)
	require.NoError(t, err)

	// The next hour starts with a fresh budget.
	later := now.Add(2 * time.Minute)
	result, err := limiter.Acquire(ctx, syncdomain.PlatformMeta, 9999, later)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, int64(1), result.Remaining)
}

func TestGormRateLimiter_PlatformsHaveIndependentBudgets(t *testing.T) {
	limiter := NewGormRateLimiter(setupLimiterDB(t), DefaultLimits())
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	_, err := limiter.Acquire(ctx, syncdomain.PlatformShopify, 10000, now)
	require.NoError(t, err)

	result, err := limiter.Acquire(ctx, syncdomain.PlatformMeta, 10000, now)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, int64(0), result.Remaining)
}

func TestGormRateLimiter_PerPlatformOverride(t *testing.T) {
	limits := Limits{
		Default:     syncdomain.DefaultHourlyLimit,
		PerPlatform: map[syncdomain.Platform]int64{syncdomain.PlatformMeta: 200},
	}
	limiter := NewGormRateLimiter(setupLimiterDB(t), limits)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	result, err := limiter.Acquire(context.Background(), syncdomain.PlatformMeta, 201, now)

	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, int64(200), result.Remaining)
}

func TestGormRateLimiter_InvalidPlatform(t *testing.T) {
	limiter := NewGormRateLimiter(setupLimiterDB(t), DefaultLimits())

	_, err := limiter.Acquire(context.Background(), syncdomain.Platform("etsy"), 1, time.Now())

	assert.ErrorIs(t, err, syncdomain.ErrInvalidPlatform)
}

func TestGormRateLimiter_BucketWithoutUsage(t *testing.T) {
	limiter := NewGormRateLimiter(setupLimiterDB(t), DefaultLimits())
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	bucket, err := limiter.Bucket(context.Background(), syncdomain.PlatformShopify, now)

	require.NoError(t, err)
	assert.Equal(t, int64(0), bucket.Used)
	assert.Equal(t, syncdomain.DefaultHourlyLimit, bucket.Limit)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC), bucket.WindowStart)
	assert.Equal(t, time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC), bucket.WindowEnd)
}

func TestGormRateLimiter_ConcurrentAcquiresNeverOvershoot(t *testing.T) {
	limits := Limits{Default: 50}
	limiter := NewGormRateLimiter(setupLimiterDB(t), limits)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	granted := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := limiter.Acquire(ctx, syncdomain.PlatformShopify, 10, now)
			assert.NoError(t, err)
			granted <- result.OK
		}()
	}
	wg.Wait()
	close(granted)

	grants := 0
	for ok := range granted {
		if ok {
			grants++
		}
	}
	assert.Equal(t, 5, grants)

	bucket, err := limiter.Bucket(ctx, syncdomain.PlatformShopify, now)
	require.NoError(t, err)
	assert.Equal(t, int64(50), bucket.Used)
}
