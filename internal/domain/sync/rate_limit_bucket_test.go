package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHourWindow(t *testing.T) {
	now := time.Date(2025, 6, 12, 14, 37, 22, 999, time.UTC)

	start, end := HourWindow(now)

	assert.Equal(t, time.Date(2025, 6, 12, 14, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 12, 15, 0, 0, 0, time.UTC), end)
}

func TestHourWindow_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2025, 6, 12, 22, 30, 0, 0, loc) // 14:30 UTC

	start, end := HourWindow(now)

	assert.Equal(t, time.Date(2025, 6, 12, 14, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Hour, end.Sub(start))
}

func TestRateLimitBucket_Expired(t *testing.T) {
	now := time.Date(2025, 6, 12, 14, 10, 0, 0, time.UTC)
	bucket := NewRateLimitBucket(PlatformMeta, DefaultHourlyLimit, now)

	assert.False(t, bucket.Expired(now))
	assert.False(t, bucket.Expired(now.Add(49*time.Minute)))
	assert.True(t, bucket.Expired(bucket.WindowEnd))
	assert.True(t, bucket.Expired(bucket.WindowEnd.Add(time.Minute)))
}

func TestRateLimitBucket_Remaining(t *testing.T) {
	bucket := NewRateLimitBucket(PlatformShopify, 100, time.Now())

	assert.Equal(t, int64(100), bucket.Remaining())

	bucket.Used = 60
	assert.Equal(t, int64(40), bucket.Remaining())

	bucket.Used = 100
	assert.Equal(t, int64(0), bucket.Remaining())

	bucket.Used = 120 // never produced by Acquire, but Remaining stays sane
	assert.Equal(t, int64(0), bucket.Remaining())
}
