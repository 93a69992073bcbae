package sync

import (
	"time"

	"github.com/google/uuid"
)

// DefaultHourlyLimit is the per-platform token budget for one hour window.
const DefaultHourlyLimit int64 = 10000

// RateLimitBucket is the rolling hourly token bucket for one platform.
// A bucket whose window has passed is logically reset; it is superseded by
// the next window's record rather than deleted.
type RateLimitBucket struct {
	ID          uuid.UUID
	Platform    Platform
	WindowStart time.Time
	WindowEnd   time.Time
	Used        int64
	Limit       int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HourWindow returns the UTC hour-aligned window containing now.
func HourWindow(now time.Time) (start, end time.Time) {
	start = now.UTC().Truncate(time.Hour)
	return start, start.Add(time.Hour)
}

// NewRateLimitBucket creates an empty bucket for the window containing now.
func NewRateLimitBucket(platform Platform, limit int64, now time.Time) *RateLimitBucket {
	start, end := HourWindow(now)
	return &RateLimitBucket{
		ID:          uuid.New(),
		Platform:    platform,
		WindowStart: start,
		WindowEnd:   end,
		Used:        0,
		Limit:       limit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Expired returns true if the bucket's window has passed.
func (b *RateLimitBucket) Expired(now time.Time) bool {
	return !now.UTC().Before(b.WindowEnd)
}

// Remaining returns the unconsumed capacity.
func (b *RateLimitBucket) Remaining() int64 {
	if b.Used >= b.Limit {
		return 0
	}
	return b.Limit - b.Used
}

// AcquireResult reports the outcome of a capacity acquisition.
// OK=false is backpressure, not an error: the caller should wait until
// ResetAt or skip the unit of work this cycle.
type AcquireResult struct {
	OK        bool      `json:"ok"`
	ResetAt   time.Time `json:"reset_at"`
	Remaining int64     `json:"remaining"`
}
