package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

// RateLimitBucketModel is the GORM model for hourly rate limit buckets.
// One row per (platform, window); expired rows are superseded, not deleted.
type RateLimitBucketModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Platform    string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_rate_limit_window,priority:1"`
	WindowStart time.Time `gorm:"not null;uniqueIndex:idx_rate_limit_window,priority:2"`
	WindowEnd   time.Time `gorm:"not null"`
	Used        int64     `gorm:"not null;default:0"`
	HourlyLimit int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName specifies the table name
func (RateLimitBucketModel) TableName() string {
	return "rate_limit_buckets"
}

// ToEntity converts the model to a domain entity
func (m *RateLimitBucketModel) ToEntity() *syncdomain.RateLimitBucket {
	return &syncdomain.RateLimitBucket{
		ID:          m.ID,
		Platform:    syncdomain.Platform(m.Platform),
		WindowStart: m.WindowStart,
		WindowEnd:   m.WindowEnd,
		Used:        m.Used,
		Limit:       m.HourlyLimit,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// RateLimitBucketModelFromEntity converts a domain entity to the model
func RateLimitBucketModelFromEntity(b *syncdomain.RateLimitBucket) *RateLimitBucketModel {
	return &RateLimitBucketModel{
		ID:          b.ID,
		Platform:    string(b.Platform),
		WindowStart: b.WindowStart,
		WindowEnd:   b.WindowEnd,
		Used:        b.Used,
		HourlyLimit: b.Limit,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// GormRateLimiter implements sync.RateLimiter on top of the relational store.
// Acquisition is a conditional UPDATE guarded by the remaining capacity, so
// concurrent workers never push a bucket past its limit.
type GormRateLimiter struct {
	db     *gorm.DB
	limits Limits
}

// NewGormRateLimiter creates a new database-backed rate limiter
func NewGormRateLimiter(db *gorm.DB, limits Limits) *GormRateLimiter {
	return &GormRateLimiter{db: db, limits: limits}
}

// Acquire consumes cost tokens from the current hourly window if capacity
// remains. A false OK means the window is exhausted; the usage counter is
// left untouched in that case.
func (r *GormRateLimiter) Acquire(ctx context.Context, platform syncdomain.Platform, cost int64, now time.Time) (syncdomain.AcquireResult, error) {
	if !platform.IsValid() {
		return syncdomain.AcquireResult{}, syncdomain.ErrInvalidPlatform
	}

	start, end := syncdomain.HourWindow(now)
	limit := r.limits.For(platform)

	if err := r.ensureBucket(ctx, platform, limit, now); err != nil {
		return syncdomain.AcquireResult{}, err
	}

	if cost > 0 {
		result := r.db.WithContext(ctx).
			Model(&RateLimitBucketModel{}).
			Where("platform = ? AND window_start = ? AND used + ? <= hourly_limit", string(platform), start, cost).
			Updates(map[string]any{
				"used":       gorm.Expr("used + ?", cost),
				"updated_at": now,
			})
		if result.Error != nil {
			return syncdomain.AcquireResult{}, result.Error
		}
		if result.RowsAffected == 0 {
			bucket, err := r.Bucket(ctx, platform, now)
			if err != nil {
				return syncdomain.AcquireResult{}, err
			}
			return syncdomain.AcquireResult{
				OK:        false,
				ResetAt:   end,
				Remaining: bucket.Remaining(),
			}, nil
		}
	}

	bucket, err := r.Bucket(ctx, platform, now)
	if err != nil {
		return syncdomain.AcquireResult{}, err
	}
	return syncdomain.AcquireResult{
		OK:        true,
		ResetAt:   end,
		Remaining: bucket.Remaining(),
	}, nil
}

// Bucket returns the current window's bucket. A missing or superseded row
// yields a fresh virtual bucket without persisting it.
func (r *GormRateLimiter) Bucket(ctx context.Context, platform syncdomain.Platform, now time.Time) (*syncdomain.RateLimitBucket, error) {
	if !platform.IsValid() {
		return nil, syncdomain.ErrInvalidPlatform
	}

	start, _ := syncdomain.HourWindow(now)
	limit := r.limits.For(platform)

	var model RateLimitBucketModel
	err := r.db.WithContext(ctx).
		Where("platform = ? AND window_start = ?", string(platform), start).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return syncdomain.NewRateLimitBucket(platform, limit, now), nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToEntity(), nil
}

// ensureBucket creates the row for the current window if it does not exist
// yet. The unique (platform, window_start) index makes concurrent creation
// collapse into a single row.
func (r *GormRateLimiter) ensureBucket(ctx context.Context, platform syncdomain.Platform, limit int64, now time.Time) error {
	bucket := syncdomain.NewRateLimitBucket(platform, limit, now)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "window_start"}},
			DoNothing: true,
		}).
		Create(RateLimitBucketModelFromEntity(bucket)).Error
}

// Ensure GormRateLimiter implements sync.RateLimiter
var _ syncdomain.RateLimiter = (*GormRateLimiter)(nil)
