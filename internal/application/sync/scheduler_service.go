package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

// SchedulerOptions tunes the cadence heuristics. Zero values fall back to the
// stock business-hours window and defaults.
type SchedulerOptions struct {
	// BusinessHoursStart/End bound the Mon-Fri business window (local hours).
	BusinessHoursStart int
	BusinessHoursEnd   int
	// DefaultInterval is the cadence for tenants without a profile.
	DefaultInterval time.Duration
	// DefaultPriority is the job priority for tenants without a profile.
	DefaultPriority int
}

// DefaultSchedulerOptions returns the stock heuristics: business hours Mon-Fri
// 08:00-19:00, unknown tenants sync daily at normal priority.
func DefaultSchedulerOptions() SchedulerOptions {
	return SchedulerOptions{
		BusinessHoursStart: 8,
		BusinessHoursEnd:   19,
		DefaultInterval:    24 * time.Hour,
		DefaultPriority:    5,
	}
}

func (o *SchedulerOptions) applyDefaults() {
	if o.BusinessHoursStart == 0 && o.BusinessHoursEnd == 0 {
		o.BusinessHoursStart = 8
		o.BusinessHoursEnd = 19
	}
	if o.DefaultInterval <= 0 {
		o.DefaultInterval = 24 * time.Hour
	}
	if o.DefaultPriority <= 0 {
		o.DefaultPriority = 5
	}
}

// SchedulerService turns recorded tenant activity into an adaptive sync
// cadence and job priority. It is consulted inline before work is enqueued
// and never blocks on anything but storage.
type SchedulerService struct {
	profiles syncdomain.ActivityProfileRepository
	options  SchedulerOptions
	logger   *zap.Logger
}

// NewSchedulerService creates a new SchedulerService
func NewSchedulerService(profiles syncdomain.ActivityProfileRepository, options SchedulerOptions, logger *zap.Logger) *SchedulerService {
	options.applyDefaults()
	return &SchedulerService{
		profiles: profiles,
		options:  options,
		logger:   logger,
	}
}

// TrackActivity records one activity event for a tenant, lazily creating the
// profile, decaying and re-scoring it, and persisting the derived cadence.
func (s *SchedulerService) TrackActivity(ctx context.Context, tenantID uuid.UUID, activity syncdomain.ActivityType, now time.Time) (*TrackActivityResult, error) {
	if !activity.IsValid() {
		return nil, syncdomain.ErrInvalidActivityType
	}

	profile, err := s.profiles.FindByTenant(ctx, tenantID)
	if errors.Is(err, syncdomain.ErrProfileNotFound) {
		profile = syncdomain.NewActivityProfile(tenantID, now)
	} else if err != nil {
		return nil, err
	}

	band := profile.RecordActivity(activity, now)
	if err := s.profiles.Save(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.Debug("Tenant activity recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("activity", string(activity)),
		zap.Float64("score", profile.ActivityScore),
		zap.String("tier", string(band.Tier)),
	)

	return &TrackActivityResult{
		ActivityScore: profile.ActivityScore,
		SyncTier:      band.Tier,
		SyncInterval:  band.Interval,
		SyncsPerDay:   band.SyncsPerDay,
	}, nil
}

// GetSyncFrequency computes the tenant's current cadence and priority.
// Read-only; tenants without a profile get the default cadence.
func (s *SchedulerService) GetSyncFrequency(ctx context.Context, tenantID uuid.UUID, now time.Time) (*SyncFrequencyResult, error) {
	business := s.isBusinessHours(now)

	profile, err := s.profiles.FindByTenant(ctx, tenantID)
	if errors.Is(err, syncdomain.ErrProfileNotFound) {
		return &SyncFrequencyResult{
			Interval:        s.options.DefaultInterval,
			Priority:        s.options.DefaultPriority,
			NextSyncAt:      now.Add(time.Hour),
			IsBusinessHours: business,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	priority := priorityForScore(profile.ActivityScore)
	if business {
		priority++
	}

	interval := profile.SyncInterval
	switch {
	case !business:
		interval *= 2
	case s.isPeakWindow(now):
		interval = interval * 3 / 4
	}

	nextSyncAt := now.Add(profile.SyncInterval)
	if profile.NextScheduledSync != nil {
		nextSyncAt = *profile.NextScheduledSync
	}

	return &SyncFrequencyResult{
		Interval:        interval,
		Priority:        priority,
		NextSyncAt:      nextSyncAt,
		IsBusinessHours: business,
	}, nil
}

// UpdateSyncMetrics records that a sync for the tenant finished. Tenants
// without a profile are skipped; detailed run metrics live on the session.
func (s *SchedulerService) UpdateSyncMetrics(ctx context.Context, tenantID uuid.UUID, duration time.Duration, dataChanged, success bool, now time.Time) error {
	profile, err := s.profiles.FindByTenant(ctx, tenantID)
	if errors.Is(err, syncdomain.ErrProfileNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	profile.MarkSynced(now)
	if success {
		profile.ScheduleNext(now)
	}
	if err := s.profiles.Save(ctx, profile); err != nil {
		return err
	}

	s.logger.Debug("Sync metrics updated",
		zap.String("tenant_id", tenantID.String()),
		zap.Duration("duration", duration),
		zap.Bool("data_changed", dataChanged),
		zap.Bool("success", success),
	)
	return nil
}

// priorityForScore maps an activity score to a base job priority.
func priorityForScore(score float64) int {
	switch {
	case score > 70:
		return 8
	case score > 40:
		return 6
	case score < 10:
		return 3
	default:
		return 5
	}
}

// isBusinessHours reports whether now falls in the Mon-Fri business window.
func (s *SchedulerService) isBusinessHours(now time.Time) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := now.Hour()
	return hour >= s.options.BusinessHoursStart && hour < s.options.BusinessHoursEnd
}

// isPeakWindow reports whether now falls in a peak dashboard-usage window
// (09:00-11:00 or 14:00-16:00), when cadence tightens by 25%.
func (s *SchedulerService) isPeakWindow(now time.Time) bool {
	hour := now.Hour()
	return (hour >= 9 && hour < 11) || (hour >= 14 && hour < 16)
}
