package sync

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Activity Types
// ---------------------------------------------------------------------------

// ActivityType is a kind of recorded tenant activity. Each type carries a
// weight that feeds the decayed activity score.
type ActivityType string

const (
	ActivityLogin     ActivityType = "login"
	ActivityDashboard ActivityType = "dashboard"
	ActivityWidget    ActivityType = "widget"
	ActivityReport    ActivityType = "report"
	ActivityAPI       ActivityType = "api"
	ActivityExport    ActivityType = "export"
	ActivitySettings  ActivityType = "settings"
)

// activityWeights maps each activity type to its score contribution.
var activityWeights = map[ActivityType]float64{
	ActivityLogin:     10,
	ActivityDashboard: 5,
	ActivityWidget:    3,
	ActivityReport:    8,
	ActivityAPI:       4,
	ActivityExport:    7,
	ActivitySettings:  2,
}

// IsValid returns true if the activity type is known
func (a ActivityType) IsValid() bool {
	_, ok := activityWeights[a]
	return ok
}

// Weight returns the score contribution of the activity type, 0 for unknown types.
func (a ActivityType) Weight() float64 {
	return activityWeights[a]
}

// ---------------------------------------------------------------------------
// Sync Tiers
// ---------------------------------------------------------------------------

// SyncTier is the named engagement band an activity score falls into.
type SyncTier string

const (
	SyncTierMinimal SyncTier = "minimal"
	SyncTierLow     SyncTier = "low"
	SyncTierMedium  SyncTier = "medium"
	SyncTierHigh    SyncTier = "high"
	SyncTierMaximum SyncTier = "maximum"
)

// TierBand maps a closed score range to a sync cadence.
type TierBand struct {
	MinScore    float64
	MaxScore    float64
	Tier        SyncTier
	SyncsPerDay int
	Interval    time.Duration
}

// tierTable is the fixed ascending band table. Lookup is total: every
// score >= 0 lands in exactly one band (scores are capped at MaxActivityScore
// well below the last band's upper bound).
var tierTable = []TierBand{
	{0, 10, SyncTierMinimal, 1, 24 * time.Hour},
	{11, 30, SyncTierLow, 4, 6 * time.Hour},
	{31, 50, SyncTierMedium, 8, 3 * time.Hour},
	{51, 70, SyncTierHigh, 12, 2 * time.Hour},
	{71, 90, SyncTierHigh, 24, time.Hour},
	{91, 100, SyncTierMaximum, 48, 30 * time.Minute},
	{101, 999, SyncTierMaximum, 60, 24 * time.Minute},
}

// TierForScore returns the band containing the given score.
func TierForScore(score float64) TierBand {
	for _, band := range tierTable {
		if score <= band.MaxScore {
			return band
		}
	}
	return tierTable[len(tierTable)-1]
}

// Score bounds and decay constants.
const (
	// MaxActivityScore caps the decayed score
	MaxActivityScore = 150.0
	// DecayPerHour is the score decay rate per elapsed hour
	DecayPerHour = 0.02
	// MinDecayFactor floors the decay so long-idle tenants keep half their score
	MinDecayFactor = 0.5
)

// DecayFactor returns the multiplicative decay for the given elapsed time,
// 2% per hour floored at 50%.
func DecayFactor(elapsed time.Duration) float64 {
	hours := elapsed.Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Max(MinDecayFactor, 1-DecayPerHour*hours)
}

// ---------------------------------------------------------------------------
// ActivityProfile
// ---------------------------------------------------------------------------

// ActivityProfile is the per-tenant record that turns recorded activity into
// a sync cadence. Created lazily on first activity, mutated only by the
// scheduler, never deleted.
type ActivityProfile struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ActivityScore  float64
	LastActivityAt time.Time

	// Derived from the tier table at last write, never set directly.
	SyncTier      SyncTier
	SyncFrequency int           // syncs per day
	SyncInterval  time.Duration // time between syncs

	LastSync          *time.Time
	NextScheduledSync *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewActivityProfile creates a fresh profile for a tenant at score zero.
func NewActivityProfile(tenantID uuid.UUID, now time.Time) *ActivityProfile {
	band := TierForScore(0)
	return &ActivityProfile{
		ID:             uuid.New(),
		TenantID:       tenantID,
		ActivityScore:  0,
		LastActivityAt: now,
		SyncTier:       band.Tier,
		SyncFrequency:  band.SyncsPerDay,
		SyncInterval:   band.Interval,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// RecordActivity applies one activity event: decays the current score by the
// time elapsed since the last activity, adds the type's weight, caps the
// result, and re-derives the tier fields. Returns the band the new score
// landed in.
func (p *ActivityProfile) RecordActivity(activity ActivityType, now time.Time) TierBand {
	decayed := p.ActivityScore * DecayFactor(now.Sub(p.LastActivityAt))
	newScore := math.Min(MaxActivityScore, decayed+activity.Weight())

	band := TierForScore(newScore)
	p.ActivityScore = newScore
	p.LastActivityAt = now
	p.SyncTier = band.Tier
	p.SyncFrequency = band.SyncsPerDay
	p.SyncInterval = band.Interval
	p.UpdatedAt = now
	return band
}

// MarkSynced records that a sync for this tenant finished at the given time.
func (p *ActivityProfile) MarkSynced(now time.Time) {
	t := now
	p.LastSync = &t
	p.UpdatedAt = now
}

// ScheduleNext sets the next sync to one interval from now.
func (p *ActivityProfile) ScheduleNext(now time.Time) {
	next := now.Add(p.SyncInterval)
	p.NextScheduledSync = &next
	p.UpdatedAt = now
}
