package sync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecayFactor(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		expected float64
	}{
		{"zero elapsed", 0, 1.0},
		{"one hour", time.Hour, 0.98},
		{"ten hours", 10 * time.Hour, 0.8},
		{"twenty five hours floors at half", 25 * time.Hour, 0.5},
		{"a week still floors at half", 7 * 24 * time.Hour, 0.5},
		{"negative elapsed treated as zero", -time.Hour, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, DecayFactor(tt.elapsed), 1e-9)
		})
	}
}

func TestDecayFactor_NeverBelowFloor(t *testing.T) {
	for hours := 0; hours < 1000; hours += 7 {
		f := DecayFactor(time.Duration(hours) * time.Hour)
		assert.GreaterOrEqual(t, f, MinDecayFactor)
		assert.LessOrEqual(t, f, 1.0)
	}
}

func TestTierForScore_TotalAndDeterministic(t *testing.T) {
	// Every score in the representable range maps to exactly one band.
	for score := 0.0; score <= MaxActivityScore; score += 0.5 {
		band := TierForScore(score)
		assert.LessOrEqual(t, score, band.MaxScore)
		assert.NotZero(t, band.SyncsPerDay)
		assert.NotZero(t, band.Interval)
	}
}

func TestTierForScore_Boundaries(t *testing.T) {
	tests := []struct {
		score       float64
		tier        SyncTier
		syncsPerDay int
		interval    time.Duration
	}{
		{0, SyncTierMinimal, 1, 24 * time.Hour},
		{10, SyncTierMinimal, 1, 24 * time.Hour},
		{11, SyncTierLow, 4, 6 * time.Hour},
		{30, SyncTierLow, 4, 6 * time.Hour},
		{31, SyncTierMedium, 8, 3 * time.Hour},
		{50, SyncTierMedium, 8, 3 * time.Hour},
		{51, SyncTierHigh, 12, 2 * time.Hour},
		{70, SyncTierHigh, 12, 2 * time.Hour},
		{71, SyncTierHigh, 24, time.Hour},
		{90, SyncTierHigh, 24, time.Hour},
		{91, SyncTierMaximum, 48, 30 * time.Minute},
		{100, SyncTierMaximum, 48, 30 * time.Minute},
		{101, SyncTierMaximum, 60, 24 * time.Minute},
		{150, SyncTierMaximum, 60, 24 * time.Minute},
	}

	for _, tt := range tests {
		band := TierForScore(tt.score)
		assert.Equal(t, tt.tier, band.Tier, "score %v", tt.score)
		assert.Equal(t, tt.syncsPerDay, band.SyncsPerDay, "score %v", tt.score)
		assert.Equal(t, tt.interval, band.Interval, "score %v", tt.score)
	}
}

func TestActivityType_Weights(t *testing.T) {
	assert.Equal(t, 10.0, ActivityLogin.Weight())
	assert.Equal(t, 5.0, ActivityDashboard.Weight())
	assert.Equal(t, 3.0, ActivityWidget.Weight())
	assert.Equal(t, 8.0, ActivityReport.Weight())
	assert.Equal(t, 4.0, ActivityAPI.Weight())
	assert.Equal(t, 7.0, ActivityExport.Weight())
	assert.Equal(t, 2.0, ActivitySettings.Weight())

	assert.False(t, ActivityType("unknown").IsValid())
	assert.Zero(t, ActivityType("unknown").Weight())
}

func TestRecordActivity_NewTenantLogin(t *testing.T) {
	// New tenant, single login: score 10, minimal tier, 24h interval.
	now := time.Now()
	profile := NewActivityProfile(uuid.New(), now)

	band := profile.RecordActivity(ActivityLogin, now)

	assert.Equal(t, 10.0, profile.ActivityScore)
	assert.Equal(t, SyncTierMinimal, profile.SyncTier)
	assert.Equal(t, 1, profile.SyncFrequency)
	assert.Equal(t, 24*time.Hour, profile.SyncInterval)
	assert.Equal(t, band.Interval, profile.SyncInterval)
}

func TestRecordActivity_ImmediateFollowup(t *testing.T) {
	// Login then an immediate report: no decay, score 18, low tier, 6h interval.
	now := time.Now()
	profile := NewActivityProfile(uuid.New(), now)
	profile.RecordActivity(ActivityLogin, now)

	profile.RecordActivity(ActivityReport, now)

	assert.Equal(t, 18.0, profile.ActivityScore)
	assert.Equal(t, SyncTierLow, profile.SyncTier)
	assert.Equal(t, 4, profile.SyncFrequency)
	assert.Equal(t, 6*time.Hour, profile.SyncInterval)
}

func TestRecordActivity_DecayApplied(t *testing.T) {
	now := time.Now()
	profile := NewActivityProfile(uuid.New(), now)
	profile.RecordActivity(ActivityLogin, now)
	require.Equal(t, 10.0, profile.ActivityScore)

	// 10 hours later: 10 * 0.8 + 4 = 12.
	later := now.Add(10 * time.Hour)
	profile.RecordActivity(ActivityAPI, later)

	assert.InDelta(t, 12.0, profile.ActivityScore, 1e-9)
	assert.Equal(t, later, profile.LastActivityAt)
	assert.Equal(t, SyncTierLow, profile.SyncTier)
}

func TestRecordActivity_ScoreBounded(t *testing.T) {
	// Any sequence of activity keeps the score within [0, 150].
	now := time.Now()
	profile := NewActivityProfile(uuid.New(), now)

	for i := 0; i < 100; i++ {
		profile.RecordActivity(ActivityLogin, now)
		assert.GreaterOrEqual(t, profile.ActivityScore, 0.0)
		assert.LessOrEqual(t, profile.ActivityScore, MaxActivityScore)
	}

	assert.Equal(t, MaxActivityScore, profile.ActivityScore)
	assert.Equal(t, SyncTierMaximum, profile.SyncTier)
	assert.Equal(t, 60, profile.SyncFrequency)
	assert.Equal(t, 24*time.Minute, profile.SyncInterval)
}

func TestRecordActivity_TierConsistentWithScore(t *testing.T) {
	// The derived fields always agree with the tier table at last write.
	now := time.Now()
	profile := NewActivityProfile(uuid.New(), now)
	activities := []ActivityType{
		ActivityLogin, ActivitySettings, ActivityReport, ActivityWidget,
		ActivityExport, ActivityAPI, ActivityDashboard,
	}

	for i, a := range activities {
		at := now.Add(time.Duration(i) * 3 * time.Hour)
		profile.RecordActivity(a, at)

		band := TierForScore(profile.ActivityScore)
		assert.Equal(t, band.Tier, profile.SyncTier)
		assert.Equal(t, band.SyncsPerDay, profile.SyncFrequency)
		assert.Equal(t, band.Interval, profile.SyncInterval)
	}
}

func TestMarkSynced(t *testing.T) {
	now := time.Now()
	profile := NewActivityProfile(uuid.New(), now)
	require.Nil(t, profile.LastSync)

	profile.MarkSynced(now)

	require.NotNil(t, profile.LastSync)
	assert.Equal(t, now, *profile.LastSync)
}
