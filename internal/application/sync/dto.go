package sync

import (
	"time"

	"github.com/google/uuid"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

// TrackActivityResult is the outcome of recording one activity event.
type TrackActivityResult struct {
	ActivityScore float64
	SyncTier      syncdomain.SyncTier
	SyncInterval  time.Duration
	SyncsPerDay   int
}

// SyncFrequencyResult is the cadence decision for a tenant at a point in time.
type SyncFrequencyResult struct {
	Interval        time.Duration
	Priority        int
	NextSyncAt      time.Time
	IsBusinessHours bool
}

// SessionClaim is the outcome of a create-or-reuse attempt. AlreadyRunning
// means another run holds the (tenant, platform) lock and the caller must not
// start new work.
type SessionClaim struct {
	SessionID      uuid.UUID
	AlreadyRunning bool
}
