package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityProfileRepository persists per-tenant activity profiles.
type ActivityProfileRepository interface {
	// FindByTenant returns the tenant's profile or ErrProfileNotFound
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*ActivityProfile, error)

	// Save upserts the profile keyed by tenant
	Save(ctx context.Context, profile *ActivityProfile) error

	// ListDue returns up to limit profiles whose next scheduled sync is at or
	// before now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]ActivityProfile, error)
}

// SyncSessionRepository persists sync session records. Mutating methods are
// no-ops returning ErrSessionNotFound when the session does not exist;
// callers decide whether that matters.
type SyncSessionRepository interface {
	// FindByID returns a session by id or ErrSessionNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*SyncSession, error)

	// FindReusable returns the best dedup candidate for the pair, searching
	// statuses in priority order pending, syncing, processing. Returns
	// ErrSessionNotFound when no candidate exists.
	FindReusable(ctx context.Context, organizationID uuid.UUID, platform Platform) (*SyncSession, error)

	// Create inserts a new session
	Create(ctx context.Context, session *SyncSession) error

	// Update writes the full session back under optimistic concurrency,
	// returning ErrConcurrentModification if the stored version moved.
	Update(ctx context.Context, session *SyncSession) error

	// Patch applies only the supplied fields to the session
	Patch(ctx context.Context, id uuid.UUID, patch SessionPatch) error

	// InitializeBatches seeds batch accounting atomically
	InitializeBatches(ctx context.Context, id uuid.UUID, totalBatches, initialRecords int, metrics *BatchMetrics) error

	// IncrementProgress applies clamped batch/record deltas atomically and
	// returns the post-update counters.
	IncrementProgress(ctx context.Context, id uuid.UUID, batchesDelta int, recordsDelta *int) (*ProgressCounters, error)

	// PatchMetadata merges a metadata patch atomically
	PatchMetadata(ctx context.Context, id uuid.UUID, patch MetadataPatch) error

	// ListRecent returns the most recent sessions for a pair, newest first
	ListRecent(ctx context.Context, organizationID uuid.UUID, platform Platform, limit int) ([]SyncSession, error)
}

// RateLimiter gates outbound platform API cost against the rolling hourly
// bucket. Acquire behaves as get-or-create-then-conditionally-increment in a
// single atomic step.
type RateLimiter interface {
	// Acquire consumes cost tokens if capacity remains in the current window.
	// A false OK is backpressure, not an error.
	Acquire(ctx context.Context, platform Platform, cost int64, now time.Time) (AcquireResult, error)

	// Bucket returns the current window's bucket. If the stored bucket has
	// expired a fresh virtual bucket is returned without persisting it.
	Bucket(ctx context.Context, platform Platform, now time.Time) (*RateLimitBucket, error)
}
