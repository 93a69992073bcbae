package queue

import (
	"strings"
	"time"

	"github.com/google/uuid"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

// JobType identifies the kind of work a job carries. Maintenance jobs use a
// "maintenance:" prefix with a free-form suffix.
type JobType string

const (
	JobSyncInitial        JobType = "sync:initial"
	JobSyncSmart          JobType = "sync:smart"
	JobSyncImmediate      JobType = "sync:immediate"
	JobSyncScheduled      JobType = "sync:scheduled"
	JobSyncManual         JobType = "sync:manual"
	JobAnalyticsCalculate JobType = "analytics:calculate"
	JobAnalyticsRollup    JobType = "analytics:rollup"
	JobCleanupOldData     JobType = "cleanup:old_data"
	JobEmailSend          JobType = "email:send"

	// JobMaintenanceWildcard registers a handler for every maintenance:* job.
	JobMaintenanceWildcard JobType = "maintenance:*"

	maintenancePrefix = "maintenance:"
	syncPrefix        = "sync:"
)

var knownJobTypes = map[JobType]struct{}{
	JobSyncInitial:        {},
	JobSyncSmart:          {},
	JobSyncImmediate:      {},
	JobSyncScheduled:      {},
	JobSyncManual:         {},
	JobAnalyticsCalculate: {},
	JobAnalyticsRollup:    {},
	JobCleanupOldData:     {},
	JobEmailSend:          {},
}

// IsValid reports whether t is part of the accepted job type set.
func (t JobType) IsValid() bool {
	if _, ok := knownJobTypes[t]; ok {
		return true
	}
	return t.IsMaintenance()
}

// IsSync reports whether t is a platform sync job.
func (t JobType) IsSync() bool {
	return strings.HasPrefix(string(t), syncPrefix)
}

// IsMaintenance reports whether t is a maintenance job.
func (t JobType) IsMaintenance() bool {
	return strings.HasPrefix(string(t), maintenancePrefix) && len(t) > len(maintenancePrefix)
}

// Priority is the dispatch rank of a job; higher drains first.
type Priority int

const (
	// PriorityCritical is for user-triggered work and webhooks.
	PriorityCritical Priority = 10
	// PriorityHigh is for initial syncs during onboarding.
	PriorityHigh Priority = 8
	// PriorityNormal is for scheduled syncs.
	PriorityNormal Priority = 5
	// PriorityLow is for analytics rollups.
	PriorityLow Priority = 3
	// PriorityBackground is for cleanup and maintenance.
	PriorityBackground Priority = 1
)

// IsValid reports whether p is in the accepted 1..10 range.
func (p Priority) IsValid() bool {
	return p >= 1 && p <= 10
}

// RetryPolicy controls how a failing job is retried. Backoff grows
// exponentially: InitialBackoff * ExponentialBase^(attempt-1).
type RetryPolicy struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	ExponentialBase float64
}

// DefaultRetryPolicy returns the per-type retry policy. Cleanup and
// maintenance work retries less and backs off longer; email retries quickly.
func DefaultRetryPolicy(t JobType) RetryPolicy {
	switch {
	case t == JobCleanupOldData || t.IsMaintenance():
		return RetryPolicy{MaxAttempts: 2, InitialBackoff: 5 * time.Second, ExponentialBase: 2}
	case t == JobEmailSend:
		return RetryPolicy{MaxAttempts: 3, InitialBackoff: 1 * time.Second, ExponentialBase: 2}
	default:
		return RetryPolicy{MaxAttempts: 3, InitialBackoff: 2 * time.Second, ExponentialBase: 2}
	}
}

// BackoffFor returns the delay before the given retry. attempt is the number
// of attempts already made (1 after the first failure).
func (p RetryPolicy) BackoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		delay *= p.ExponentialBase
	}
	return time.Duration(delay)
}

// Job is an ephemeral unit of queued work. It lives only inside the queue;
// durable state belongs to the sync session the payload references.
type Job struct {
	ID         uuid.UUID
	Type       JobType
	Priority   Priority
	Payload    map[string]any
	Retry      RetryPolicy
	Attempts   int
	EnqueuedAt time.Time

	// seq preserves FIFO order among equal priorities.
	seq uint64
}

// normalizeSyncPayload fills platform-sync payload defaults without mutating
// the caller's map. Callers may pass either a single platform or a list;
// omitting both targets every platform.
func normalizeSyncPayload(t JobType, payload map[string]any) map[string]any {
	normalized := make(map[string]any, len(payload)+3)
	for k, v := range payload {
		normalized[k] = v
	}

	if _, ok := normalized["platforms"]; !ok {
		if platform, ok := normalized["platform"].(string); ok && platform != "" {
			normalized["platforms"] = []string{platform}
		} else {
			all := syncdomain.AllPlatforms()
			platforms := make([]string, 0, len(all))
			for _, p := range all {
				platforms = append(platforms, string(p))
			}
			normalized["platforms"] = platforms
		}
	}
	delete(normalized, "platform")

	if _, ok := normalized["syncType"]; !ok {
		normalized["syncType"] = string(syncdomain.SyncTypeIncremental)
	}

	if _, ok := normalized["triggeredBy"]; !ok {
		if t == JobSyncImmediate || t == JobSyncManual {
			normalized["triggeredBy"] = "manual"
		} else {
			normalized["triggeredBy"] = "system"
		}
	}

	return normalized
}
