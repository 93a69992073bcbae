package sync

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Session Status
// ---------------------------------------------------------------------------

// SessionStatus is the lifecycle state of a sync session.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionSyncing    SessionStatus = "syncing"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
	SessionCancelled  SessionStatus = "cancelled"
)

// IsValid returns true if the status is a known state
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionPending, SessionSyncing, SessionProcessing,
		SessionCompleted, SessionFailed, SessionCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once the session can no longer change
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionCompleted, SessionFailed, SessionCancelled:
		return true
	default:
		return false
	}
}

// IsActive returns true while the session holds the per-(tenant, platform)
// dedup lock.
func (s SessionStatus) IsActive() bool {
	return s == SessionSyncing || s == SessionProcessing
}

// sessionTransitions is the validated transition table.
// pending -> syncing/processing -> completed/failed/cancelled, with
// syncing <-> processing allowed while a run moves between fetch and
// aggregation phases.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionPending:    {SessionSyncing, SessionProcessing, SessionCancelled, SessionFailed},
	SessionSyncing:    {SessionProcessing, SessionCompleted, SessionFailed, SessionCancelled},
	SessionProcessing: {SessionSyncing, SessionCompleted, SessionFailed, SessionCancelled},
}

// CanTransitionTo returns true if moving from s to next is allowed.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Stage Status
// ---------------------------------------------------------------------------

// StageState is the completion state of one named sub-phase of a Shopify sync.
// The zero value means the stage has not been initialized; merges leave
// zero-valued patch fields untouched.
type StageState string

const (
	StagePending    StageState = "pending"
	StageProcessing StageState = "processing"
	StageCompleted  StageState = "completed"
	StageFailed     StageState = "failed"
)

// StageStatusSet tracks per-entity stage completion for Shopify sessions.
type StageStatusSet struct {
	Products  StageState `json:"products,omitempty"`
	Inventory StageState `json:"inventory,omitempty"`
	Customers StageState `json:"customers,omitempty"`
	Orders    StageState `json:"orders,omitempty"`
}

// EnsureDefaults fills any unset stage with pending without clobbering
// stages already recorded.
func (s *StageStatusSet) EnsureDefaults() {
	if s.Products == "" {
		s.Products = StagePending
	}
	if s.Inventory == "" {
		s.Inventory = StagePending
	}
	if s.Customers == "" {
		s.Customers = StagePending
	}
	if s.Orders == "" {
		s.Orders = StagePending
	}
}

// Merge overwrites only the stages supplied in the patch.
func (s *StageStatusSet) Merge(patch StageStatusSet) {
	if patch.Products != "" {
		s.Products = patch.Products
	}
	if patch.Inventory != "" {
		s.Inventory = patch.Inventory
	}
	if patch.Customers != "" {
		s.Customers = patch.Customers
	}
	if patch.Orders != "" {
		s.Orders = patch.Orders
	}
}

// ---------------------------------------------------------------------------
// Session Metadata
// ---------------------------------------------------------------------------

// SessionMetadata carries staged progress for one sync run. It is part of the
// public session schema read by dashboards.
type SessionMetadata struct {
	TotalBatches     int `json:"total_batches"`
	CompletedBatches int `json:"completed_batches"`
	BaselineRecords  int `json:"baseline_records"`
	OrdersProcessed  int `json:"orders_processed"`

	// Optional counters seeded when batch work is initialized.
	OrdersQueued       int `json:"orders_queued,omitempty"`
	ProductsProcessed  int `json:"products_processed,omitempty"`
	CustomersProcessed int `json:"customers_processed,omitempty"`

	// Cursor/pagination fields owned by the sync handler.
	LastCursor      *string `json:"last_cursor,omitempty"`
	CurrentPage     int     `json:"current_page,omitempty"`
	TotalOrdersSeen int     `json:"total_orders_seen,omitempty"`
	TotalPages      int     `json:"total_pages,omitempty"`

	StageStatus    StageStatusSet `json:"stage_status,omitempty"`
	SyncedEntities []string       `json:"synced_entities,omitempty"`
}

// MetadataPatch describes a partial metadata update. Nil pointer fields are
// left untouched; ClearCursor overwrites LastCursor with null, which is a
// valid value for handlers that exhausted their cursor.
type MetadataPatch struct {
	LastCursor      *string
	ClearCursor     bool
	CurrentPage     *int
	TotalOrdersSeen *int
	TotalPages      *int
	StageStatus     StageStatusSet
	SyncedEntities  []string
}

// Apply merges the patch into the metadata: scalars overwrite only when
// supplied, stage statuses merge key-by-key, and synced entities union as a
// set.
func (m *SessionMetadata) Apply(patch MetadataPatch) {
	switch {
	case patch.ClearCursor:
		m.LastCursor = nil
	case patch.LastCursor != nil:
		m.LastCursor = patch.LastCursor
	}
	if patch.CurrentPage != nil {
		m.CurrentPage = *patch.CurrentPage
	}
	if patch.TotalOrdersSeen != nil {
		m.TotalOrdersSeen = *patch.TotalOrdersSeen
	}
	if patch.TotalPages != nil {
		m.TotalPages = *patch.TotalPages
	}
	m.StageStatus.Merge(patch.StageStatus)
	m.SyncedEntities = unionEntities(m.SyncedEntities, patch.SyncedEntities)
}

// unionEntities merges two entity lists into a duplicate-free list,
// preserving first-seen order.
func unionEntities(existing, added []string) []string {
	if len(added) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(added))
	merged := make([]string, 0, len(existing)+len(added))
	for _, e := range existing {
		if _, ok := seen[e]; !ok {
			seen[e] = struct{}{}
			merged = append(merged, e)
		}
	}
	for _, e := range added {
		if _, ok := seen[e]; !ok {
			seen[e] = struct{}{}
			merged = append(merged, e)
		}
	}
	return merged
}

// ---------------------------------------------------------------------------
// SyncSession
// ---------------------------------------------------------------------------

// SyncSession is the record of one sync run for a (tenant, platform) pair.
// At most one session per pair may be active at a time; historical records
// are retained for dashboards.
type SyncSession struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Platform       Platform
	Type           SyncType
	Status         SessionStatus

	StartedAt        *time.Time
	CompletedAt      *time.Time
	RecordsProcessed int
	Error            *string

	Metadata SessionMetadata

	// Version supports optimistic concurrency in storage.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSyncSession creates a session already holding the dedup lock
// (status syncing, started now). Shopify sessions get default stage metadata.
func NewSyncSession(organizationID uuid.UUID, platform Platform, syncType SyncType, now time.Time) *SyncSession {
	s := &SyncSession{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Platform:       platform,
		Type:           syncType,
		Status:         SessionSyncing,
		StartedAt:      &now,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if platform.HasStages() {
		s.Metadata.StageStatus.EnsureDefaults()
	}
	return s
}

// Promote moves a pending session into syncing, stamping StartedAt and
// ensuring stage defaults for staged platforms.
func (s *SyncSession) Promote(now time.Time) error {
	if s.Status != SessionPending {
		return ErrInvalidTransition
	}
	s.Status = SessionSyncing
	s.StartedAt = &now
	if s.Platform.HasStages() {
		s.Metadata.StageStatus.EnsureDefaults()
	}
	s.UpdatedAt = now
	return nil
}

// Transition moves the session to the given status if the transition table
// allows it.
func (s *SyncSession) Transition(next SessionStatus, now time.Time) error {
	if s.Status.IsTerminal() {
		return ErrSessionTerminal
	}
	if !s.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	s.Status = next
	if next.IsTerminal() && s.CompletedAt == nil {
		t := now
		s.CompletedAt = &t
	}
	s.UpdatedAt = now
	return nil
}

// InitializeBatches seeds batch accounting once the handler knows how much
// work the run holds. Completed batches reset to zero and the records
// baseline is captured so dashboards can show incremental progress.
func (s *SyncSession) InitializeBatches(totalBatches, initialRecords int, metrics *BatchMetrics) {
	s.Metadata.TotalBatches = totalBatches
	s.Metadata.CompletedBatches = 0
	s.Metadata.OrdersProcessed = 0
	s.RecordsProcessed = initialRecords
	s.Metadata.BaselineRecords = initialRecords
	if metrics != nil {
		if metrics.BaselineRecords != nil {
			s.Metadata.BaselineRecords = *metrics.BaselineRecords
		}
		s.Metadata.OrdersQueued = metrics.OrdersQueued
		s.Metadata.ProductsProcessed = metrics.ProductsProcessed
		s.Metadata.CustomersProcessed = metrics.CustomersProcessed
	}
}

// ApplyProgress adds batch/record deltas. CompletedBatches is clamped to
// TotalBatches when a batch total is known; without one the running total is
// unclamped. Record deltas mirror into OrdersProcessed so Shopify order
// progress tracks the same counter.
func (s *SyncSession) ApplyProgress(batchesDelta int, recordsDelta *int, now time.Time) ProgressCounters {
	previous := s.Metadata.CompletedBatches
	next := previous + batchesDelta
	if s.Metadata.TotalBatches > 0 && next > s.Metadata.TotalBatches {
		next = s.Metadata.TotalBatches
	}
	s.Metadata.CompletedBatches = next
	if recordsDelta != nil {
		s.RecordsProcessed += *recordsDelta
		s.Metadata.OrdersProcessed += *recordsDelta
	}
	s.UpdatedAt = now

	return ProgressCounters{
		TotalBatches:      s.Metadata.TotalBatches,
		PreviousCompleted: previous,
		CompletedBatches:  next,
		RecordsProcessed:  s.RecordsProcessed,
		OrdersProcessed:   s.Metadata.OrdersProcessed,
		BaselineRecords:   s.Metadata.BaselineRecords,
		StartedAt:         s.StartedAt,
	}
}

// BatchMetrics are optional counters supplied when batch work is initialized.
type BatchMetrics struct {
	BaselineRecords    *int
	OrdersQueued       int
	ProductsProcessed  int
	CustomersProcessed int
}

// ProgressCounters is the post-update snapshot returned from a progress
// increment so callers can compute throughput without re-reading the session.
type ProgressCounters struct {
	TotalBatches      int        `json:"total_batches"`
	PreviousCompleted int        `json:"previous_completed"`
	CompletedBatches  int        `json:"completed_batches"`
	RecordsProcessed  int        `json:"records_processed"`
	OrdersProcessed   int        `json:"orders_processed"`
	BaselineRecords   int        `json:"baseline_records"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
}

// SessionPatch describes a partial status update for a session. Nil fields
// are left untouched.
type SessionPatch struct {
	Status           *SessionStatus
	RecordsProcessed *int
	Error            *string
	CompletedAt      *time.Time
}
