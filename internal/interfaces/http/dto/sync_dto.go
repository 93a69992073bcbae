package dto

import (
	"time"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

// TrackActivityRequest records one tenant activity event.
type TrackActivityRequest struct {
	TenantID string `json:"tenant_id" binding:"required,uuid"`
	Activity string `json:"activity" binding:"required"`
}

// TrackActivityResponse returns the re-scored cadence for the tenant.
type TrackActivityResponse struct {
	ActivityScore  float64 `json:"activity_score"`
	SyncTier       string  `json:"sync_tier"`
	SyncIntervalMs int64   `json:"sync_interval_ms"`
	SyncsPerDay    int     `json:"syncs_per_day"`
}

// SyncFrequencyResponse is the cadence decision for a tenant.
type SyncFrequencyResponse struct {
	IntervalMs      int64     `json:"interval_ms"`
	Priority        int       `json:"priority"`
	NextSyncAt      time.Time `json:"next_sync_at"`
	IsBusinessHours bool      `json:"is_business_hours"`
}

// TriggerSyncRequest starts (or reuses) a sync run for a tenant.
type TriggerSyncRequest struct {
	OrganizationID string  `json:"organization_id" binding:"required,uuid"`
	Platform       string  `json:"platform" binding:"required,oneof=shopify meta"`
	SyncType       string  `json:"sync_type" binding:"omitempty,oneof=initial incremental"`
	SessionID      *string `json:"session_id" binding:"omitempty,uuid"`
}

// TriggerSyncResponse reports the claimed session and, when a new run was
// started, the queued job.
type TriggerSyncResponse struct {
	SessionID      string  `json:"session_id"`
	AlreadyRunning bool    `json:"already_running"`
	JobID          *string `json:"job_id,omitempty"`
	Priority       int     `json:"priority"`
}

// StageStatusResponse mirrors the per-entity stage map for Shopify runs.
type StageStatusResponse struct {
	Products  string `json:"products,omitempty"`
	Inventory string `json:"inventory,omitempty"`
	Customers string `json:"customers,omitempty"`
	Orders    string `json:"orders,omitempty"`
}

// SessionMetadataResponse is the staged-progress block of a session. This is
// the de facto public schema dashboards render; field names are stable.
type SessionMetadataResponse struct {
	TotalBatches     int      `json:"total_batches"`
	CompletedBatches int      `json:"completed_batches"`
	BaselineRecords  int      `json:"baseline_records"`
	OrdersProcessed  int      `json:"orders_processed"`
	LastCursor       *string  `json:"last_cursor,omitempty"`
	CurrentPage      int      `json:"current_page,omitempty"`
	TotalOrdersSeen  int      `json:"total_orders_seen,omitempty"`
	TotalPages       int      `json:"total_pages,omitempty"`
	SyncedEntities   []string `json:"synced_entities,omitempty"`

	StageStatus *StageStatusResponse `json:"stage_status,omitempty"`
}

// SessionResponse is the public view of one sync session.
type SessionResponse struct {
	ID               string     `json:"id"`
	OrganizationID   string     `json:"organization_id"`
	Platform         string     `json:"platform"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	RecordsProcessed int        `json:"records_processed"`
	Error            *string    `json:"error,omitempty"`

	Metadata SessionMetadataResponse `json:"metadata"`
}

// SessionFromEntity maps a domain session onto the public schema.
func SessionFromEntity(s *syncdomain.SyncSession) SessionResponse {
	resp := SessionResponse{
		ID:               s.ID.String(),
		OrganizationID:   s.OrganizationID.String(),
		Platform:         string(s.Platform),
		Type:             string(s.Type),
		Status:           string(s.Status),
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
		RecordsProcessed: s.RecordsProcessed,
		Error:            s.Error,
		Metadata: SessionMetadataResponse{
			TotalBatches:     s.Metadata.TotalBatches,
			CompletedBatches: s.Metadata.CompletedBatches,
			BaselineRecords:  s.Metadata.BaselineRecords,
			OrdersProcessed:  s.Metadata.OrdersProcessed,
			LastCursor:       s.Metadata.LastCursor,
			CurrentPage:      s.Metadata.CurrentPage,
			TotalOrdersSeen:  s.Metadata.TotalOrdersSeen,
			TotalPages:       s.Metadata.TotalPages,
			SyncedEntities:   s.Metadata.SyncedEntities,
		},
	}
	if s.Platform.HasStages() {
		resp.Metadata.StageStatus = &StageStatusResponse{
			Products:  string(s.Metadata.StageStatus.Products),
			Inventory: string(s.Metadata.StageStatus.Inventory),
			Customers: string(s.Metadata.StageStatus.Customers),
			Orders:    string(s.Metadata.StageStatus.Orders),
		}
	}
	return resp
}

// ListSessionsRequest filters the session history listing.
type ListSessionsRequest struct {
	OrganizationID string `form:"organization_id" binding:"required,uuid"`
	Platform       string `form:"platform" binding:"required,oneof=shopify meta"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// RateLimitResponse is a snapshot of one platform's hourly bucket.
type RateLimitResponse struct {
	Platform    string    `json:"platform"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Used        int64     `json:"used"`
	Limit       int64     `json:"limit"`
	Remaining   int64     `json:"remaining"`
}
