package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appsync "github.com/storepulse/backend/internal/application/sync"
	syncdomain "github.com/storepulse/backend/internal/domain/sync"
	"github.com/storepulse/backend/internal/interfaces/http/dto"
)

// ActivityHandler records tenant activity and reports the derived cadence.
type ActivityHandler struct {
	BaseHandler
	scheduler *appsync.SchedulerService
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(scheduler *appsync.SchedulerService) *ActivityHandler {
	return &ActivityHandler{scheduler: scheduler}
}

// RegisterRoutes registers activity routes
func (h *ActivityHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/activity", h.TrackActivity)
	rg.GET("/sync/frequency", h.GetSyncFrequency)
}

// TrackActivity records one activity event for a tenant
func (h *ActivityHandler) TrackActivity(c *gin.Context) {
	var req dto.TrackActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		h.BadRequest(c, "invalid tenant id")
		return
	}

	result, err := h.scheduler.TrackActivity(c.Request.Context(), tenantID, syncdomain.ActivityType(req.Activity), time.Now())
	if errors.Is(err, syncdomain.ErrInvalidActivityType) {
		h.BadRequest(c, "unknown activity type: "+req.Activity)
		return
	}
	if err != nil {
		h.Internal(c, "failed to record activity")
		return
	}

	h.Success(c, dto.TrackActivityResponse{
		ActivityScore:  result.ActivityScore,
		SyncTier:       string(result.SyncTier),
		SyncIntervalMs: result.SyncInterval.Milliseconds(),
		SyncsPerDay:    result.SyncsPerDay,
	})
}

// GetSyncFrequency returns the tenant's current cadence and priority
func (h *ActivityHandler) GetSyncFrequency(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Query("tenant_id"))
	if err != nil {
		h.BadRequest(c, "invalid tenant id")
		return
	}

	result, err := h.scheduler.GetSyncFrequency(c.Request.Context(), tenantID, time.Now())
	if err != nil {
		h.Internal(c, "failed to compute sync frequency")
		return
	}

	h.Success(c, dto.SyncFrequencyResponse{
		IntervalMs:      result.Interval.Milliseconds(),
		Priority:        result.Priority,
		NextSyncAt:      result.NextSyncAt,
		IsBusinessHours: result.IsBusinessHours,
	})
}
