package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appsync "github.com/storepulse/backend/internal/application/sync"
	syncdomain "github.com/storepulse/backend/internal/domain/sync"
	"github.com/storepulse/backend/internal/infrastructure/queue"
	"github.com/storepulse/backend/internal/interfaces/http/dto"
)

// SyncHandler triggers sync runs and exposes session progress.
type SyncHandler struct {
	BaseHandler
	scheduler *appsync.SchedulerService
	sessions  *appsync.SessionService
	jobs      *queue.JobQueue
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(scheduler *appsync.SchedulerService, sessions *appsync.SessionService, jobs *queue.JobQueue) *SyncHandler {
	return &SyncHandler{
		scheduler: scheduler,
		sessions:  sessions,
		jobs:      jobs,
	}
}

// RegisterRoutes registers sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync/trigger", h.TriggerSync)
	rg.GET("/sync/sessions", h.ListSessions)
	rg.GET("/sync/sessions/:id", h.GetSession)
	rg.POST("/sync/sessions/:id/cancel", h.CancelSession)
}

// TriggerSync consults the scheduler for priority, claims the (tenant,
// platform) session lock and enqueues a sync job. When a run is already in
// flight the existing session is returned and nothing is enqueued.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	var req dto.TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		h.BadRequest(c, "invalid organization id")
		return
	}

	var existingID *uuid.UUID
	if req.SessionID != nil {
		id, err := uuid.Parse(*req.SessionID)
		if err != nil {
			h.BadRequest(c, "invalid session id")
			return
		}
		existingID = &id
	}

	syncType := syncdomain.SyncTypeIncremental
	if req.SyncType != "" {
		syncType = syncdomain.SyncType(req.SyncType)
	}
	platform := syncdomain.Platform(req.Platform)
	now := time.Now()
	ctx := c.Request.Context()

	frequency, err := h.scheduler.GetSyncFrequency(ctx, orgID, now)
	if err != nil {
		h.Internal(c, "failed to compute sync frequency")
		return
	}

	claim, err := h.sessions.CreateSyncSession(ctx, orgID, platform, syncType, existingID, now)
	if err != nil {
		h.Internal(c, "failed to claim sync session")
		return
	}

	resp := dto.TriggerSyncResponse{
		SessionID:      claim.SessionID.String(),
		AlreadyRunning: claim.AlreadyRunning,
		Priority:       frequency.Priority,
	}
	if claim.AlreadyRunning {
		h.Success(c, resp)
		return
	}

	jobType := queue.JobSyncImmediate
	if syncType == syncdomain.SyncTypeInitial {
		jobType = queue.JobSyncInitial
	}
	jobID, err := h.jobs.Enqueue(jobType, queue.Priority(frequency.Priority), map[string]any{
		"organizationId": orgID.String(),
		"sessionId":      claim.SessionID.String(),
		"platform":       req.Platform,
		"syncType":       string(syncType),
	})
	if errors.Is(err, queue.ErrQueueFull) {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeQueueFull, "sync queue is full, try again later")
		return
	}
	if err != nil {
		h.Internal(c, "failed to enqueue sync job")
		return
	}

	id := jobID.String()
	resp.JobID = &id
	h.Created(c, resp)
}

// GetSession returns one session in the stable progress schema
func (h *SyncHandler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid session id")
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), id)
	if errors.Is(err, syncdomain.ErrSessionNotFound) {
		h.NotFound(c, "sync session not found")
		return
	}
	if err != nil {
		h.Internal(c, "failed to load sync session")
		return
	}

	h.Success(c, dto.SessionFromEntity(session))
}

// ListSessions returns recent sessions for a tenant and platform
func (h *SyncHandler) ListSessions(c *gin.Context) {
	var req dto.ListSessionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.Limit == 0 {
		req.Limit = 20
	}

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		h.BadRequest(c, "invalid organization id")
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), orgID, syncdomain.Platform(req.Platform), req.Limit)
	if err != nil {
		h.Internal(c, "failed to list sync sessions")
		return
	}

	views := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		views = append(views, dto.SessionFromEntity(&sessions[i]))
	}
	h.Success(c, views)
}

// CancelSession moves a session to cancelled, releasing the dedup lock
func (h *SyncHandler) CancelSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid session id")
		return
	}

	err = h.sessions.CancelSession(c.Request.Context(), id)
	if errors.Is(err, syncdomain.ErrSessionNotFound) {
		h.NotFound(c, "sync session not found")
		return
	}
	if errors.Is(err, syncdomain.ErrSessionTerminal) || errors.Is(err, syncdomain.ErrInvalidTransition) {
		h.Error(c, http.StatusConflict, dto.ErrCodeConflict, "session is already finished")
		return
	}
	if err != nil {
		h.Internal(c, "failed to cancel sync session")
		return
	}

	h.Success(c, gin.H{"cancelled": true})
}
