package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
	"github.com/storepulse/backend/internal/infrastructure/metrics"
	"github.com/storepulse/backend/internal/infrastructure/queue"
)

// PlatformClient is the boundary to the external per-platform API clients.
// Implementations pull batches of platform data (orders, inventory, ad spend)
// and load them into the analytics store; this module only orchestrates them.
type PlatformClient interface {
	// Plan sizes the run: how many batches, the records already present, and
	// the rate-limit token cost of one batch.
	Plan(ctx context.Context, organizationID uuid.UUID, platform syncdomain.Platform, syncType syncdomain.SyncType) (*SyncPlan, error)

	// SyncBatch fetches and loads one batch.
	SyncBatch(ctx context.Context, organizationID uuid.UUID, platform syncdomain.Platform, batch int) (*BatchOutcome, error)
}

// SyncPlan sizes one sync run.
type SyncPlan struct {
	TotalBatches    int
	BaselineRecords int
	CostPerBatch    int64
}

// BatchOutcome reports what one batch produced.
type BatchOutcome struct {
	Records  int
	Entities []string
	Cursor   *string
	Stages   syncdomain.StageStatusSet
}

// SyncWorker is the queue handler that drives a sync run end to end: claim
// the session lock, size the run, pull batches gated by the rate limiter and
// write progress back through the session service. Register HandleSyncJob for
// every sync:* job type.
type SyncWorker struct {
	sessions  *SessionService
	scheduler *SchedulerService
	limiter   syncdomain.RateLimiter
	client    PlatformClient
	logger    *zap.Logger
}

// NewSyncWorker creates a new SyncWorker
func NewSyncWorker(sessions *SessionService, scheduler *SchedulerService, limiter syncdomain.RateLimiter, client PlatformClient, logger *zap.Logger) *SyncWorker {
	return &SyncWorker{
		sessions:  sessions,
		scheduler: scheduler,
		limiter:   limiter,
		client:    client,
		logger:    logger,
	}
}

// HandleSyncJob runs one sync job. An error return lets the queue retry the
// job per its policy; the failure is also recorded on the session.
func (w *SyncWorker) HandleSyncJob(ctx context.Context, job *queue.Job) error {
	organizationID, err := payloadUUID(job.Payload, "organizationId")
	if err != nil {
		// Malformed payloads never recover; fail without retrying further.
		return fmt.Errorf("sync job %s: %w", job.ID, err)
	}
	sessionID, _ := payloadUUID(job.Payload, "sessionId")

	syncType := syncdomain.SyncTypeIncremental
	if raw, ok := job.Payload["syncType"].(string); ok && raw != "" {
		syncType = syncdomain.SyncType(raw)
	}

	platforms := payloadPlatforms(job.Payload)
	now := time.Now()

	for _, platform := range platforms {
		var existing *uuid.UUID
		if sessionID != uuid.Nil && len(platforms) == 1 {
			existing = &sessionID
		}

		claim, err := w.sessions.CreateSyncSession(ctx, organizationID, platform, syncType, existing, now)
		if err != nil {
			return err
		}
		if claim.AlreadyRunning && (existing == nil || claim.SessionID != *existing) {
			w.logger.Info("Skipping platform, sync already running",
				zap.String("organization_id", organizationID.String()),
				zap.String("platform", string(platform)),
				zap.String("session_id", claim.SessionID.String()),
			)
			continue
		}

		start := time.Now()
		runErr := w.runPlatform(ctx, organizationID, platform, syncType, claim.SessionID)
		if runErr != nil {
			w.failSession(ctx, claim.SessionID, runErr)
			_ = w.scheduler.UpdateSyncMetrics(ctx, organizationID, time.Since(start), false, false, time.Now())
			return runErr
		}

		w.completeSession(ctx, claim.SessionID)
		_ = w.scheduler.UpdateSyncMetrics(ctx, organizationID, time.Since(start), true, true, time.Now())
	}
	return nil
}

// runPlatform drives one platform's batches for an already-claimed session.
func (w *SyncWorker) runPlatform(ctx context.Context, organizationID uuid.UUID, platform syncdomain.Platform, syncType syncdomain.SyncType, sessionID uuid.UUID) error {
	plan, err := w.client.Plan(ctx, organizationID, platform, syncType)
	if err != nil {
		return fmt.Errorf("failed to plan %s sync: %w", platform, err)
	}

	if err := w.sessions.InitializeBatches(ctx, sessionID, plan.TotalBatches, plan.BaselineRecords, nil); err != nil {
		return err
	}

	for batch := 0; batch < plan.TotalBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Cooperative cancellation: a cancelled session stops the run between
		// batches without surfacing an error.
		session, err := w.sessions.GetSession(ctx, sessionID)
		if errors.Is(err, syncdomain.ErrSessionNotFound) {
			w.logger.Warn("Sync session disappeared mid-run", zap.String("session_id", sessionID.String()))
			return nil
		}
		if err != nil {
			return err
		}
		if session.Status == syncdomain.SessionCancelled {
			w.logger.Info("Sync session cancelled, stopping run",
				zap.String("session_id", sessionID.String()),
				zap.Int("completed_batches", session.Metadata.CompletedBatches),
			)
			return nil
		}

		grant, err := w.limiter.Acquire(ctx, platform, plan.CostPerBatch, time.Now())
		if err != nil {
			return err
		}
		if !grant.OK {
			metrics.IncRateLimitRejection(string(platform))
			return fmt.Errorf("%s rate limit exhausted, resets at %s", platform, grant.ResetAt.Format(time.RFC3339))
		}

		outcome, err := w.client.SyncBatch(ctx, organizationID, platform, batch)
		if err != nil {
			return fmt.Errorf("batch %d failed for %s: %w", batch, platform, err)
		}

		records := outcome.Records
		if _, err := w.sessions.IncrementProgress(ctx, sessionID, 1, &records); err != nil {
			return err
		}

		patch := syncdomain.MetadataPatch{
			StageStatus:    outcome.Stages,
			SyncedEntities: outcome.Entities,
		}
		if outcome.Cursor != nil {
			patch.LastCursor = outcome.Cursor
		}
		if err := w.sessions.PatchMetadata(ctx, sessionID, patch); err != nil {
			return err
		}
	}
	return nil
}

func (w *SyncWorker) failSession(ctx context.Context, sessionID uuid.UUID, cause error) {
	status := syncdomain.SessionFailed
	msg := cause.Error()
	if err := w.sessions.UpdateSyncSession(ctx, sessionID, syncdomain.SessionPatch{
		Status: &status,
		Error:  &msg,
	}); err != nil {
		w.logger.Error("Failed to record session failure",
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
		)
	}
}

func (w *SyncWorker) completeSession(ctx context.Context, sessionID uuid.UUID) {
	status := syncdomain.SessionCompleted
	if err := w.sessions.UpdateSyncSession(ctx, sessionID, syncdomain.SessionPatch{Status: &status}); err != nil {
		w.logger.Error("Failed to complete session",
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
		)
	}
}

// payloadUUID reads a uuid-valued payload field.
func payloadUUID(payload map[string]any, key string) (uuid.UUID, error) {
	raw, ok := payload[key].(string)
	if !ok || raw == "" {
		return uuid.Nil, fmt.Errorf("payload field %q missing", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("payload field %q is not a uuid: %w", key, err)
	}
	return id, nil
}

// payloadPlatforms reads the normalized platforms list, tolerating both
// []string and decoded-JSON []any shapes.
func payloadPlatforms(payload map[string]any) []syncdomain.Platform {
	var result []syncdomain.Platform
	switch raw := payload["platforms"].(type) {
	case []string:
		for _, p := range raw {
			result = append(result, syncdomain.Platform(p))
		}
	case []any:
		for _, p := range raw {
			if s, ok := p.(string); ok {
				result = append(result, syncdomain.Platform(s))
			}
		}
	}
	if len(result) == 0 {
		result = append(result, syncdomain.AllPlatforms()...)
	}
	return result
}
