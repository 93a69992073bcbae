package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

// promoteRetries bounds optimistic retries when promoting a pending session
// that a concurrent process is also touching.
const promoteRetries = 3

// SessionService owns the sync session lifecycle: dedup-locked creation,
// partial status updates, and staged progress accounting. Mutating calls
// against missing sessions no-op so background handlers never crash the
// pipeline over a record that was cleaned up underneath them.
type SessionService struct {
	sessions syncdomain.SyncSessionRepository
	locks    *keyedMutex
	logger   *zap.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(sessions syncdomain.SyncSessionRepository, logger *zap.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		locks:    newKeyedMutex(),
		logger:   logger,
	}
}

// CreateSyncSession creates or reuses the session for a (tenant, platform)
// pair. An existing active session is returned with AlreadyRunning=true; a
// pending one is promoted to syncing; otherwise a new session is inserted
// already holding the lock. The check-and-write runs under a per-pair mutex
// so concurrent triggers cannot start duplicate runs.
func (s *SessionService) CreateSyncSession(ctx context.Context, organizationID uuid.UUID, platform syncdomain.Platform, syncType syncdomain.SyncType, existingSessionID *uuid.UUID, now time.Time) (*SessionClaim, error) {
	if !platform.IsValid() {
		return nil, syncdomain.ErrInvalidPlatform
	}

	unlock := s.locks.Lock(organizationID.String() + ":" + string(platform))
	defer unlock()

	if existingSessionID != nil {
		claim, err := s.claimExisting(ctx, *existingSessionID, now)
		if err != nil {
			return nil, err
		}
		if claim != nil {
			return claim, nil
		}
	}

	session, err := s.sessions.FindReusable(ctx, organizationID, platform)
	if err == nil {
		if session.Status.IsActive() {
			return &SessionClaim{SessionID: session.ID, AlreadyRunning: true}, nil
		}
		return s.promote(ctx, session, now)
	}
	if !errors.Is(err, syncdomain.ErrSessionNotFound) {
		return nil, err
	}

	session = syncdomain.NewSyncSession(organizationID, platform, syncType, now)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("Sync session created",
		zap.String("session_id", session.ID.String()),
		zap.String("organization_id", organizationID.String()),
		zap.String("platform", string(platform)),
		zap.String("type", string(syncType)),
	)
	return &SessionClaim{SessionID: session.ID, AlreadyRunning: false}, nil
}

// claimExisting resolves an explicitly supplied session id. Returns nil when
// the id cannot be claimed (missing or terminal) and the dedup search should
// proceed.
func (s *SessionService) claimExisting(ctx context.Context, id uuid.UUID, now time.Time) (*SessionClaim, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if errors.Is(err, syncdomain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if session.Status.IsActive() {
		return &SessionClaim{SessionID: session.ID, AlreadyRunning: true}, nil
	}
	if session.Status == syncdomain.SessionPending {
		return s.promote(ctx, session, now)
	}
	return nil, nil
}

// promote moves a pending session into syncing under optimistic concurrency.
func (s *SessionService) promote(ctx context.Context, session *syncdomain.SyncSession, now time.Time) (*SessionClaim, error) {
	for attempt := 0; attempt < promoteRetries; attempt++ {
		if err := session.Promote(now); err != nil {
			if session.Status.IsActive() {
				// Someone else already promoted it; it is running now.
				return &SessionClaim{SessionID: session.ID, AlreadyRunning: true}, nil
			}
			return nil, err
		}

		err := s.sessions.Update(ctx, session)
		if err == nil {
			return &SessionClaim{SessionID: session.ID, AlreadyRunning: false}, nil
		}
		if !errors.Is(err, syncdomain.ErrConcurrentModification) {
			return nil, err
		}

		session, err = s.sessions.FindByID(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		if session.Status.IsActive() {
			return &SessionClaim{SessionID: session.ID, AlreadyRunning: true}, nil
		}
	}
	return nil, syncdomain.ErrConcurrentModification
}

// UpdateSyncSession patches only the supplied fields. Missing sessions are a
// silent no-op.
func (s *SessionService) UpdateSyncSession(ctx context.Context, id uuid.UUID, patch syncdomain.SessionPatch) error {
	err := s.sessions.Patch(ctx, id, patch)
	if errors.Is(err, syncdomain.ErrSessionNotFound) {
		s.logger.Debug("Skipping update for missing sync session", zap.String("session_id", id.String()))
		return nil
	}
	return err
}

// InitializeBatches seeds batch accounting once the handler knows the shape
// of the run. Missing sessions are a silent no-op.
func (s *SessionService) InitializeBatches(ctx context.Context, id uuid.UUID, totalBatches, initialRecords int, metrics *syncdomain.BatchMetrics) error {
	err := s.sessions.InitializeBatches(ctx, id, totalBatches, initialRecords, metrics)
	if errors.Is(err, syncdomain.ErrSessionNotFound) {
		s.logger.Debug("Skipping batch init for missing sync session", zap.String("session_id", id.String()))
		return nil
	}
	return err
}

// IncrementProgress applies clamped batch/record deltas atomically and
// returns the post-update counters, or nil counters if the session is gone.
func (s *SessionService) IncrementProgress(ctx context.Context, id uuid.UUID, batchesDelta int, recordsDelta *int) (*syncdomain.ProgressCounters, error) {
	counters, err := s.sessions.IncrementProgress(ctx, id, batchesDelta, recordsDelta)
	if errors.Is(err, syncdomain.ErrSessionNotFound) {
		s.logger.Debug("Skipping progress for missing sync session", zap.String("session_id", id.String()))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return counters, nil
}

// PatchMetadata merges a metadata patch. Missing sessions are a silent no-op.
func (s *SessionService) PatchMetadata(ctx context.Context, id uuid.UUID, patch syncdomain.MetadataPatch) error {
	err := s.sessions.PatchMetadata(ctx, id, patch)
	if errors.Is(err, syncdomain.ErrSessionNotFound) {
		s.logger.Debug("Skipping metadata patch for missing sync session", zap.String("session_id", id.String()))
		return nil
	}
	return err
}

// GetSession returns a session by id, or sync.ErrSessionNotFound.
func (s *SessionService) GetSession(ctx context.Context, id uuid.UUID) (*syncdomain.SyncSession, error) {
	return s.sessions.FindByID(ctx, id)
}

// ListSessions returns the most recent sessions for a pair, newest first.
func (s *SessionService) ListSessions(ctx context.Context, organizationID uuid.UUID, platform syncdomain.Platform, limit int) ([]syncdomain.SyncSession, error) {
	if !platform.IsValid() {
		return nil, syncdomain.ErrInvalidPlatform
	}
	return s.sessions.ListRecent(ctx, organizationID, platform, limit)
}

// CancelSession moves a session to cancelled. Cancellation releases the
// dedup lock for the pair; an in-flight handler finishes its current batch
// and observes the terminal state on its next write.
func (s *SessionService) CancelSession(ctx context.Context, id uuid.UUID) error {
	status := syncdomain.SessionCancelled
	return s.sessions.Patch(ctx, id, syncdomain.SessionPatch{Status: &status})
}
