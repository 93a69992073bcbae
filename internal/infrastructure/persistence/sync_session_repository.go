package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

// optimisticRetries bounds the retry loop for version-checked writes.
const optimisticRetries = 5

// SyncSessionModel is the GORM model for sync sessions. Metadata is stored
// as a JSON document; its shape is the public dashboard schema.
type SyncSessionModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrganizationID   uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_sessions_org_platform,priority:1"`
	Platform         string    `gorm:"type:varchar(20);not null;index:idx_sync_sessions_org_platform,priority:2"`
	Type             string    `gorm:"type:varchar(30);not null"`
	Status           string    `gorm:"type:varchar(20);not null;index"`
	StartedAt        *time.Time
	CompletedAt      *time.Time
	RecordsProcessed int    `gorm:"not null;default:0"`
	Error            *string `gorm:"type:text"`
	MetadataJSON     string `gorm:"type:jsonb;column:metadata"`
	Version          int    `gorm:"not null;default:1"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for the model
func (SyncSessionModel) TableName() string {
	return "sync_sessions"
}

// ToEntity converts the model to a domain entity
func (m *SyncSessionModel) ToEntity() (*syncdomain.SyncSession, error) {
	session := &syncdomain.SyncSession{
		ID:               m.ID,
		OrganizationID:   m.OrganizationID,
		Platform:         syncdomain.Platform(m.Platform),
		Type:             syncdomain.SyncType(m.Type),
		Status:           syncdomain.SessionStatus(m.Status),
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
		RecordsProcessed: m.RecordsProcessed,
		Error:            m.Error,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(m.MetadataJSON), &session.Metadata); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// SyncSessionModelFromEntity creates a model from a domain entity
func SyncSessionModelFromEntity(s *syncdomain.SyncSession) (*SyncSessionModel, error) {
	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return nil, err
	}
	return &SyncSessionModel{
		ID:               s.ID,
		OrganizationID:   s.OrganizationID,
		Platform:         string(s.Platform),
		Type:             string(s.Type),
		Status:           string(s.Status),
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
		RecordsProcessed: s.RecordsProcessed,
		Error:            s.Error,
		MetadataJSON:     string(metadata),
		Version:          s.Version,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}, nil
}

// GormSyncSessionRepository implements sync.SyncSessionRepository on top of
// GORM with optimistic version checks for every read-modify-write.
type GormSyncSessionRepository struct {
	db *gorm.DB
}

// NewGormSyncSessionRepository creates a new sync session repository
func NewGormSyncSessionRepository(db *gorm.DB) *GormSyncSessionRepository {
	return &GormSyncSessionRepository{db: db}
}

// FindByID returns a session by id or sync.ErrSessionNotFound
func (r *GormSyncSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.SyncSession, error) {
	var model SyncSessionModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncdomain.ErrSessionNotFound
		}
		return nil, err
	}
	return model.ToEntity()
}

// FindReusable returns the best dedup candidate for the pair, searching
// statuses in priority order pending, syncing, processing.
func (r *GormSyncSessionRepository) FindReusable(ctx context.Context, organizationID uuid.UUID, platform syncdomain.Platform) (*syncdomain.SyncSession, error) {
	for _, status := range []syncdomain.SessionStatus{
		syncdomain.SessionPending, syncdomain.SessionSyncing, syncdomain.SessionProcessing,
	} {
		var model SyncSessionModel
		err := r.db.WithContext(ctx).
			Where("organization_id = ? AND platform = ? AND status = ?",
				organizationID, string(platform), string(status)).
			Order("created_at DESC").
			First(&model).Error
		if err == nil {
			return model.ToEntity()
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, syncdomain.ErrSessionNotFound
}

// Create inserts a new session
func (r *GormSyncSessionRepository) Create(ctx context.Context, session *syncdomain.SyncSession) error {
	model, err := SyncSessionModelFromEntity(session)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// Update writes the full session back, bumping the version and failing with
// sync.ErrConcurrentModification if another writer got there first.
func (r *GormSyncSessionRepository) Update(ctx context.Context, session *syncdomain.SyncSession) error {
	expectedVersion := session.Version
	session.Version++
	model, err := SyncSessionModelFromEntity(session)
	if err != nil {
		session.Version = expectedVersion
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&SyncSessionModel{}).
		Where("id = ? AND version = ?", session.ID, expectedVersion).
		Updates(map[string]any{
			"status":            model.Status,
			"started_at":        model.StartedAt,
			"completed_at":      model.CompletedAt,
			"records_processed": model.RecordsProcessed,
			"error":             model.Error,
			"metadata":          model.MetadataJSON,
			"version":           model.Version,
			"updated_at":        model.UpdatedAt,
		})
	if result.Error != nil {
		session.Version = expectedVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		session.Version = expectedVersion
		return syncdomain.ErrConcurrentModification
	}
	return nil
}

// Patch applies only the supplied fields to the session.
func (r *GormSyncSessionRepository) Patch(ctx context.Context, id uuid.UUID, patch syncdomain.SessionPatch) error {
	return r.mutate(ctx, id, func(session *syncdomain.SyncSession) error {
		now := time.Now()
		if patch.Status != nil && *patch.Status != session.Status {
			if err := session.Transition(*patch.Status, now); err != nil {
				return err
			}
		}
		if patch.RecordsProcessed != nil {
			session.RecordsProcessed = *patch.RecordsProcessed
		}
		if patch.Error != nil {
			session.Error = patch.Error
		}
		if patch.CompletedAt != nil {
			session.CompletedAt = patch.CompletedAt
		}
		session.UpdatedAt = now
		return nil
	})
}

// InitializeBatches seeds batch accounting atomically.
func (r *GormSyncSessionRepository) InitializeBatches(ctx context.Context, id uuid.UUID, totalBatches, initialRecords int, metrics *syncdomain.BatchMetrics) error {
	return r.mutate(ctx, id, func(session *syncdomain.SyncSession) error {
		session.InitializeBatches(totalBatches, initialRecords, metrics)
		return nil
	})
}

// IncrementProgress applies clamped batch/record deltas atomically and
// returns the post-update counters.
func (r *GormSyncSessionRepository) IncrementProgress(ctx context.Context, id uuid.UUID, batchesDelta int, recordsDelta *int) (*syncdomain.ProgressCounters, error) {
	var counters syncdomain.ProgressCounters
	err := r.mutate(ctx, id, func(session *syncdomain.SyncSession) error {
		counters = session.ApplyProgress(batchesDelta, recordsDelta, time.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &counters, nil
}

// PatchMetadata merges a metadata patch atomically.
func (r *GormSyncSessionRepository) PatchMetadata(ctx context.Context, id uuid.UUID, patch syncdomain.MetadataPatch) error {
	return r.mutate(ctx, id, func(session *syncdomain.SyncSession) error {
		session.Metadata.Apply(patch)
		session.UpdatedAt = time.Now()
		return nil
	})
}

// ListRecent returns the most recent sessions for a pair, newest first.
func (r *GormSyncSessionRepository) ListRecent(ctx context.Context, organizationID uuid.UUID, platform syncdomain.Platform, limit int) ([]syncdomain.SyncSession, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []SyncSessionModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND platform = ?", organizationID, string(platform)).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	sessions := make([]syncdomain.SyncSession, 0, len(models))
	for _, model := range models {
		session, err := model.ToEntity()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

// mutate runs a read-modify-write on the session under an optimistic version
// check, retrying a bounded number of times when a concurrent writer wins.
func (r *GormSyncSessionRepository) mutate(ctx context.Context, id uuid.UUID, fn func(*syncdomain.SyncSession) error) error {
	var lastErr error
	for attempt := 0; attempt < optimisticRetries; attempt++ {
		session, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}
		err = r.Update(ctx, session)
		if err == nil {
			return nil
		}
		if !errors.Is(err, syncdomain.ErrConcurrentModification) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// Ensure GormSyncSessionRepository implements the interface
var _ syncdomain.SyncSessionRepository = (*GormSyncSessionRepository)(nil)
