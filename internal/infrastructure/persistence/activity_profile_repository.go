package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

// ActivityProfileModel is the GORM model for tenant activity profiles
type ActivityProfileModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	ActivityScore     float64    `gorm:"not null;default:0"`
	LastActivityAt    time.Time  `gorm:"not null"`
	SyncTier          string     `gorm:"type:varchar(20);not null"`
	SyncFrequency     int        `gorm:"not null"`
	SyncIntervalMs    int64      `gorm:"not null"`
	LastSync          *time.Time
	NextScheduledSync *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for the model
func (ActivityProfileModel) TableName() string {
	return "activity_profiles"
}

// ToEntity converts the model to a domain entity
func (m *ActivityProfileModel) ToEntity() *syncdomain.ActivityProfile {
	return &syncdomain.ActivityProfile{
		ID:                m.ID,
		TenantID:          m.TenantID,
		ActivityScore:     m.ActivityScore,
		LastActivityAt:    m.LastActivityAt,
		SyncTier:          syncdomain.SyncTier(m.SyncTier),
		SyncFrequency:     m.SyncFrequency,
		SyncInterval:      time.Duration(m.SyncIntervalMs) * time.Millisecond,
		LastSync:          m.LastSync,
		NextScheduledSync: m.NextScheduledSync,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// ActivityProfileModelFromEntity creates a model from a domain entity
func ActivityProfileModelFromEntity(p *syncdomain.ActivityProfile) *ActivityProfileModel {
	return &ActivityProfileModel{
		ID:                p.ID,
		TenantID:          p.TenantID,
		ActivityScore:     p.ActivityScore,
		LastActivityAt:    p.LastActivityAt,
		SyncTier:          string(p.SyncTier),
		SyncFrequency:     p.SyncFrequency,
		SyncIntervalMs:    p.SyncInterval.Milliseconds(),
		LastSync:          p.LastSync,
		NextScheduledSync: p.NextScheduledSync,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// GormActivityProfileRepository implements sync.ActivityProfileRepository
type GormActivityProfileRepository struct {
	db *gorm.DB
}

// NewGormActivityProfileRepository creates a new activity profile repository
func NewGormActivityProfileRepository(db *gorm.DB) *GormActivityProfileRepository {
	return &GormActivityProfileRepository{db: db}
}

// FindByTenant returns the tenant's profile or sync.ErrProfileNotFound
func (r *GormActivityProfileRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*syncdomain.ActivityProfile, error) {
	var model ActivityProfileModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncdomain.ErrProfileNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// Save upserts the profile keyed by tenant. Concurrent first writes for the
// same tenant collapse onto one row via the unique index.
func (r *GormActivityProfileRepository) Save(ctx context.Context, profile *syncdomain.ActivityProfile) error {
	model := ActivityProfileModelFromEntity(profile)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"activity_score", "last_activity_at", "sync_tier",
				"sync_frequency", "sync_interval_ms", "last_sync",
				"next_scheduled_sync", "updated_at",
			}),
		}).
		Create(model).Error
}

// ListDue returns up to limit profiles whose next scheduled sync is at or
// before now, oldest first.
func (r *GormActivityProfileRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]syncdomain.ActivityProfile, error) {
	var models []ActivityProfileModel
	err := r.db.WithContext(ctx).
		Where("next_scheduled_sync IS NOT NULL AND next_scheduled_sync <= ?", now).
		Order("next_scheduled_sync ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	profiles := make([]syncdomain.ActivityProfile, 0, len(models))
	for i := range models {
		profiles = append(profiles, *models[i].ToEntity())
	}
	return profiles, nil
}

// Ensure GormActivityProfileRepository implements the interface
var _ syncdomain.ActivityProfileRepository = (*GormActivityProfileRepository)(nil)
