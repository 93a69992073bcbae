package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

func setupSessionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_busy_timeout=5000"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&SyncSessionModel{})
	require.NoError(t, err)

	return db
}

func newTestSession(t *testing.T, db *gorm.DB, platform syncdomain.Platform) *syncdomain.SyncSession {
	t.Helper()

	repo := NewGormSyncSessionRepository(db)
	session := syncdomain.NewSyncSession(uuid.New(), platform, syncdomain.SyncTypeInitial, time.Now())
	require.NoError(t, repo.Create(context.Background(), session))
	return session
}

func TestGormSyncSessionRepository_CreateAndFind(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewGormSyncSessionRepository(db)
	ctx := context.Background()

	session := newTestSession(t, db, syncdomain.PlatformShopify)

	found, err := repo.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)
	assert.Equal(t, syncdomain.SessionSyncing, found.Status)
	assert.Equal(t, syncdomain.StagePending, found.Metadata.StageStatus.Products)
}

func TestGormSyncSessionRepository_FindByID_NotFound(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewGormSyncSessionRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, syncdomain.ErrSessionNotFound)
}

func TestGormSyncSessionRepository_FindReusable_PriorityOrder(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewGormSyncSessionRepository(db)
	ctx := context.Background()
	orgID := uuid.New()
	now := time.Now()

	mkSession := func(status syncdomain.SessionStatus) *syncdomain.SyncSession {
		s := syncdomain.NewSyncSession(orgID, syncdomain.PlatformShopify, syncdomain.SyncTypeIncremental, now)
		s.Status = status
		require.NoError(t, repo.Create(ctx, s))
		return s
	}

	syncing := mkSession(syncdomain.SessionSyncing)
	pending := mkSession(syncdomain.SessionPending)
	mkSession(syncdomain.SessionCompleted)

	// Pending beats syncing in the search order.
	found, err := repo.FindReusable(ctx, orgID, syncdomain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, found.ID)

	// Without a pending session the syncing one is returned.
	require.NoError(t, db.Delete(&SyncSessionModel{}, "id = ?", pending.ID).Error)
	found, err = repo.FindReusable(ctx, orgID, syncdomain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, syncing.ID, found.ID)

	// A different platform has no candidate.
	_, err = repo.FindReusable(ctx, orgID, syncdomain.PlatformMeta)
	assert.ErrorIs(t, err, syncdomain.ErrSessionNotFound)
}

func TestGormSyncSessionRepository_Update_VersionConflict(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewGormSyncSessionRepository(db)
	ctx := context.Background()

	session := newTestSession(t, db, syncdomain.PlatformShopify)

	stale, err := repo.FindByID(ctx, session.ID)
	require.NoError(t, err)

	fresh, err := repo.FindByID(ctx, session.ID)
	require.NoError(t, err)
	fresh.RecordsProcessed = 100
	require.NoError(t, repo.Update(ctx, fresh))

	stale.RecordsProcessed = 1
	err = repo.Update(ctx, stale)
	assert.ErrorIs(t, err, syncdomain.ErrConcurrentModification)
}

func TestGormSyncSessionRepository_Patch(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewGormSyncSessionRepository(db)
	ctx := context.Background()

	session := newTestSession(t, db, syncdomain.PlatformShopify)

	status := syncdomain.SessionCompleted
	records := 250
	require.NoError(t, repo.Patch(ctx, session.ID, syncdomain.SessionPatch{
		Status:           &status,
		RecordsProcessed: &records,
	}))

	found, err := repo.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, syncdomain.SessionCompleted, found.Status)
	assert.Equal(t, 250, found.RecordsProcessed)
	require.NotNil(t, found.CompletedAt)
}

func TestGormSyncSessionRepository_Patch_MissingSession(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewGormSyncSessionRepository(db)

	status := syncdomain.SessionFailed
	err := repo.Patch(context.Background(), uuid.New(), syncdomain.SessionPatch{Status: &status})

	assert.ErrorIs(t, err, syncdomain.ErrSessionNotFound)
}

func TestGormSyncSessionRepository_InitializeAndIncrement(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewGormSyncSessionRepository(db)
	ctx := context.Background()

	session := newTestSession(t, db, syncdomain.PlatformShopify)

	require.NoError(t, repo.InitializeBatches(ctx, session.ID, 10, 50, nil))

	records := 30
	counters, err := repo.IncrementProgress(ctx, session.ID, 2, &records)
	require.NoError(t, err)
	assert.Equal(t, 10, counters.TotalBatches)
	assert.Equal(t, 0, counters.PreviousCompleted)
	assert.Equal(t, 2, counters.CompletedBatches)
	assert.Equal(t, 80, counters.RecordsProcessed)
	assert.Equal(t, 30, counters.OrdersProcessed)
	assert.Equal(t, 50, counters.BaselineRecords)

	// Oversized deltas clamp at the batch total.
	counters, err = repo.IncrementProgress(ctx, session.ID, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, counters.CompletedBatches)
}

func TestGormSyncSessionRepository_IncrementProgress_Concurrent(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewGormSyncSessionRepository(db)
	ctx := context.Background()

	session := newTestSession(t, db, syncdomain.PlatformShopify)
	require.NoError(t, repo.InitializeBatches(ctx, session.ID, 100, 0, nil))

	// Concurrent increments must all land; the optimistic retry loop
	// serializes the read-modify-write.
	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			one := 10
			_, err := repo.IncrementProgress(ctx, session.ID, 1, &one)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	found, err := repo.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, found.Metadata.CompletedBatches)
	assert.Equal(t, workers*10, found.RecordsProcessed)
}

func TestGormSyncSessionRepository_PatchMetadata(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewGormSyncSessionRepository(db)
	ctx := context.Background()

	session := newTestSession(t, db, syncdomain.PlatformShopify)

	cursor := "cursor-a"
	page := 2
	require.NoError(t, repo.PatchMetadata(ctx, session.ID, syncdomain.MetadataPatch{
		LastCursor:     &cursor,
		CurrentPage:    &page,
		StageStatus:    syncdomain.StageStatusSet{Products: syncdomain.StageCompleted},
		SyncedEntities: []string{"products"},
	}))
	require.NoError(t, repo.PatchMetadata(ctx, session.ID, syncdomain.MetadataPatch{
		SyncedEntities: []string{"products", "inventory"},
	}))

	found, err := repo.FindByID(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Metadata.LastCursor)
	assert.Equal(t, "cursor-a", *found.Metadata.LastCursor)
	assert.Equal(t, 2, found.Metadata.CurrentPage)
	assert.Equal(t, syncdomain.StageCompleted, found.Metadata.StageStatus.Products)
	assert.Equal(t, syncdomain.StagePending, found.Metadata.StageStatus.Orders)
	assert.Equal(t, []string{"products", "inventory"}, found.Metadata.SyncedEntities)
}

func TestGormSyncSessionRepository_ListRecent(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewGormSyncSessionRepository(db)
	ctx := context.Background()
	orgID := uuid.New()

	for i := 0; i < 5; i++ {
		s := syncdomain.NewSyncSession(orgID, syncdomain.PlatformMeta, syncdomain.SyncTypeIncremental,
			time.Now().Add(time.Duration(i)*time.Second))
		s.Status = syncdomain.SessionCompleted
		require.NoError(t, repo.Create(ctx, s))
	}

	sessions, err := repo.ListRecent(ctx, orgID, syncdomain.PlatformMeta, 3)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
	// Newest first.
	assert.True(t, !sessions[0].CreatedAt.Before(sessions[1].CreatedAt))
}
