package sync

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fakturo/fakturo/internal/core/interfaces"
	"github.com/fakturo/fakturo/internal/database"
	"github.com/fakturo/fakturo/internal/database/repositories"
	"github.com/fakturo/fakturo/internal/remotes/mock"
	"github.com/fakturo/fakturo/internal/store"
	fkerrors "github.com/fakturo/fakturo/pkg/errors"
	fklogger "github.com/fakturo/fakturo/pkg/logger"
	"github.com/fakturo/fakturo/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHarness bundles an engine wired to a real file store and a real
// bbolt-backed state store in temp directories, with the mock remote
type testHarness struct {
	engine *FakturoSyncEngine
	remote *mock.FakturoMockRemote
	local  *store.FileStore
	state  interfaces.StateStore
	log    interfaces.ConflictLog
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	db, err := database.NewManager(&database.Options{
		Path:     filepath.Join(t.TempDir(), "fakturo.db"),
		FileMode: 0600,
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, db.Open())
	t.Cleanup(func() { db.Close() })

	local := store.NewFileStore(t.TempDir())
	require.NoError(t, local.EnsureLayout())

	remote := mock.NewFakturoMockRemote()
	stateRepo := repositories.NewStateRepository(db, fklogger.Get())
	conflictRepo := repositories.NewConflictRepository(db)

	engine, err := NewFakturoSyncEngine(remote, local, stateRepo, conflictRepo, NewEventBus(), &EngineConfig{
		OnlineProbe: func() bool { return true },
		Clock:       fixedClock,
	})
	require.NoError(t, err)

	return &testHarness{
		engine: engine,
		remote: remote,
		local:  local,
		state:  stateRepo,
		log:    conflictRepo,
	}
}

func TestNewFakturoSyncEngineValidation(t *testing.T) {
	_, err := NewFakturoSyncEngine(nil, nil, nil, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, fkerrors.IsValidationError(err))
}

func TestSyncUploadsLocalRecords(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	invoice := entityAt("inv-1", "2026-01-10T10:00:00Z", map[string]any{
		models.FieldInvoiceNumber: "2026-001",
		"total":                   99.5,
	})
	require.NoError(t, h.local.SaveOne(ctx, models.EntityInvoices, invoice))

	result := h.engine.SyncWithRemote(ctx, "manual")

	require.True(t, result.Success, "sync failed: %s", result.ErrMessage)
	assert.Equal(t, models.StageComplete, result.Stage)
	assert.Equal(t, 1, result.Stats.Merged)
	assert.Equal(t, 1, result.Stats.Uploaded)
	assert.Equal(t, 0, result.Stats.Conflicts)

	stored := h.remote.Stored(models.EntityInvoices, "inv-1")
	require.NotNil(t, stored)
	assert.Equal(t, 99.5, stored["total"])
}

func TestSyncIsIdempotent(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	require.NoError(t, h.local.SaveOne(ctx, models.EntityCustomers,
		entityAt("c-1", "2026-01-10T10:00:00Z", map[string]any{"name": "ACME"})))
	h.remote.Seed(models.EntityProducts,
		entityAt("p-1", "2026-01-10T10:00:00Z", map[string]any{"name": "Widget"}))

	first := h.engine.SyncWithRemote(ctx, "manual")
	require.True(t, first.Success)

	second := h.engine.SyncWithRemote(ctx, "manual")
	require.True(t, second.Success)

	assert.Equal(t, first.Stats.Merged, second.Stats.Merged)
	assert.Equal(t, 0, second.Stats.Uploaded, "unchanged records must not re-upload")
	assert.Equal(t, 0, second.Stats.Conflicts)
}

func TestSyncConvergesBothReplicas(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	// Different records on each side, one overlapping id where remote
	// is newer
	require.NoError(t, h.local.SaveOne(ctx, models.EntityCustomers,
		entityAt("c-local", "2026-01-01T10:00:00Z", map[string]any{"name": "Local Only"})))
	require.NoError(t, h.local.SaveOne(ctx, models.EntityCustomers,
		entityAt("c-both", "2026-01-01T10:00:00Z", map[string]any{"name": "Stale"})))
	h.remote.Seed(models.EntityCustomers,
		entityAt("c-remote", "2026-01-01T10:00:00Z", map[string]any{"name": "Remote Only"}))
	h.remote.Seed(models.EntityCustomers,
		entityAt("c-both", "2026-01-02T10:00:00Z", map[string]any{"name": "Fresh"}))

	result := h.engine.SyncWithRemote(ctx, "manual")
	require.True(t, result.Success)
	assert.Equal(t, 3, result.Stats.Merged)
	assert.Equal(t, 1, result.Stats.Conflicts)

	// Local replica holds the union with the newer copy
	customers, err := h.local.LoadAll(ctx, models.EntityCustomers)
	require.NoError(t, err)
	require.Len(t, customers, 3)
	byID := map[string]models.Entity{}
	for _, c := range customers {
		byID[c.ID()] = c
	}
	assert.Equal(t, "Fresh", byID["c-both"]["name"])

	// Remote replica holds the same union
	assert.NotNil(t, h.remote.Stored(models.EntityCustomers, "c-local"))
	assert.Equal(t, "Fresh", h.remote.Stored(models.EntityCustomers, "c-both")["name"])

	// The pick was recorded in the conflict log
	entries, err := h.log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c-both", entries[0].EntityID)
	assert.Equal(t, models.ResolutionRemote, entries[0].Resolution)
}

func TestSyncPropagatesTombstoneToRemote(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	// Both replicas know the record, then it is deleted locally
	invoice := entityAt("inv-7", "2026-01-01T10:00:00Z", map[string]any{models.FieldInvoiceNumber: "2026-007"})
	require.NoError(t, h.local.SaveOne(ctx, models.EntityInvoices, invoice))
	h.remote.Seed(models.EntityInvoices, invoice)

	require.NoError(t, h.local.DeleteOne(ctx, models.EntityInvoices, "inv-7"))

	result := h.engine.SyncWithRemote(ctx, "manual")
	require.True(t, result.Success)

	stored := h.remote.Stored(models.EntityInvoices, "inv-7")
	require.NotNil(t, stored, "tombstone must be uploaded, not dropped")
	assert.True(t, stored.IsDeleted())

	// The tombstone also stays in the local store
	invoices, err := h.local.LoadAll(ctx, models.EntityInvoices)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.True(t, invoices[0].IsDeleted())
}

func TestSyncNormalizesLegacyRecords(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	// A legacy record with no sync metadata at all
	require.NoError(t, h.local.SaveOne(ctx, models.EntityProducts,
		models.Entity{models.FieldID: "p-legacy", "name": "Old Widget"}))

	result := h.engine.SyncWithRemote(ctx, "manual")
	require.True(t, result.Success)

	products, err := h.local.LoadAll(ctx, models.EntityProducts)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.NotEmpty(t, products[0].LastModified())
	assert.False(t, products[0].IsDeleted())
}

func TestSyncMergesSingletons(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	require.NoError(t, h.local.SaveOne(ctx, models.EntityCompanyInfo,
		entityAt("company_info", "2026-01-01T10:00:00Z", map[string]any{"name": "Old Name"})))
	h.remote.Seed(models.EntityCompanyInfo,
		entityAt("company_info", "2026-02-01T10:00:00Z", map[string]any{"name": "New Name"}))

	result := h.engine.SyncWithRemote(ctx, "manual")
	require.True(t, result.Success)

	companyInfo, err := h.local.LoadSingleton(ctx, models.EntityCompanyInfo)
	require.NoError(t, err)
	require.NotNil(t, companyInfo)
	assert.Equal(t, "New Name", companyInfo["name"])
}

func TestSyncFailsAtPullStage(t *testing.T) {
	h := newTestHarness(t)
	h.remote.FailDownloads("remote unavailable")

	result := h.engine.SyncWithRemote(context.Background(), "manual")

	require.False(t, result.Success)
	assert.Equal(t, models.StagePulling, result.Stage)
	assert.True(t, fkerrors.IsRemoteError(result.Err))
	assert.NotEmpty(t, result.ErrMessage)
}

func TestSyncPushFailureKeepsLocalWrites(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.remote.Seed(models.EntityCustomers,
		entityAt("c-1", "2026-01-10T10:00:00Z", map[string]any{"name": "From Remote"}))
	h.remote.FailUploads("quota exceeded")

	result := h.engine.SyncWithRemote(ctx, "manual")

	require.False(t, result.Success)
	assert.Equal(t, models.StagePushing, result.Stage)

	// The merged record was saved locally before the push failed
	customers, err := h.local.LoadAll(ctx, models.EntityCustomers)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "From Remote", customers[0]["name"])

	// State still reports no completed sync
	state := h.state.Load(ctx)
	assert.True(t, state.LastSyncTime.IsZero())

	// A later run retries the upload and succeeds
	h.remote.Recover()
	retry := h.engine.SyncWithRemote(ctx, "manual")
	require.True(t, retry.Success)
	assert.NotNil(t, h.remote.Stored(models.EntityCustomers, "c-1"))
}

func TestSyncPreconditions(t *testing.T) {
	t.Run("offline", func(t *testing.T) {
		h := newTestHarness(t)
		h.engine.config.OnlineProbe = func() bool { return false }

		result := h.engine.SyncWithRemote(context.Background(), "manual")
		require.False(t, result.Success)
		assert.Equal(t, models.StageIdle, result.Stage)
		assert.True(t, fkerrors.IsPreconditionError(result.Err))
		assert.Equal(t, 0, h.remote.Downloads(), "no I/O on unmet preconditions")
	})

	t.Run("unconfigured", func(t *testing.T) {
		h := newTestHarness(t)
		h.remote.Configured = false

		result := h.engine.SyncWithRemote(context.Background(), "manual")
		require.False(t, result.Success)
		assert.True(t, fkerrors.IsPreconditionError(result.Err))
	})

	t.Run("unauthenticated", func(t *testing.T) {
		h := newTestHarness(t)
		h.remote.Authenticated = false

		result := h.engine.SyncWithRemote(context.Background(), "manual")
		require.False(t, result.Success)
		assert.True(t, fkerrors.IsPreconditionError(result.Err))
	})
}

func TestSyncSingleFlight(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	started := make(chan struct{})
	proceed := make(chan struct{})
	h.engine.config.OnlineProbe = func() bool {
		close(started)
		<-proceed
		return true
	}

	var wg sync.WaitGroup
	var first *models.SyncResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = h.engine.SyncWithRemote(ctx, "manual")
	}()

	<-started
	downloadsBefore := h.remote.Downloads()
	second := h.engine.SyncWithRemote(ctx, "concurrent")

	require.False(t, second.Success)
	assert.True(t, fkerrors.IsPreconditionError(second.Err))
	assert.Equal(t, downloadsBefore, h.remote.Downloads(), "rejected run must perform no I/O")

	close(proceed)
	wg.Wait()
	require.True(t, first.Success)
}

func TestSyncUpdatesStateOnSuccess(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.state.Update(ctx, func(s *models.SyncState) { s.IsPendingSync = true })
	require.NoError(t, h.local.SaveOne(ctx, models.EntityCustomers,
		entityAt("c-1", "2026-01-10T10:00:00Z", nil)))

	result := h.engine.SyncWithRemote(ctx, "manual")
	require.True(t, result.Success)

	state := h.state.Load(ctx)
	assert.Equal(t, fixedClock(), state.LastSyncTime)
	assert.NotEmpty(t, state.LastDataHash)
	assert.False(t, state.IsPendingSync)
}

func TestSyncPublishesEvents(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	recorder := &recordingObserver{}
	unsubscribe := h.engine.Events().Subscribe(recorder)
	defer unsubscribe()

	result := h.engine.SyncWithRemote(ctx, "manual")
	require.True(t, result.Success)

	require.Len(t, recorder.started, 1)
	assert.Equal(t, "manual", recorder.started[0].Trigger)
	assert.NotEmpty(t, recorder.started[0].RunID)

	stages := make([]models.SyncStage, 0, len(recorder.progress))
	for _, p := range recorder.progress {
		stages = append(stages, p.Stage)
	}
	assert.Equal(t, []models.SyncStage{
		models.StagePulling, models.StageMerging, models.StagePushing, models.StageComplete,
	}, stages)

	require.Len(t, recorder.completed, 1)
	assert.True(t, recorder.completed[0].Success)
	assert.Empty(t, recorder.errors)
}

func TestRestoreImportsRemoteSnapshot(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.remote.Seed(models.EntityInvoices,
		entityAt("inv-1", "2026-01-10T10:00:00Z", map[string]any{models.FieldInvoiceNumber: "2026-001"}))
	h.remote.Seed(models.EntityCustomers,
		entityAt("c-1", "2026-01-10T10:00:00Z", map[string]any{"name": "ACME"}))
	require.NoError(t, h.remote.UploadTimesheet(ctx, models.TimesheetFile{
		Name: "jan.xlsx", Content: []byte{1, 2, 3}, Modified: fixedClock(),
	}))

	result := h.engine.Restore(ctx)

	require.True(t, result.Success, "restore failed: %s", result.ErrMessage)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Timesheets)

	invoices, err := h.local.LoadAll(ctx, models.EntityInvoices)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)

	// Nothing was pushed back during restore
	assert.Equal(t, 0, h.remote.Uploads())
}

func TestHasRemoteData(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	hasData, err := h.engine.HasRemoteData(ctx)
	require.NoError(t, err)
	assert.False(t, hasData)

	h.remote.Seed(models.EntityCustomers, entityAt("c-1", "2026-01-10T10:00:00Z", nil))

	hasData, err = h.engine.HasRemoteData(ctx)
	require.NoError(t, err)
	assert.True(t, hasData)
}

// recordingObserver captures every notification for assertions
type recordingObserver struct {
	mu        sync.Mutex
	started   []interfaces.RunInfo
	progress  []models.SyncProgress
	completed []*models.SyncResult
	errors    []error
}

func (r *recordingObserver) OnSyncStarted(info interfaces.RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, info)
}

func (r *recordingObserver) OnSyncProgress(progress models.SyncProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, progress)
}

func (r *recordingObserver) OnSyncCompleted(result *models.SyncResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, result)
}

func (r *recordingObserver) OnSyncError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}
