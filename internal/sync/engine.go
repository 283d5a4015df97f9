package sync

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fakturo/fakturo/internal/core/interfaces"
	fkerrors "github.com/fakturo/fakturo/pkg/errors"
	fklogger "github.com/fakturo/fakturo/pkg/logger"
	"github.com/fakturo/fakturo/pkg/models"
	"github.com/fakturo/fakturo/pkg/utils"
	"go.uber.org/zap"
)

// Number of observable stages in one run: pulling, merging, pushing, complete
const stageTotal = 4

// EngineConfig holds configuration for the sync engine
type EngineConfig struct {
	// OnlineProbe reports whether the network is reachable. Replaced in
	// tests; the default dials a well-known endpoint.
	OnlineProbe func() bool

	// Clock supplies timestamps for normalization and conflict records
	Clock Clock
}

// FakturoSyncEngine reconciles the local store with one remote backend.
//
// Each instance owns its own single-flight lock and folder caches live in
// the injected remote adapter, so independent engines can serve independent
// sync targets and tests never share process-wide state.
//
// A run is best-effort, not all-or-nothing: merged data already saved
// locally stays saved even when the subsequent remote upload fails.
type FakturoSyncEngine struct {
	remote    interfaces.RemoteStore
	local     interfaces.LocalStore
	state     interfaces.StateStore
	conflicts interfaces.ConflictLog
	bus       *EventBus
	logger    *zap.Logger
	config    *EngineConfig

	mu        sync.Mutex
	isRunning bool
}

// NewFakturoSyncEngine creates a new sync engine instance. The conflict
// log may be nil; everything else is required.
func NewFakturoSyncEngine(
	remote interfaces.RemoteStore,
	local interfaces.LocalStore,
	state interfaces.StateStore,
	conflicts interfaces.ConflictLog,
	bus *EventBus,
	config *EngineConfig,
) (*FakturoSyncEngine, error) {
	if remote == nil || local == nil || state == nil {
		return nil, fkerrors.NewValidationError("missing required components", nil)
	}
	if bus == nil {
		bus = NewEventBus()
	}
	if config == nil {
		config = &EngineConfig{}
	}
	if config.OnlineProbe == nil {
		config.OnlineProbe = defaultOnlineProbe
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &FakturoSyncEngine{
		remote:    remote,
		local:     local,
		state:     state,
		conflicts: conflicts,
		bus:       bus,
		logger:    fklogger.Get().With(zap.String("component", "sync_engine")),
		config:    config,
	}, nil
}

// Events returns the engine's event bus for observer registration
func (e *FakturoSyncEngine) Events() *EventBus {
	return e.bus
}

// IsRunning reports whether a sync run is currently in flight
func (e *FakturoSyncEngine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isRunning
}

// SyncWithRemote performs one full pull-merge-push cycle. All failure
// paths, including unmet preconditions, resolve to a typed result; the
// method never returns an error value.
func (e *FakturoSyncEngine) SyncWithRemote(ctx context.Context, trigger string) *models.SyncResult {
	runID := uuid.New().String()

	if !e.tryAcquire() {
		// No I/O has happened; return immediately
		return models.Failed(runID, models.StageIdle,
			fkerrors.NewPreconditionError("sync already in progress", nil))
	}
	defer e.release()

	if precondition := e.checkPreconditions(ctx); precondition != nil {
		e.logger.Info("Sync short-circuited",
			zap.String("run_id", runID),
			zap.String("reason", precondition.Error()),
		)
		return models.Failed(runID, models.StageIdle, precondition)
	}

	startedAt := e.config.Clock()
	e.bus.PublishStarted(interfaces.RunInfo{RunID: runID, Trigger: trigger, StartedAt: startedAt})

	e.logger.Info("Starting sync run",
		zap.String("run_id", runID),
		zap.String("trigger", trigger),
		zap.String("remote", e.remote.Name()),
	)

	result := e.run(ctx, runID)
	result.RunID = runID
	result.StartedAt = startedAt
	result.FinishedAt = e.config.Clock()

	if result.Success {
		e.bus.PublishCompleted(result)
		e.logger.Info("Sync run completed",
			zap.String("run_id", runID),
			zap.Int("merged", result.Stats.Merged),
			zap.Int("conflicts", result.Stats.Conflicts),
			zap.Int("uploaded", result.Stats.Uploaded),
		)
	} else {
		e.bus.PublishError(result.Err)
		e.bus.PublishCompleted(result)
		e.logger.Error("Sync run failed",
			zap.String("run_id", runID),
			zap.String("stage", string(result.Stage)),
			zap.Error(result.Err),
		)
	}

	return result
}

// run executes the staged pipeline. Any error surfaces as a structured
// failure naming the stage it happened in.
func (e *FakturoSyncEngine) run(ctx context.Context, runID string) *models.SyncResult {
	clock := e.config.Clock

	// Stage 1: pull the full remote snapshot
	e.publishProgress(runID, models.StagePulling, 1)
	remoteData, err := e.remote.DownloadAll(ctx)
	if err != nil {
		return models.Failed(runID, models.StagePulling,
			fkerrors.NewRemoteError("failed to download remote snapshot", err))
	}

	// Stage 2: load local, normalize both sides, reconcile
	e.publishProgress(runID, models.StageMerging, 2)
	localData, err := e.loadLocalSnapshot(ctx)
	if err != nil {
		return models.Failed(runID, models.StageMerging,
			fkerrors.NewStorageError("failed to load local snapshot", err))
	}

	localData = NormalizeDataSet(localData, clock)
	remoteData = NormalizeDataSet(remoteData, clock)

	merged := &models.DataSet{}
	var conflicts []models.ConflictEntry
	for _, entityType := range models.CollectionTypes {
		outcome := MergeEntities(localData.Collection(entityType), remoteData.Collection(entityType), entityType, clock)
		// The tombstone-inclusive set is what gets persisted and
		// uploaded; the filtered active view is for consumers only
		merged.SetCollection(entityType, outcome.Merged)
		conflicts = append(conflicts, outcome.Conflicts...)
	}
	merged.CompanyInfo = MergeSingleton(localData.CompanyInfo, remoteData.CompanyInfo)
	merged.TaxSettings = MergeSingleton(localData.TaxSettings, remoteData.TaxSettings)
	merged.Timesheets = MergeTimesheets(localData.Timesheets, remoteData.Timesheets)

	if e.conflicts != nil && len(conflicts) > 0 {
		if err := e.conflicts.Append(ctx, conflicts); err != nil {
			e.logger.Warn("Failed to record conflicts", zap.Error(err))
		}
	}

	// Stage 3: persist merged set locally, then push it to remote
	e.publishProgress(runID, models.StagePushing, 3)
	saved := e.saveLocalSnapshot(ctx, merged)

	uploaded, err := e.remote.UploadAll(ctx, merged)
	if err != nil {
		// Local writes above remain committed; the next run will
		// retry the upload
		return models.Failed(runID, models.StagePushing,
			fkerrors.NewRemoteError("failed to upload merged snapshot", err))
	}

	// Stage 4: record the successful run
	e.state.Update(ctx, func(state *models.SyncState) {
		state.LastSyncTime = clock()
		state.LastDataHash = utils.DataSetHash(merged)
		state.IsPendingSync = false
	})
	e.publishProgress(runID, models.StageComplete, stageTotal)

	return &models.SyncResult{
		Success: true,
		Stage:   models.StageComplete,
		Stats: models.SyncStats{
			Merged:    merged.EntityCount(),
			Conflicts: len(conflicts),
			Saved:     saved,
			Uploaded:  uploaded,
		},
	}
}

// Restore performs a pull-only import of the remote dataset, used for
// first-time data-source selection. Nothing is merged or pushed.
func (e *FakturoSyncEngine) Restore(ctx context.Context) *models.RestoreResult {
	if !e.tryAcquire() {
		err := fkerrors.NewPreconditionError("sync already in progress", nil)
		return &models.RestoreResult{Success: false, Err: err, ErrMessage: err.Error(), FinishedAt: e.config.Clock()}
	}
	defer e.release()

	if precondition := e.checkPreconditions(ctx); precondition != nil {
		return &models.RestoreResult{Success: false, Err: precondition, ErrMessage: precondition.Error(), FinishedAt: e.config.Clock()}
	}

	e.logger.Info("Restoring data from remote", zap.String("remote", e.remote.Name()))

	remoteData, err := e.remote.DownloadAll(ctx)
	if err != nil {
		wrapped := fkerrors.NewRemoteError("failed to download remote snapshot", err)
		return &models.RestoreResult{Success: false, Err: wrapped, ErrMessage: wrapped.Error(), FinishedAt: e.config.Clock()}
	}

	remoteData = NormalizeDataSet(remoteData, e.config.Clock)
	imported := e.saveLocalSnapshot(ctx, remoteData)

	return &models.RestoreResult{
		Success:    true,
		Imported:   imported,
		Timesheets: len(remoteData.Timesheets),
		FinishedAt: e.config.Clock(),
	}
}

// HasRemoteData downloads the remote snapshot and reports whether any
// non-empty collection exists. Used to decide whether to offer
// restore/merge options at all.
func (e *FakturoSyncEngine) HasRemoteData(ctx context.Context) (bool, error) {
	if !e.remote.IsConfigured() {
		return false, fkerrors.NewPreconditionError("remote backend not configured", nil)
	}
	if !e.remote.IsAuthenticated(ctx) {
		return false, fkerrors.NewAuthError("remote backend not authenticated", nil)
	}

	data, err := e.remote.DownloadAll(ctx)
	if err != nil {
		return false, fkerrors.NewRemoteError("failed to probe remote data", err)
	}
	return !data.IsEmpty(), nil
}

// checkPreconditions verifies the entry conditions shared by every
// operation. Returns nil when the run may proceed.
func (e *FakturoSyncEngine) checkPreconditions(ctx context.Context) error {
	if !e.config.OnlineProbe() {
		return fkerrors.NewPreconditionError("network unreachable", nil)
	}
	if !e.remote.IsConfigured() {
		return fkerrors.NewPreconditionError("remote backend not configured", nil)
	}
	if !e.remote.IsAuthenticated(ctx) {
		return fkerrors.NewPreconditionError("remote backend not authenticated", nil)
	}
	return nil
}

func (e *FakturoSyncEngine) tryAcquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isRunning {
		return false
	}
	e.isRunning = true
	return true
}

func (e *FakturoSyncEngine) release() {
	e.mu.Lock()
	e.isRunning = false
	e.mu.Unlock()
}

func (e *FakturoSyncEngine) publishProgress(runID string, stage models.SyncStage, current int) {
	e.bus.PublishProgress(models.SyncProgress{
		RunID:   runID,
		Stage:   stage,
		Current: current,
		Total:   stageTotal,
	})
}

// loadLocalSnapshot reads every collection, singleton and timesheet blob
// from the local store
func (e *FakturoSyncEngine) loadLocalSnapshot(ctx context.Context) (*models.DataSet, error) {
	data := &models.DataSet{}

	for _, entityType := range models.CollectionTypes {
		entities, err := e.local.LoadAll(ctx, entityType)
		if err != nil {
			return nil, err
		}
		data.SetCollection(entityType, entities)
	}

	companyInfo, err := e.local.LoadSingleton(ctx, models.EntityCompanyInfo)
	if err != nil {
		return nil, err
	}
	data.CompanyInfo = companyInfo

	taxSettings, err := e.local.LoadSingleton(ctx, models.EntityTaxSettings)
	if err != nil {
		return nil, err
	}
	data.TaxSettings = taxSettings

	timesheets, err := e.local.LoadTimesheets(ctx)
	if err != nil {
		return nil, err
	}
	data.Timesheets = timesheets

	return data, nil
}

// saveLocalSnapshot persists a snapshot to the local store. Per-item
// failures are logged and skipped so one bad record never aborts the
// batch; the count of records actually written is returned.
func (e *FakturoSyncEngine) saveLocalSnapshot(ctx context.Context, data *models.DataSet) int {
	saved := 0

	for _, entityType := range models.CollectionTypes {
		for _, entity := range data.Collection(entityType) {
			if err := e.local.SaveOne(ctx, entityType, entity); err != nil {
				e.logger.Warn("Failed to save entity",
					zap.String("entity_type", string(entityType)),
					zap.String("id", entity.ID()),
					zap.Error(err),
				)
				continue
			}
			saved++
		}
	}

	if data.CompanyInfo != nil {
		if err := e.local.SaveOne(ctx, models.EntityCompanyInfo, data.CompanyInfo); err != nil {
			e.logger.Warn("Failed to save company info", zap.Error(err))
		} else {
			saved++
		}
	}
	if data.TaxSettings != nil {
		if err := e.local.SaveOne(ctx, models.EntityTaxSettings, data.TaxSettings); err != nil {
			e.logger.Warn("Failed to save tax settings", zap.Error(err))
		} else {
			saved++
		}
	}

	for _, file := range data.Timesheets {
		if err := e.local.SaveTimesheet(ctx, file); err != nil {
			e.logger.Warn("Failed to save timesheet",
				zap.String("name", file.Name),
				zap.Error(err),
			)
		}
	}

	return saved
}

// defaultOnlineProbe answers whether any network path exists by dialing a
// well-known endpoint. Backend-specific reachability is still checked by
// IsAuthenticated.
func defaultOnlineProbe() bool {
	conn, err := net.DialTimeout("tcp", "www.googleapis.com:443", 3*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
