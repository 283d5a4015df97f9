package sync

import (
	"context"
	"sync"
	"time"

	fkerrors "github.com/fakturo/fakturo/pkg/errors"
	fklogger "github.com/fakturo/fakturo/pkg/logger"
	"github.com/fakturo/fakturo/pkg/models"
	"go.uber.org/zap"

	"github.com/fakturo/fakturo/internal/core/interfaces"
)

// SchedulerConfig holds configuration for the sync scheduler
type SchedulerConfig struct {
	Interval      time.Duration `json:"interval"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`
}

// DefaultSchedulerConfig returns the reference scheduling parameters
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Interval:      5 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    30 * time.Second,
	}
}

// FakturoSyncScheduler runs the engine on a fixed interval while sync is
// enabled and a data source has been chosen, and accepts immediate
// triggers from the CLI and the file watcher. Failed cycles are retried a
// bounded number of times with a fixed delay, then the scheduler waits for
// its next natural tick.
type FakturoSyncScheduler struct {
	engine *FakturoSyncEngine
	state  interfaces.StateStore
	config *SchedulerConfig
	logger *zap.Logger

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	kickChan  chan string
	wg        sync.WaitGroup
}

// NewFakturoSyncScheduler creates a scheduler around an engine. The
// engine's single-flight lock remains the sole concurrency guard; the
// scheduler only decides when to ask for a run.
func NewFakturoSyncScheduler(engine *FakturoSyncEngine, state interfaces.StateStore, config *SchedulerConfig) (*FakturoSyncScheduler, error) {
	if engine == nil || state == nil {
		return nil, fkerrors.NewValidationError("missing required components", nil)
	}
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}

	return &FakturoSyncScheduler{
		engine: engine,
		state:  state,
		config: config,
		logger: fklogger.Get().With(zap.String("component", "sync_scheduler")),
	}, nil
}

// Events exposes the engine's bus so callers can subscribe observers
func (s *FakturoSyncScheduler) Events() *EventBus {
	return s.engine.Events()
}

// Start launches the background loop. Starting an already-running
// scheduler is a no-op.
func (s *FakturoSyncScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.kickChan = make(chan string, 1)
	s.mu.Unlock()

	s.logger.Info("Scheduler started", zap.Duration("interval", s.config.Interval))

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop halts the background loop. Stopping an already-stopped scheduler
// is a no-op. A cycle already in flight completes.
func (s *FakturoSyncScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// IsRunning reports whether the background loop is active
func (s *FakturoSyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerNow requests an immediate cycle outside the periodic schedule.
// If a request is already pending the call coalesces with it.
func (s *FakturoSyncScheduler) TriggerNow(trigger string) {
	s.mu.Lock()
	running := s.isRunning
	kick := s.kickChan
	s.mu.Unlock()

	if !running {
		return
	}

	select {
	case kick <- trigger:
	default:
		// A trigger is already queued
	}
}

func (s *FakturoSyncScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCycle(ctx, "scheduled")
		case trigger := <-s.kickChan:
			s.runCycle(ctx, trigger)
		}
	}
}

// runCycle performs one gated sync cycle with bounded retries on systemic
// failure. Precondition failures (including "already running") are not
// retried; they resolve on their own.
func (s *FakturoSyncScheduler) runCycle(ctx context.Context, trigger string) {
	if !s.shouldSync(ctx) {
		return
	}

	if s.engine.IsRunning() {
		s.logger.Debug("Skipping cycle, a sync run is already in flight")
		return
	}

	for attempt := 0; ; attempt++ {
		result := s.engine.SyncWithRemote(ctx, trigger)
		if result.Success {
			return
		}

		if fkerrors.IsPreconditionError(result.Err) {
			return
		}

		if attempt >= s.config.RetryAttempts {
			s.logger.Warn("Sync failed after retries, waiting for next tick",
				zap.Int("attempts", attempt+1),
				zap.Error(result.Err),
			)
			return
		}

		s.logger.Info("Retrying failed sync",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", s.config.RetryDelay),
		)

		select {
		case <-time.After(s.config.RetryDelay):
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// shouldSync consults the persisted state record: sync must be enabled
// and a data source chosen
func (s *FakturoSyncScheduler) shouldSync(ctx context.Context) bool {
	state := s.state.Load(ctx)
	if !state.SyncEnabled {
		return false
	}
	if !state.DataSourceSelected || state.DataSource == models.DataSourceNone {
		return false
	}
	return true
}
