// Package repositories provides bucket-level access to Fakturo's database
package repositories

import (
	"context"
	"errors"
	"os"

	"github.com/fakturo/fakturo/internal/database"
	"github.com/fakturo/fakturo/pkg/models"
	"go.uber.org/zap"
)

const (
	// StateKeyMain is the key for the persisted sync-state record
	StateKeyMain = "main"
)

// StateRepository persists the sync-state record. It implements
// interfaces.StateStore: reads merge over defaults and never fail, writes
// are read-modify-write and swallow storage errors after logging, since
// the record only backs status output and scheduler gating.
type StateRepository struct {
	db     *database.Manager
	logger *zap.Logger
}

// NewStateRepository creates a new state repository
func NewStateRepository(db *database.Manager, logger *zap.Logger) *StateRepository {
	return &StateRepository{
		db:     db,
		logger: logger.With(zap.String("component", "state_store")),
	}
}

// Load returns the current state merged over the hardcoded defaults
func (r *StateRepository) Load(ctx context.Context) *models.SyncState {
	state := models.DefaultSyncState()

	var stored models.SyncState
	err := r.db.Get(database.BucketSyncState, StateKeyMain, &stored)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("Failed to load sync state, using defaults", zap.Error(err))
		}
		return state
	}

	// A partially-written record leaves untouched fields at their
	// zero values, which coincide with the defaults
	*state = stored
	return state
}

// Update applies a read-modify-write mutation to the persisted record
func (r *StateRepository) Update(ctx context.Context, mutate func(*models.SyncState)) {
	state := r.Load(ctx)
	mutate(state)

	if err := r.db.Put(database.BucketSyncState, StateKeyMain, state); err != nil {
		r.logger.Warn("Failed to persist sync state", zap.Error(err))
	}
}
