package interfaces

import (
	"context"

	"github.com/fakturo/fakturo/pkg/models"
)

// StateStore persists the small sync-state record gating the scheduler and
// backing status output. It is deliberately forgiving: reads merge over
// hardcoded defaults and writes swallow storage failures after logging
// them, because the record is not correctness-critical.
type StateStore interface {
	// Load returns the current state merged over defaults. Never fails;
	// a missing or partially-written record yields the defaults.
	Load(ctx context.Context) *models.SyncState

	// Update applies a read-modify-write mutation. Storage errors are
	// logged and swallowed.
	Update(ctx context.Context, mutate func(*models.SyncState))
}

// ConflictLog records resolved merge conflicts for later inspection
type ConflictLog interface {
	// Append stores conflict entries from one sync run
	Append(ctx context.Context, entries []models.ConflictEntry) error

	// Recent returns up to limit entries, newest first
	Recent(ctx context.Context, limit int) ([]models.ConflictEntry, error)
}
