// Package interfaces defines the core contracts of the Fakturo sync system
package interfaces

import (
	"context"

	"github.com/fakturo/fakturo/pkg/models"
)

// RemoteStore is the pluggable contract every remote backend implements.
// The engine and scheduler are written against this interface only; a
// concrete backend is injected at construction time.
//
// By convention DownloadAll filters tombstoned records out of the snapshot
// at the adapter boundary. A consequence worth knowing: the engine cannot
// un-delete a record from the remote's own tombstones.
type RemoteStore interface {
	// Name returns the backend name (for logs and status output)
	Name() string

	// IsConfigured reports whether the backend has usable configuration
	IsConfigured() bool

	// IsAuthenticated reports whether the backend can reach its account.
	// Implementations should answer cheaply where possible.
	IsAuthenticated(ctx context.Context) bool

	// DownloadAll fetches the full remote snapshot
	DownloadAll(ctx context.Context) (*models.DataSet, error)

	// UploadAll pushes a full snapshot and returns the number of objects
	// actually transmitted. Objects whose content, ignoring volatile
	// envelope fields, matches what is already stored remotely are skipped.
	UploadAll(ctx context.Context, data *models.DataSet) (int, error)

	// Upload pushes a single entity outside the periodic cycle
	// (immediate-on-save propagation)
	Upload(ctx context.Context, entityType models.EntityType, entity models.Entity) error

	// UploadTimesheet pushes a single spreadsheet blob as-is
	UploadTimesheet(ctx context.Context, file models.TimesheetFile) error

	// CleanupDuplicateFolders removes empty duplicate folders left behind
	// by folder-creation races. Non-empty folders are never touched.
	// Returns the number of folders deleted.
	CleanupDuplicateFolders(ctx context.Context) (int, error)
}
