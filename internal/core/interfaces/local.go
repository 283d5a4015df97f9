package interfaces

import (
	"context"

	"github.com/fakturo/fakturo/pkg/models"
)

// LocalStore is the contract for the user-selected local data directory.
// One JSON file per entity, grouped into type-named subdirectories;
// invoices additionally partitioned into year subdirectories.
type LocalStore interface {
	// EnsureLayout creates the directory skeleton if missing
	EnsureLayout() error

	// LoadAll loads every record of a collection type, tombstones included
	LoadAll(ctx context.Context, entityType models.EntityType) ([]models.Entity, error)

	// LoadSingleton loads a singleton record, or nil when absent
	LoadSingleton(ctx context.Context, entityType models.EntityType) (models.Entity, error)

	// SaveOne writes a record, tombstoned or not
	SaveOne(ctx context.Context, entityType models.EntityType, entity models.Entity) error

	// DeleteOne tombstones a record. The file is rewritten with
	// isDeleted=true and a fresh lastModified stamp, never removed.
	DeleteOne(ctx context.Context, entityType models.EntityType, id string) error

	// LoadTimesheets loads every spreadsheet blob with content
	LoadTimesheets(ctx context.Context) ([]models.TimesheetFile, error)

	// SaveTimesheet writes a spreadsheet blob as-is
	SaveTimesheet(ctx context.Context, file models.TimesheetFile) error
}
