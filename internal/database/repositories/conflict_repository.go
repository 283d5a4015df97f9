package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fakturo/fakturo/internal/database"
	"github.com/fakturo/fakturo/pkg/models"
	bolt "go.etcd.io/bbolt"
)

// ConflictRepository stores resolved merge conflicts for later inspection
// via `fakturo status --conflicts`
type ConflictRepository struct {
	db *database.Manager
}

// NewConflictRepository creates a new conflict repository
func NewConflictRepository(db *database.Manager) *ConflictRepository {
	return &ConflictRepository{db: db}
}

// Append stores the conflict entries produced by one sync run. Keys are
// ordered by detection time so a cursor walk returns them chronologically.
func (r *ConflictRepository) Append(ctx context.Context, entries []models.ConflictEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return r.db.Transaction(true, func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(database.BucketConflicts))
		if bucket == nil {
			return fmt.Errorf("conflicts bucket not found")
		}

		for i, entry := range entries {
			if entry.DetectedAt.IsZero() {
				entry.DetectedAt = time.Now()
			}

			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("failed to marshal conflict entry: %w", err)
			}

			key := fmt.Sprintf("%s-%04d-%s", entry.DetectedAt.UTC().Format(time.RFC3339Nano), i, entry.EntityID)
			if err := bucket.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns up to limit entries, newest first
func (r *ConflictRepository) Recent(ctx context.Context, limit int) ([]models.ConflictEntry, error) {
	var entries []models.ConflictEntry

	err := r.db.Transaction(false, func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(database.BucketConflicts))
		if bucket == nil {
			return fmt.Errorf("conflicts bucket not found")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(entries) < limit; k, v = cursor.Prev() {
			var entry models.ConflictEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}
