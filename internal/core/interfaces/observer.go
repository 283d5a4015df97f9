package interfaces

import (
	"time"

	"github.com/fakturo/fakturo/pkg/models"
)

// RunInfo describes a sync run at the moment it starts
type RunInfo struct {
	RunID     string    `json:"run_id"`
	Trigger   string    `json:"trigger"` // "manual", "scheduled", "watcher"
	StartedAt time.Time `json:"started_at"`
}

// SyncObserver receives sync lifecycle notifications. Any number of
// observers may subscribe; notifications fan out to all of them.
type SyncObserver interface {
	OnSyncStarted(info RunInfo)
	OnSyncProgress(progress models.SyncProgress)
	OnSyncCompleted(result *models.SyncResult)
	OnSyncError(err error)
}
