package models

import (
	"time"
)

// DataSource identifies which remote backend is mirrored
type DataSource string

const (
	// DataSourceNone no remote chosen yet
	DataSourceNone DataSource = ""
	// DataSourceDrive cloud-Drive-style backend
	DataSourceDrive DataSource = "drive"
	// DataSourceWebDAV WebDAV-style backend
	DataSourceWebDAV DataSource = "webdav"
)

// SyncState is the small persisted record backing the scheduler's and the
// CLI's decisions. It is not critical-path for correctness; readers always
// merge it over DefaultSyncState so a missing or partial record never
// crashes anything.
type SyncState struct {
	LastSyncTime       time.Time  `json:"last_sync_time"`
	LastDataHash       string     `json:"last_data_hash"`
	IsPendingSync      bool       `json:"is_pending_sync"`
	SyncEnabled        bool       `json:"sync_enabled"`
	DataSourceSelected bool       `json:"data_source_selected"`
	DataSource         DataSource `json:"data_source"`
}

// DefaultSyncState returns the hardcoded defaults every read merges over
func DefaultSyncState() *SyncState {
	return &SyncState{
		LastSyncTime:       time.Time{},
		LastDataHash:       "",
		IsPendingSync:      false,
		SyncEnabled:        false,
		DataSourceSelected: false,
		DataSource:         DataSourceNone,
	}
}
