package models

import (
	"time"
)

// ConflictResolution indicates which side won a timestamp conflict
type ConflictResolution string

const (
	// ResolutionLocal the local record was kept
	ResolutionLocal ConflictResolution = "local"
	// ResolutionRemote the remote record replaced the local one
	ResolutionRemote ConflictResolution = "remote"
)

// ConflictEntry records one resolved conflict between a local and a remote
// copy of the same entity. Equal-timestamp ties are resolved silently and
// never produce an entry.
type ConflictEntry struct {
	EntityType     EntityType         `json:"entity_type"`
	EntityID       string             `json:"entity_id"`
	LocalModified  string             `json:"local_modified"`
	RemoteModified string             `json:"remote_modified"`
	Resolution     ConflictResolution `json:"resolution"`
	DetectedAt     time.Time          `json:"detected_at"`
}
