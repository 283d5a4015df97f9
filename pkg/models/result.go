package models

import (
	"time"
)

// SyncStage identifies the phase a sync run is in. Stage transitions are
// reported to observers with a current/total counter.
type SyncStage string

const (
	// StageIdle no run in flight
	StageIdle SyncStage = "idle"
	// StagePulling downloading the full remote snapshot
	StagePulling SyncStage = "pulling"
	// StageMerging normalizing and reconciling both sides
	StageMerging SyncStage = "merging"
	// StagePushing persisting merged data locally and uploading to remote
	StagePushing SyncStage = "pushing"
	// StageComplete run finished successfully
	StageComplete SyncStage = "complete"
)

// SyncProgress is a discrete stage transition suitable for a progress bar
type SyncProgress struct {
	RunID   string    `json:"run_id"`
	Stage   SyncStage `json:"stage"`
	Current int       `json:"current"`
	Total   int       `json:"total"`
}

// SyncStats summarizes what one run actually did
type SyncStats struct {
	Merged    int `json:"merged"`
	Conflicts int `json:"conflicts"`
	Saved     int `json:"saved"`
	Uploaded  int `json:"uploaded"`
}

// SyncResult is the typed outcome of one sync run. The engine never returns
// run-level failures as Go errors across its public boundary; every failure
// path lands here with Success=false and zero-valued stats.
type SyncResult struct {
	RunID      string    `json:"run_id"`
	Success    bool      `json:"success"`
	Stage      SyncStage `json:"stage"`
	Stats      SyncStats `json:"stats"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Err        error     `json:"-"`
	ErrMessage string    `json:"error,omitempty"`
}

// Failed builds an unsuccessful result for the given stage
func Failed(runID string, stage SyncStage, err error) *SyncResult {
	res := &SyncResult{
		RunID:      runID,
		Success:    false,
		Stage:      stage,
		FinishedAt: time.Now(),
		Err:        err,
	}
	if err != nil {
		res.ErrMessage = err.Error()
	}
	return res
}

// RestoreResult is the outcome of a pull-only restore operation
type RestoreResult struct {
	Success    bool      `json:"success"`
	Imported   int       `json:"imported"`
	Timesheets int       `json:"timesheets"`
	Err        error     `json:"-"`
	ErrMessage string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
