package domain

import (
	"errors"
	"time"
)

type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusFinished   JobStatus = "finished"
	JobStatusFailed     JobStatus = "failed"
)

// Stage labels are advisory progress markers written during a pipeline run.
// Control flow never branches on them; they exist for status polling.
const (
	StageInitializing    = "initializing"
	StageCrewCreation    = "crew_creation"
	StageAnalysisRunning = "analysis_running"
	StageCompleted       = "completed"
	StageFailed          = "failed"
)

// JobRecord is the persisted state of one analysis run, keyed by the
// content fingerprint of the uploaded report. One record per fingerprint;
// finished and failed are terminal.
type JobRecord struct {
	Fingerprint  string     `json:"job_id"`
	Status       JobStatus  `json:"status"`
	Stage        string     `json:"current_stage,omitempty"`
	Message      string     `json:"message,omitempty"`
	Result       string     `json:"result,omitempty"`
	ErrorDetails string     `json:"error_details,omitempty"`
	FileName     string     `json:"file_name,omitempty"`
	TestMode     bool       `json:"test_mode,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
}

// JobUpdate is a partial update merged into a JobRecord by the store.
// Nil fields are left untouched; the store never clears a field that the
// update does not name.
type JobUpdate struct {
	Status       *JobStatus
	Stage        *string
	Message      *string
	Result       *string
	ErrorDetails *string
	FileName     *string
	TestMode     *bool
	StartedAt    *time.Time
	CompletedAt  *time.Time
	FailedAt     *time.Time
}

// JobStats holds per-status record counts for the stats endpoint.
type JobStats struct {
	Total      int `json:"total_jobs"`
	Processing int `json:"processing_jobs"`
	Finished   int `json:"finished_jobs"`
	Failed     int `json:"failed_jobs"`
}

var (
	ErrJobNotFound        = errors.New("job not found")
	ErrDocumentUnreadable = errors.New("document unreadable")
)

// Ptr returns a pointer to v. Used to build JobUpdate literals.
func Ptr[T any](v T) *T {
	return &v
}
