package models

import (
	"time"
)

// JobStatus represents the status of an import job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobType represents the type of job
type JobType string

const (
	JobTypeImport JobType = "import"
)

// Job represents one import run. Chunk counters double as the progress
// surface exposed while the job is processing.
type Job struct {
	ID             string     `json:"job_id" db:"id"`
	Type           JobType    `json:"type" db:"type"`
	Kind           ImportKind `json:"kind" db:"kind"`
	Programme      string     `json:"programme,omitempty" db:"programme"`
	Status         JobStatus  `json:"status" db:"status"`
	TotalRecords   int        `json:"total_records" db:"total_records"`
	WrittenCount   int        `json:"written" db:"written_count"`
	SkippedRows    int        `json:"skipped_rows" db:"skipped_rows"`
	CurrentChunk   int        `json:"current_chunk" db:"current_chunk"`
	TotalChunks    int        `json:"total_chunks" db:"total_chunks"`
	DurationMs     int64      `json:"duration_ms,omitempty" db:"duration_ms"`
	RecordsPerSec  float64    `json:"records_per_sec,omitempty" db:"records_per_sec"`
	FilePath       string     `json:"-" db:"file_path"`
	FailureMessage string     `json:"error,omitempty" db:"failure_message"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Progress returns the job's chunk progress as a Progress value.
func (j *Job) Progress() Progress {
	return Progress{Current: j.CurrentChunk, Total: j.TotalChunks}
}

// ImportRequest represents an import job request
type ImportRequest struct {
	Kind      ImportKind `json:"kind" form:"kind"`
	Programme string     `json:"programme" form:"programme"`
}
