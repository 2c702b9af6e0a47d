// Package jobs defines asynchronous ingestion jobs and the queue and store
// abstractions they run on. The interfaces allow swapping the in-memory
// implementation for Cloud Tasks or Pub/Sub without touching the handlers.
package jobs

import (
	"context"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// IngestFileJob is a request to ingest one stored spreadsheet.
type IngestFileJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// GCSURI locates the uploaded file, e.g. gs://bucket/uploads/file.csv.
	GCSURI string `json:"gcs_uri"`

	// Filename is the original upload name; its extension decides the
	// file kind.
	Filename string `json:"filename"`

	// WalletName is the fallback wallet for files without an account column.
	WalletName string `json:"wallet_name,omitempty"`

	Status    JobStatus  `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job finished, successfully or not.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Result summary, populated when the job completes.
	Transactions int  `json:"transactions"`
	RowErrors    int  `json:"row_errors"`
	Degraded     bool `json:"degraded,omitempty"`
}

// Publisher enqueues ingestion jobs.
type Publisher interface {
	// PublishIngestFile publishes a file ingestion job.
	PublishIngestFile(ctx context.Context, job *IngestFileJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer processes ingestion jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs; the handler is called per job.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error triggers a retry until
// the job's retry budget is spent.
type JobHandler func(ctx context.Context, job *IngestFileJob) error

// JobStore tracks job state so clients can poll ingestion progress.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *IngestFileJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*IngestFileJob, error)

	// ListJobs retrieves jobs matching the filter, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestFileJob, error)
}

// JobFilter selects jobs for listing.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
