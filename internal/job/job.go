package job

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a job
type JobStatus string

// Possible job status values
const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

var (
	// ErrRunnerStopped is returned when submitting to a runner that has been stopped.
	ErrRunnerStopped = errors.New("job runner is stopped")

	// ErrUnknownJobType is returned when no Factory is registered for a record's type.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrInvalidPayload is returned when a job payload cannot be decoded.
	ErrInvalidPayload = errors.New("invalid job payload")
)

// Job is a unit of background work.
type Job interface {
	ID() uuid.UUID
	Type() string

	// Payload returns the JSON data needed to rebuild the job after a restart.
	Payload() []byte

	Status() JobStatus
	Execute(ctx context.Context) error
}

// Record is the persisted form of a job.
type Record struct {
	ID           uuid.UUID
	Type         string
	Payload      []byte
	Status       JobStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Factory rebuilds executable jobs of a single type from their records.
type Factory interface {
	Type() string
	FromRecord(rec Record) (Job, error)
}

// JobStore defines the interface for persisting jobs
type JobStore interface {
	// SaveJob persists a new job in the pending state.
	SaveJob(ctx context.Context, job Job) error

	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status JobStatus, errorMsg string) error

	GetPendingJobs(ctx context.Context) ([]Record, error)

	// GetProcessingJobs retrieves jobs in the processing state. If olderThan is
	// non-zero, only jobs that have been processing longer than that are returned.
	GetProcessingJobs(ctx context.Context, olderThan time.Duration) ([]Record, error)

	// WithTx returns a JobStore that runs its statements in tx.
	WithTx(tx *sql.Tx) JobStore
}
