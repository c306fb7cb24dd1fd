package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/domain"
)

// TaskStore defines the interface for task data persistence.
// Every lookup is scoped to the owning user; a task that exists but belongs
// to someone else is reported as ErrTaskNotFound.
type TaskStore interface {
	// Create saves a new task. Returns validation errors if the task is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task owned by userID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error)

	// ListByUser returns every task of the user in creation order.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)

	// ListActive returns the user's Todo and In Progress tasks ordered by
	// creation time, then ID. This is the snapshot plan generation reads.
	ListActive(ctx context.Context, userID uuid.UUID) ([]domain.Task, error)

	// Update saves changes to an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task. Returns ErrTaskNotFound if it does not exist.
	Delete(ctx context.Context, userID, taskID uuid.UUID) error

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TaskStore
}
