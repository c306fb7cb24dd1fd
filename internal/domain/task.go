package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the progress of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusTodo       TaskStatus = "Todo"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusDone       TaskStatus = "Done"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID          = errors.New("task ID cannot be empty")
	ErrEmptyTaskUserID      = errors.New("task user ID cannot be empty")
	ErrEmptyTaskTitle       = errors.New("task title cannot be empty")
	ErrInvalidTaskStatus    = errors.New("invalid task status")
	ErrNegativeTaskEstimate = errors.New("task estimate cannot be negative")
)

// Task is a unit of work owned by a user. Only tasks that are not Done
// contribute to the daily plan.
type Task struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           TaskStatus `json:"status"`
	EstimatedMinutes *int       `json:"estimated_minutes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewTask creates a new Task in the Todo state.
// Returns an error if validation fails.
func NewTask(userID uuid.UUID, title, description string, estimatedMinutes *int) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:               uuid.New(),
		UserID:           userID,
		Title:            strings.TrimSpace(title),
		Description:      description,
		Status:           TaskStatusTodo,
		EstimatedMinutes: estimatedMinutes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.UserID == uuid.Nil {
		return ErrEmptyTaskUserID
	}

	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTaskTitle
	}

	if !t.Status.IsValid() {
		return ErrInvalidTaskStatus
	}

	if t.EstimatedMinutes != nil && *t.EstimatedMinutes < 0 {
		return ErrNegativeTaskEstimate
	}

	return nil
}

// Update applies the given changes and bumps UpdatedAt.
// Nil arguments leave the corresponding field untouched.
func (t *Task) Update(title, description *string, status *TaskStatus, estimatedMinutes *int) error {
	updated := *t
	if title != nil {
		updated.Title = strings.TrimSpace(*title)
	}
	if description != nil {
		updated.Description = *description
	}
	if status != nil {
		updated.Status = *status
	}
	if estimatedMinutes != nil {
		est := *estimatedMinutes
		updated.EstimatedMinutes = &est
	}

	if err := updated.Validate(); err != nil {
		return err
	}

	updated.UpdatedAt = time.Now().UTC()
	*t = updated
	return nil
}

// IsActive reports whether the task still needs work.
func (t *Task) IsActive() bool {
	return t.Status == TaskStatusTodo || t.Status == TaskStatusInProgress
}

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

// ActiveTaskStatuses are the statuses that feed plan generation.
func ActiveTaskStatuses() []TaskStatus {
	return []TaskStatus{TaskStatusTodo, TaskStatusInProgress}
}
