package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/domain"
	"github.com/phrazzld/dayplan-api/internal/platform/logger"
	"github.com/phrazzld/dayplan-api/internal/store"
)

// CreateTaskInput holds the fields of a new task.
type CreateTaskInput struct {
	Title            string
	Description      string
	EstimatedMinutes *int
}

// UpdateTaskInput holds a partial task update; nil fields are left unchanged.
type UpdateTaskInput struct {
	Title            *string
	Description      *string
	Status           *domain.TaskStatus
	EstimatedMinutes *int
}

// TaskService manages the authenticated owner's tasks.
type TaskService struct {
	tasks    store.TaskStore
	notifier ChangeNotifier
	logger   *slog.Logger
}

// NewTaskService creates a TaskService. notifier is called after every
// successful mutation.
func NewTaskService(tasks store.TaskStore, notifier ChangeNotifier, logger *slog.Logger) (*TaskService, error) {
	if tasks == nil {
		return nil, NewServiceError("task", "create_service", errNilDependency("tasks"))
	}
	if notifier == nil {
		return nil, NewServiceError("task", "create_service", errNilDependency("notifier"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		tasks:    tasks,
		notifier: notifier,
		logger:   logger.With("component", "task_service"),
	}, nil
}

// Create adds a task in the Todo state.
func (s *TaskService) Create(ctx context.Context, ownerID uuid.UUID, in CreateTaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(ownerID, in.Title, in.Description, in.EstimatedMinutes)
	if err != nil {
		return nil, invalidTask(err)
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		log.Error("failed to create task", "error", err, "owner_id", ownerID)
		return nil, NewServiceError("task", "create", err)
	}

	log.Info("task created", "task_id", task.ID, "owner_id", ownerID)
	s.notifier.OnTaskChanged(ctx, ownerID)
	return task, nil
}

// Get returns one of the owner's tasks. A task owned by someone else is
// reported as store.ErrTaskNotFound.
func (s *TaskService) Get(ctx context.Context, ownerID, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, ownerID, taskID)
	if err != nil {
		return nil, NewServiceError("task", "get", err)
	}
	return task, nil
}

// List returns every task of the owner in creation order.
func (s *TaskService) List(ctx context.Context, ownerID uuid.UUID) ([]*domain.Task, error) {
	tasks, err := s.tasks.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, NewServiceError("task", "list", err)
	}
	return tasks, nil
}

// Update applies a partial update to one of the owner's tasks.
func (s *TaskService) Update(
	ctx context.Context,
	ownerID, taskID uuid.UUID,
	in UpdateTaskInput,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.tasks.GetByID(ctx, ownerID, taskID)
	if err != nil {
		return nil, NewServiceError("task", "update", err)
	}

	if err := task.Update(in.Title, in.Description, in.Status, in.EstimatedMinutes); err != nil {
		return nil, invalidTask(err)
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		log.Error("failed to update task", "error", err, "task_id", taskID)
		return nil, NewServiceError("task", "update", err)
	}

	log.Info("task updated", "task_id", taskID, "status", task.Status)
	s.notifier.OnTaskChanged(ctx, ownerID)
	return task, nil
}

// Delete removes one of the owner's tasks.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.tasks.Delete(ctx, ownerID, taskID); err != nil {
		return NewServiceError("task", "delete", err)
	}

	log.Info("task deleted", "task_id", taskID)
	s.notifier.OnTaskChanged(ctx, ownerID)
	return nil
}

func invalidTask(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrValidation, err)
}
