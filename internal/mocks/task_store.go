package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/domain"
	"github.com/phrazzld/dayplan-api/internal/store"
)

// MockTaskStore is an in-memory store.TaskStore
type MockTaskStore struct {
	// ListActiveFn overrides ListActive when set
	ListActiveFn func(ctx context.Context, userID uuid.UUID) ([]domain.Task, error)

	// Err, when set, is returned by every mutating method
	Err error

	mu    sync.RWMutex
	tasks map[uuid.UUID]domain.Task
}

// NewMockTaskStore creates an empty MockTaskStore
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[uuid.UUID]domain.Task)}
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// Create implements store.TaskStore
func (m *MockTaskStore) Create(_ context.Context, task *domain.Task) error {
	if m.Err != nil {
		return m.Err
	}
	if err := task.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = *task
	return nil
}

// GetByID implements store.TaskStore
func (m *MockTaskStore) GetByID(_ context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, store.ErrTaskNotFound
	}
	return &task, nil
}

// ListByUser implements store.TaskStore
func (m *MockTaskStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	tasks := m.ordered(userID, false)
	out := make([]*domain.Task, len(tasks))
	for i := range tasks {
		out[i] = &tasks[i]
	}
	return out, nil
}

// ListActive implements store.TaskStore
func (m *MockTaskStore) ListActive(ctx context.Context, userID uuid.UUID) ([]domain.Task, error) {
	if m.ListActiveFn != nil {
		return m.ListActiveFn(ctx, userID)
	}
	return m.ordered(userID, true), nil
}

// Update implements store.TaskStore
func (m *MockTaskStore) Update(_ context.Context, task *domain.Task) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return store.ErrTaskNotFound
	}
	m.tasks[task.ID] = *task
	return nil
}

// Delete implements store.TaskStore
func (m *MockTaskStore) Delete(_ context.Context, userID, taskID uuid.UUID) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[taskID]
	if !ok || existing.UserID != userID {
		return store.ErrTaskNotFound
	}
	delete(m.tasks, taskID)
	return nil
}

// WithTx returns the same store; the mock has no transactions
func (m *MockTaskStore) WithTx(*sql.Tx) store.TaskStore {
	return m
}

// ordered returns the owner's tasks sorted by creation time then ID, the
// order the Postgres store returns them in.
func (m *MockTaskStore) ordered(userID uuid.UUID, activeOnly bool) []domain.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := []domain.Task{}
	for _, task := range m.tasks {
		if task.UserID != userID || (activeOnly && !task.IsActive()) {
			continue
		}
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID.String() < tasks[j].ID.String()
	})
	return tasks
}
