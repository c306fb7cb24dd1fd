package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/domain"
	"github.com/phrazzld/dayplan-api/internal/store"
)

type planKey struct {
	userID uuid.UUID
	date   time.Time
}

// MockPlanStore is an in-memory store.PlanStore that keeps one record per
// (user, date) and remembers every text written to each record.
type MockPlanStore struct {
	// UpsertFn and UpdateTextFn, when set, run before the default behaviour;
	// a non-nil error is returned without touching the stored data.
	UpsertFn     func(ctx context.Context, userID uuid.UUID, date time.Time, text string) error
	UpdateTextFn func(ctx context.Context, planID uuid.UUID, text string) error

	mu      sync.RWMutex
	byKey   map[planKey]uuid.UUID
	plans   map[uuid.UUID]domain.DailyPlan
	history map[uuid.UUID][]string
	seq     time.Duration
}

// NewMockPlanStore creates an empty MockPlanStore
func NewMockPlanStore() *MockPlanStore {
	return &MockPlanStore{
		byKey:   make(map[planKey]uuid.UUID),
		plans:   make(map[uuid.UUID]domain.DailyPlan),
		history: make(map[uuid.UUID][]string),
	}
}

var _ store.PlanStore = (*MockPlanStore)(nil)

// tick returns strictly increasing timestamps so creation order is observable.
func (m *MockPlanStore) tick() time.Time {
	m.seq += time.Millisecond
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(m.seq)
}

// Upsert implements store.PlanStore
func (m *MockPlanStore) Upsert(ctx context.Context, userID uuid.UUID, date time.Time, text string) (*domain.DailyPlan, error) {
	if m.UpsertFn != nil {
		if err := m.UpsertFn(ctx, userID, date, text); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := planKey{userID: userID, date: domain.PlanDate(date)}
	now := m.tick()

	id, ok := m.byKey[key]
	if !ok {
		id = uuid.New()
		m.byKey[key] = id
		m.plans[id] = domain.DailyPlan{ID: id, UserID: userID, Date: key.date, CreatedAt: now}
	}

	plan := m.plans[id]
	plan.Plan = text
	plan.UpdatedAt = now
	m.plans[id] = plan
	m.history[id] = append(m.history[id], text)
	return &plan, nil
}

// UpdateText implements store.PlanStore
func (m *MockPlanStore) UpdateText(ctx context.Context, planID uuid.UUID, text string) error {
	if m.UpdateTextFn != nil {
		if err := m.UpdateTextFn(ctx, planID, text); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	plan, ok := m.plans[planID]
	if !ok {
		return store.ErrPlanNotFound
	}
	plan.Plan = text
	plan.UpdatedAt = m.tick()
	m.plans[planID] = plan
	m.history[planID] = append(m.history[planID], text)
	return nil
}

// GetLatestForUser implements store.PlanStore
func (m *MockPlanStore) GetLatestForUser(_ context.Context, userID uuid.UUID) (*domain.DailyPlan, error) {
	plans := m.forUser(userID)
	if len(plans) == 0 {
		return nil, store.ErrPlanNotFound
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CreatedAt.After(plans[j].CreatedAt) })
	return plans[0], nil
}

// GetForDate implements store.PlanStore
func (m *MockPlanStore) GetForDate(_ context.Context, userID uuid.UUID, date time.Time) (*domain.DailyPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[planKey{userID: userID, date: domain.PlanDate(date)}]
	if !ok {
		return nil, store.ErrPlanNotFound
	}
	plan := m.plans[id]
	return &plan, nil
}

// ListForUser implements store.PlanStore
func (m *MockPlanStore) ListForUser(_ context.Context, userID uuid.UUID) ([]*domain.DailyPlan, error) {
	plans := m.forUser(userID)
	sort.Slice(plans, func(i, j int) bool { return plans[i].Date.After(plans[j].Date) })
	return plans, nil
}

// WithTx returns the same store; the mock has no transactions
func (m *MockPlanStore) WithTx(*sql.Tx) store.PlanStore {
	return m
}

// Count returns the number of stored plans
func (m *MockPlanStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plans)
}

// History returns every text written to planID, oldest first
func (m *MockPlanStore) History(planID uuid.UUID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.history[planID]...)
}

// Plan returns the current state of planID
func (m *MockPlanStore) Plan(planID uuid.UUID) (domain.DailyPlan, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plan, ok := m.plans[planID]
	return plan, ok
}

func (m *MockPlanStore) forUser(userID uuid.UUID) []*domain.DailyPlan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plans := []*domain.DailyPlan{}
	for _, plan := range m.plans {
		if plan.UserID == userID {
			p := plan
			plans = append(plans, &p)
		}
	}
	return plans
}
