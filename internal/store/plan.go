package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/domain"
)

// PlanStore defines the interface for daily plan persistence.
// The store guarantees at most one record per (user, date).
type PlanStore interface {
	// Upsert creates the plan for (userID, date) with the given text, or
	// overwrites the text of the existing record and bumps its updated_at.
	// The returned plan carries the record's ID, which is stable across upserts.
	Upsert(ctx context.Context, userID uuid.UUID, date time.Time, text string) (*domain.DailyPlan, error)

	// UpdateText replaces the full text of the plan record and bumps updated_at.
	// Returns ErrPlanNotFound if the record does not exist.
	UpdateText(ctx context.Context, planID uuid.UUID, text string) error

	// GetLatestForUser returns the user's most recently created plan.
	// Returns ErrPlanNotFound if the user has none.
	GetLatestForUser(ctx context.Context, userID uuid.UUID) (*domain.DailyPlan, error)

	// GetForDate returns the user's plan for a calendar date.
	// Returns ErrPlanNotFound if there is none.
	GetForDate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.DailyPlan, error)

	// ListForUser returns all of the user's plans, newest date first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.DailyPlan, error)

	// WithTx returns a new PlanStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) PlanStore
}
