package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// PlaceholderText is written to a plan record before any generated text arrives.
const PlaceholderText = "Regenerating your daily plan..."

// PlanDateLayout is the wire format of plan dates.
const PlanDateLayout = "2006-01-02"

// Common validation errors for DailyPlan
var (
	ErrEmptyPlanID     = errors.New("plan ID cannot be empty")
	ErrEmptyPlanUserID = errors.New("plan user ID cannot be empty")
	ErrEmptyPlanDate   = errors.New("plan date cannot be empty")
)

// DailyPlan is the generated plan for one user on one calendar date.
// There is at most one DailyPlan per (UserID, Date).
type DailyPlan struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Date      time.Time `json:"date"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the DailyPlan has valid data.
func (p *DailyPlan) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyPlanID
	}

	if p.UserID == uuid.Nil {
		return ErrEmptyPlanUserID
	}

	if p.Date.IsZero() {
		return ErrEmptyPlanDate
	}

	return nil
}

// IsPlaceholder reports whether the plan still holds the placeholder text.
func (p *DailyPlan) IsPlaceholder() bool {
	return p.Plan == PlaceholderText
}

// PlanDate truncates t to its calendar date in t's own location and
// returns that date at midnight UTC, which is how plan dates are stored.
func PlanDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParsePlanDate parses a YYYY-MM-DD string into a plan date.
func ParsePlanDate(s string) (time.Time, error) {
	t, err := time.Parse(PlanDateLayout, s)
	if err != nil {
		return time.Time{}, NewValidationError("date", "must be formatted as YYYY-MM-DD", ErrInvalidFormat)
	}
	return t, nil
}
