package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/domain"
	"github.com/phrazzld/dayplan-api/internal/platform/logger"
	"github.com/phrazzld/dayplan-api/internal/store"
)

const planColumns = `id, user_id, plan_date, plan, created_at, updated_at`

// PostgresPlanStore implements the store.PlanStore interface
// using a PostgreSQL database as the storage backend.
type PostgresPlanStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresPlanStore creates a new PostgreSQL implementation of the PlanStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresPlanStore(db store.DBTX, logger *slog.Logger) *PostgresPlanStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresPlanStore{
		db:     db,
		logger: logger.With(slog.String("component", "plan_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ensure PostgresPlanStore implements store.PlanStore interface
var _ store.PlanStore = (*PostgresPlanStore)(nil)

// WithTx implements store.PlanStore.WithTx
func (s *PostgresPlanStore) WithTx(tx *sql.Tx) store.PlanStore {
	return &PostgresPlanStore{db: tx, logger: s.logger, now: s.now}
}

// Upsert implements store.PlanStore.Upsert. The unique (user_id, plan_date)
// constraint makes concurrent upserts for the same key converge on one row.
func (s *PostgresPlanStore) Upsert(
	ctx context.Context,
	userID uuid.UUID,
	date time.Time,
	text string,
) (*domain.DailyPlan, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	planDate := domain.PlanDate(date)
	now := s.now()

	query := `
		INSERT INTO daily_plans (` + planColumns + `)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, plan_date)
		DO UPDATE SET plan = EXCLUDED.plan, updated_at = EXCLUDED.updated_at
		RETURNING ` + planColumns

	plan, err := scanPlan(s.db.QueryRowContext(ctx, query, uuid.New(), userID, planDate, text, now))
	if err != nil {
		log.Error("failed to upsert daily plan",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("plan_date", planDate.Format(domain.PlanDateLayout)))
		return nil, store.NewStoreError("daily_plan", "upsert", "failed to upsert plan", MapError(err))
	}

	log.Debug("daily plan upserted",
		slog.String("plan_id", plan.ID.String()),
		slog.String("plan_date", planDate.Format(domain.PlanDateLayout)))
	return plan, nil
}

// UpdateText implements store.PlanStore.UpdateText
func (s *PostgresPlanStore) UpdateText(ctx context.Context, planID uuid.UUID, text string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`UPDATE daily_plans SET plan = $1, updated_at = $2 WHERE id = $3`,
		text, s.now(), planID)
	if err != nil {
		log.Error("failed to update plan text",
			slog.String("error", err.Error()),
			slog.String("plan_id", planID.String()))
		return store.NewStoreError("daily_plan", "update", "failed to update plan text", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrPlanNotFound)
}

// GetLatestForUser implements store.PlanStore.GetLatestForUser
func (s *PostgresPlanStore) GetLatestForUser(ctx context.Context, userID uuid.UUID) (*domain.DailyPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM daily_plans
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return s.getOne(ctx, "get_latest", query, userID)
}

// GetForDate implements store.PlanStore.GetForDate
func (s *PostgresPlanStore) GetForDate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.DailyPlan, error) {
	query := `SELECT ` + planColumns + ` FROM daily_plans WHERE user_id = $1 AND plan_date = $2`
	return s.getOne(ctx, "get_for_date", query, userID, domain.PlanDate(date))
}

// ListForUser implements store.PlanStore.ListForUser
func (s *PostgresPlanStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.DailyPlan, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + planColumns + `
		FROM daily_plans
		WHERE user_id = $1
		ORDER BY plan_date DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to list daily plans",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, store.NewStoreError("daily_plan", "list", "failed to query plans", err)
	}
	defer func() { _ = rows.Close() }()

	plans := []*domain.DailyPlan{}
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, store.NewStoreError("daily_plan", "list", "failed to scan plan row", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("daily_plan", "list", "error iterating plan rows", err)
	}

	return plans, nil
}

func (s *PostgresPlanStore) getOne(ctx context.Context, op, query string, args ...any) (*domain.DailyPlan, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	plan, err := scanPlan(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPlanNotFound
		}
		log.Error("failed to query daily plan",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("daily_plan", op, "failed to query plan", err)
	}
	return plan, nil
}

func scanPlan(row rowScanner) (*domain.DailyPlan, error) {
	var plan domain.DailyPlan
	if err := row.Scan(
		&plan.ID,
		&plan.UserID,
		&plan.Date,
		&plan.Plan,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	); err != nil {
		return nil, err
	}
	plan.Date = domain.PlanDate(plan.Date)
	return &plan, nil
}
