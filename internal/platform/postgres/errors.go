package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/dayplan-api/internal/domain"
	"github.com/phrazzld/dayplan-api/internal/store"
)

// PostgreSQL error codes raised by the schema's constraints.
const (
	uniqueViolationCode  = "23505"
	checkViolationCode   = "23514"
	notNullViolationCode = "23502"
)

// planDateConstraint keeps one daily plan per owner and date.
const planDateConstraint = "uq_daily_plans_user_date"

// MapError translates a database error into store sentinels. Constraint
// violations on a column come back as a *domain.ValidationError naming the
// field, so callers can report which part of the entity was rejected.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case uniqueViolationCode:
		if pgErr.ConstraintName == planDateConstraint {
			return fmt.Errorf("%w: daily plan for this date", store.ErrDuplicate)
		}
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.ConstraintName)
	case checkViolationCode:
		field := checkConstraintField(pgErr)
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity,
			domain.NewValidationError(field, "is out of range", domain.ErrValidation))
	case notNullViolationCode:
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity,
			domain.NewValidationError(pgErr.ColumnName, "is required", domain.ErrValidation))
	}

	return err
}

// checkConstraintField recovers the column from Postgres' default check
// constraint name, "<table>_<column>_check".
func checkConstraintField(pgErr *pgconn.PgError) string {
	name := strings.TrimSuffix(pgErr.ConstraintName, "_check")
	if pgErr.TableName != "" {
		name = strings.TrimPrefix(name, pgErr.TableName+"_")
	}
	if name == "" {
		return pgErr.TableName
	}
	return name
}

// CheckRowsAffected returns notFound when an UPDATE or DELETE touched no rows.
func CheckRowsAffected(result sql.Result, notFound error) error {
	if result == nil {
		return errors.New("nil result provided to CheckRowsAffected")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if notFound == nil {
			return store.ErrNotFound
		}
		return notFound
	}

	return nil
}
