package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nextoral/backend/internal/apperr"
)

// MapError converts pgx errors into apperr kinds. entity names the record for messages.
// Errors that are not recognised are wrapped unchanged.
func MapError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity + " not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, apperr.Conflict(entity+" already exists"))
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, apperr.NotFound(entity+" references a missing record"))
		case pgerrcode.CheckViolation, pgerrcode.NotNullViolation, pgerrcode.InvalidTextRepresentation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, apperr.Validation("invalid "+entity))
		}
	}
	return fmt.Errorf("%s: %w", entity, err)
}
