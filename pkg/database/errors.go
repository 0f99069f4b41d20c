package database

import (
	"database/sql"
	stderrors "errors"

	"github.com/lib/pq"

	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// unique_violation
	case "23505":
		return errors.Conflict("a record with this id already exists in " + pqErr.Table)

	// check_violation
	case "23514":
		return errors.BadRequest("data validation failed: " + pqErr.Constraint)

	// not_null_violation
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// invalid_text_representation, e.g. malformed jsonb
	case "22P02":
		return errors.BadRequest("malformed record")

	default:
		return nil
	}
}

// IsNoRows reports whether err is sql.ErrNoRows
func IsNoRows(err error) bool {
	return stderrors.Is(err, sql.ErrNoRows)
}
