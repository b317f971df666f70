package services

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func persistenceKind(err error) PersistenceKind {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return PersistenceOther
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		return PersistenceUnique
	case "23503": // foreign_key_violation
		return PersistenceForeignKey
	case "23514": // check_violation
		return PersistenceCheck
	case "23502": // not_null_violation
		return PersistenceNotNull
	default:
		return PersistenceOther
	}
}

func mapPgErrorToPersistenceError(err error, employeeID string, date time.Time) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	kind := persistenceKind(err)
	recordWriteFailure(kind)
	return &PersistenceError{Kind: kind, EmployeeID: employeeID, Date: date, Err: err}
}
