package record

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("attendance record not found")

type FindParams struct {
	EmployeeIDs []string
	From        time.Time
	To          time.Time
	Statuses    []Status
	Limit       int
	Offset      int
}

type Repository interface {
	// GetByKey returns ErrNotFound when no record exists for the key.
	GetByKey(ctx context.Context, employeeID string, date time.Time) (Record, error)
	// Upsert inserts r or replaces the record at its key. It reports false,
	// without writing, when the stored record is CORRECTED.
	Upsert(ctx context.Context, r Record) (Record, bool, error)
	List(ctx context.Context, params *FindParams) ([]Record, error)
}
