package services

import (
	"context"
	"errors"

	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/aggregates/record"
)

// Persister writes candidates into the ledger without ever replacing a
// CORRECTED record.
type Persister struct {
	repo record.Repository
}

func NewPersister(repo record.Repository) *Persister {
	return &Persister{repo: repo}
}

// Upsert reports false, with a zero record, when the stored record for the
// candidate's key is protected.
func (p *Persister) Upsert(ctx context.Context, candidate record.Record) (record.Record, bool, error) {
	existing, err := p.repo.GetByKey(ctx, candidate.EmployeeID(), candidate.Date())
	switch {
	case errors.Is(err, record.ErrNotFound):
	case err != nil:
		return record.Record{}, false, mapPgErrorToPersistenceError(err, candidate.EmployeeID(), candidate.Date())
	case existing.Status() == record.StatusCorrected:
		return record.Record{}, false, nil
	}

	saved, ok, err := p.repo.Upsert(ctx, candidate)
	if err != nil {
		return record.Record{}, false, mapPgErrorToPersistenceError(err, candidate.EmployeeID(), candidate.Date())
	}
	if !ok {
		return record.Record{}, false, nil
	}
	return saved, true, nil
}
