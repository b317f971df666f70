package persistence

import (
	"context"

	gerrors "github.com/go-faster/errors"

	"github.com/jacksonlee411/attendance-sync/modules/hrm/domain/aggregates/employee"
	"github.com/jacksonlee411/attendance-sync/modules/hrm/infrastructure/persistence/models"
	"github.com/jacksonlee411/attendance-sync/pkg/composables"
)

const selectEmployeesByIDs = `
	SELECT id::text, first_name, last_name, min_hours
	FROM employees
	WHERE id::text = ANY($1)
	ORDER BY last_name, first_name, id`

type EmployeeRepository struct{}

func NewEmployeeRepository() employee.Repository {
	return &EmployeeRepository{}
}

func (r *EmployeeRepository) GetByIDs(ctx context.Context, ids []string) ([]employee.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, selectEmployeesByIDs, ids)
	if err != nil {
		return nil, gerrors.Wrap(err, "query employees")
	}
	defer rows.Close()

	out := make([]employee.Employee, 0, len(ids))
	for rows.Next() {
		var row models.Employee
		if err := rows.Scan(&row.ID, &row.FirstName, &row.LastName, &row.MinHours); err != nil {
			return nil, gerrors.Wrap(err, "scan employee")
		}
		e, err := toDomainEmployee(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, gerrors.Wrap(err, "iterate employees")
	}
	return out, nil
}
