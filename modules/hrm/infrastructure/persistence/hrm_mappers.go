package persistence

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/jacksonlee411/attendance-sync/modules/hrm/domain/aggregates/employee"
	"github.com/jacksonlee411/attendance-sync/modules/hrm/infrastructure/persistence/models"
)

func toDomainEmployee(row models.Employee) (employee.Employee, error) {
	minHours, err := decimalFromNumeric(row.MinHours)
	if err != nil {
		return employee.Employee{}, fmt.Errorf("employee %s: min_hours: %w", row.ID, err)
	}
	return employee.New(row.ID, row.FirstName, row.LastName, minHours), nil
}

// decimalFromNumeric treats NULL as zero. NaN and infinities are rejected.
func decimalFromNumeric(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, fmt.Errorf("non-finite numeric")
	}
	if n.Int == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}
