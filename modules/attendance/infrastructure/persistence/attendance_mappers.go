package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/aggregates/record"
	"github.com/jacksonlee411/attendance-sync/modules/attendance/infrastructure/persistence/models"
)

func toDBRecord(r record.Record) (models.AttendanceRecord, error) {
	original, err := json.Marshal(r.OriginalData())
	if err != nil {
		return models.AttendanceRecord{}, fmt.Errorf("encode original_data: %w", err)
	}
	row := models.AttendanceRecord{
		EmployeeID:   r.EmployeeID(),
		EmployeeName: r.EmployeeName(),
		Date:         pgtype.Date{Time: record.DateOf(r.Date()), Valid: true},
		NormalHours:  numericFromDecimal(r.NormalHours()),
		ExtraHours:   numericFromDecimal(r.ExtraHours()),
		Status:       string(r.Status()),
		OriginalData: original,
		CreatedAt:    r.CreatedAt(),
		UpdatedAt:    r.UpdatedAt(),
	}
	if r.ID() != uuid.Nil {
		row.ID = pgtype.UUID{Bytes: r.ID(), Valid: true}
	}
	if r.LastImportID() != uuid.Nil {
		row.LastImportID = pgtype.UUID{Bytes: r.LastImportID(), Valid: true}
	}
	return row, nil
}

func toDomainRecord(row models.AttendanceRecord) (record.Record, error) {
	normal, err := decimalFromNumeric(row.NormalHours)
	if err != nil {
		return record.Record{}, fmt.Errorf("normal_hours: %w", err)
	}
	extra, err := decimalFromNumeric(row.ExtraHours)
	if err != nil {
		return record.Record{}, fmt.Errorf("extra_hours: %w", err)
	}
	status, err := record.ParseStatus(row.Status)
	if err != nil {
		return record.Record{}, err
	}

	var original record.OriginalData
	if len(row.OriginalData) > 0 {
		if err := json.Unmarshal(row.OriginalData, &original); err != nil {
			return record.Record{}, fmt.Errorf("decode original_data: %w", err)
		}
	}

	var date time.Time
	if row.Date.Valid {
		date = record.DateOf(row.Date.Time)
	}

	return record.Hydrate(
		uuidFromPg(row.ID),
		row.EmployeeID,
		row.EmployeeName,
		date,
		normal,
		extra,
		status,
		original,
		uuidFromPg(row.LastImportID),
		row.CreatedAt,
		row.UpdatedAt,
	), nil
}

func uuidFromPg(v pgtype.UUID) uuid.UUID {
	if !v.Valid {
		return uuid.Nil
	}
	return uuid.UUID(v.Bytes)
}

func numericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

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
