package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/aggregates/record"
	"github.com/jacksonlee411/attendance-sync/modules/attendance/infrastructure/persistence/models"
	"github.com/jacksonlee411/attendance-sync/pkg/composables"
	"github.com/jacksonlee411/attendance-sync/pkg/repo"
)

const recordColumns = `id, employee_id::text, employee_name, date, normal_hours, extra_hours,
	status, original_data, last_import_id, created_at, updated_at`

const (
	selectRecordByKeyQuery = `SELECT ` + recordColumns + `
	FROM attendance_records
	WHERE employee_id = $1 AND date = $2`

	// The conflict branch refuses to touch a CORRECTED row; no row is
	// returned in that case.
	upsertRecordQuery = `
	INSERT INTO attendance_records (
		employee_id, employee_name, date, normal_hours, extra_hours,
		status, original_data, last_import_id, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	ON CONFLICT (employee_id, date) DO UPDATE SET
		employee_name  = EXCLUDED.employee_name,
		normal_hours   = EXCLUDED.normal_hours,
		extra_hours    = EXCLUDED.extra_hours,
		status         = EXCLUDED.status,
		original_data  = EXCLUDED.original_data,
		last_import_id = EXCLUDED.last_import_id,
		updated_at     = now()
	WHERE attendance_records.status <> 'CORRECTED'
	RETURNING ` + recordColumns
)

type AttendanceRecordRepository struct{}

func NewAttendanceRecordRepository() record.Repository {
	return &AttendanceRecordRepository{}
}

func (r *AttendanceRecordRepository) GetByKey(ctx context.Context, employeeID string, date time.Time) (record.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return record.Record{}, err
	}

	row, err := scanRecord(tx.QueryRow(ctx, selectRecordByKeyQuery, employeeID, pgtype.Date{Time: record.DateOf(date), Valid: true}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record.Record{}, record.ErrNotFound
		}
		return record.Record{}, gerrors.Wrap(err, "select attendance record")
	}
	return toDomainRecord(row)
}

func (r *AttendanceRecordRepository) Upsert(ctx context.Context, rec record.Record) (record.Record, bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return record.Record{}, false, err
	}

	dbRow, err := toDBRecord(rec)
	if err != nil {
		return record.Record{}, false, err
	}

	row, err := scanRecord(tx.QueryRow(
		ctx,
		upsertRecordQuery,
		dbRow.EmployeeID,
		dbRow.EmployeeName,
		dbRow.Date,
		dbRow.NormalHours,
		dbRow.ExtraHours,
		dbRow.Status,
		dbRow.OriginalData,
		dbRow.LastImportID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record.Record{}, false, nil
		}
		return record.Record{}, false, gerrors.Wrap(err, "upsert attendance record")
	}

	saved, err := toDomainRecord(row)
	if err != nil {
		return record.Record{}, false, err
	}
	return saved, true, nil
}

func (r *AttendanceRecordRepository) List(ctx context.Context, params *record.FindParams) ([]record.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	where, args := buildRecordFilters(params)
	query := `SELECT ` + recordColumns + `
	FROM attendance_records
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY date, employee_name, employee_id`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, gerrors.Wrap(err, "list attendance records")
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		row, err := scanRecord(rows)
		if err != nil {
			return nil, gerrors.Wrap(err, "scan attendance record")
		}
		rec, err := toDomainRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, gerrors.Wrap(err, "iterate attendance records")
	}
	return out, nil
}

func scanRecord(row pgx.Row) (models.AttendanceRecord, error) {
	var m models.AttendanceRecord
	err := row.Scan(
		&m.ID,
		&m.EmployeeID,
		&m.EmployeeName,
		&m.Date,
		&m.NormalHours,
		&m.ExtraHours,
		&m.Status,
		&m.OriginalData,
		&m.LastImportID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

func buildRecordFilters(params *record.FindParams) ([]string, []any) {
	where := []string{"TRUE"}
	var args []any
	if params == nil {
		return where, args
	}

	next := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if len(params.EmployeeIDs) > 0 {
		next("employee_id::text = ANY($%d)", params.EmployeeIDs)
	}
	if !params.From.IsZero() {
		next("date >= $%d", pgtype.Date{Time: record.DateOf(params.From), Valid: true})
	}
	if !params.To.IsZero() {
		next("date <= $%d", pgtype.Date{Time: record.DateOf(params.To), Valid: true})
	}
	if len(params.Statuses) > 0 {
		statuses := make([]string, len(params.Statuses))
		for i, s := range params.Statuses {
			statuses[i] = string(s)
		}
		next("status = ANY($%d)", statuses)
	}
	if len(where) > 1 {
		where = where[1:]
	}
	return where, args
}
