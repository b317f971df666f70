package record

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const SourceJibble = "JIBBLE"

// OriginalData is the provider observation a record was derived from.
type OriginalData struct {
	StartTime  *time.Time      `json:"startTime,omitempty"`
	EndTime    *time.Time      `json:"endTime,omitempty"`
	TotalHours decimal.Decimal `json:"totalHours"`
	Source     string          `json:"source"`
}

// Record is one employee-day in the attendance ledger, unique on
// (employeeID, date).
type Record struct {
	id           uuid.UUID
	employeeID   string
	employeeName string
	date         time.Time
	normalHours  decimal.Decimal
	extraHours   decimal.Decimal
	status       Status
	original     OriginalData
	lastImportID uuid.UUID
	createdAt    time.Time
	updatedAt    time.Time
}

// New derives a candidate record from an observed total: hours are split
// against minHours and the status is classified.
func New(
	employeeID string,
	employeeName string,
	date time.Time,
	total decimal.Decimal,
	minHours decimal.Decimal,
	original OriginalData,
	importID uuid.UUID,
) Record {
	normal, extra := SplitHours(total, minHours)
	original.TotalHours = total
	return Record{
		employeeID:   employeeID,
		employeeName: employeeName,
		date:         DateOf(date),
		normalHours:  normal,
		extraHours:   extra,
		status:       Classify(total, minHours),
		original:     original,
		lastImportID: importID,
	}
}

func Hydrate(
	id uuid.UUID,
	employeeID string,
	employeeName string,
	date time.Time,
	normalHours decimal.Decimal,
	extraHours decimal.Decimal,
	status Status,
	original OriginalData,
	lastImportID uuid.UUID,
	createdAt time.Time,
	updatedAt time.Time,
) Record {
	return Record{
		id:           id,
		employeeID:   employeeID,
		employeeName: employeeName,
		date:         date,
		normalHours:  normalHours,
		extraHours:   extraHours,
		status:       status,
		original:     original,
		lastImportID: lastImportID,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (r Record) ID() uuid.UUID                { return r.id }
func (r Record) EmployeeID() string           { return r.employeeID }
func (r Record) EmployeeName() string         { return r.employeeName }
func (r Record) Date() time.Time              { return r.date }
func (r Record) NormalHours() decimal.Decimal { return r.normalHours }
func (r Record) ExtraHours() decimal.Decimal  { return r.extraHours }
func (r Record) Status() Status               { return r.status }
func (r Record) OriginalData() OriginalData   { return r.original }
func (r Record) LastImportID() uuid.UUID      { return r.lastImportID }
func (r Record) CreatedAt() time.Time         { return r.createdAt }
func (r Record) UpdatedAt() time.Time         { return r.updatedAt }
func (r Record) IsZero() bool                 { return r.id == uuid.Nil && r.employeeID == "" }

// TotalHours is normal plus extra.
func (r Record) TotalHours() decimal.Decimal { return r.normalHours.Add(r.extraHours) }

// WithStatus returns a copy carrying status. Used by operators marking a
// record as corrected.
func (r Record) WithStatus(status Status) Record {
	r.status = status
	return r
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
