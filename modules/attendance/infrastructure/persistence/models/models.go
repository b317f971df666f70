package models

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type AttendanceRecord struct {
	ID           pgtype.UUID
	EmployeeID   string
	EmployeeName string
	Date         pgtype.Date
	NormalHours  pgtype.Numeric
	ExtraHours   pgtype.Numeric
	Status       string
	OriginalData []byte
	LastImportID pgtype.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
