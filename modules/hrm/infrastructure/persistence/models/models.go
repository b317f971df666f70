package models

import "github.com/jackc/pgx/v5/pgtype"

type Employee struct {
	ID        string
	FirstName string
	LastName  string
	MinHours  pgtype.Numeric
}
