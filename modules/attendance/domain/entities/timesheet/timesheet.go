// Package timesheet holds provider observations as handed to the importer.
package timesheet

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/value_objects/hours"
)

// RawHours is a payroll-hours value in provider units: either text or a
// plain number.
type RawHours struct {
	Text     string
	Number   float64
	IsNumber bool
}

func TextHours(s string) RawHours    { return RawHours{Text: s} }
func NumberHours(f float64) RawHours { return RawHours{Number: f, IsNumber: true} }
func (h RawHours) Present() bool     { return h.IsNumber || strings.TrimSpace(h.Text) != "" }

func (h RawHours) Parse() (decimal.Decimal, error) {
	if h.IsNumber {
		return hours.FromFloat(h.Number)
	}
	return hours.Parse(h.Text)
}

func (h RawHours) String() string {
	if h.IsNumber {
		return strconv.FormatFloat(h.Number, 'f', -1, 64)
	}
	return h.Text
}

// Daily is one day's observation. BadDate holds a provider date that could
// not be read; such a day is reported, not imported.
type Daily struct {
	Date         time.Time
	BadDate      string
	FirstIn      *time.Time
	LastOut      *time.Time
	PayrollHours RawHours
}

// Entry is one summary row for a person. Only the first daily sub-record is
// consumed by the importer.
type Entry struct {
	PersonID string
	Date     time.Time
	Daily    []Daily
}

// FirstDaily returns the first daily sub-record, if any.
func (e Entry) FirstDaily() (Daily, bool) {
	if len(e.Daily) == 0 {
		return Daily{}, false
	}
	return e.Daily[0], true
}
