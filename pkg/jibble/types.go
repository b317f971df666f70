package jibble

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// list is the OData collection envelope.
type list[T any] struct {
	Value []T `json:"value"`
}

// Date is a calendar date. It decodes "2006-01-02" as well as full RFC 3339
// timestamps, keeping the date part. A value that is not a date leaves Time
// zero and keeps the raw token in Raw, so one bad row does not fail the
// whole response.
type Date struct {
	time.Time
	Raw string
}

func (d *Date) UnmarshalJSON(b []byte) error {
	*d = Date{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		d.Raw = string(b)
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	day := s
	if len(day) > len(dateLayout) {
		day = day[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, day)
	if err != nil {
		d.Raw = s
		return nil
	}
	d.Time = t
	return nil
}

// Malformed reports a value that was present but not a date.
func (d Date) Malformed() bool {
	return d.Time.IsZero() && d.Raw != ""
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// Hours holds a payroll-hours value as sent by the provider, which may be an
// ISO-8601 duration, "HH:MM" text or a bare number. Any other token is kept
// verbatim in Text and left for the hours parser to reject.
type Hours struct {
	Text     string
	Number   float64
	IsNumber bool
	Valid    bool
}

func (h *Hours) UnmarshalJSON(b []byte) error {
	*h = Hours{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("hours: %w", err)
		}
		h.Text = s
		h.Valid = strings.TrimSpace(s) != ""
		return nil
	}
	h.Valid = true
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		h.Text = string(b)
		return nil
	}
	h.Number = f
	h.IsNumber = true
	return nil
}

func (h Hours) MarshalJSON() ([]byte, error) {
	switch {
	case !h.Valid:
		return []byte("null"), nil
	case h.IsNumber:
		return json.Marshal(h.Number)
	default:
		return json.Marshal(h.Text)
	}
}

type DailySummary struct {
	Date         Date       `json:"date"`
	FirstIn      *time.Time `json:"firstIn"`
	LastOut      *time.Time `json:"lastOut"`
	PayrollHours Hours      `json:"payrollHours"`
}

type TimesheetSummary struct {
	PersonID string         `json:"personId"`
	Date     Date           `json:"date"`
	Daily    []DailySummary `json:"daily"`
}

type Person struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Status   string `json:"status"`
}
