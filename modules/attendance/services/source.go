package services

import (
	"context"
	"time"

	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/entities/timesheet"
	"github.com/jacksonlee411/attendance-sync/pkg/jibble"
)

// TimesheetSource yields provider observations for one employee over an
// inclusive date range.
type TimesheetSource interface {
	FetchTimesheets(ctx context.Context, employeeID string, start, end time.Time) ([]timesheet.Entry, error)
}

type jibbleClient interface {
	FetchTimesheets(ctx context.Context, q jibble.TimesheetQuery) ([]jibble.TimesheetSummary, error)
}

// JibbleSource adapts the Jibble client. Provider errors are returned as is.
type JibbleSource struct {
	client jibbleClient
}

func NewJibbleSource(client jibbleClient) *JibbleSource {
	return &JibbleSource{client: client}
}

func (s *JibbleSource) FetchTimesheets(ctx context.Context, employeeID string, start, end time.Time) ([]timesheet.Entry, error) {
	summaries, err := s.client.FetchTimesheets(ctx, jibble.TimesheetQuery{
		PersonID: employeeID,
		From:     start,
		To:       end,
	})
	if err != nil {
		return nil, err
	}
	entries := make([]timesheet.Entry, 0, len(summaries))
	for _, sm := range summaries {
		entries = append(entries, toEntry(sm))
	}
	return entries, nil
}

func toEntry(sm jibble.TimesheetSummary) timesheet.Entry {
	e := timesheet.Entry{PersonID: sm.PersonID, Date: sm.Date.Time}
	if len(sm.Daily) > 0 {
		e.Daily = make([]timesheet.Daily, 0, len(sm.Daily))
	}
	for _, d := range sm.Daily {
		day := timesheet.Daily{
			Date:    d.Date.Time,
			FirstIn: d.FirstIn,
			LastOut: d.LastOut,
		}
		switch {
		case d.Date.Malformed():
			day.BadDate = d.Date.Raw
			day.Date = sm.Date.Time
		case day.Date.IsZero():
			day.Date = sm.Date.Time
			if sm.Date.Malformed() {
				day.BadDate = sm.Date.Raw
			}
		}
		switch {
		case !d.PayrollHours.Valid:
		case d.PayrollHours.IsNumber:
			day.PayrollHours = timesheet.NumberHours(d.PayrollHours.Number)
		default:
			day.PayrollHours = timesheet.TextHours(d.PayrollHours.Text)
		}
		e.Daily = append(e.Daily, day)
	}
	return e
}
