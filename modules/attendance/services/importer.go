package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/aggregates/record"
	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/entities/timesheet"
	"github.com/jacksonlee411/attendance-sync/modules/hrm/domain/aggregates/employee"
	"github.com/jacksonlee411/attendance-sync/pkg/constants"
	"github.com/jacksonlee411/attendance-sync/pkg/jibble"
	"github.com/jacksonlee411/attendance-sync/pkg/logging"
)

var tracer = otel.Tracer("github.com/jacksonlee411/attendance-sync/modules/attendance/services")

const defaultDayConcurrency = 8

// EmployeeImport is what one employee contributed to a run. Records keep the
// provider's order; protected days are counted but not listed.
type EmployeeImport struct {
	Employee  employee.Employee
	Records   []record.Record
	Issues    []DayIssue
	Protected int
}

type Importer struct {
	source         TimesheetSource
	persister      *Persister
	dayConcurrency int
	newID          func() uuid.UUID
	log            *logrus.Logger
}

type ImporterOption func(*Importer)

// WithDayConcurrency bounds how many days of one employee are written at once.
func WithDayConcurrency(n int) ImporterOption {
	return func(i *Importer) {
		if n > 0 {
			i.dayConcurrency = n
		}
	}
}

func WithImporterLogger(log *logrus.Logger) ImporterOption {
	return func(i *Importer) {
		if log != nil {
			i.log = log
		}
	}
}

func withIDGenerator(fn func() uuid.UUID) ImporterOption {
	return func(i *Importer) { i.newID = fn }
}

func NewImporter(source TimesheetSource, persister *Persister, opts ...ImporterOption) *Importer {
	i := &Importer{
		source:         source,
		persister:      persister,
		dayConcurrency: defaultDayConcurrency,
		newID:          uuid.New,
		log:            logging.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type dayOutcome struct {
	rec       record.Record
	written   bool
	protected bool
	issue     *DayIssue
}

// ImportForEmployee pulls the employee's timesheets over [start, end] and
// writes one record per day. Day failures are reported in Issues. A provider
// failure returns *ExternalFetchError; an undecodable or empty payload yields
// an empty import.
func (i *Importer) ImportForEmployee(ctx context.Context, emp employee.Employee, start, end time.Time) (*EmployeeImport, error) {
	ctx, span := tracer.Start(ctx, "attendance.ImportForEmployee")
	defer span.End()
	span.SetAttributes(
		attribute.String("attendance.employee_id", emp.ID()),
		attribute.String("attendance.start", start.Format(constants.DateLayout)),
		attribute.String("attendance.end", end.Format(constants.DateLayout)),
	)

	log := i.log.WithField("employee_id", emp.ID())
	out := &EmployeeImport{Employee: emp}

	entries, err := i.source.FetchTimesheets(ctx, emp.ID(), start, end)
	if err != nil {
		var decodeErr *jibble.DecodeError
		if errors.As(err, &decodeErr) {
			log.WithError(err).Warn("undecodable timesheet payload, nothing imported")
			return out, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &ExternalFetchError{EmployeeID: emp.ID(), Err: err}
	}
	if len(entries) == 0 {
		log.Debug("no timesheets in period")
		return out, nil
	}

	outcomes := make([]dayOutcome, len(entries))
	g := new(errgroup.Group)
	g.SetLimit(i.dayConcurrency)
	for idx, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[idx] = i.importDay(ctx, emp, entry)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		switch {
		case o.issue != nil:
			recordDayIssue(o.issue.Kind)
			log.WithFields(logrus.Fields{
				"date": o.issue.Date.Format(constants.DateLayout),
				"kind": o.issue.Kind,
			}).Warn(o.issue.Message)
			out.Issues = append(out.Issues, *o.issue)
		case o.protected:
			recordRecord("protected")
			out.Protected++
		case o.written:
			recordRecord("written")
			out.Records = append(out.Records, o.rec)
		}
	}
	span.SetAttributes(
		attribute.Int("attendance.records", len(out.Records)),
		attribute.Int("attendance.issues", len(out.Issues)),
		attribute.Int("attendance.protected", out.Protected),
	)

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (i *Importer) importDay(ctx context.Context, emp employee.Employee, entry timesheet.Entry) dayOutcome {
	daily, ok := entry.FirstDaily()
	if !ok {
		return dayOutcome{}
	}
	if ctx.Err() != nil {
		return dayOutcome{}
	}
	date := daily.Date
	if date.IsZero() {
		date = entry.Date
	}
	date = record.DateOf(date)

	if daily.BadDate != "" {
		issue := newDayIssue(emp.ID(), date, IssueParse, fmt.Errorf("%w %q", errMalformedDate, daily.BadDate))
		return dayOutcome{issue: &issue}
	}
	if !daily.PayrollHours.Present() {
		issue := newDayIssue(emp.ID(), date, IssueMissingHours, errMissingHours)
		return dayOutcome{issue: &issue}
	}

	total, err := daily.PayrollHours.Parse()
	if err != nil {
		issue := newDayIssue(emp.ID(), date, IssueParse, err)
		return dayOutcome{issue: &issue}
	}

	candidate := record.New(
		emp.ID(),
		emp.DisplayName(),
		date,
		total,
		emp.MinHours(),
		record.OriginalData{StartTime: daily.FirstIn, EndTime: daily.LastOut, Source: record.SourceJibble},
		i.newID(),
	)
	if err := record.Validate(candidate); err != nil {
		issue := newDayIssue(emp.ID(), date, IssueValidation, err)
		return dayOutcome{issue: &issue}
	}

	saved, written, err := i.persister.Upsert(ctx, candidate)
	if err != nil {
		if ctx.Err() != nil {
			return dayOutcome{}
		}
		issue := newDayIssue(emp.ID(), date, IssuePersistence, err)
		return dayOutcome{issue: &issue}
	}
	if !written {
		return dayOutcome{protected: true}
	}
	return dayOutcome{rec: saved, written: true}
}
