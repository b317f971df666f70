package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/aggregates/record"
	"github.com/jacksonlee411/attendance-sync/modules/attendance/services/progress"
	"github.com/jacksonlee411/attendance-sync/modules/hrm/domain/aggregates/employee"
	hrmservices "github.com/jacksonlee411/attendance-sync/modules/hrm/services"
	"github.com/jacksonlee411/attendance-sync/pkg/constants"
	"github.com/jacksonlee411/attendance-sync/pkg/logging"
)

const (
	DefaultBatchSize = 50
	DefaultWorkers   = 4
)

var ErrInvalidPeriod = errors.New("period end is before its start")

type employeeResolver interface {
	GetByIDs(ctx context.Context, ids []string) ([]employee.Employee, error)
}

type employeeImporter interface {
	ImportForEmployee(ctx context.Context, emp employee.Employee, start, end time.Time) (*EmployeeImport, error)
}

// Result summarizes one run. Records of one employee are contiguous.
type Result struct {
	RunID      uuid.UUID
	Records    []record.Record
	Failures   []EmployeeFailure
	Issues     []DayIssue
	Protected  int
	StartedAt  time.Time
	FinishedAt time.Time
}

type OrchestratorOptions struct {
	BatchSize int
	Workers   int
	Logger    *logrus.Logger
}

type Orchestrator struct {
	employees employeeResolver
	importer  employeeImporter
	batchSize int
	workers   int
	log       *logrus.Logger
	now       func() time.Time
}

func NewOrchestrator(employees employeeResolver, importer employeeImporter, opts OrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		employees: employees,
		importer:  importer,
		batchSize: opts.BatchSize,
		workers:   opts.Workers,
		log:       opts.Logger,
		now:       time.Now,
	}
	if o.batchSize <= 0 {
		o.batchSize = DefaultBatchSize
	}
	if o.workers <= 0 {
		o.workers = DefaultWorkers
	}
	if o.log == nil {
		o.log = logging.Nop()
	}
	return o
}

type employeeOutcome struct {
	emp     employee.Employee
	res     *EmployeeImport
	err     error
	skipped bool
	// drained is an employee cut short by the run's cancellation.
	drained bool
}

// ImportForPeriod imports every listed employee over [start, end]. Employees
// are processed in batches; a batch finishes before the next one starts.
// tracker may be nil and is only ever updated from the calling goroutine.
//
// Failing employees are reported in Result.Failures and do not stop the run.
// On cancellation the partial result is returned with an error wrapping both
// ErrCanceled and ctx.Err().
func (o *Orchestrator) ImportForPeriod(
	ctx context.Context,
	start, end time.Time,
	employeeIDs []string,
	tracker *progress.Tracker,
) (*Result, error) {
	ctx, span := tracer.Start(ctx, "attendance.ImportForPeriod")
	defer span.End()

	if tracker == nil {
		tracker = progress.NewTracker(nil)
	}
	result := &Result{RunID: uuid.New(), StartedAt: o.now()}
	log := o.log.WithFields(logrus.Fields{
		"run_id": result.RunID.String(),
		"start":  start.Format(constants.DateLayout),
		"end":    end.Format(constants.DateLayout),
	})
	span.SetAttributes(
		attribute.String("attendance.run_id", result.RunID.String()),
		attribute.String("attendance.start", start.Format(constants.DateLayout)),
		attribute.String("attendance.end", end.Format(constants.DateLayout)),
	)

	fail := func(err error) (*Result, error) {
		result.FinishedAt = o.now()
		tracker.Fail(err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observeRun("error", result.FinishedAt.Sub(result.StartedAt).Seconds())
		log.WithError(err).Error("attendance import failed")
		return result, err
	}

	if end.Before(start) {
		return fail(ErrInvalidPeriod)
	}
	ids := hrmservices.NormalizeIDs(employeeIDs)
	if len(ids) == 0 {
		return fail(ErrNoEmployeeFilter)
	}
	emps, err := o.employees.GetByIDs(ctx, ids)
	if err != nil {
		return fail(gerrors.Wrap(err, "resolve employees"))
	}
	if len(emps) == 0 {
		return fail(&NoEmployeesFoundError{IDs: ids})
	}

	span.SetAttributes(attribute.Int("attendance.employees", len(emps)))
	log.WithField("employees", len(emps)).Info("attendance import started")
	tracker.Start(len(emps))

	for from := 0; from < len(emps); from += o.batchSize {
		to := min(from+o.batchSize, len(emps))
		o.runBatch(ctx, emps[from:to], start, end, result, tracker, log)
		if ctx.Err() != nil {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		result.FinishedAt = o.now()
		tracker.Fail(ErrCanceled.Error())
		span.SetStatus(codes.Error, ErrCanceled.Error())
		observeRun("canceled", result.FinishedAt.Sub(result.StartedAt).Seconds())
		log.WithField("records", len(result.Records)).Warn("attendance import canceled")
		return result, fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	result.FinishedAt = o.now()
	tracker.Complete(fmt.Sprintf("Import completed: %d records", len(result.Records)))
	span.SetAttributes(
		attribute.Int("attendance.records", len(result.Records)),
		attribute.Int("attendance.failures", len(result.Failures)),
	)
	observeRun("completed", result.FinishedAt.Sub(result.StartedAt).Seconds())
	log.WithFields(logrus.Fields{
		"records":   len(result.Records),
		"failures":  len(result.Failures),
		"issues":    len(result.Issues),
		"protected": result.Protected,
	}).Info("attendance import completed")
	return result, nil
}

// runBatch feeds batch to a bounded pool of workers and folds their outcomes
// into result as they arrive. No employee is dispatched once ctx is done;
// already running ones are drained.
func (o *Orchestrator) runBatch(
	ctx context.Context,
	batch []employee.Employee,
	start, end time.Time,
	result *Result,
	tracker *progress.Tracker,
	log *logrus.Entry,
) {
	jobs := make(chan employee.Employee)
	outcomes := make(chan employeeOutcome, len(batch))

	var wg sync.WaitGroup
	for range min(o.workers, len(batch)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for emp := range jobs {
				if ctx.Err() != nil {
					outcomes <- employeeOutcome{emp: emp, skipped: true}
					continue
				}
				outcomes <- o.importOne(ctx, emp, start, end)
			}
		}()
	}

	next, pending := 0, 0
	for {
		var send chan employee.Employee
		var done <-chan struct{}
		if next < len(batch) && ctx.Err() == nil {
			send = jobs
			done = ctx.Done()
		}
		if send == nil && pending == 0 {
			break
		}
		var emp employee.Employee
		if send != nil {
			emp = batch[next]
		}
		select {
		case send <- emp:
			next++
			pending++
		case out := <-outcomes:
			pending--
			o.collect(out, result, tracker, log)
		case <-done:
		}
	}
	close(jobs)
	wg.Wait()
}

func (o *Orchestrator) importOne(ctx context.Context, emp employee.Employee, start, end time.Time) (out employeeOutcome) {
	out.emp = emp
	defer func() {
		if r := recover(); r != nil {
			out.res = nil
			out.err = fmt.Errorf("import panicked: %v", r)
		}
	}()
	out.res, out.err = o.importer.ImportForEmployee(ctx, emp, start, end)
	out.drained = ctx.Err() != nil &&
		(errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded))
	return out
}

func (o *Orchestrator) collect(out employeeOutcome, result *Result, tracker *progress.Tracker, log *logrus.Entry) {
	if out.skipped {
		return
	}
	name := out.emp.DisplayName()
	if out.res != nil {
		result.Records = append(result.Records, out.res.Records...)
		result.Issues = append(result.Issues, out.res.Issues...)
		result.Protected += out.res.Protected
	}
	if out.err == nil {
		recordEmployee(true)
		tracker.Advance(fmt.Sprintf("Imported for %s", name))
		return
	}
	if out.drained {
		log.WithField("employee_id", out.emp.ID()).Debug("employee import interrupted by cancellation")
		tracker.Advance(fmt.Sprintf("Canceled for %s", name))
		return
	}

	cause := out.err
	var fetchErr *ExternalFetchError
	if errors.As(out.err, &fetchErr) {
		cause = fetchErr.Err
	}
	recordEmployee(false)
	result.Failures = append(result.Failures, EmployeeFailure{
		EmployeeID:   out.emp.ID(),
		EmployeeName: name,
		Message:      cause.Error(),
		Err:          out.err,
	})
	log.WithError(out.err).WithField("employee_id", out.emp.ID()).Warn("employee import failed")
	tracker.Advance(fmt.Sprintf("Error for %s: %s", name, cause.Error()))
}
