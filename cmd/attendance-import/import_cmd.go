package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacksonlee411/attendance-sync/modules/attendance/infrastructure/persistence"
	"github.com/jacksonlee411/attendance-sync/modules/attendance/services"
	"github.com/jacksonlee411/attendance-sync/modules/attendance/services/progress"
	hrmpersistence "github.com/jacksonlee411/attendance-sync/modules/hrm/infrastructure/persistence"
	hrmservices "github.com/jacksonlee411/attendance-sync/modules/hrm/services"
	"github.com/jacksonlee411/attendance-sync/pkg/constants"
	"github.com/jacksonlee411/attendance-sync/pkg/eventbus"
)

type importOptions struct {
	start     string
	end       string
	employees []string
	quiet     bool
	batchSize int
	workers   int
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import timesheets for employees over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", "", "First day, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Last day, YYYY-MM-DD (required)")
	cmd.Flags().StringSliceVar(&opts.employees, "employee", nil, "Employee id; repeat or comma-separate (required)")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "Only print the final summary line")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Employees per batch (default: IMPORT_BATCH_SIZE)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent employees per batch (default: IMPORT_WORKERS)")

	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("employee")
	return cmd
}

func runImport(ctx context.Context, w io.Writer, opts importOptions) error {
	start, end, err := parsePeriod(opts.start, opts.end)
	if err != nil {
		return err
	}
	ids := hrmservices.NormalizeIDs(opts.employees)
	if len(ids) == 0 {
		return withCode(exitUsage, services.ErrNoEmployeeFilter)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := a.jibbleClient()
	if err != nil {
		return err
	}
	ctx, err = a.withDB(ctx)
	if err != nil {
		return err
	}

	batchSize, workers := a.conf.Import.BatchSize, a.conf.Import.Workers
	if opts.batchSize > 0 {
		batchSize = opts.batchSize
	}
	if opts.workers > 0 {
		workers = opts.workers
	}

	importer := services.NewImporter(
		services.NewJibbleSource(client),
		services.NewPersister(persistence.NewAttendanceRecordRepository()),
		services.WithDayConcurrency(a.conf.Import.DayConcurrency),
		services.WithImporterLogger(a.log),
	)
	orchestrator := services.NewOrchestrator(
		hrmservices.NewEmployeeService(hrmpersistence.NewEmployeeRepository()),
		importer,
		services.OrchestratorOptions{BatchSize: batchSize, Workers: workers, Logger: a.log},
	)

	out := newLineWriter(w)
	var sink progress.Sink
	stopProgress := func() error { return nil }
	if !opts.quiet {
		bus := eventbus.New[progress.Snapshot](a.log)
		sink = progress.NewBusSink(bus)
		stopProgress = streamProgress(bus, out, progressBuffer)
	}
	tracker := progress.NewTracker(sink).WithLogger(a.log.WithField("command", "import"))

	res, runErr := orchestrator.ImportForPeriod(ctx, start, end, ids, tracker)
	if err := stopProgress(); err != nil {
		return err
	}
	if res != nil {
		if err := out.write(newImportSummary(res, start, end, runErr)); err != nil {
			return err
		}
	}
	return importExitError(runErr, res)
}

const progressBuffer = 64

// streamProgress writes bus snapshots as progress lines from a separate
// goroutine. Intermediate snapshots are dropped while the writer lags; the
// terminal one is always written. The returned func waits for the writer.
func streamProgress(bus *eventbus.Bus[progress.Snapshot], out *lineWriter, buffer int) func() error {
	ch := progress.NewChannelSink(buffer)
	bus.Subscribe(func(s progress.Snapshot) error {
		ch.Emit(s)
		return nil
	})

	done := make(chan error, 1)
	go func() {
		var first error
		for s := range ch.C() {
			if err := out.write(progressLine{Type: "progress", Snapshot: s}); err != nil && first == nil {
				first = err
			}
		}
		done <- first
	}()

	return func() error {
		ch.Close()
		return <-done
	}
}

type progressLine struct {
	Type string `json:"type"`
	progress.Snapshot
}

type issueLine struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

type failureLine struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	Message      string `json:"message"`
}

type importSummary struct {
	Type       string        `json:"type"`
	Status     string        `json:"status"`
	RunID      string        `json:"run_id"`
	Start      string        `json:"start"`
	End        string        `json:"end"`
	Records    int           `json:"records"`
	Protected  int           `json:"protected"`
	Failures   []failureLine `json:"failures"`
	Issues     []issueLine   `json:"issues"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Error      string        `json:"error,omitempty"`
}

func newImportSummary(res *services.Result, start, end time.Time, runErr error) importSummary {
	s := importSummary{
		Type:       "summary",
		Status:     "completed",
		RunID:      res.RunID.String(),
		Start:      start.Format(constants.DateLayout),
		End:        end.Format(constants.DateLayout),
		Records:    len(res.Records),
		Protected:  res.Protected,
		Failures:   make([]failureLine, 0, len(res.Failures)),
		Issues:     make([]issueLine, 0, len(res.Issues)),
		StartedAt:  res.StartedAt.UTC(),
		FinishedAt: res.FinishedAt.UTC(),
	}
	for _, f := range res.Failures {
		s.Failures = append(s.Failures, failureLine{EmployeeID: f.EmployeeID, EmployeeName: f.EmployeeName, Message: f.Message})
	}
	for _, i := range res.Issues {
		s.Issues = append(s.Issues, issueLine{
			EmployeeID: i.EmployeeID,
			Date:       i.Date.Format(constants.DateLayout),
			Kind:       string(i.Kind),
			Message:    i.Message,
		})
	}
	switch {
	case errors.Is(runErr, services.ErrCanceled):
		s.Status = "canceled"
		s.Error = runErr.Error()
	case runErr != nil:
		s.Status = "error"
		s.Error = runErr.Error()
	case len(res.Failures) > 0:
		s.Status = "partial"
	}
	return s
}

func importExitError(err error, res *services.Result) error {
	if err == nil {
		if res != nil && len(res.Failures) > 0 {
			return withCode(exitPartial, fmt.Errorf("%d employee(s) failed to import", len(res.Failures)))
		}
		return nil
	}

	var notFound *services.NoEmployeesFoundError
	switch {
	case errors.Is(err, services.ErrCanceled):
		return withCode(exitCanceled, err)
	case errors.Is(err, services.ErrNoEmployeeFilter),
		errors.Is(err, services.ErrInvalidPeriod),
		errors.As(err, &notFound):
		return withCode(exitValidation, err)
	default:
		return withCode(exitDB, err)
	}
}
