package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/aggregates/record"
	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/entities/timesheet"
	"github.com/jacksonlee411/attendance-sync/modules/attendance/services/progress"
	"github.com/jacksonlee411/attendance-sync/modules/hrm/domain/aggregates/employee"
)

type recordingSink struct {
	mu    sync.Mutex
	snaps []progress.Snapshot
}

func (s *recordingSink) Emit(snap progress.Snapshot) {
	s.mu.Lock()
	s.snaps = append(s.snaps, snap)
	s.mu.Unlock()
}

func (s *recordingSink) all() []progress.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]progress.Snapshot(nil), s.snaps...)
}

func (s *recordingSink) last() progress.Snapshot {
	all := s.all()
	return all[len(all)-1]
}

func staff(n int) []employee.Employee {
	out := make([]employee.Employee, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, employee.New(fmt.Sprintf("e%02d", i), "First", fmt.Sprintf("Last%02d", i), dec("8")))
	}
	return out
}

func idsOf(emps []employee.Employee) []string {
	out := make([]string, 0, len(emps))
	for _, e := range emps {
		out = append(out, e.ID())
	}
	return out
}

func TestOrchestrator_RejectsBadInput(t *testing.T) {
	ctx := context.Background()

	t.Run("empty filter", func(t *testing.T) {
		sink := &recordingSink{}
		o := NewOrchestrator(&fakeDirectory{}, nil, OrchestratorOptions{})
		_, err := o.ImportForPeriod(ctx, periodStart, periodEnd, []string{" ", ""}, progress.NewTracker(sink))
		require.ErrorIs(t, err, ErrNoEmployeeFilter)
		assert.Equal(t, progress.StatusError, sink.last().Status)
		assert.Equal(t, ErrNoEmployeeFilter.Error(), sink.last().Message)
	})

	t.Run("unknown employees", func(t *testing.T) {
		sink := &recordingSink{}
		o := NewOrchestrator(&fakeDirectory{employees: staff(2)}, nil, OrchestratorOptions{})
		_, err := o.ImportForPeriod(ctx, periodStart, periodEnd, []string{"x1", "x2"}, progress.NewTracker(sink))

		var nf *NoEmployeesFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, []string{"x1", "x2"}, nf.IDs)
		assert.Equal(t, progress.StatusError, sink.last().Status)
	})

	t.Run("directory failure", func(t *testing.T) {
		sink := &recordingSink{}
		dirErr := errors.New("db down")
		o := NewOrchestrator(&fakeDirectory{err: dirErr}, nil, OrchestratorOptions{})
		_, err := o.ImportForPeriod(ctx, periodStart, periodEnd, []string{"e01"}, progress.NewTracker(sink))
		require.ErrorIs(t, err, dirErr)
		assert.Equal(t, progress.StatusError, sink.last().Status)
		assert.Contains(t, sink.last().Message, "db down")
	})

	t.Run("inverted period", func(t *testing.T) {
		o := NewOrchestrator(&fakeDirectory{employees: staff(1)}, nil, OrchestratorOptions{})
		_, err := o.ImportForPeriod(ctx, periodEnd, periodStart, []string{"e01"}, nil)
		require.ErrorIs(t, err, ErrInvalidPeriod)
	})
}

func TestOrchestrator_ImportsAndReportsProgress(t *testing.T) {
	emps := staff(3)
	src := newFakeSource()
	for _, e := range emps {
		src.entries[e.ID()] = []timesheet.Entry{
			entry(e.ID(), "2024-03-01", timesheet.TextHours("09:30")),
			entry(e.ID(), "2024-03-02", timesheet.TextHours("05:00")),
		}
	}
	ledger := newMemLedger()
	sink := &recordingSink{}
	o := NewOrchestrator(
		&fakeDirectory{employees: emps},
		newTestImporter(src, ledger),
		OrchestratorOptions{BatchSize: 2, Workers: 2},
	)

	res, err := o.ImportForPeriod(context.Background(), periodStart, periodEnd, idsOf(emps), progress.NewTracker(sink))
	require.NoError(t, err)
	assert.Len(t, res.Records, 6)
	assert.Empty(t, res.Failures)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
	assert.Equal(t, 6, ledger.count())

	for i := 0; i < len(res.Records); i += 2 {
		assert.Equal(t, res.Records[i].EmployeeID(), res.Records[i+1].EmployeeID(), "records of one employee are contiguous")
	}

	snaps := sink.all()
	require.Len(t, snaps, 5)
	assert.Equal(t, progress.Snapshot{Total: 3, Current: 0, Status: progress.StatusProcessing}, snaps[0])
	var messages []string
	for i := 1; i <= 3; i++ {
		assert.Equal(t, i, snaps[i].Current)
		messages = append(messages, snaps[i].Message)
	}
	assert.ElementsMatch(t, []string{
		"Imported for First Last01",
		"Imported for First Last02",
		"Imported for First Last03",
	}, messages)
	assert.Equal(t, progress.Snapshot{Total: 3, Current: 3, Status: progress.StatusCompleted, Message: "Import completed: 6 records"}, snaps[4])
}

func TestOrchestrator_FaultIsolation(t *testing.T) {
	emps := staff(5)
	src := newFakeSource()
	for _, e := range emps {
		src.entries[e.ID()] = []timesheet.Entry{entry(e.ID(), "2024-03-01", timesheet.NumberHours(8))}
	}
	src.errs["e03"] = errors.New("connection refused")

	sink := &recordingSink{}
	o := NewOrchestrator(
		&fakeDirectory{employees: emps},
		newTestImporter(src, newMemLedger()),
		OrchestratorOptions{BatchSize: 2, Workers: 3},
	)
	res, err := o.ImportForPeriod(context.Background(), periodStart, periodEnd, idsOf(emps), progress.NewTracker(sink))
	require.NoError(t, err)

	assert.Len(t, res.Records, 4)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "e03", res.Failures[0].EmployeeID)
	assert.Equal(t, "connection refused", res.Failures[0].Message)
	var fe *ExternalFetchError
	assert.ErrorAs(t, res.Failures[0].Err, &fe)

	var sawError bool
	for _, s := range sink.all() {
		if s.Message == "Error for First Last03: connection refused" {
			sawError = true
		}
	}
	assert.True(t, sawError)
	assert.Equal(t, progress.Snapshot{Total: 5, Current: 5, Status: progress.StatusCompleted, Message: "Import completed: 4 records"}, sink.last())
}

func TestOrchestrator_ProgressIsMonotonic(t *testing.T) {
	emps := staff(12)
	src := newFakeSource()
	for _, e := range emps {
		src.entries[e.ID()] = []timesheet.Entry{entry(e.ID(), "2024-03-01", timesheet.NumberHours(8))}
	}
	sink := &recordingSink{}
	o := NewOrchestrator(&fakeDirectory{employees: emps}, newTestImporter(src, newMemLedger()), OrchestratorOptions{BatchSize: 5, Workers: 4})

	_, err := o.ImportForPeriod(context.Background(), periodStart, periodEnd, idsOf(emps), progress.NewTracker(sink))
	require.NoError(t, err)

	snaps := sink.all()
	for i := 1; i < len(snaps); i++ {
		assert.GreaterOrEqual(t, snaps[i].Current, snaps[i-1].Current)
		assert.LessOrEqual(t, snaps[i].Current, snaps[i].Total)
	}
}

// gatedImporter records how many imports run at once and which batch they
// belong to.
type gatedImporter struct {
	delay    time.Duration
	active   atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	started  []string
	finished []string
	onStart  func(emp employee.Employee)
}

func (g *gatedImporter) ImportForEmployee(ctx context.Context, emp employee.Employee, _, _ time.Time) (*EmployeeImport, error) {
	n := g.active.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	g.mu.Lock()
	g.started = append(g.started, emp.ID())
	g.mu.Unlock()
	if g.onStart != nil {
		g.onStart(emp)
	}

	time.Sleep(g.delay)

	g.mu.Lock()
	g.finished = append(g.finished, emp.ID())
	g.mu.Unlock()
	g.active.Add(-1)
	return &EmployeeImport{Employee: emp}, nil
}

func TestOrchestrator_BatchesRunSequentiallyWithBoundedWorkers(t *testing.T) {
	emps := staff(7)
	imp := &gatedImporter{delay: 5 * time.Millisecond}
	o := NewOrchestrator(&fakeDirectory{employees: emps}, imp, OrchestratorOptions{BatchSize: 3, Workers: 2})

	_, err := o.ImportForPeriod(context.Background(), periodStart, periodEnd, idsOf(emps), nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, imp.peak.Load(), int32(2))
	require.Len(t, imp.started, 7)

	batchOf := func(id string) int {
		for i, e := range emps {
			if e.ID() == id {
				return i / 3
			}
		}
		return -1
	}
	for i := 1; i < len(imp.started); i++ {
		assert.LessOrEqual(t, batchOf(imp.started[i-1]), batchOf(imp.started[i]))
	}
	for i := 1; i < len(imp.finished); i++ {
		assert.LessOrEqual(t, batchOf(imp.finished[i-1]), batchOf(imp.finished[i]))
	}
}

func TestOrchestrator_SingleWorkerIsSequential(t *testing.T) {
	emps := staff(4)
	imp := &gatedImporter{}
	o := NewOrchestrator(&fakeDirectory{employees: emps}, imp, OrchestratorOptions{Workers: 1})

	_, err := o.ImportForPeriod(context.Background(), periodStart, periodEnd, idsOf(emps), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), imp.peak.Load())
	assert.Equal(t, idsOf(emps), imp.started)
}

func TestOrchestrator_Cancellation(t *testing.T) {
	emps := staff(6)
	ctx, cancel := context.WithCancel(context.Background())
	imp := &gatedImporter{onStart: func(emp employee.Employee) {
		if emp.ID() == "e02" {
			cancel()
		}
	}}
	sink := &recordingSink{}
	o := NewOrchestrator(&fakeDirectory{employees: emps}, imp, OrchestratorOptions{BatchSize: 3, Workers: 1})

	res, err := o.ImportForPeriod(ctx, periodStart, periodEnd, idsOf(emps), progress.NewTracker(sink))
	require.ErrorIs(t, err, ErrCanceled)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)

	assert.Equal(t, []string{"e01", "e02"}, imp.started)
	assert.Equal(t, []string{"e01", "e02"}, imp.finished)

	last := sink.last()
	assert.Equal(t, progress.StatusError, last.Status)
	assert.Equal(t, "import canceled", last.Message)
	assert.Equal(t, 2, last.Current)
}

func TestOrchestrator_ReimportOverCorrectedLeavesStoreUnchanged(t *testing.T) {
	emps := staff(1)
	ledger := newMemLedger()
	corrected := record.New("e01", "First Last01", day("2024-03-01"), dec("7.25"), dec("8"),
		record.OriginalData{Source: record.SourceJibble}, uuid.New()).WithStatus(record.StatusCorrected)
	ledger.put(corrected)

	src := newFakeSource()
	src.entries["e01"] = []timesheet.Entry{entry("e01", "2024-03-01", timesheet.TextHours("14:00"))}

	o := NewOrchestrator(&fakeDirectory{employees: emps}, newTestImporter(src, ledger), OrchestratorOptions{})
	res, err := o.ImportForPeriod(context.Background(), periodStart, periodEnd, []string{"e01"}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 1, res.Protected)

	stored, ok := ledger.get("e01", day("2024-03-01"))
	require.True(t, ok)
	assert.Equal(t, corrected, stored)
}

func TestOrchestrator_RecoversImporterPanic(t *testing.T) {
	emps := staff(2)
	imp := &gatedImporter{onStart: func(emp employee.Employee) {
		if emp.ID() == "e01" {
			panic("boom")
		}
	}}
	o := NewOrchestrator(&fakeDirectory{employees: emps}, imp, OrchestratorOptions{Workers: 1})
	res, err := o.ImportForPeriod(context.Background(), periodStart, periodEnd, idsOf(emps), nil)
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "e01", res.Failures[0].EmployeeID)
	assert.Contains(t, res.Failures[0].Message, "boom")
}

type interruptedImporter struct {
	cancel context.CancelFunc
}

func (i *interruptedImporter) ImportForEmployee(ctx context.Context, emp employee.Employee, _, _ time.Time) (*EmployeeImport, error) {
	rec := record.New(emp.ID(), emp.DisplayName(), day("2024-03-01"), dec("8"), emp.MinHours(),
		record.OriginalData{Source: record.SourceJibble}, uuid.New())
	out := &EmployeeImport{Employee: emp, Records: []record.Record{rec}}
	if emp.ID() != "e02" {
		return out, nil
	}
	i.cancel()
	return out, &ExternalFetchError{EmployeeID: emp.ID(), Err: fmt.Errorf("fetch: %w", ctx.Err())}
}

func TestOrchestrator_InterruptedEmployeeIsNotAFailure(t *testing.T) {
	emps := staff(3)
	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordingSink{}
	o := NewOrchestrator(&fakeDirectory{employees: emps}, &interruptedImporter{cancel: cancel}, OrchestratorOptions{Workers: 1})

	res, err := o.ImportForPeriod(ctx, periodStart, periodEnd, idsOf(emps), progress.NewTracker(sink))
	require.ErrorIs(t, err, ErrCanceled)
	require.NotNil(t, res)

	assert.Empty(t, res.Failures)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "e02", res.Records[1].EmployeeID())

	var messages []string
	for _, snap := range sink.all() {
		messages = append(messages, snap.Message)
	}
	assert.Contains(t, messages, "Canceled for First Last02")
	assert.Equal(t, "import canceled", sink.last().Message)
}
