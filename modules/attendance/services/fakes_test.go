package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/aggregates/record"
	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/entities/timesheet"
	"github.com/jacksonlee411/attendance-sync/modules/hrm/domain/aggregates/employee"
)

type ledgerKey struct {
	employeeID string
	date       string
}

func keyOf(employeeID string, date time.Time) ledgerKey {
	return ledgerKey{employeeID: employeeID, date: record.DateOf(date).Format("2006-01-02")}
}

// memLedger is an in-memory record.Repository with the same guarded upsert
// semantics as the SQL one.
type memLedger struct {
	mu      sync.Mutex
	rows    map[ledgerKey]record.Record
	upserts int

	getErr       error
	upsertErr    func(record.Record) error
	beforeUpsert func(l *memLedger, r record.Record)
}

func newMemLedger() *memLedger {
	return &memLedger{rows: map[ledgerKey]record.Record{}}
}

func (l *memLedger) GetByKey(_ context.Context, employeeID string, date time.Time) (record.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.getErr != nil {
		return record.Record{}, l.getErr
	}
	r, ok := l.rows[keyOf(employeeID, date)]
	if !ok {
		return record.Record{}, record.ErrNotFound
	}
	return r, nil
}

func (l *memLedger) Upsert(_ context.Context, r record.Record) (record.Record, bool, error) {
	if l.beforeUpsert != nil {
		l.beforeUpsert(l, r)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.upsertErr != nil {
		if err := l.upsertErr(r); err != nil {
			return record.Record{}, false, err
		}
	}
	l.upserts++

	k := keyOf(r.EmployeeID(), r.Date())
	id, created := uuid.New(), time.Now()
	if existing, ok := l.rows[k]; ok {
		if existing.Status() == record.StatusCorrected {
			return record.Record{}, false, nil
		}
		id, created = existing.ID(), existing.CreatedAt()
	}
	saved := record.Hydrate(
		id, r.EmployeeID(), r.EmployeeName(), r.Date(),
		r.NormalHours(), r.ExtraHours(), r.Status(), r.OriginalData(),
		r.LastImportID(), created, time.Now(),
	)
	l.rows[k] = saved
	return saved, true, nil
}

func (l *memLedger) List(_ context.Context, params *record.FindParams) ([]record.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]record.Record, 0, len(l.rows))
	for _, r := range l.rows {
		if params != nil && !params.From.IsZero() && r.Date().Before(params.From) {
			continue
		}
		if params != nil && !params.To.IsZero() && r.Date().After(params.To) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID() != out[j].EmployeeID() {
			return out[i].EmployeeID() < out[j].EmployeeID()
		}
		return out[i].Date().Before(out[j].Date())
	})
	return out, nil
}

// put stores r as is, bypassing the guard.
func (l *memLedger) put(r record.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[keyOf(r.EmployeeID(), r.Date())] = r
}

func (l *memLedger) get(employeeID string, date time.Time) (record.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[keyOf(employeeID, date)]
	return r, ok
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

type fakeSource struct {
	mu      sync.Mutex
	entries map[string][]timesheet.Entry
	errs    map[string]error
	calls   []string
	hook    func(ctx context.Context, employeeID string)
}

func newFakeSource() *fakeSource {
	return &fakeSource{entries: map[string][]timesheet.Entry{}, errs: map[string]error{}}
}

func (s *fakeSource) FetchTimesheets(ctx context.Context, employeeID string, _, _ time.Time) ([]timesheet.Entry, error) {
	if s.hook != nil {
		s.hook(ctx, employeeID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, employeeID)
	if err := s.errs[employeeID]; err != nil {
		return nil, err
	}
	return s.entries[employeeID], nil
}

type fakeDirectory struct {
	employees []employee.Employee
	err       error
}

func (d *fakeDirectory) GetByIDs(_ context.Context, ids []string) ([]employee.Employee, error) {
	if d.err != nil {
		return nil, d.err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []employee.Employee
	for _, e := range d.employees {
		if want[e.ID()] {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastName() < out[j].LastName() })
	return out, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func entry(employeeID, date string, hours timesheet.RawHours) timesheet.Entry {
	d := day(date)
	return timesheet.Entry{
		PersonID: employeeID,
		Date:     d,
		Daily:    []timesheet.Daily{{Date: d, PayrollHours: hours}},
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
