package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jacksonlee411/attendance-sync/pkg/constants"
)

var (
	ErrNoEmployeeFilter = errors.New("at least one employee id is required")
	ErrCanceled         = errors.New("import canceled")

	errMissingHours  = errors.New("payroll hours missing")
	errMalformedDate = errors.New("malformed date")
)

// PersistenceKind classifies a store failure.
type PersistenceKind string

const (
	PersistenceUnique     PersistenceKind = "unique"
	PersistenceForeignKey PersistenceKind = "foreign_key"
	PersistenceCheck      PersistenceKind = "check"
	PersistenceNotNull    PersistenceKind = "not_null"
	PersistenceOther      PersistenceKind = "other"
)

type PersistenceError struct {
	Kind       PersistenceKind
	EmployeeID string
	Date       time.Time
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist attendance record (employee %q, date %s, %s): %v",
		e.EmployeeID, e.Date.Format(constants.DateLayout), e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type ExternalFetchError struct {
	EmployeeID string
	Err        error
}

func (e *ExternalFetchError) Error() string {
	return fmt.Sprintf("fetch timesheets for employee %q: %v", e.EmployeeID, e.Err)
}

func (e *ExternalFetchError) Unwrap() error { return e.Err }

type NoEmployeesFoundError struct {
	IDs []string
}

func (e *NoEmployeesFoundError) Error() string {
	return fmt.Sprintf("no employees found for ids [%s]", strings.Join(e.IDs, ", "))
}

// IssueKind names why a day was skipped.
type IssueKind string

const (
	IssueMissingHours IssueKind = "missing_hours"
	IssueParse        IssueKind = "parse"
	IssueValidation   IssueKind = "validation"
	IssuePersistence  IssueKind = "persistence"
)

// DayIssue is a day that was observed but not written.
type DayIssue struct {
	EmployeeID string    `json:"employeeId"`
	Date       time.Time `json:"date"`
	Kind       IssueKind `json:"kind"`
	Message    string    `json:"message"`
	Err        error     `json:"-"`
}

func newDayIssue(employeeID string, date time.Time, kind IssueKind, err error) DayIssue {
	issue := DayIssue{EmployeeID: employeeID, Date: date, Kind: kind, Err: err}
	if err != nil {
		issue.Message = err.Error()
	}
	return issue
}

// EmployeeFailure is an employee whose import did not run to completion.
type EmployeeFailure struct {
	EmployeeID   string `json:"employeeId"`
	EmployeeName string `json:"employeeName"`
	Message      string `json:"message"`
	Err          error  `json:"-"`
}
