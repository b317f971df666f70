package employee

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Employee is read from the employee directory. MinHours is the contracted
// daily minimum used to split and classify attendance.
type Employee struct {
	id        string
	firstName string
	lastName  string
	minHours  decimal.Decimal
}

func New(id, firstName, lastName string, minHours decimal.Decimal) Employee {
	return Employee{
		id:        strings.TrimSpace(id),
		firstName: strings.TrimSpace(firstName),
		lastName:  strings.TrimSpace(lastName),
		minHours:  minHours,
	}
}

func (e Employee) ID() string                { return e.id }
func (e Employee) FirstName() string         { return e.firstName }
func (e Employee) LastName() string          { return e.lastName }
func (e Employee) MinHours() decimal.Decimal { return e.minHours }

// DisplayName is "First Last".
func (e Employee) DisplayName() string {
	return strings.TrimSpace(e.firstName + " " + e.lastName)
}

type Repository interface {
	// GetByIDs returns the employees with the given ids ordered by last name.
	// Unknown ids are ignored.
	GetByIDs(ctx context.Context, ids []string) ([]Employee, error)
}
