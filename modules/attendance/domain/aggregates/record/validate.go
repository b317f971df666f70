package record

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jacksonlee411/attendance-sync/pkg/constants"
)

func init() {
	constants.Validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	mustRegister("nonneg_decimal", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	})
	mustRegister("date_only", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok || t.IsZero() {
			return false
		}
		return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
	})
	mustRegister("record_status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).IsValid()
	})
}

func mustRegister(tag string, fn validator.Func) {
	if err := constants.Validate.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// ValidationError lists the failed fields of a candidate, keyed by field name.
type ValidationError struct {
	EmployeeID string
	Date       time.Time
	Fields     map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("invalid attendance record (employee %q, date %s): %s",
		e.EmployeeID, e.Date.Format(constants.DateLayout), strings.Join(parts, "; "))
}

type candidate struct {
	EmployeeID  string          `validate:"required"`
	Date        time.Time       `validate:"date_only"`
	NormalHours decimal.Decimal `validate:"nonneg_decimal"`
	ExtraHours  decimal.Decimal `validate:"nonneg_decimal"`
	Status      Status          `validate:"record_status"`
}

// Validate checks a candidate before it is persisted.
func Validate(r Record) error {
	c := candidate{
		EmployeeID:  strings.TrimSpace(r.employeeID),
		Date:        r.date,
		NormalHours: r.normalHours,
		ExtraHours:  r.extraHours,
		Status:      r.status,
	}
	err := constants.Validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &ValidationError{EmployeeID: r.employeeID, Date: r.date, Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = fe.Tag()
	}
	return out
}
