package record

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusValid           Status = "VALID"
	StatusToVerify        Status = "TO_VERIFY"
	StatusNeedsCorrection Status = "NEEDS_CORRECTION"
	// StatusCorrected is only ever set by a human. The importer never
	// overwrites a record in this state.
	StatusCorrected Status = "CORRECTED"
)

// MaxDailyHours is the ceiling above which a day needs correction.
var MaxDailyHours = decimal.NewFromInt(13)

func (s Status) IsValid() bool {
	switch s {
	case StatusValid, StatusToVerify, StatusNeedsCorrection, StatusCorrected:
		return true
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown attendance status %q", v)
	}
	return s, nil
}

// Classify derives the status of a day worked for total hours. The ceiling
// is checked before the contracted minimum.
func Classify(total, minHours decimal.Decimal) Status {
	switch {
	case total.GreaterThan(MaxDailyHours):
		return StatusNeedsCorrection
	case total.LessThan(minHours):
		return StatusToVerify
	default:
		return StatusValid
	}
}

// SplitHours returns normal = min(total, minHours) and
// extra = max(0, total - minHours).
func SplitHours(total, minHours decimal.Decimal) (normal, extra decimal.Decimal) {
	normal = decimal.Min(total, minHours)
	extra = decimal.Max(decimal.Zero, total.Sub(minHours))
	return normal, extra
}
