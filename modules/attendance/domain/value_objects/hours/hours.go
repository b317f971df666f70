// Package hours converts provider duration values into decimal hours.
package hours

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the precision every parsed value is rounded to.
const Places = 2

// Max is the largest value the ledger's hour columns can hold.
var Max = decimal.RequireFromString("999.99")

var ErrParse = errors.New("malformed hours")

type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hours: cannot parse %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

var (
	one            = decimal.NewFromInt(1)
	minutesPerHour = decimal.NewFromInt(60)
	secondsPerHour = decimal.NewFromInt(3600)
	hoursPerDay    = decimal.NewFromInt(24)
	decimalForm    = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
	isoForm        = regexp.MustCompile(`^P(?:(\d+(?:[.,]\d+)?)D)?(?:T(?:(\d+(?:[.,]\d+)?)H)?(?:(\d+(?:[.,]\d+)?)M)?(?:(\d+(?:[.,]\d+)?)S)?)?$`)
)

// Parse accepts "HH:MM", "HH:MM:SS", a decimal number with either separator,
// or an ISO-8601 duration (days and time parts only). The result is
// non-negative and rounded to two places.
func Parse(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, &ParseError{Input: raw, Reason: "empty value"}
	}
	if strings.HasPrefix(s, "-") {
		return decimal.Zero, &ParseError{Input: raw, Reason: "negative duration"}
	}

	var (
		v   decimal.Decimal
		err error
	)
	switch {
	case s[0] == 'P' || s[0] == 'p':
		v, err = parseISO(strings.ToUpper(s))
	case strings.Contains(s, ":"):
		v, err = parseClock(s)
	case decimalForm.MatchString(s):
		v, err = decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	default:
		err = errors.New("unrecognized format")
	}
	if err != nil {
		return decimal.Zero, &ParseError{Input: raw, Reason: err.Error()}
	}
	return capped(raw, v.Round(Places))
}

// FromFloat applies Parse's rules to a numeric provider value.
func FromFloat(f float64) (decimal.Decimal, error) {
	input := strconv.FormatFloat(f, 'f', -1, 64)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, &ParseError{Input: input, Reason: "not a finite number"}
	}
	if f < 0 {
		return decimal.Zero, &ParseError{Input: input, Reason: "negative duration"}
	}
	return capped(input, decimal.NewFromFloat(f).Round(Places))
}

func capped(input string, v decimal.Decimal) (decimal.Decimal, error) {
	if v.GreaterThan(Max) {
		return decimal.Zero, &ParseError{Input: input, Reason: "exceeds " + Max.StringFixed(Places) + " hours"}
	}
	return v, nil
}

func parseClock(s string) (decimal.Decimal, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return decimal.Zero, errors.New("expected HH:MM or HH:MM:SS")
	}
	nums := make([]int64, len(parts))
	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, "+-") {
			return decimal.Zero, fmt.Errorf("invalid component %q", p)
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid component %q", p)
		}
		if i > 0 && n >= 60 {
			return decimal.Zero, fmt.Errorf("component %q out of range", p)
		}
		nums[i] = n
	}

	total := decimal.NewFromInt(nums[0]).Add(decimal.NewFromInt(nums[1]).Div(minutesPerHour))
	if len(nums) == 3 {
		total = total.Add(decimal.NewFromInt(nums[2]).Div(secondsPerHour))
	}
	return total, nil
}

func parseISO(s string) (decimal.Decimal, error) {
	m := isoForm.FindStringSubmatch(s)
	if m == nil || s == "P" || strings.HasSuffix(s, "T") {
		return decimal.Zero, errors.New("invalid ISO-8601 duration")
	}
	// days, hours, minutes, seconds as (multiplier, divisor)
	units := [][2]decimal.Decimal{
		{hoursPerDay, one},
		{one, one},
		{one, minutesPerHour},
		{one, secondsPerHour},
	}

	total := decimal.Zero
	for i, unit := range units {
		field := m[i+1]
		if field == "" {
			continue
		}
		n, err := decimal.NewFromString(strings.Replace(field, ",", ".", 1))
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid component %q", field)
		}
		total = total.Add(n.Mul(unit[0]).Div(unit[1]))
	}
	return total, nil
}
