package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jacksonlee411/attendance-sync/pkg/constants"
)

func parseDateField(name, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("--%s is required", name)
	}
	t, err := time.ParseInLocation(constants.DateLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", name, v)
	}
	return t, nil
}

func parsePeriod(start, end string) (time.Time, time.Time, error) {
	from, err := parseDateField("start", start)
	if err != nil {
		return time.Time{}, time.Time{}, withCode(exitUsage, err)
	}
	to, err := parseDateField("end", end)
	if err != nil {
		return time.Time{}, time.Time{}, withCode(exitUsage, err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, withCode(exitUsage, fmt.Errorf("--end %s is before --start %s",
			to.Format(constants.DateLayout), from.Format(constants.DateLayout)))
	}
	return from, to, nil
}
