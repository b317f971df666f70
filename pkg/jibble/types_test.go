package jibble

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHours_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		in       string
		valid    bool
		isNumber bool
	}{
		{in: `"PT8H"`, valid: true},
		{in: `"08:00"`, valid: true},
		{in: `""`, valid: false},
		{in: `null`, valid: false},
		{in: `8.5`, valid: true, isNumber: true},
		{in: `0`, valid: true, isNumber: true},
		{in: `true`, valid: true},
		{in: `{"h":1}`, valid: true},
		{in: `1e400`, valid: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			var h Hours
			require.NoError(t, json.Unmarshal([]byte(tc.in), &h))
			assert.Equal(t, tc.valid, h.Valid)
			assert.Equal(t, tc.isNumber, h.IsNumber)
		})
	}

	var h Hours
	require.NoError(t, json.Unmarshal([]byte(`true`), &h))
	assert.Equal(t, "true", h.Text)
}

func TestDate_UnmarshalJSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-04T12:00:00+02:00"`), &d))
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), d.Time)

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())

	assert.False(t, d.Malformed())

	require.NoError(t, json.Unmarshal([]byte(`"04/03/2024"`), &d))
	assert.True(t, d.IsZero())
	assert.True(t, d.Malformed())
	assert.Equal(t, "04/03/2024", d.Raw)

	require.NoError(t, json.Unmarshal([]byte(`20240304`), &d))
	assert.True(t, d.Malformed())
	assert.Equal(t, "20240304", d.Raw)

	require.NoError(t, json.Unmarshal([]byte(`"2024-03-04"`), &d))
	assert.False(t, d.Malformed())
}

func TestTimesheetSummary_DecodeKeepsSiblingDays(t *testing.T) {
	body := `{"value":[
		{"personId":"p1","date":"2024-03-04","daily":[{"date":"2024-03-04","payrollHours":"PT9H30M"}]},
		{"personId":"p1","date":"2024-03-05","daily":[{"date":"2024-03-05","payrollHours":true}]},
		{"personId":"p1","date":"2024-03-06","daily":[{"date":"06.03.2024","payrollHours":"PT8H"}]}
	]}`
	var out list[TimesheetSummary]
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out.Value, 3)

	assert.Equal(t, "PT9H30M", out.Value[0].Daily[0].PayrollHours.Text)
	assert.Equal(t, "true", out.Value[1].Daily[0].PayrollHours.Text)
	assert.False(t, out.Value[1].Daily[0].PayrollHours.IsNumber)
	assert.True(t, out.Value[2].Daily[0].Date.Malformed())
	assert.Equal(t, "06.03.2024", out.Value[2].Daily[0].Date.Raw)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), backoff(0, time.Second, time.Minute))
	assert.Equal(t, time.Second, backoff(1, time.Second, time.Minute))
	assert.Equal(t, 4*time.Second, backoff(3, time.Second, time.Minute))
	assert.Equal(t, time.Minute, backoff(30, time.Second, time.Minute))
	assert.Equal(t, time.Duration(0), jitter(nil, time.Second))
}
