package hours

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AcceptedForms(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "09:30", want: "9.5"},
		{in: "14:00", want: "14"},
		{in: "05:00", want: "5"},
		{in: "0:00", want: "0"},
		{in: "08:20", want: "8.33"},
		{in: "07:45:36", want: "7.76"},
		{in: " 9.5 ", want: "9.5"},
		{in: "9,25", want: "9.25"},
		{in: "8", want: "8"},
		{in: "7.999", want: "8"},
		{in: "PT9H30M", want: "9.5"},
		{in: "PT45M", want: "0.75"},
		{in: "P1DT2H", want: "26"},
		{in: "PT8H15M36S", want: "8.26"},
		{in: "pt1h", want: "1"},
		{in: "PT1.5H", want: "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
			assert.False(t, got.IsNegative())
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"abc",
		"-1",
		"-PT1H",
		"9:60",
		"9:30:75",
		"9:",
		":30",
		"1:2:3:4",
		"9:-5",
		"P",
		"PT",
		"P1DT",
		"PT9X",
		"1e3",
		"9.5.1",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, in, perr.Input)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestFromFloat(t *testing.T) {
	got, err := FromFloat(9.5)
	require.NoError(t, err)
	assert.Equal(t, "9.5", got.String())

	got, err = FromFloat(8.333333)
	require.NoError(t, err)
	assert.Equal(t, "8.33", got.String())

	for _, f := range []float64{-0.5, math.NaN(), math.Inf(1)} {
		_, err := FromFloat(f)
		assert.ErrorIs(t, err, ErrParse)
	}
}

func TestParse_Max(t *testing.T) {
	got, err := Parse("999.99")
	require.NoError(t, err)
	assert.True(t, got.Equal(Max))

	for _, in := range []string{"P50D", "1000", "999.996", "1000:00"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.Reason, "exceeds")
		})
	}

	_, err = FromFloat(1200)
	assert.ErrorIs(t, err, ErrParse)
}
