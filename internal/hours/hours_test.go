package hours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Schedule
	}{
		{
			name:     "default schedule",
			input:    DefaultJSON,
			expected: Default(),
		},
		{
			name:  "null and empty mean closed",
			input: `{"0":null,"1":"","2":"09:00-12:00"}`,
			expected: Schedule{
				time.Tuesday: {Open: 9, Close: 12},
			},
		},
		{
			name:  "out of range keys are skipped",
			input: `{"7":"10:00-12:00","-1":"10:00-12:00","x":"10:00-12:00","3":"8:00-9:30"}`,
			expected: Schedule{
				time.Wednesday: {Open: 8, Close: 9},
			},
		},
		{
			name:     "bad ranges are skipped",
			input:    `{"1":"15-19","2":"19:00-15:00","3":"12:00-12:00"}`,
			expected: Schedule{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseOrDefault_FallsBackOnMalformedJSON(t *testing.T) {
	assert.Equal(t, Default(), ParseOrDefault("{not json"))
	assert.Equal(t, Default(), ParseOrDefault(""))
}

func TestScheduleLookup(t *testing.T) {
	s := Default()

	assert.True(t, s.IsOpenDay(time.Monday))
	assert.False(t, s.IsOpenDay(time.Sunday))

	iv, ok := s.HoursFor(time.Saturday)
	require.True(t, ok)
	assert.Equal(t, Interval{Open: 10, Close: 14}, iv)

	_, ok = s.HoursFor(time.Tuesday)
	assert.False(t, ok)
}

func TestIsOpenAt(t *testing.T) {
	s := Schedule{time.Monday: {Open: 15, Close: 19}}
	// 2026-01-12 is a Monday.
	monday := func(h int) time.Time { return time.Date(2026, 1, 12, h, 0, 0, 0, time.UTC) }

	assert.False(t, s.IsOpenAt(monday(14)))
	assert.True(t, s.IsOpenAt(monday(15)))
	assert.True(t, s.IsOpenAt(monday(18)))
	assert.False(t, s.IsOpenAt(monday(19)))
	assert.False(t, s.IsOpenAt(monday(15).AddDate(0, 0, 1)))
}

func TestFormat(t *testing.T) {
	rows := Default().Format()
	require.Len(t, rows, 7)

	assert.Equal(t, DayHours{Day: "Montag", Hours: "15:00 - 19:00"}, rows[0])
	assert.Equal(t, DayHours{Day: "Dienstag", Hours: ClosedLabel}, rows[1])
	assert.Equal(t, DayHours{Day: "Samstag", Hours: "10:00 - 14:00"}, rows[5])
	assert.Equal(t, DayHours{Day: "Sonntag", Hours: ClosedLabel}, rows[6])
}
