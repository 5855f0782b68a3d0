package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandScheduleOpenEndedBatchOfFive(t *testing.T) {
	// 2024-06-03 is a Monday.
	rule := ScheduleRule{
		StartDate:    date(2024, time.June, 3),
		SelectedDays: []string{"Monday", "Wednesday"},
		SessionTime:  "10:00",
	}

	instants, err := ExpandSchedule(rule, 5, 0)
	require.NoError(t, err)
	require.Len(t, instants, 5)

	expected := []time.Time{
		time.Date(2024, time.June, 3, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.June, 5, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.June, 10, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.June, 12, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.June, 17, 10, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, expected, instants)
}

func TestExpandScheduleBoundedWeekSpan(t *testing.T) {
	// One full week starting Monday: each selected weekday appears once.
	end := date(2024, time.June, 9)
	cases := []struct {
		days []string
		want int
	}{
		{[]string{"Monday"}, 1},
		{[]string{"Monday", "Wednesday", "Friday"}, 3},
		{[]string{"Saturday", "Sunday"}, 2},
		{[]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}, 7},
	}
	for _, tc := range cases {
		rule := ScheduleRule{
			StartDate:    date(2024, time.June, 3),
			EndDate:      &end,
			HasEndDate:   true,
			SelectedDays: tc.days,
			SessionTime:  "09:30",
		}
		instants, err := ExpandSchedule(rule, 5, 0)
		require.NoError(t, err)
		assert.Len(t, instants, tc.want, "days=%v", tc.days)
	}
}

func TestExpandScheduleOpenEndedSparseDays(t *testing.T) {
	// A single selected weekday still yields exactly five sessions.
	rule := ScheduleRule{
		StartDate:    date(2024, time.June, 3),
		SelectedDays: []string{"Sunday"},
		SessionTime:  "10:00",
	}
	instants, err := ExpandSchedule(rule, 5, 0)
	require.NoError(t, err)
	require.Len(t, instants, 5)
	for _, ts := range instants {
		assert.Equal(t, time.Sunday, ts.Weekday())
	}
}

func TestExpandScheduleEndBeforeStart(t *testing.T) {
	end := date(2024, time.May, 1)
	rule := ScheduleRule{
		StartDate:    date(2024, time.June, 3),
		EndDate:      &end,
		HasEndDate:   true,
		SelectedDays: []string{"Monday"},
		SessionTime:  "10:00",
	}
	instants, err := ExpandSchedule(rule, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, instants)
}

func TestExpandScheduleEmptyDaySet(t *testing.T) {
	rule := ScheduleRule{
		StartDate:    date(2024, time.June, 3),
		SelectedDays: nil,
		SessionTime:  "10:00",
	}
	instants, err := ExpandSchedule(rule, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, instants)
}

func TestExpandScheduleCaseInsensitiveDays(t *testing.T) {
	rule := ScheduleRule{
		StartDate:    date(2024, time.June, 3),
		SelectedDays: []string{"monday", " WEDNESDAY "},
		SessionTime:  "10:00",
	}
	instants, err := ExpandSchedule(rule, 2, 0)
	require.NoError(t, err)
	require.Len(t, instants, 2)
	assert.Equal(t, time.Monday, instants[0].Weekday())
	assert.Equal(t, time.Wednesday, instants[1].Weekday())
}

func TestExpandScheduleInvalidTime(t *testing.T) {
	rule := ScheduleRule{
		StartDate:    date(2024, time.June, 3),
		SelectedDays: []string{"Monday"},
		SessionTime:  "25:99",
	}
	_, err := ExpandSchedule(rule, 5, 0)
	require.Error(t, err)
}

func TestExpandScheduleIterationCap(t *testing.T) {
	// Unknown weekday names never match; the hard cap ends the walk.
	end := date(2034, time.June, 3)
	rule := ScheduleRule{
		StartDate:    date(2024, time.June, 3),
		EndDate:      &end,
		HasEndDate:   true,
		SelectedDays: []string{"Funday"},
		SessionTime:  "10:00",
	}
	instants, err := ExpandSchedule(rule, 5, 100)
	require.NoError(t, err)
	assert.Empty(t, instants)
}

func TestExpandScheduleFromContinuesWithoutGap(t *testing.T) {
	rule := ScheduleRule{
		StartDate:    date(2024, time.June, 3),
		SelectedDays: []string{"Monday", "Wednesday"},
		SessionTime:  "10:00",
	}
	initial, err := ExpandSchedule(rule, 5, 0)
	require.NoError(t, err)
	last := initial[len(initial)-1] // 2024-06-17 Monday

	more, err := ExpandScheduleFrom(rule, last, 3, 0)
	require.NoError(t, err)
	require.Len(t, more, 3)

	expected := []time.Time{
		time.Date(2024, time.June, 19, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.June, 24, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.June, 26, 10, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, expected, more)

	for _, ts := range more {
		assert.True(t, ts.After(last))
	}
}

func TestExpandScheduleFromLateCallDoesNotSkipToToday(t *testing.T) {
	// Resumption is anchored on the last session date, not the wall clock,
	// so calling late fills the gap instead of jumping ahead.
	rule := ScheduleRule{
		StartDate:    date(2024, time.June, 3),
		SelectedDays: []string{"Friday"},
		SessionTime:  "16:15",
	}
	more, err := ExpandScheduleFrom(rule, date(2024, time.June, 7), 2, 0)
	require.NoError(t, err)
	require.Len(t, more, 2)
	assert.Equal(t, time.Date(2024, time.June, 14, 16, 15, 0, 0, time.UTC), more[0])
	assert.Equal(t, time.Date(2024, time.June, 21, 16, 15, 0, 0, time.UTC), more[1])
}
