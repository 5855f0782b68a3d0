package service

import (
	"fmt"
	"strings"
	"time"
)

// ScheduleRule describes a course's weekly recurrence: which weekdays it
// meets on, at what time of day, and how the expansion terminates.
type ScheduleRule struct {
	StartDate       time.Time
	EndDate         *time.Time
	HasEndDate      bool
	SelectedDays    []string
	SessionTime     string // "HH:MM", 24h
	DurationMinutes int
}

// defaultMaxIterations bounds the calendar walk so a malformed rule (say an
// end date decades out) cannot spin the loop unbounded. Ten years of days.
const defaultMaxIterations = 3660

// parseSessionTime splits "HH:MM" into clock components.
func parseSessionTime(raw string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid session time %q: %w", raw, err)
	}
	return t.Hour(), t.Minute(), nil
}

// weekdaySet normalizes weekday names into a lookup keyed by
// time.Weekday.String() lowercased. Unknown names are simply never matched.
func weekdaySet(days []string) map[string]struct{} {
	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		name := strings.ToLower(strings.TrimSpace(d))
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}

// ExpandSchedule walks the calendar one day at a time from the rule's start
// date and emits a session instant for every day whose weekday name is in
// the selected set. With a declared end date the walk stops once the date
// passes it; otherwise it stops after batchSize emissions. An empty weekday
// set yields no instants and no error.
func ExpandSchedule(rule ScheduleRule, batchSize, maxIterations int) ([]time.Time, error) {
	hour, minute, err := parseSessionTime(rule.SessionTime)
	if err != nil {
		return nil, err
	}
	days := weekdaySet(rule.SelectedDays)
	if len(days) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = 5
	}
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	start := dateOnly(rule.StartDate)
	bounded := rule.HasEndDate && rule.EndDate != nil
	var end time.Time
	if bounded {
		end = dateOnly(*rule.EndDate)
	}

	var instants []time.Time
	date := start
	for i := 0; i < maxIterations; i++ {
		if bounded {
			if date.After(end) {
				break
			}
		} else if len(instants) >= batchSize {
			break
		}
		if _, ok := days[strings.ToLower(date.Weekday().String())]; ok {
			instants = append(instants, at(date, hour, minute))
		}
		date = date.AddDate(0, 0, 1)
	}
	return instants, nil
}

// ExpandScheduleFrom continues an expansion: it emits up to count instants
// on matching weekdays strictly after the given date, starting the walk at
// the following calendar day so no matching day in between is skipped.
func ExpandScheduleFrom(rule ScheduleRule, after time.Time, count, maxIterations int) ([]time.Time, error) {
	hour, minute, err := parseSessionTime(rule.SessionTime)
	if err != nil {
		return nil, err
	}
	days := weekdaySet(rule.SelectedDays)
	if len(days) == 0 {
		return nil, nil
	}
	if count <= 0 {
		count = 5
	}
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	var instants []time.Time
	date := dateOnly(after).AddDate(0, 0, 1)
	for i := 0; i < maxIterations && len(instants) < count; i++ {
		if _, ok := days[strings.ToLower(date.Weekday().String())]; ok {
			instants = append(instants, at(date, hour, minute))
		}
		date = date.AddDate(0, 0, 1)
	}
	return instants, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func at(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.UTC)
}
