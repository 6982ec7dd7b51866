// Package sched runs the recurring jobs: the daily sale adjustment, the
// rain drop scheduler, and the retention archiver. Jobs fire on 5-field
// cron expressions and take a distributed lock per run so overlapping
// instances or restarts near a boundary execute each period once.
package sched

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed 5-field cron expression:
// "minute hour day-of-month month day-of-week".
//
// Fields accept "*" or comma-separated integer lists. Example: "0 12,20 * * *"
// fires at 12:00 and 20:00 every day.
type Schedule struct {
	minute     field
	hour       field
	dayOfMonth field
	month      field
	dayOfWeek  field
}

type field struct {
	wildcard bool
	values   []int
}

func (f field) matches(val int) bool {
	if f.wildcard {
		return true
	}
	for _, v := range f.values {
		if v == val {
			return true
		}
	}
	return false
}

func parseField(s string, min, max int) (field, error) {
	if s == "*" {
		return field{wildcard: true}, nil
	}

	parts := strings.Split(s, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return field{}, fmt.Errorf("invalid cron value %q: %w", p, err)
		}
		if v < min || v > max {
			return field{}, fmt.Errorf("cron value %d out of range [%d,%d]", v, min, max)
		}
		values = append(values, v)
	}
	return field{values: values}, nil
}

// Parse parses a 5-field cron expression.
func Parse(expr string) (Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return Schedule{}, fmt.Errorf("sched: cron expression must have 5 fields, got %d", len(fields))
	}

	specs := []struct {
		name     string
		min, max int
		dst      *field
	}{
		{"minute", 0, 59, nil},
		{"hour", 0, 23, nil},
		{"day-of-month", 1, 31, nil},
		{"month", 1, 12, nil},
		{"day-of-week", 0, 6, nil},
	}

	var s Schedule
	specs[0].dst = &s.minute
	specs[1].dst = &s.hour
	specs[2].dst = &s.dayOfMonth
	specs[3].dst = &s.month
	specs[4].dst = &s.dayOfWeek

	for i, spec := range specs {
		f, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return Schedule{}, fmt.Errorf("sched: parsing %s field: %w", spec.name, err)
		}
		*spec.dst = f
	}
	return s, nil
}

func (s Schedule) matchesTime(t time.Time) bool {
	return s.minute.matches(t.Minute()) &&
		s.hour.matches(t.Hour()) &&
		s.dayOfMonth.matches(t.Day()) &&
		s.month.matches(int(t.Month())) &&
		s.dayOfWeek.matches(int(t.Weekday()))
}

// Next returns the first time strictly after 'after' matching the schedule.
// It searches minute-by-minute up to one year ahead.
func (s Schedule) Next(after time.Time) (time.Time, error) {
	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if s.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("sched: no matching time within one year")
}
