package calendar

import (
	"fmt"
	"time"

	"evcal/internal/model"
)

// Week is one row of the month grid, Sunday first. A zero cell is an
// empty slot that belongs to the previous or next month.
type Week [7]int

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// dateOnly truncates t to midnight in its own location.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekDates returns the seven dates (Sunday to Saturday) of the week that
// contains t, each at midnight in t's location.
func WeekDates(t time.Time) []time.Time {
	day := dateOnly(t)
	sunday := day.AddDate(0, 0, -int(day.Weekday()))

	out := make([]time.Time, 7)
	for i := range out {
		out[i] = sunday.AddDate(0, 0, i)
	}
	return out
}

// WeeksAtMonth lays out the month containing t as Sunday-first weeks.
// Every day of the month appears exactly once; leading and trailing
// cells that fall outside the month are zero.
func WeeksAtMonth(t time.Time) []Week {
	y, m, _ := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	offset := int(first.Weekday())
	days := DaysInMonth(y, m)

	rows := (offset + days + 6) / 7
	weeks := make([]Week, rows)
	for d := 1; d <= days; d++ {
		slot := offset + d - 1
		weeks[slot/7][slot%7] = d
	}
	return weeks
}

// FormatDate renders t as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.Format(model.DateLayout)
}

// FormatDay renders the given day-of-month within t's year and month.
func FormatDay(t time.Time, day int) string {
	y, m, _ := t.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), day)
}

// FormatMonth renders the month header, e.g. "2025년 11월".
func FormatMonth(t time.Time) string {
	y, m, _ := t.Date()
	return fmt.Sprintf("%d년 %d월", y, int(m))
}

// FormatWeek renders the week header, e.g. "2025년 11월 1주".
//
// The week belongs to the month of its Thursday (as in ISO 8601 week
// numbering) and is counted from the first Thursday of that month.
func FormatWeek(t time.Time) string {
	day := civil(t)
	thursday := day.AddDate(0, 0, int(time.Thursday)-int(day.Weekday()))

	y, m, _ := thursday.Date()
	firstOfMonth := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	firstThursday := firstOfMonth.AddDate(0, 0, (int(time.Thursday)-int(firstOfMonth.Weekday())+7)%7)

	week := int(thursday.Sub(firstThursday).Hours()/24)/7 + 1
	return fmt.Sprintf("%d년 %d월 %d주", y, int(m), week)
}

// civil moves t's calendar date to UTC midnight so day arithmetic is not
// affected by DST transitions.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsDateInRange reports whether date lies within [start, end], compared by
// calendar day.
func IsDateInRange(date, start, end time.Time) bool {
	d := civil(date)
	return !d.Before(civil(start)) && !d.After(civil(end))
}

// EventsForDay returns the events dated on the given day of ref's month.
// Day zero (an empty grid cell) never has events.
func EventsForDay(events []model.Event, ref time.Time, day int) []model.Event {
	if day <= 0 {
		return nil
	}
	target := FormatDay(ref, day)

	out := make([]model.Event, 0)
	for _, ev := range events {
		if ev.Date == target {
			out = append(out, ev)
		}
	}
	return out
}
