package calendar

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"evcal/internal/model"
)

// View is the calendar layout the event list is scoped to.
type View string

const (
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

// SearchEvents keeps events whose title, description or location contains
// term, ignoring case. An empty term keeps everything.
func SearchEvents(events []model.Event, term string) []model.Event {
	term = strings.TrimSpace(term)
	out := make([]model.Event, 0, len(events))
	if term == "" {
		return append(out, events...)
	}

	// Casers carry state and must not be shared.
	fold := cases.Fold()
	needle := fold.String(term)
	for _, ev := range events {
		if strings.Contains(fold.String(ev.Title), needle) ||
			strings.Contains(fold.String(ev.Description), needle) ||
			strings.Contains(fold.String(ev.Location), needle) {
			out = append(out, ev)
		}
	}
	return out
}

// FilterEvents applies SearchEvents and then keeps only events dated in the
// week or month that contains ref. Events with unparseable dates are dropped.
func FilterEvents(events []model.Event, term string, ref time.Time, view View) []model.Event {
	start, end := viewBounds(ref, view)

	matched := SearchEvents(events, term)
	out := matched[:0]
	for _, ev := range matched {
		date, err := model.ParseDate(ev.Date, nil)
		if err != nil {
			continue
		}
		if IsDateInRange(date, start, end) {
			out = append(out, ev)
		}
	}
	return out
}

func viewBounds(ref time.Time, view View) (time.Time, time.Time) {
	if view == ViewWeek {
		week := WeekDates(ref)
		return week[0], week[6]
	}
	y, m, _ := ref.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC),
		time.Date(y, m, DaysInMonth(y, m), 0, 0, 0, 0, time.UTC)
}
