package overlap

import (
	"time"

	"evcal/internal/model"
)

// span is an event's [start, end) interval.
type span struct {
	start time.Time
	end   time.Time
}

func spanOf(ev model.Event) (span, bool) {
	// Wall-clock comparison only needs a fixed location.
	start, err := ev.Start(time.UTC)
	if err != nil {
		return span{}, false
	}
	end, err := ev.End(time.UTC)
	if err != nil {
		return span{}, false
	}
	return span{start: start, end: end}, true
}

// timesOverlap reports whether [start1, end1) and [start2, end2) intersect.
func timesOverlap(a, b span) bool {
	return a.start.Before(b.end) && b.start.Before(a.end)
}

// IsOverlapping reports whether two events share a date and their
// half-open time ranges intersect. Events whose date or times do not parse
// never overlap anything.
func IsOverlapping(a, b model.Event) bool {
	if a.Date != b.Date {
		return false
	}
	sa, ok := spanOf(a)
	if !ok {
		return false
	}
	sb, ok := spanOf(b)
	if !ok {
		return false
	}
	return timesOverlap(sa, sb)
}

// FindOverlappingEvents returns the existing events that overlap candidate,
// in their original order. An event with the candidate's id is the
// candidate itself (an edit) and is skipped; a candidate with no id yet
// skips nothing.
func FindOverlappingEvents(candidate model.Event, existing []model.Event) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range existing {
		if candidate.ID != "" && ev.ID == candidate.ID {
			continue
		}
		if IsOverlapping(candidate, ev) {
			out = append(out, ev)
		}
	}
	return out
}

// FindForForm is FindOverlappingEvents for an event that has not been saved.
func FindForForm(form model.EventForm, existing []model.Event) []model.Event {
	return FindOverlappingEvents(form.WithID(""), existing)
}
