package ics

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "evcal/internal/log"
	"evcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// Holidays maps "YYYY-MM-DD" to the holiday name(s) on that day.
type Holidays map[string]string

// ExpandConfig controls holiday expansion.
type ExpandConfig struct {
	// RangeStart / RangeEnd bound the days to report, both inclusive.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap against runaway rules. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// MonthRange returns the ExpandConfig covering one calendar month.
func MonthRange(year int, month time.Month) ExpandConfig {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return ExpandConfig{
		RangeStart: first,
		RangeEnd:   first.AddDate(0, 1, -1),
	}
}

// ExpandHolidays turns parsed holiday events into a day-to-name map for the
// configured range. It handles one-off and multi-day events, RRULE
// recurrence with EXDATE, and RECURRENCE-ID overrides. Two holidays on the
// same day are joined with ", " in name order.
func ExpandHolidays(events []ParsedEvent, cfg ExpandConfig) (Holidays, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	overrides := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		}
	}

	names := make(map[string][]string)
	add := func(ev ParsedEvent, start time.Time) {
		for i := 0; i < ev.Days(); i++ {
			d := start.AddDate(0, 0, i)
			if d.Before(cfg.RangeStart) || d.After(cfg.RangeEnd) {
				continue
			}
			key := d.Format(model.DateLayout)
			names[key] = appendUnique(names[key], ev.Summary)
		}
	}

	for _, ev := range events {
		if ev.IsOverride() {
			// Overrides without a recurring master still name their own day.
			if !hasMaster(events, ev.UID) {
				add(ev, ev.Start)
			}
			continue
		}
		if ev.RawRRule == "" {
			add(ev, ev.Start)
			continue
		}
		for _, start := range occurrences(ev, cfg) {
			if o, ok := findOverride(overrides[ev.UID], start); ok {
				add(o, o.Start)
				continue
			}
			add(ev, start)
		}
	}

	out := make(Holidays, len(names))
	for day, list := range names {
		sort.Strings(list)
		out[day] = strings.Join(list, ", ")
	}
	return out, nil
}

func occurrences(ev ParsedEvent, cfg ExpandConfig) []time.Time {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex)
	}

	// A multi-day holiday starting before the range still covers its first days.
	from := cfg.RangeStart.AddDate(0, 0, -(ev.Days() - 1))
	to := cfg.RangeEnd.Add(24*time.Hour - time.Second)
	times := set.Between(from, to, true)
	if len(times) > cfg.MaxOccurrencesPerEvent {
		appLog.Warn("expand: occurrences truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		times = times[:cfg.MaxOccurrencesPerEvent]
	}
	return times
}

func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, o := range overrides {
		if o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

func hasMaster(events []ParsedEvent, uid string) bool {
	for _, ev := range events {
		if ev.UID == uid && !ev.IsOverride() && ev.RawRRule != "" {
			return true
		}
	}
	return false
}

func appendUnique(list []string, name string) []string {
	for _, n := range list {
		if n == name {
			return list
		}
	}
	return append(list, name)
}
