package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "evcal/internal/log"
)

// ParsedEvent is the normalized representation of a holiday VEVENT.
// Only the calendar day matters for holidays, so Start and End are civil
// dates at midnight UTC.
type ParsedEvent struct {
	Source Source

	UID     string
	Summary string

	// Start is the first day; End is exclusive (RFC 5545 all-day DTEND).
	Start time.Time
	End   time.Time

	RawRRule string
	ExDates  []time.Time
	// Recurrence is the RECURRENCE-ID of an overriding instance.
	Recurrence *time.Time
}

// IsOverride reports whether ev replaces one instance of a recurring event.
func (ev ParsedEvent) IsOverride() bool {
	return ev.Recurrence != nil
}

// Days is the number of calendar days the event covers, at least one.
func (ev ParsedEvent) Days() int {
	n := int(ev.End.Sub(ev.Start).Hours() / 24)
	if n < 1 {
		return 1
	}
	return n
}

// ParseICS parses a single ICS payload into holiday events. Date-time
// values are reduced to their calendar day in loc (nil means UTC) unless
// they carry their own TZID. Malformed VEVENTs are logged and skipped.
func ParseICS(src Source, body []byte, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp, loc)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := parseICSDate(startProp.Value, tzid(startProp.ICalParameters), loc)
	if err != nil {
		return out, err
	}
	out.Start = start
	out.End = start.AddDate(0, 0, 1)

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, err := parseICSDate(endProp.Value, tzid(endProp.ICalParameters), loc)
		if err == nil && end.After(start) {
			out.End = end
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSDate(part, tzid(p.ICalParameters), loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, err := parseICSDate(p.Value, tzid(p.ICalParameters), loc); err == nil {
			out.Recurrence = &t
		}
	}

	return out, nil
}

func tzid(params map[string][]string) string {
	if vs, ok := params["TZID"]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// parseICSDate parses DATE or DATE-TIME values and returns the calendar day
// they fall on, as midnight UTC.
func parseICSDate(v, tz string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	var (
		t   time.Time
		err error
	)
	switch {
	case strings.HasSuffix(v, "Z"):
		t, err = time.Parse("20060102T150405Z", v)
		t = t.In(loc)
	case strings.Contains(v, "T"):
		in := loc
		if tz != "" {
			if l, lerr := time.LoadLocation(tz); lerr == nil {
				in = l
			}
		}
		t, err = time.ParseInLocation("20060102T150405", v, in)
	default:
		t, err = time.Parse("20060102", v)
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
