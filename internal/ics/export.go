package ics

import (
	"fmt"
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/notify"
	"evcal/internal/recurrence"
)

const (
	productID = "-//evcal//evcal calendar//KO"

	utcStamp   = "20060102T150405Z"
	localStamp = "20060102T150405"
)

// ExportOptions controls Export.
type ExportOptions struct {
	// Name is published as X-WR-CALNAME.
	Name string
	// Location is the zone event dates and times are read in. Nil means UTC.
	Location *time.Location
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
}

// Export renders events as an iCalendar feed.
//
// A recurring series whose stored instances still agree on every field but
// the date is published as one VEVENT with an RRULE, and instances deleted
// from it become EXDATEs. Any other event, including a series that was
// edited instance by instance, is published one VEVENT per instance.
func Export(events []model.Event, opts ExportOptions) string {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	series := make(map[string][]model.Event)
	order := make([]string, 0)
	for _, ev := range events {
		if !ev.Repeat.IsRecurring() || ev.Repeat.ID == "" {
			addEvent(cal, ev, "", nil, opts)
			continue
		}
		if _, seen := series[ev.Repeat.ID]; !seen {
			order = append(order, ev.Repeat.ID)
		}
		series[ev.Repeat.ID] = append(series[ev.Repeat.ID], ev)
	}

	for _, id := range order {
		instances := series[id]
		sort.SliceStable(instances, func(i, j int) bool { return instances[i].Date < instances[j].Date })

		rule, exdates, ok := collapse(instances, opts.Location)
		if !ok {
			for _, ev := range instances {
				addEvent(cal, ev, "", nil, opts)
			}
			continue
		}
		addEvent(cal, instances[0], rule, exdates, opts)
	}

	return cal.Serialize()
}

func addEvent(cal *ical.Calendar, ev model.Event, rule string, exdates []time.Time, opts ExportOptions) {
	start, err := ev.Start(opts.Location)
	if err != nil {
		appLog.Warn("ics export: skipping event with bad start", "id", ev.ID, "date", ev.Date)
		return
	}
	end, err := ev.End(opts.Location)
	if err != nil {
		appLog.Warn("ics export: skipping event with bad end", "id", ev.ID, "date", ev.Date)
		return
	}

	uid := ev.ID + "@evcal"
	if rule != "" {
		uid = "series-" + ev.Repeat.ID + "@evcal"
	}

	vevent := cal.AddEvent(uid)
	vevent.SetDtStampTime(opts.Now)
	// RRULE은 DTSTART의 날짜를 기준으로 펼쳐지므로 로컬 시각 + TZID로 쓴다.
	v, params := stamp(start, opts.Location)
	vevent.SetProperty(ical.ComponentPropertyDtStart, v, params...)
	v, params = stamp(end, opts.Location)
	vevent.SetProperty(ical.ComponentPropertyDtEnd, v, params...)
	vevent.SetSummary(ev.Title)
	if ev.Description != "" {
		vevent.SetDescription(ev.Description)
	}
	if ev.Location != "" {
		vevent.SetLocation(ev.Location)
	}
	if ev.Category != "" {
		vevent.SetProperty(ical.ComponentPropertyCategories, string(ev.Category))
	}
	if rule != "" {
		vevent.AddRrule(rule)
		for _, ex := range exdates {
			v, params := stamp(ex, opts.Location)
			vevent.AddExdate(v, params...)
		}
	}

	if ev.NotificationTime > 0 {
		alarm := vevent.AddAlarm()
		alarm.SetProperty(ical.ComponentPropertyAction, "DISPLAY")
		alarm.SetProperty(ical.ComponentPropertyTrigger, fmt.Sprintf("-PT%dM", ev.NotificationTime))
		alarm.SetProperty(ical.ComponentPropertyDescription, notify.Message(ev))
	}
}

// stamp formats t for DTSTART/DTEND/EXDATE: UTC form for UTC, otherwise
// wall-clock time in loc with a TZID parameter.
func stamp(t time.Time, loc *time.Location) (string, []ical.PropertyParameter) {
	if loc == nil || loc == time.UTC {
		return t.UTC().Format(utcStamp), nil
	}
	return t.In(loc).Format(localStamp), []ical.PropertyParameter{ical.WithTZID(loc.String())}
}

// collapse checks that instances form an intact series and returns its
// RRULE plus the start times of deleted instances.
func collapse(instances []model.Event, loc *time.Location) (string, []time.Time, bool) {
	first := instances[0]
	if first.Repeat.EndDate == "" {
		return "", nil, false
	}
	for _, ev := range instances[1:] {
		a, b := ev.Form(), first.Form()
		a.Date, b.Date = "", ""
		if a != b {
			return "", nil, false
		}
	}

	form := first.Form()
	res, err := recurrence.Generate(form, recurrence.Options{SeriesID: first.Repeat.ID})
	if err != nil || res.Truncated {
		return "", nil, false
	}

	stored := make(map[string]bool, len(instances))
	for _, ev := range instances {
		stored[ev.Date] = true
	}
	var exdates []time.Time
	expected := make(map[string]bool, len(res.Events))
	for _, inst := range res.Events {
		expected[inst.Date] = true
		if stored[inst.Date] {
			continue
		}
		start, err := model.ParseDateTime(inst.Date, inst.StartTime, loc)
		if err != nil {
			return "", nil, false
		}
		exdates = append(exdates, start)
	}
	for date := range stored {
		if !expected[date] {
			return "", nil, false
		}
	}

	rule, err := recurrence.RRule(first.Repeat, loc)
	if err != nil || rule == "" {
		return "", nil, false
	}
	return rule, exdates, true
}
