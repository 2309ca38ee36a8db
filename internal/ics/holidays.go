package ics

import (
	"context"
	"errors"
	"sync"
	"time"

	appLog "evcal/internal/log"
)

// HolidayCalendar keeps the parsed holiday feeds in memory and answers
// per-month lookups. Refresh replaces the feeds; lookups never block on
// the network.
type HolidayCalendar struct {
	fetcher *Fetcher
	sources []Source
	loc     *time.Location

	mu        sync.RWMutex
	events    []ParsedEvent
	refreshed time.Time
}

// NewHolidayCalendar creates an empty calendar over sources. Call Refresh
// to load it.
func NewHolidayCalendar(fetcher *Fetcher, sources []Source, loc *time.Location) *HolidayCalendar {
	if loc == nil {
		loc = time.UTC
	}
	return &HolidayCalendar{
		fetcher: fetcher,
		sources: sources,
		loc:     loc,
	}
}

// Refresh fetches and parses every source. Sources that fail keep no
// events; the error is returned only when no source could be loaded.
func (c *HolidayCalendar) Refresh(ctx context.Context) error {
	if len(c.sources) == 0 {
		return nil
	}

	results, errs := c.fetcher.FetchAll(ctx, c.sources)
	events := make([]ParsedEvent, 0)
	for _, res := range results {
		parsed, err := ParseICS(res.Source, res.Body, c.loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, parsed...)
	}

	if len(results) == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.mu.Lock()
	c.events = events
	c.refreshed = time.Now()
	c.mu.Unlock()

	appLog.Info("holidays refreshed", "sources", len(results), "events", len(events), "errors", len(errs))
	return nil
}

// Month returns the holidays of one calendar month.
func (c *HolidayCalendar) Month(year int, month time.Month) Holidays {
	c.mu.RLock()
	events := c.events
	c.mu.RUnlock()

	out, err := ExpandHolidays(events, MonthRange(year, month))
	if err != nil {
		appLog.Error("holiday expansion failed", err, "year", year, "month", int(month))
		return Holidays{}
	}
	return out
}

// Refreshed reports when the feeds were last loaded.
func (c *HolidayCalendar) Refreshed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshed
}
