package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"evcal/internal/model"
)

const (
	defaultMaxOccurrences = 5000
)

var (
	// ErrInvalidDate indicates the form date or repeat end date does not parse.
	ErrInvalidDate = errors.New("recurrence: invalid date")
	// ErrInvalidInterval indicates a repeating rule with interval below 1.
	ErrInvalidInterval = errors.New("recurrence: interval must be at least 1")
	// ErrUnknownType indicates an unsupported repeat type.
	ErrUnknownType = errors.New("recurrence: unknown repeat type")
	// ErrEndBeforeStart indicates the repeat end date precedes the first date.
	ErrEndBeforeStart = errors.New("recurrence: end date is before start date")
)

// Options controls how a repeat rule is expanded.
type Options struct {
	// MaxOccurrences caps the number of generated instances. If zero,
	// defaultMaxOccurrences is used.
	MaxOccurrences int

	// OpenEndedHorizonDays bounds rules without an end date. If zero, a
	// rule without an end date does not repeat at all.
	OpenEndedHorizonDays int

	// SeriesID is stamped into every instance's repeat.id. If empty, a new
	// id is generated for repeating rules.
	SeriesID string
}

// Result holds the expanded instances in date order.
type Result struct {
	Events []model.EventForm
	// Truncated is set when MaxOccurrences stopped the expansion early.
	Truncated bool
}

// Generate expands one event form into its dated instances.
//
//   - repeat.type "none" yields the form itself with repeat {none, 0}.
//   - daily/weekly step by interval days/weeks from form.Date.
//   - monthly/yearly keep the day of month (and month); a date that does not
//     exist in the target month or year (Jan 31 in February, Feb 29 outside
//     leap years) is skipped, never clamped to month end.
//   - repeat.endDate is an inclusive bound.
//
// Instances are strictly increasing by date, the first one is always
// form.Date, and all of them share title, times, category, notification
// time and one repeat descriptor; only the date differs.
func Generate(form model.EventForm, opts Options) (Result, error) {
	rule := form.Repeat
	if rule.Type == "" || rule.Type == model.RepeatNone {
		return single(form), nil
	}

	freq, err := frequency(rule.Type)
	if err != nil {
		return Result{}, err
	}
	if rule.Interval < 1 {
		return Result{}, ErrInvalidInterval
	}

	start, err := model.ParseDate(form.Date, time.UTC)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidDate, form.Date)
	}

	var until time.Time
	switch {
	case rule.EndDate != "":
		until, err = model.ParseDate(rule.EndDate, time.UTC)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %q", ErrInvalidDate, rule.EndDate)
		}
		if until.Before(start) {
			return Result{}, ErrEndBeforeStart
		}
	case opts.OpenEndedHorizonDays > 0:
		until = start.AddDate(0, 0, opts.OpenEndedHorizonDays)
	default:
		// Repeating forever is not supported without a horizon.
		return single(form), nil
	}

	limit := opts.MaxOccurrences
	if limit <= 0 {
		limit = defaultMaxOccurrences
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     freq,
		Interval: rule.Interval,
		Dtstart:  start,
		Until:    until,
		// One extra occurrence tells us whether the cap cut anything off.
		Count: limit + 1,
	})
	if err != nil {
		return Result{}, fmt.Errorf("recurrence: build rule: %w", err)
	}

	dates := r.All()
	var result Result
	if len(dates) > limit {
		dates = dates[:limit]
		result.Truncated = true
	}

	seriesID := opts.SeriesID
	if seriesID == "" {
		seriesID = rule.ID
	}
	if seriesID == "" {
		seriesID = uuid.NewString()
	}
	shared := model.RepeatRule{
		Type:     rule.Type,
		Interval: rule.Interval,
		EndDate:  rule.EndDate,
		ID:       seriesID,
	}

	result.Events = make([]model.EventForm, 0, len(dates))
	for _, d := range dates {
		inst := form
		inst.Date = d.Format(model.DateLayout)
		inst.Repeat = shared
		result.Events = append(result.Events, inst)
	}
	return result, nil
}

func single(form model.EventForm) Result {
	form.Repeat = model.NoRepeat()
	return Result{Events: []model.EventForm{form}}
}

func frequency(t model.RepeatType) (rrule.Frequency, error) {
	switch t {
	case model.RepeatDaily:
		return rrule.DAILY, nil
	case model.RepeatWeekly:
		return rrule.WEEKLY, nil
	case model.RepeatMonthly:
		return rrule.MONTHLY, nil
	case model.RepeatYearly:
		return rrule.YEARLY, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// RRule renders rule as an iCalendar RRULE value (without the "RRULE:"
// prefix). Non-repeating rules render as "". The end date covers the whole
// day in loc (nil means UTC) so that an instance starting on it is still
// included.
func RRule(rule model.RepeatRule, loc *time.Location) (string, error) {
	if !rule.IsRecurring() {
		return "", nil
	}
	freq, err := frequency(rule.Type)
	if err != nil {
		return "", err
	}
	opt := rrule.ROption{
		Freq:     freq,
		Interval: rule.Interval,
	}
	if rule.EndDate != "" {
		until, err := model.ParseDate(rule.EndDate, loc)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidDate, rule.EndDate)
		}
		opt.Until = until.AddDate(0, 0, 1).Add(-time.Second).UTC()
	}
	return opt.RRuleString(), nil
}
