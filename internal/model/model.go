package model

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DateLayout is the ISO calendar date used on the wire ("2025-11-06").
	DateLayout = "2006-01-02"
	// TimeLayout is the 24h wall-clock time used on the wire ("09:30").
	TimeLayout = "15:04"
)

// Category is the fixed set of event categories shown in the form.
type Category string

const (
	CategoryWork     Category = "업무"
	CategoryPersonal Category = "개인"
	CategoryFamily   Category = "가족"
	CategoryOther    Category = "기타"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryWork, CategoryPersonal, CategoryFamily, CategoryOther}

// NotificationOptions are the minutes-before-start values a user can pick.
var NotificationOptions = []int{1, 10, 60, 120, 1440}

// RepeatType selects the cadence of a recurring event.
type RepeatType string

const (
	RepeatNone    RepeatType = "none"
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
	RepeatYearly  RepeatType = "yearly"
)

// RepeatRule describes how an event repeats. Instances that share ID belong
// to the same recurring series.
type RepeatRule struct {
	Type     RepeatType `json:"type"`
	Interval int        `json:"interval"`
	EndDate  string     `json:"endDate,omitempty"`
	ID       string     `json:"id,omitempty"`
}

// NoRepeat is the rule carried by single (or detached) events.
func NoRepeat() RepeatRule {
	return RepeatRule{Type: RepeatNone, Interval: 0}
}

// IsRecurring reports whether the rule describes an actual series.
func (r RepeatRule) IsRecurring() bool {
	return r.Type != "" && r.Type != RepeatNone && r.Interval > 0
}

// EventForm is the user input for an event that has no server id yet.
type EventForm struct {
	Title            string     `json:"title"`
	Date             string     `json:"date"`
	StartTime        string     `json:"startTime"`
	EndTime          string     `json:"endTime"`
	Description      string     `json:"description"`
	Location         string     `json:"location"`
	Category         Category   `json:"category"`
	Repeat           RepeatRule `json:"repeat"`
	NotificationTime int        `json:"notificationTime"`
}

// Event is a persisted calendar event.
type Event struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Date             string     `json:"date"`
	StartTime        string     `json:"startTime"`
	EndTime          string     `json:"endTime"`
	Description      string     `json:"description"`
	Location         string     `json:"location"`
	Category         Category   `json:"category"`
	Repeat           RepeatRule `json:"repeat"`
	NotificationTime int        `json:"notificationTime"`
}

// Form returns the event without its id.
func (e Event) Form() EventForm {
	return EventForm{
		Title:            e.Title,
		Date:             e.Date,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		Description:      e.Description,
		Location:         e.Location,
		Category:         e.Category,
		Repeat:           e.Repeat,
		NotificationTime: e.NotificationTime,
	}
}

// WithID attaches a server-assigned id to the form.
func (f EventForm) WithID(id string) Event {
	return Event{
		ID:               id,
		Title:            f.Title,
		Date:             f.Date,
		StartTime:        f.StartTime,
		EndTime:          f.EndTime,
		Description:      f.Description,
		Location:         f.Location,
		Category:         f.Category,
		Repeat:           f.Repeat,
		NotificationTime: f.NotificationTime,
	}
}

// Start returns the event start as a wall-clock time in loc.
func (e Event) Start(loc *time.Location) (time.Time, error) {
	return ParseDateTime(e.Date, e.StartTime, loc)
}

// End returns the event end as a wall-clock time in loc.
func (e Event) End(loc *time.Location) (time.Time, error) {
	return ParseDateTime(e.Date, e.EndTime, loc)
}

// ParseDate parses an ISO date at midnight in loc. A nil loc means UTC.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, date, loc)
}

// IsClock reports whether s is a zero-padded 24h "HH:MM" time. Start and
// end are compared as strings, so "9:30" is rejected.
func IsClock(s string) bool {
	if len(s) != len(TimeLayout) {
		return false
	}
	t, err := time.Parse(TimeLayout, s)
	return err == nil && t.Format(TimeLayout) == s
}

// ParseDateTime combines an ISO date and an HH:MM time in loc.
func ParseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if !IsClock(clock) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
}

// NotificationItem is an active, undismissed notification.
type NotificationItem struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

var (
	ErrTitleRequired    = errors.New("model: title is required")
	ErrInvalidDate      = errors.New("model: date must be a valid YYYY-MM-DD calendar date")
	ErrInvalidTime      = errors.New("model: start and end time must be HH:MM")
	ErrTimeOrder        = errors.New("model: start time must be before end time")
	ErrUnknownCategory  = errors.New("model: unknown category")
	ErrUnknownReminder  = errors.New("model: unsupported notification time")
	ErrInvalidRepeat    = errors.New("model: invalid repeat rule")
	ErrInvalidRepeatEnd = errors.New("model: repeat end date must be a valid date not before the event date")
)

// Validate checks the invariants of a form before it is saved or expanded.
func (f EventForm) Validate() error {
	if f.Title == "" {
		return ErrTitleRequired
	}
	start, err := ParseDate(f.Date, nil)
	if err != nil {
		return ErrInvalidDate
	}
	if !IsClock(f.StartTime) || !IsClock(f.EndTime) {
		return ErrInvalidTime
	}
	if f.StartTime >= f.EndTime {
		return ErrTimeOrder
	}
	if !validCategory(f.Category) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, f.Category)
	}
	if !validNotification(f.NotificationTime) {
		return fmt.Errorf("%w: %d", ErrUnknownReminder, f.NotificationTime)
	}
	return validateRepeat(f.Repeat, start)
}

// Validate checks the event invariants; the id itself is not inspected.
func (e Event) Validate() error {
	return e.Form().Validate()
}

func validateRepeat(r RepeatRule, start time.Time) error {
	switch r.Type {
	case "", RepeatNone:
		if r.Interval != 0 {
			return fmt.Errorf("%w: interval must be 0 for non-repeating events", ErrInvalidRepeat)
		}
		return nil
	case RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		if r.Interval < 1 {
			return fmt.Errorf("%w: interval must be at least 1", ErrInvalidRepeat)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRepeat, r.Type)
	}
	if r.EndDate == "" {
		return nil
	}
	end, err := ParseDate(r.EndDate, nil)
	if err != nil || end.Before(start) {
		return ErrInvalidRepeatEnd
	}
	return nil
}

func validCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func validNotification(minutes int) bool {
	for _, opt := range NotificationOptions {
		if minutes == opt {
			return true
		}
	}
	return false
}

// Draft is what the UI hands to save: either a brand-new event or an edit
// of an existing one. The caller decides which; it is never inferred from
// the presence of an id.
type Draft interface {
	draft()
}

// NewEvent is a Draft that creates an event.
type NewEvent struct {
	Form EventForm
}

// ExistingEvent is a Draft that replaces a persisted event.
type ExistingEvent struct {
	Event Event
}

func (NewEvent) draft()      {}
func (ExistingEvent) draft() {}
