package notify

import (
	"fmt"
	"sync"
	"time"

	"evcal/internal/model"
)

// Message renders the reminder text for ev.
func Message(ev model.Event) string {
	return fmt.Sprintf("%d분 후 %s 일정이 시작됩니다", ev.NotificationTime, ev.Title)
}

// Due returns a notification for every event whose reminder window
// [start - notificationTime, start) contains now and whose id is not in
// skip. Event times are wall-clock times in loc.
func Due(events []model.Event, now time.Time, loc *time.Location, skip map[string]bool) []model.NotificationItem {
	if loc == nil {
		loc = now.Location()
	}
	out := make([]model.NotificationItem, 0)
	for _, ev := range events {
		if skip[ev.ID] || ev.NotificationTime <= 0 {
			continue
		}
		start, err := ev.Start(loc)
		if err != nil {
			continue
		}
		remind := start.Add(-time.Duration(ev.NotificationTime) * time.Minute)
		if now.Before(remind) || !now.Before(start) {
			continue
		}
		out = append(out, model.NotificationItem{ID: ev.ID, Message: Message(ev)})
	}
	return out
}

// Tracker keeps the active notifications and remembers which events have
// already fired so each event notifies at most once.
type Tracker struct {
	loc *time.Location

	mu       sync.Mutex
	notified map[string]bool
	active   []model.NotificationItem
}

// NewTracker constructs a Tracker evaluating event times in loc.
func NewTracker(loc *time.Location) *Tracker {
	return &Tracker{
		loc:      loc,
		notified: make(map[string]bool),
	}
}

// Check fires notifications for events that became due and returns only
// the newly fired ones.
func (t *Tracker) Check(events []model.Event, now time.Time) []model.NotificationItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	fresh := Due(events, now, t.loc, t.notified)
	for _, item := range fresh {
		t.notified[item.ID] = true
		t.active = append(t.active, item)
	}
	return fresh
}

// Active returns a copy of the undismissed notifications.
func (t *Tracker) Active() []model.NotificationItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.NotificationItem(nil), t.active...)
}

// Notified reports whether the event has already fired.
func (t *Tracker) Notified(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notified[id]
}

// Dismiss removes a notification. The event does not fire again.
func (t *Tracker) Dismiss(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.active[:0]
	for _, item := range t.active {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	t.active = kept
}
