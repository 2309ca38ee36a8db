package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/overlap"
	"evcal/internal/recurrence"
)

// Toast messages reported through the Notifier.
const (
	MsgFetchFailed  = "이벤트 로딩 실패"
	MsgSaveFailed   = "일정 저장 실패"
	MsgDeleteFailed = "일정 삭제 실패"

	MsgEventAdded   = "일정이 추가되었습니다"
	MsgEventUpdated = "일정이 수정되었습니다"
	MsgEventDeleted = "일정이 삭제되었습니다"
	MsgEventsLoaded = "일정 로딩 완료!"
)

var (
	// ErrEventNotFound is returned when an operation names an id that is
	// not in the current snapshot.
	ErrEventNotFound = errors.New("schedule: event not found")
	// ErrSeriesNotFound is returned when no event carries the series id.
	ErrSeriesNotFound = errors.New("schedule: series not found")
	// ErrInvalidEvent wraps validation failures that block a save.
	ErrInvalidEvent = errors.New("schedule: invalid event")
)

// Backend is the persistence API the controller drives. *api.Client
// implements it.
type Backend interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
	CreateEvent(ctx context.Context, form model.EventForm) (model.Event, error)
	UpdateEvent(ctx context.Context, ev model.Event) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	CreateEventList(ctx context.Context, forms []model.EventForm) ([]model.Event, error)
	UpdateEventList(ctx context.Context, events []model.Event) ([]model.Event, error)
	DeleteEventList(ctx context.Context, ids []string) error
}

// Options configures a Controller.
type Options struct {
	Recurrence recurrence.Options
	// OnSave runs after a successful save or series creation, e.g. to
	// reset the form.
	OnSave func()
}

// Controller owns the client-side event list. Every change replaces the
// whole list (copy-on-write); concurrent operations race with
// last-writer-wins semantics and never observe a half-updated list.
type Controller struct {
	backend  Backend
	notifier Notifier
	opts     Options

	events atomic.Pointer[[]model.Event]
}

// NewController wires a controller to its backend and toast side channel.
// A nil notifier logs instead.
func NewController(backend Backend, notifier Notifier, opts Options) *Controller {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	c := &Controller{
		backend:  backend,
		notifier: notifier,
		opts:     opts,
	}
	empty := []model.Event{}
	c.events.Store(&empty)
	return c
}

// Events returns a copy of the current snapshot.
func (c *Controller) Events() []model.Event {
	return append([]model.Event(nil), *c.events.Load()...)
}

// Find returns the event with id from the current snapshot.
func (c *Controller) Find(id string) (model.Event, bool) {
	for _, ev := range *c.events.Load() {
		if ev.ID == id {
			return ev, true
		}
	}
	return model.Event{}, false
}

// Series returns the instances of one recurring series in snapshot order.
func (c *Controller) Series(seriesID string) []model.Event {
	out := make([]model.Event, 0)
	if seriesID == "" {
		return out
	}
	for _, ev := range *c.events.Load() {
		if ev.Repeat.ID == seriesID {
			out = append(out, ev)
		}
	}
	return out
}

// Init loads the events and announces it.
func (c *Controller) Init(ctx context.Context) error {
	if err := c.Fetch(ctx); err != nil {
		return err
	}
	c.notifier.Notify(VariantInfo, MsgEventsLoaded)
	return nil
}

// Fetch replaces the snapshot with the server's event list.
func (c *Controller) Fetch(ctx context.Context) error {
	events, err := c.backend.ListEvents(ctx)
	if err != nil {
		appLog.Error("fetch events failed", err)
		c.notifier.Notify(VariantError, MsgFetchFailed)
		return err
	}
	next := append([]model.Event(nil), events...)
	c.events.Store(&next)
	return nil
}

// Save creates or updates a single event depending on the draft kind.
func (c *Controller) Save(ctx context.Context, d model.Draft) error {
	var (
		err     error
		success string
	)
	switch d := d.(type) {
	case model.NewEvent:
		success = MsgEventAdded
		if err = validate(d.Form); err == nil {
			_, err = c.backend.CreateEvent(ctx, d.Form)
		}
	case model.ExistingEvent:
		success = MsgEventUpdated
		ev := d.Event
		if ev.Repeat.Type == "" {
			ev.Repeat = model.NoRepeat()
		}
		if ev.ID == "" {
			err = fmt.Errorf("%w: missing id", ErrInvalidEvent)
		} else if err = validate(ev.Form()); err == nil {
			_, err = c.backend.UpdateEvent(ctx, ev)
		}
	default:
		err = fmt.Errorf("%w: unsupported draft %T", ErrInvalidEvent, d)
	}

	if err != nil {
		appLog.Error("save event failed", err)
		c.notifier.Notify(VariantError, MsgSaveFailed)
		return err
	}
	c.afterWrite(ctx, success)
	return nil
}

// Delete removes a single event.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.backend.DeleteEvent(ctx, id); err != nil {
		appLog.Error("delete event failed", err, "id", id)
		c.notifier.Notify(VariantError, MsgDeleteFailed)
		return err
	}
	_ = c.Fetch(ctx)
	c.notifier.Notify(VariantInfo, MsgEventDeleted)
	return nil
}

// CreateRepeat expands form into its recurring series and stores every
// instance in one batch.
func (c *Controller) CreateRepeat(ctx context.Context, form model.EventForm) error {
	err := validate(form)
	var res recurrence.Result
	if err == nil {
		res, err = recurrence.Generate(form, c.opts.Recurrence)
	}
	if err == nil {
		if res.Truncated {
			appLog.Warn("recurring series truncated", "title", form.Title, "count", len(res.Events))
		}
		_, err = c.backend.CreateEventList(ctx, res.Events)
	}
	if err != nil {
		appLog.Error("create recurring events failed", err, "title", form.Title)
		c.notifier.Notify(VariantError, MsgSaveFailed)
		return err
	}
	c.afterWrite(ctx, MsgEventAdded)
	return nil
}

// UpdateSeries applies the descriptive fields of form (title, times,
// description, location, category, notification time) to every instance
// of a series. Dates and the repeat descriptor of each instance stay as
// they are.
func (c *Controller) UpdateSeries(ctx context.Context, seriesID string, form model.EventForm) error {
	instances := c.Series(seriesID)
	var err error
	if len(instances) == 0 {
		err = fmt.Errorf("%w: %q", ErrSeriesNotFound, seriesID)
	}
	if err == nil {
		for i, ev := range instances {
			ev.Title = form.Title
			ev.StartTime = form.StartTime
			ev.EndTime = form.EndTime
			ev.Description = form.Description
			ev.Location = form.Location
			ev.Category = form.Category
			ev.NotificationTime = form.NotificationTime
			if err = validate(ev.Form()); err != nil {
				break
			}
			instances[i] = ev
		}
	}
	if err == nil {
		_, err = c.backend.UpdateEventList(ctx, instances)
	}
	if err != nil {
		appLog.Error("update series failed", err, "series", seriesID)
		c.notifier.Notify(VariantError, MsgSaveFailed)
		return err
	}
	c.afterWrite(ctx, MsgEventUpdated)
	return nil
}

// DeleteSeries removes every instance of a series.
func (c *Controller) DeleteSeries(ctx context.Context, seriesID string) error {
	instances := c.Series(seriesID)
	var err error
	if len(instances) == 0 {
		err = fmt.Errorf("%w: %q", ErrSeriesNotFound, seriesID)
	} else {
		ids := make([]string, 0, len(instances))
		for _, ev := range instances {
			ids = append(ids, ev.ID)
		}
		err = c.backend.DeleteEventList(ctx, ids)
	}
	if err != nil {
		appLog.Error("delete series failed", err, "series", seriesID)
		c.notifier.Notify(VariantError, MsgDeleteFailed)
		return err
	}
	_ = c.Fetch(ctx)
	c.notifier.Notify(VariantInfo, MsgEventDeleted)
	return nil
}

// Overlaps lists the events in the snapshot that the draft would overlap.
func (c *Controller) Overlaps(d model.Draft) []model.Event {
	snapshot := *c.events.Load()
	switch d := d.(type) {
	case model.NewEvent:
		return overlap.FindForForm(d.Form, snapshot)
	case model.ExistingEvent:
		return overlap.FindOverlappingEvents(d.Event, snapshot)
	default:
		return nil
	}
}

func (c *Controller) afterWrite(ctx context.Context, success string) {
	// A failed refresh is reported by Fetch itself; the write still succeeded.
	_ = c.Fetch(ctx)
	if c.opts.OnSave != nil {
		c.opts.OnSave()
	}
	c.notifier.Notify(VariantSuccess, success)
}

// update swaps in fn's result. fn must build a new slice rather than
// modify the one it is given.
func (c *Controller) update(fn func([]model.Event) []model.Event) {
	for {
		old := c.events.Load()
		next := fn(*old)
		if c.events.CompareAndSwap(old, &next) {
			return
		}
	}
}

func replaced(events []model.Event, ev model.Event) []model.Event {
	out := make([]model.Event, len(events))
	for i, cur := range events {
		if cur.ID == ev.ID {
			out[i] = ev
			continue
		}
		out[i] = cur
	}
	return out
}

func validate(form model.EventForm) error {
	if err := form.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return nil
}
