package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evcal/internal/model"
	"evcal/internal/recurrence"
)

var errBackend = errors.New("backend down")

// fakeBackend is an in-memory persistence API with failure injection.
type fakeBackend struct {
	mu     sync.Mutex
	events []model.Event
	nextID int
	calls  map[string]int

	failList   bool
	failCreate bool
	failUpdate bool
	failDelete bool

	// onUpdate runs before UpdateEvent answers.
	onUpdate func(model.Event)
}

func newFakeBackend(events ...model.Event) *fakeBackend {
	return &fakeBackend{events: events, calls: map[string]int{}}
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) hit(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeBackend) ListEvents(context.Context) ([]model.Event, error) {
	f.hit("list")
	if f.failList {
		return nil, errBackend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Event(nil), f.events...), nil
}

func (f *fakeBackend) CreateEvent(_ context.Context, form model.EventForm) (model.Event, error) {
	f.hit("create")
	if f.failCreate {
		return model.Event{}, errBackend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ev := form.WithID(fmt.Sprintf("id-%d", f.nextID))
	f.events = append(f.events, ev)
	return ev, nil
}

func (f *fakeBackend) UpdateEvent(_ context.Context, ev model.Event) (model.Event, error) {
	f.hit("update")
	if f.onUpdate != nil {
		f.onUpdate(ev)
	}
	if f.failUpdate {
		return model.Event{}, errBackend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == ev.ID {
			f.events[i] = ev
			return ev, nil
		}
	}
	return model.Event{}, errors.New("not found")
}

func (f *fakeBackend) DeleteEvent(_ context.Context, id string) error {
	f.hit("delete")
	if f.failDelete {
		return errBackend
	}
	return f.DeleteEventList(context.Background(), []string{id})
}

func (f *fakeBackend) CreateEventList(_ context.Context, forms []model.EventForm) ([]model.Event, error) {
	f.hit("createList")
	if f.failCreate {
		return nil, errBackend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Event, 0, len(forms))
	for _, form := range forms {
		f.nextID++
		ev := form.WithID(fmt.Sprintf("id-%d", f.nextID))
		f.events = append(f.events, ev)
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeBackend) UpdateEventList(_ context.Context, events []model.Event) ([]model.Event, error) {
	f.hit("updateList")
	if f.failUpdate {
		return nil, errBackend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range events {
		for i := range f.events {
			if f.events[i].ID == ev.ID {
				f.events[i] = ev
			}
		}
	}
	return events, nil
}

func (f *fakeBackend) DeleteEventList(_ context.Context, ids []string) error {
	f.hit("deleteList")
	if f.failDelete {
		return errBackend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.events[:0]
	for _, ev := range f.events {
		if !drop[ev.ID] {
			kept = append(kept, ev)
		}
	}
	f.events = kept
	return nil
}

type toast struct {
	variant Variant
	message string
}

type recorder struct {
	mu     sync.Mutex
	toasts []toast
}

func (r *recorder) Notify(v Variant, m string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, toast{v, m})
}

func (r *recorder) last() toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return toast{}
	}
	return r.toasts[len(r.toasts)-1]
}

func form(title, date string) model.EventForm {
	return model.EventForm{
		Title:            title,
		Date:             date,
		StartTime:        "10:00",
		EndTime:          "11:00",
		Description:      "설명",
		Location:         "회의실 A",
		Category:         model.CategoryWork,
		Repeat:           model.NoRepeat(),
		NotificationTime: 10,
	}
}

func newController(t *testing.T, backend *fakeBackend) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := NewController(backend, rec, Options{})
	require.NoError(t, c.Fetch(context.Background()))
	return c, rec
}

func TestController_InitAndFetch(t *testing.T) {
	backend := newFakeBackend(form("a", "2025-11-06").WithID("1"))
	rec := &recorder{}
	c := NewController(backend, rec, Options{})
	assert.Empty(t, c.Events())

	require.NoError(t, c.Init(context.Background()))
	assert.Len(t, c.Events(), 1)
	assert.Equal(t, toast{VariantInfo, MsgEventsLoaded}, rec.last())

	backend.failList = true
	assert.ErrorIs(t, c.Fetch(context.Background()), errBackend)
	assert.Equal(t, toast{VariantError, MsgFetchFailed}, rec.last())
	assert.Len(t, c.Events(), 1, "failed fetch keeps the previous snapshot")
}

func TestController_EventsReturnsCopy(t *testing.T) {
	c, _ := newController(t, newFakeBackend(form("a", "2025-11-06").WithID("1")))
	got := c.Events()
	got[0].Title = "mutated"
	ev, ok := c.Find("1")
	require.True(t, ok)
	assert.Equal(t, "a", ev.Title)
}

func TestController_SaveNewAndExisting(t *testing.T) {
	backend := newFakeBackend()
	saved := 0
	rec := &recorder{}
	c := NewController(backend, rec, Options{OnSave: func() { saved++ }})

	require.NoError(t, c.Save(context.Background(), model.NewEvent{Form: form("새 일정", "2025-11-06")}))
	assert.Equal(t, 1, backend.count("create"))
	assert.Equal(t, toast{VariantSuccess, MsgEventAdded}, rec.last())
	require.Len(t, c.Events(), 1)

	created := c.Events()[0]
	created.Title = "수정된 일정"
	created.Repeat = model.RepeatRule{}
	require.NoError(t, c.Save(context.Background(), model.ExistingEvent{Event: created}))
	assert.Equal(t, 1, backend.count("update"))
	assert.Equal(t, toast{VariantSuccess, MsgEventUpdated}, rec.last())
	assert.Equal(t, 2, saved)

	ev, ok := c.Find(created.ID)
	require.True(t, ok)
	assert.Equal(t, "수정된 일정", ev.Title)
	assert.Equal(t, model.NoRepeat(), ev.Repeat, "missing repeat defaults to none")
}

// The saved-then-fetched event must match the form field for field.
func TestController_SaveRoundTrip(t *testing.T) {
	c, _ := newController(t, newFakeBackend())
	in := form("왕복", "2025-12-24")
	require.NoError(t, c.Save(context.Background(), model.NewEvent{Form: in}))
	require.Len(t, c.Events(), 1)
	assert.Equal(t, in, c.Events()[0].Form())
}

func TestController_SaveFailures(t *testing.T) {
	backend := newFakeBackend()
	c, rec := newController(t, backend)

	bad := form("", "2025-11-06")
	assert.ErrorIs(t, c.Save(context.Background(), model.NewEvent{Form: bad}), ErrInvalidEvent)
	assert.Equal(t, 0, backend.count("create"), "invalid input never reaches the server")
	assert.Equal(t, toast{VariantError, MsgSaveFailed}, rec.last())

	assert.ErrorIs(t, c.Save(context.Background(), model.ExistingEvent{Event: form("x", "2025-11-06").WithID("")}), ErrInvalidEvent)

	backend.failCreate = true
	assert.ErrorIs(t, c.Save(context.Background(), model.NewEvent{Form: form("ok", "2025-11-06")}), errBackend)
	assert.Equal(t, toast{VariantError, MsgSaveFailed}, rec.last())
	assert.Empty(t, c.Events())
}

func TestController_Delete(t *testing.T) {
	backend := newFakeBackend(form("a", "2025-11-06").WithID("1"), form("b", "2025-11-07").WithID("2"))
	c, rec := newController(t, backend)

	require.NoError(t, c.Delete(context.Background(), "1"))
	assert.Equal(t, toast{VariantInfo, MsgEventDeleted}, rec.last())
	require.Len(t, c.Events(), 1)
	assert.Equal(t, "2", c.Events()[0].ID)

	backend.failDelete = true
	assert.Error(t, c.Delete(context.Background(), "2"))
	assert.Equal(t, toast{VariantError, MsgDeleteFailed}, rec.last())
	assert.Len(t, c.Events(), 1)
}

func TestController_CreateRepeat(t *testing.T) {
	backend := newFakeBackend()
	rec := &recorder{}
	c := NewController(backend, rec, Options{Recurrence: recurrence.Options{SeriesID: "series-1"}})

	in := form("매주 회의", "2025-11-06")
	in.Repeat = model.RepeatRule{Type: model.RepeatWeekly, Interval: 1, EndDate: "2025-11-27"}
	require.NoError(t, c.CreateRepeat(context.Background(), in))

	assert.Equal(t, 1, backend.count("createList"))
	assert.Equal(t, toast{VariantSuccess, MsgEventAdded}, rec.last())

	series := c.Series("series-1")
	require.Len(t, series, 4)
	for i, want := range []string{"2025-11-06", "2025-11-13", "2025-11-20", "2025-11-27"} {
		assert.Equal(t, want, series[i].Date)
	}

	bad := form("bad", "2025-11-06")
	bad.Repeat = model.RepeatRule{Type: model.RepeatDaily, Interval: 0, EndDate: "2025-11-10"}
	assert.ErrorIs(t, c.CreateRepeat(context.Background(), bad), ErrInvalidEvent)
	assert.Equal(t, toast{VariantError, MsgSaveFailed}, rec.last())
}

func seriesFixture() []model.Event {
	rule := model.RepeatRule{Type: model.RepeatDaily, Interval: 1, EndDate: "2025-11-08", ID: "s1"}
	out := make([]model.Event, 0, 4)
	for i, date := range []string{"2025-11-06", "2025-11-07", "2025-11-08"} {
		f := form("반복 일정", date)
		f.Repeat = rule
		out = append(out, f.WithID(fmt.Sprintf("r%d", i+1)))
	}
	out = append(out, form("단일 일정", "2025-11-06").WithID("single"))
	return out
}

func TestController_UpdateSeries(t *testing.T) {
	backend := newFakeBackend(seriesFixture()...)
	c, rec := newController(t, backend)

	patch := form("반복 일정 전체 수정", "1999-01-01")
	patch.StartTime, patch.EndTime = "14:00", "15:00"
	require.NoError(t, c.UpdateSeries(context.Background(), "s1", patch))
	assert.Equal(t, toast{VariantSuccess, MsgEventUpdated}, rec.last())

	series := c.Series("s1")
	require.Len(t, series, 3)
	for i, ev := range series {
		assert.Equal(t, "반복 일정 전체 수정", ev.Title)
		assert.Equal(t, "14:00", ev.StartTime)
		assert.Equal(t, seriesFixture()[i].Date, ev.Date, "dates are kept")
		assert.Equal(t, "s1", ev.Repeat.ID)
	}
	single, _ := c.Find("single")
	assert.Equal(t, "단일 일정", single.Title)

	assert.ErrorIs(t, c.UpdateSeries(context.Background(), "nope", patch), ErrSeriesNotFound)
}

func TestController_DeleteSeries(t *testing.T) {
	backend := newFakeBackend(seriesFixture()...)
	c, rec := newController(t, backend)

	require.NoError(t, c.DeleteSeries(context.Background(), "s1"))
	assert.Equal(t, toast{VariantInfo, MsgEventDeleted}, rec.last())
	require.Len(t, c.Events(), 1)
	assert.Equal(t, "single", c.Events()[0].ID)

	assert.ErrorIs(t, c.DeleteSeries(context.Background(), "s1"), ErrSeriesNotFound)
	assert.Equal(t, toast{VariantError, MsgDeleteFailed}, rec.last())
}

func TestController_Overlaps(t *testing.T) {
	c, _ := newController(t, newFakeBackend(seriesFixture()...))

	got := c.Overlaps(model.NewEvent{Form: form("겹침", "2025-11-06")})
	assert.Len(t, got, 2)

	existing, _ := c.Find("single")
	got = c.Overlaps(model.ExistingEvent{Event: existing})
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
}
