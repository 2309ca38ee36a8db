package web

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"evcal/internal/model"
	"evcal/internal/timerange"
)

var (
	// ErrNotFound is returned for an id the store does not hold.
	ErrNotFound = errors.New("event not found")
	// ErrInvalid wraps every validation failure of an incoming event.
	ErrInvalid = errors.New("invalid event")
)

// Store is the in-memory event persistence behind the API. Events keep
// their insertion order. Every write bumps Version.
type Store struct {
	mu      sync.RWMutex
	events  []model.Event
	version uint64
	newID   func() string
}

// NewStore creates a store holding seed.
func NewStore(seed ...model.Event) *Store {
	return &Store{
		events: append([]model.Event(nil), seed...),
		newID:  uuid.NewString,
	}
}

// List returns a copy of every stored event.
func (s *Store) List() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Event{}, s.events...)
}

// Version identifies the current contents; it changes on every write.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Create validates form and stores it under a new id.
func (s *Store) Create(form model.EventForm) (model.Event, error) {
	form = normalize(form)
	if err := check(form); err != nil {
		return model.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ev := form.WithID(s.newID())
	s.events = append(s.events, ev)
	s.version++
	return ev, nil
}

// Update replaces the stored event with ev.ID.
func (s *Store) Update(ev model.Event) (model.Event, error) {
	form := normalize(ev.Form())
	if err := check(form); err != nil {
		return model.Event{}, err
	}
	ev = form.WithID(ev.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(ev.ID)
	if i < 0 {
		return model.Event{}, fmt.Errorf("%w: %q", ErrNotFound, ev.ID)
	}
	s.events[i] = ev
	s.version++
	return ev, nil
}

// Delete removes one event.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	s.events = append(s.events[:i:i], s.events[i+1:]...)
	s.version++
	return nil
}

// CreateList stores a batch, typically the instances of one recurring
// series. Either every form is stored or none is. Recurring forms without
// a series id share one generated id.
func (s *Store) CreateList(forms []model.EventForm) ([]model.Event, error) {
	seriesID := ""
	prepared := make([]model.EventForm, 0, len(forms))
	for i, form := range forms {
		form = normalize(form)
		if err := check(form); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if form.Repeat.IsRecurring() && form.Repeat.ID == "" {
			if seriesID == "" {
				seriesID = s.newID()
			}
			form.Repeat.ID = seriesID
		}
		prepared = append(prepared, form)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, 0, len(prepared))
	for _, form := range prepared {
		ev := form.WithID(s.newID())
		s.events = append(s.events, ev)
		out = append(out, ev)
	}
	s.version++
	return out, nil
}

// UpdateList replaces a batch. Every id must exist; otherwise nothing
// changes.
func (s *Store) UpdateList(events []model.Event) ([]model.Event, error) {
	prepared := make([]model.Event, 0, len(events))
	for i, ev := range events {
		form := normalize(ev.Form())
		if err := check(form); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		prepared = append(prepared, form.WithID(ev.ID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := make([]int, len(prepared))
	for i, ev := range prepared {
		idx[i] = s.indexLocked(ev.ID)
		if idx[i] < 0 {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, ev.ID)
		}
	}
	for i, ev := range prepared {
		s.events[idx[i]] = ev
	}
	s.version++
	return prepared, nil
}

// DeleteList removes every listed id; unknown ids are ignored.
func (s *Store) DeleteList(ids []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]model.Event, 0, len(s.events))
	for _, ev := range s.events {
		if !drop[ev.ID] {
			kept = append(kept, ev)
		}
	}
	s.events = kept
	s.version++
}

func (s *Store) indexLocked(id string) int {
	for i, ev := range s.events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

func normalize(form model.EventForm) model.EventForm {
	if form.Repeat.Type == "" {
		form.Repeat = model.NoRepeat()
	}
	return form
}

// check reports the time-range message users see in the form before the
// generic validation error.
func check(form model.EventForm) error {
	// 형식이 틀린 시각은 문자열 비교 전에 거른다.
	if !model.IsClock(form.StartTime) || !model.IsClock(form.EndTime) {
		return fmt.Errorf("%w: %w", ErrInvalid, model.ErrInvalidTime)
	}
	if errs := timerange.TimeErrorMessage(form.StartTime, form.EndTime); errs.HasError() {
		return fmt.Errorf("%w: %s", ErrInvalid, errs.StartTimeError)
	}
	if err := form.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
