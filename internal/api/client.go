package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "evcal/internal/log"
	"evcal/internal/model"
)

const defaultTimeout = 15 * time.Second

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("api: not found")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Client talks to the event persistence API:
//
//	GET    /api/events         -> {"events": [...]}
//	POST   /api/events         EventForm -> Event
//	PUT    /api/events/:id     Event -> Event
//	DELETE /api/events/:id     -> 204
//	POST   /api/events-list    {"events": [EventForm]} -> [Event]
//	PUT    /api/events-list    {"events": [Event]} -> [Event]
//	DELETE /api/events-list    {"eventIds": [...]} -> 204
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client for baseURL (e.g. "http://127.0.0.1:3000").
// A zero timeout uses a 15s default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type eventsEnvelope struct {
	Events []model.Event `json:"events"`
}

type formsEnvelope struct {
	Events []model.EventForm `json:"events"`
}

type idsEnvelope struct {
	EventIDs []string `json:"eventIds"`
}

// ListEvents fetches every stored event.
func (c *Client) ListEvents(ctx context.Context) ([]model.Event, error) {
	var out eventsEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/events", nil, &out); err != nil {
		return nil, err
	}
	if out.Events == nil {
		out.Events = []model.Event{}
	}
	return out.Events, nil
}

// CreateEvent stores a single new event and returns it with its id.
func (c *Client) CreateEvent(ctx context.Context, form model.EventForm) (model.Event, error) {
	var out model.Event
	err := c.do(ctx, http.MethodPost, "/api/events", form, &out)
	return out, err
}

// UpdateEvent replaces the stored event with the same id.
func (c *Client) UpdateEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	if ev.ID == "" {
		return model.Event{}, errors.New("api: update requires an event id")
	}
	var out model.Event
	err := c.do(ctx, http.MethodPut, "/api/events/"+url.PathEscape(ev.ID), ev, &out)
	return out, err
}

// DeleteEvent removes one event.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("api: delete requires an event id")
	}
	return c.do(ctx, http.MethodDelete, "/api/events/"+url.PathEscape(id), nil, nil)
}

// CreateEventList stores a batch of new events, typically one recurring series.
func (c *Client) CreateEventList(ctx context.Context, forms []model.EventForm) ([]model.Event, error) {
	var out []model.Event
	err := c.do(ctx, http.MethodPost, "/api/events-list", formsEnvelope{Events: forms}, &out)
	return out, err
}

// UpdateEventList replaces a batch of stored events.
func (c *Client) UpdateEventList(ctx context.Context, events []model.Event) ([]model.Event, error) {
	var out []model.Event
	err := c.do(ctx, http.MethodPut, "/api/events-list", eventsEnvelope{Events: events}, &out)
	return out, err
}

// DeleteEventList removes a batch of events by id.
func (c *Client) DeleteEventList(ctx context.Context, ids []string) error {
	return c.do(ctx, http.MethodDelete, "/api/events-list", idsEnvelope{EventIDs: ids}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	appLog.Debug("api request", "method", method, "path", path)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}
