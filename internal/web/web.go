package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"evcal/internal/calendar"
	"evcal/internal/config"
	"evcal/internal/ics"
	appLog "evcal/internal/log"
	"evcal/internal/model"
)

const maxBodyBytes = 4 << 20

// HolidaySource answers per-month holiday lookups. *ics.HolidayCalendar
// implements it.
type HolidaySource interface {
	Month(year int, month time.Month) ics.Holidays
}

// Server provides the event persistence API:
//
//	GET    /api/events          {"events": [...]}; optional q, view, date filters
//	POST   /api/events          EventForm -> 201 Event
//	PUT    /api/events/{id}     Event -> Event
//	DELETE /api/events/{id}     204
//	POST   /api/events-list     {"events": [EventForm]} -> 201 [Event]
//	PUT    /api/events-list     {"events": [Event]} -> [Event]
//	DELETE /api/events-list     {"eventIds": [...]} -> 204
//	GET    /api/events.ics      iCalendar feed
//	GET    /api/holidays        {"year", "month", "holidays": {"YYYY-MM-DD": name}}
//	GET    /health
type Server struct {
	cfg      *config.Config
	store    *Store
	holidays HolidaySource
	loc      *time.Location
	mux      *http.ServeMux

	// /api/events.ics 렌더링 결과. 스토어 버전이 바뀔 때까지 재사용.
	icsMu    sync.RWMutex
	icsCache *icsCache
}

type icsCache struct {
	version uint64
	body    string
}

// NewServer constructs a Server. holidays may be nil.
func NewServer(cfg *config.Config, store *Store, holidays HolidaySource) *Server {
	if store == nil {
		store = NewStore()
	}
	s := &Server{
		cfg:      cfg,
		store:    store,
		holidays: holidays,
		loc:      cfg.Location(),
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// 아이디/비밀번호 중 하나라도 비어 있으면 인증을 끈다.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 헬스체크는 인증 없이 통과
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="evcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/events/{id}", s.handleEvent)
	s.mux.HandleFunc("/api/events-list", s.handleEventList)
	s.mux.HandleFunc("/api/events.ics", s.handleICS)
	s.mux.HandleFunc("/api/holidays", s.handleHolidays)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type eventsResponse struct {
	Events []model.Event `json:"events"`
}

type formsRequest struct {
	Events []model.EventForm `json:"events"`
}

type idsRequest struct {
	EventIDs []string `json:"eventIds"`
}

// handleEvents lists or creates single events.
//
// GET /api/events?q=회의&view=week&date=2025-11-06
//   - q:    search term over title, description and location
//   - view: week or month; restricts the result to the view around date
//   - date: reference day for view (default today)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		events := s.store.List()
		q := r.URL.Query()
		view := calendar.View(q.Get("view"))
		switch {
		case view == calendar.ViewWeek || view == calendar.ViewMonth:
			ref := time.Now().In(s.loc)
			if d := q.Get("date"); d != "" {
				parsed, err := model.ParseDate(d, s.loc)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid date")
					return
				}
				ref = parsed
			}
			events = calendar.FilterEvents(events, q.Get("q"), ref, view)
		case q.Get("q") != "":
			events = calendar.SearchEvents(events, q.Get("q"))
		}
		writeJSON(w, http.StatusOK, eventsResponse{Events: events})

	case http.MethodPost:
		var form model.EventForm
		if !decodeBody(w, r, &form) {
			return
		}
		ev, err := s.store.Create(form)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		appLog.Info("event created", "id", ev.ID, "date", ev.Date)
		writeJSON(w, http.StatusCreated, ev)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodPut:
		var ev model.Event
		if !decodeBody(w, r, &ev) {
			return
		}
		// 경로의 id가 우선, body의 id는 무시
		ev.ID = id
		updated, err := s.store.Update(ev)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		appLog.Info("event updated", "id", id, "date", updated.Date)
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := s.store.Delete(id); err != nil {
			writeStoreError(w, err)
			return
		}
		appLog.Info("event deleted", "id", id)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) handleEventList(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req formsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		created, err := s.store.CreateList(req.Events)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		appLog.Info("events created", "count", len(created))
		writeJSON(w, http.StatusCreated, created)

	case http.MethodPut:
		var req eventsResponse
		if !decodeBody(w, r, &req) {
			return
		}
		updated, err := s.store.UpdateList(req.Events)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		appLog.Info("events updated", "count", len(updated))
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		var req idsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		s.store.DeleteList(req.EventIDs)
		appLog.Info("events deleted", "count", len(req.EventIDs))
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

// handleICS publishes the stored events as an iCalendar feed. The rendered
// feed is cached until the store changes.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	version := s.store.Version()
	s.icsMu.RLock()
	c := s.icsCache
	s.icsMu.RUnlock()

	// 캐시 미스: 새로 렌더링
	if c == nil || c.version != version {
		c = &icsCache{
			version: version,
			body: ics.Export(s.store.List(), ics.ExportOptions{
				Name:     "evcal",
				Location: s.loc,
			}),
		}
		s.icsMu.Lock()
		s.icsCache = c
		s.icsMu.Unlock()
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, c.body)
}

type holidaysResponse struct {
	Year     int          `json:"year"`
	Month    int          `json:"month"`
	Holidays ics.Holidays `json:"holidays"`
}

// handleHolidays returns the holidays of one month.
//
// GET /api/holidays?year=2025&month=10 (default: current month)
func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	now := time.Now().In(s.loc)
	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), now.Year())
	month := parseIntDefault(q.Get("month"), int(now.Month()))
	if month < 1 || month > 12 || year < 1 {
		writeError(w, http.StatusBadRequest, "invalid year or month")
		return
	}

	// 공휴일 소스가 없으면 빈 맵을 돌려준다.
	holidays := ics.Holidays{}
	if s.holidays != nil {
		holidays = s.holidays.Month(year, time.Month(month))
	}
	writeJSON(w, http.StatusOK, holidaysResponse{Year: year, Month: month, Holidays: holidays})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("store operation failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
