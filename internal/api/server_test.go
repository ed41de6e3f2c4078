package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/amparo-care/amparo/internal/logbook"
	"github.com/amparo-care/amparo/internal/safety"
	"github.com/amparo-care/amparo/internal/session"
)

// fakeSessionStore implements sessionStore in memory.
type fakeSessionStore struct {
	sessions map[uuid.UUID]*session.Session
	messages map[uuid.UUID][]*session.Message
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[uuid.UUID]*session.Session),
		messages: make(map[uuid.UUID][]*session.Message),
	}
}

func (f *fakeSessionStore) Create(_ context.Context, title string, audience session.Audience, patient *session.PatientContext) (*session.Session, error) {
	s := &session.Session{ID: uuid.New(), Title: title, Audience: audience, Patient: patient}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessionStore) Get(_ context.Context, id uuid.UUID) (*session.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessionStore) List(_ context.Context, _, _ int) ([]*session.Session, error) {
	out := make([]*session.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSessionStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.sessions[id]; !ok {
		return session.ErrNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionStore) Messages(_ context.Context, id uuid.UUID, _ int) ([]*session.Message, error) {
	return f.messages[id], nil
}

// fakeLogStore implements logStore in memory, keyed by date+patient.
type fakeLogStore struct {
	entries map[string]*logbook.Entry
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{entries: make(map[string]*logbook.Entry)}
}

func logKeyOf(date, patient string) string { return date + "|" + patient }

func (f *fakeLogStore) Upsert(_ context.Context, e *logbook.Entry) error {
	f.entries[logKeyOf(e.Date, e.PatientName)] = e
	return nil
}

func (f *fakeLogStore) Get(_ context.Context, date, patient string) (*logbook.Entry, error) {
	e, ok := f.entries[logKeyOf(date, patient)]
	if !ok {
		return nil, logbook.ErrNotFound
	}
	return e, nil
}

func (f *fakeLogStore) Range(_ context.Context, patient, from, to string) ([]*logbook.Entry, error) {
	var out []*logbook.Entry
	for _, e := range f.entries {
		if e.PatientName == patient && e.Date >= from && e.Date <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLogStore) Recent(_ context.Context, patient string, _ int) ([]*logbook.Entry, error) {
	var out []*logbook.Entry
	for _, e := range f.entries {
		if e.PatientName == patient {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLogStore) Patients(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range f.entries {
		if _, ok := seen[e.PatientName]; !ok {
			seen[e.PatientName] = struct{}{}
			out = append(out, e.PatientName)
		}
	}
	return out, nil
}

func (f *fakeLogStore) Delete(_ context.Context, date, patient string) error {
	key := logKeyOf(date, patient)
	if _, ok := f.entries[key]; !ok {
		return logbook.ErrNotFound
	}
	delete(f.entries, key)
	return nil
}

// fakeEventStore implements eventStore.
type fakeEventStore struct {
	events []*safety.Event
}

func (f *fakeEventStore) List(_ context.Context, flag safety.Flag, _ int) ([]*safety.Event, error) {
	if flag == "" {
		return f.events, nil
	}
	var out []*safety.Event
	for _, e := range f.events {
		if e.Flag == flag {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventStore) CountByFlag(_ context.Context) (map[safety.Flag]int, error) {
	counts := make(map[safety.Flag]int)
	for _, e := range f.events {
		counts[e.Flag]++
	}
	return counts, nil
}

func newTestServer(t *testing.T) (*Server, *fakeSessionStore, *fakeLogStore, *fakeEventStore) {
	t.Helper()
	sessions := newFakeSessionStore()
	logs := newFakeLogStore()
	events := &fakeEventStore{}
	srv, err := NewServer(ServerConfig{
		Logger:    slog.New(slog.DiscardHandler),
		Sessions:  sessions,
		Logs:      logs,
		Safety:    events,
		IsDev:     true,
		RateBurst: 1000,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv, sessions, logs, events
}

func TestNewServer_Validation(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Error("NewServer(empty) = nil error, want error")
	}
	if _, err := NewServer(ServerConfig{Sessions: newFakeSessionStore()}); err == nil {
		t.Error("NewServer(no logs) = nil error, want error")
	}
}

func TestHealth(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestReady_NoPool(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("GET /ready status = %d, want 200", rec.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	// Dev mode must not set HSTS.
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("Strict-Transport-Security = %q, want unset in dev", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	sessions := newFakeSessionStore()
	logs := newFakeLogStore()
	srv, err := NewServer(ServerConfig{
		Logger:      slog.New(slog.DiscardHandler),
		Sessions:    sessions,
		Logs:        logs,
		CORSOrigins: []string{"http://localhost:4200"},
		IsDev:       true,
		RateBurst:   1000,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("Allow-Origin = %q, want the requesting origin", got)
	}

	// Unlisted origins get no CORS headers.
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for unlisted origin = %q, want empty", got)
	}
}
