package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/amparo-care/amparo/internal/session"
)

func TestCreateSession(t *testing.T) {
	srv, store, _, _ := newTestServer(t)

	body := `{"title":"Sleep problems","audience":"caregiver","patient":{"name":"Rosa","age":78,"stage":"moderate"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var got session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Title != "Sleep problems" {
		t.Errorf("title = %q, want %q", got.Title, "Sleep problems")
	}
	if got.Patient == nil || got.Patient.Name != "Rosa" {
		t.Errorf("patient = %+v, want Rosa", got.Patient)
	}
	if len(store.sessions) != 1 {
		t.Errorf("stored sessions = %d, want 1", len(store.sessions))
	}
}

func TestCreateSession_DefaultsAudience(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var got session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Audience != session.AudienceCaregiver {
		t.Errorf("audience = %q, want caregiver", got.Audience)
	}
	if got.Title != "New conversation" {
		t.Errorf("title = %q, want default", got.Title)
	}
}

func TestCreateSession_InvalidAudience(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"audience":"stranger"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetSession_BadID(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	srv, store, _, _ := newTestServer(t)
	sess, _ := store.Create(t.Context(), "t", session.AudienceCaregiver, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+sess.ID.String(), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	// Deleting again reports not found.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+sess.ID.String(), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestListSessions(t *testing.T) {
	srv, store, _, _ := newTestServer(t)
	_, _ = store.Create(t.Context(), "a", session.AudienceCaregiver, nil)
	_, _ = store.Create(t.Context(), "b", session.AudienceCaregiver, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Sessions []*session.Session `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(body.Sessions))
	}
}
