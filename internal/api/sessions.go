package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/amparo-care/amparo/internal/session"
)

const (
	sessionsDefaultLimit = 50
	messagesDefaultLimit = 100
	maxRequestBody       = 1 << 20 // 1 MiB
)

// sessionStore is the subset of session.Store the handlers need.
type sessionStore interface {
	Create(ctx context.Context, title string, audience session.Audience, patient *session.PatientContext) (*session.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	List(ctx context.Context, limit, offset int) ([]*session.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Messages(ctx context.Context, id uuid.UUID, limit int) ([]*session.Message, error)
}

// titleGenerator produces a session title from the first user message.
// Best-effort; "" keeps the provided or default title.
type titleGenerator interface {
	GenerateTitle(ctx context.Context, userMessage string) string
}

type sessionHandler struct {
	store  sessionStore
	titler titleGenerator // optional
	logger *slog.Logger
}

type createSessionRequest struct {
	Title        string                  `json:"title"`
	Audience     string                  `json:"audience"`
	Patient      *session.PatientContext `json:"patient,omitempty"`
	FirstMessage string                  `json:"firstMessage,omitempty"` // used for AI title generation
}

func (h *sessionHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/sessions", h.list)
	mux.HandleFunc("POST /api/v1/sessions", h.create)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.get)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", h.messages)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.delete)
}

func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	audience := session.Audience(req.Audience)
	if req.Audience == "" {
		audience = session.AudienceCaregiver
	}
	if !audience.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_audience", "audience must be caregiver, first_responder or healthcare_provider")
		return
	}

	title := req.Title
	if title == "" && req.FirstMessage != "" && h.titler != nil {
		title = h.titler.GenerateTitle(r.Context(), req.FirstMessage)
	}
	if title == "" {
		title = "New conversation"
	}

	sess, err := h.store.Create(r.Context(), title, audience, req.Patient)
	if err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", sessionsDefaultLimit)
	offset := queryInt(r, "offset", 0)

	sessions, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		h.logger.Error("getting session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSessionID(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", messagesDefaultLimit)
	msgs, err := h.store.Messages(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("getting messages", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get messages")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSessionID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		h.logger.Error("deleting session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathSessionID parses the {id} path segment; on failure it writes a
// 400 and returns false.
func pathSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "session ID must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryInt parses an integer query parameter, falling back to def on
// absence or garbage.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
