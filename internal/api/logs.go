package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amparo-care/amparo/internal/logbook"
)

// logStore is the subset of logbook.Store the handlers need.
type logStore interface {
	Upsert(ctx context.Context, e *logbook.Entry) error
	Get(ctx context.Context, date, patientName string) (*logbook.Entry, error)
	Range(ctx context.Context, patientName, from, to string) ([]*logbook.Entry, error)
	Recent(ctx context.Context, patientName string, days int) ([]*logbook.Entry, error)
	Patients(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, date, patientName string) error
}

type logHandler struct {
	store  logStore
	logger *slog.Logger
}

func (h *logHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PUT /api/v1/logs", h.upsert)
	mux.HandleFunc("GET /api/v1/logs", h.list)
	mux.HandleFunc("GET /api/v1/logs/{date}", h.get)
	mux.HandleFunc("DELETE /api/v1/logs/{date}", h.delete)
	mux.HandleFunc("GET /api/v1/patients", h.patients)
}

// upsert creates or replaces the log entry for (date, patient).
func (h *logHandler) upsert(w http.ResponseWriter, r *http.Request) {
	var entry logbook.Entry
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	if err := entry.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_entry", err.Error())
		return
	}

	if err := h.store.Upsert(r.Context(), &entry); err != nil {
		h.logger.Error("upserting log entry", "date", entry.Date, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save log entry")
		return
	}

	writeJSON(w, http.StatusOK, &entry)
}

// list returns entries for a patient. With from/to it returns the date
// range; otherwise the most recent week.
func (h *logHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	patient := strings.TrimSpace(q.Get("patient"))
	if patient == "" {
		writeError(w, http.StatusBadRequest, "missing_patient", "patient query parameter is required")
		return
	}

	from, to := q.Get("from"), q.Get("to")

	var (
		entries []*logbook.Entry
		err     error
	)
	if from != "" || to != "" {
		if from == "" || to == "" {
			writeError(w, http.StatusBadRequest, "invalid_range", "from and to must be provided together")
			return
		}
		entries, err = h.store.Range(r.Context(), patient, from, to)
	} else {
		entries, err = h.store.Recent(r.Context(), patient, queryInt(r, "days", 7))
	}
	if err != nil {
		if isDateError(err) {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		h.logger.Error("listing log entries", "patient", patient, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list log entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *logHandler) get(w http.ResponseWriter, r *http.Request) {
	date, patient, ok := logKey(w, r)
	if !ok {
		return
	}

	entry, err := h.store.Get(r.Context(), date, patient)
	if err != nil {
		if errors.Is(err, logbook.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no log entry for that date")
			return
		}
		h.logger.Error("getting log entry", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get log entry")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *logHandler) delete(w http.ResponseWriter, r *http.Request) {
	date, patient, ok := logKey(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), date, patient); err != nil {
		if errors.Is(err, logbook.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no log entry for that date")
			return
		}
		h.logger.Error("deleting log entry", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete log entry")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *logHandler) patients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.store.Patients(r.Context())
	if err != nil {
		h.logger.Error("listing patients", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list patients")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": patients})
}

// logKey extracts and validates the {date} path segment and the
// patient query parameter.
func logKey(w http.ResponseWriter, r *http.Request) (date, patient string, ok bool) {
	date = r.PathValue("date")
	if _, err := time.Parse(logbook.DateFormat, date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return "", "", false
	}
	patient = strings.TrimSpace(r.URL.Query().Get("patient"))
	if patient == "" {
		writeError(w, http.StatusBadRequest, "missing_patient", "patient query parameter is required")
		return "", "", false
	}
	return date, patient, true
}

// isDateError reports whether the store rejected a date string.
func isDateError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "date")
}
