package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/amparo-care/amparo/internal/logbook"
	"github.com/amparo-care/amparo/internal/report"
)

type reportHandler struct {
	store  logStore
	logger *slog.Logger
}

func (h *reportHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/reports/summary", h.summary)
	mux.HandleFunc("GET /api/v1/reports/export", h.export)
}

// rangeEntries loads the entries for the patient/from/to query
// parameters. Missing from/to falls back to the recent window.
func (h *reportHandler) rangeEntries(w http.ResponseWriter, r *http.Request) ([]*logbook.Entry, bool) {
	q := r.URL.Query()
	patient := strings.TrimSpace(q.Get("patient"))
	if patient == "" {
		writeError(w, http.StatusBadRequest, "missing_patient", "patient query parameter is required")
		return nil, false
	}

	from, to := q.Get("from"), q.Get("to")

	var (
		entries []*logbook.Entry
		err     error
	)
	if from != "" || to != "" {
		if from == "" || to == "" {
			writeError(w, http.StatusBadRequest, "invalid_range", "from and to must be provided together")
			return nil, false
		}
		entries, err = h.store.Range(r.Context(), patient, from, to)
	} else {
		entries, err = h.store.Recent(r.Context(), patient, queryInt(r, "days", 30))
	}
	if err != nil {
		if isDateError(err) {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return nil, false
		}
		h.logger.Error("loading report entries", "patient", patient, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load log entries")
		return nil, false
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "no_entries", "no log entries in the requested range")
		return nil, false
	}
	return entries, true
}

func (h *reportHandler) summary(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.rangeEntries(w, r)
	if !ok {
		return
	}

	summary, err := report.Summarize(entries)
	if err != nil {
		h.logger.Error("summarizing entries", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to build summary")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *reportHandler) export(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_format", "format must be csv, json or xlsx")
		return
	}

	entries, ok := h.rangeEntries(w, r)
	if !ok {
		return
	}

	// Buffer-first: an export failure mid-stream must not leave the
	// client with a truncated attachment and a 200.
	var buf bytes.Buffer
	if err := report.Export(&buf, format, entries); err != nil {
		h.logger.Error("exporting entries", "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to export log entries")
		return
	}

	filename := fmt.Sprintf("daily-logs.%s", format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug("failed to write export body", "error", err)
	}
}
