package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/amparo-care/amparo/internal/safety"
)

// eventStore is the subset of safety.EventStore the handlers need.
type eventStore interface {
	List(ctx context.Context, flag safety.Flag, limit int) ([]*safety.Event, error)
	CountByFlag(ctx context.Context) (map[safety.Flag]int, error)
}

type safetyHandler struct {
	store  eventStore
	logger *slog.Logger
}

func (h *safetyHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/safety/events", h.events)
	mux.HandleFunc("GET /api/v1/safety/stats", h.stats)
}

// events lists recorded safety detections, optionally filtered by flag.
func (h *safetyHandler) events(w http.ResponseWriter, r *http.Request) {
	flag := safety.Flag(r.URL.Query().Get("flag"))
	if flag != "" && flag != safety.FlagCrisis && flag != safety.FlagDangerous {
		writeError(w, http.StatusBadRequest, "invalid_flag", "flag must be crisis or dangerous")
		return
	}

	events, err := h.store.List(r.Context(), flag, queryInt(r, "limit", 0))
	if err != nil {
		h.logger.Error("listing safety events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list safety events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// stats returns the detection count per flag.
func (h *safetyHandler) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountByFlag(r.Context())
	if err != nil {
		h.logger.Error("counting safety events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to count safety events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}
