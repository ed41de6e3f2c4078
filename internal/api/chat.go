package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/firebase/genkit/go/genkit"

	"github.com/amparo-care/amparo/internal/assistant"
)

// SSE event types for chat streaming.
const (
	EventChunk = "chunk" // partial response text
	EventDone  = "done"  // stream completed successfully
	EventError = "error" // error occurred during streaming
)

// ChunkPayload is the SSE data payload for streaming text chunks.
type ChunkPayload struct {
	Text string `json:"text"`
}

// DonePayload is the SSE data payload when streaming completes.
type DonePayload struct {
	Response       string   `json:"response"`
	SessionID      string   `json:"sessionId"`
	SafetyFlag     string   `json:"safetyFlag,omitempty"`
	Confidence     string   `json:"confidence,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Sources        []string `json:"sources,omitempty"`
}

// ErrorPayload is the SSE data payload when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// chatHandler serves the chat endpoints through the assistant's Genkit
// flow. The synchronous endpoint delegates to genkit.Handler; the SSE
// endpoint drives the flow's stream directly.
type chatHandler struct {
	flow   *assistant.Flow
	logger *slog.Logger
}

// registerRoutes registers chat routes on the given mux. If the flow
// is nil (e.g. no model configured), chat endpoints return 404.
func (h *chatHandler) registerRoutes(mux *http.ServeMux) {
	if h.flow == nil {
		h.logger.Warn("chat flow not configured, skipping chat routes")
		return
	}

	mux.Handle("POST /api/v1/chat", genkit.Handler(h.flow))
	mux.HandleFunc("GET /api/v1/chat/stream", h.stream)
}

// stream handles SSE streaming chat requests. EventSource only issues
// GET requests, so the input arrives as query parameters.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	input := assistant.Input{
		Query:     r.URL.Query().Get("query"),
		SessionID: r.URL.Query().Get("session_id"),
	}
	if input.SessionID == "" {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{Code: "MISSING_SESSION_ID", Message: "session_id is required"})
		return
	}
	if input.Query == "" {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{Code: "MISSING_QUERY", Message: "query is required"})
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "session_id", input.SessionID)

	var (
		finalOutput assistant.Output
		streamErr   error
	)

	for streamValue, err := range h.flow.Stream(ctx, input) {
		select {
		case <-ctx.Done():
			h.logger.Info("client disconnected", "session_id", input.SessionID)
			return
		default:
		}

		if err != nil {
			streamErr = err
			break
		}

		if streamValue.Done {
			finalOutput = streamValue.Output
			break
		}

		if streamValue.Stream.Text != "" {
			if err := writeEvent(w, flusher, EventChunk, ChunkPayload{
				Text: streamValue.Stream.Text,
			}); err != nil {
				// Write failure usually means the connection closed.
				h.logger.Debug("failed to write chunk", "error", err)
				return
			}
		}
	}

	if streamErr != nil {
		h.streamError(w, flusher, streamErr)
		return
	}

	_ = writeEvent(w, flusher, EventDone, DonePayload{
		Response:       finalOutput.Response,
		SessionID:      finalOutput.SessionID,
		SafetyFlag:     finalOutput.SafetyFlag,
		Confidence:     finalOutput.Confidence,
		Recommendation: finalOutput.Recommendation,
		Sources:        finalOutput.Sources,
	})

	h.logger.Info("SSE stream completed", "session_id", input.SessionID)
}

// streamError maps assistant errors to SSE error events.
func (h *chatHandler) streamError(w io.Writer, f http.Flusher, err error) {
	code := "STREAM_ERROR"
	switch {
	case errors.Is(err, assistant.ErrInvalidSession):
		code = "INVALID_SESSION"
	case errors.Is(err, assistant.ErrEmptyQuery):
		code = "MISSING_QUERY"
	case errors.Is(err, assistant.ErrQueryTooLong):
		code = "QUERY_TOO_LONG"
	}

	_ = writeEvent(w, f, EventError, ErrorPayload{
		Code:    code,
		Message: err.Error(),
	})
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
