package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	data := map[string]string{"message": "hello"}
	writeJSON(w, 200, data)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var result map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "hello", result["message"])
}

func TestWriteJSONUnencodable(t *testing.T) {
	w := httptest.NewRecorder()

	// Channels cannot be marshaled; the handler must fall back to a
	// 500 instead of writing a truncated body.
	writeJSON(w, 200, map[string]any{"ch": make(chan int)})

	assert.Equal(t, 500, w.Code)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	writeError(w, 400, "bad_request", "invalid input")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result errorBody
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "bad_request", result.Error)
	assert.Equal(t, "invalid input", result.Message)
}
