// Package testutil provides shared testing utilities for the amparo
// project: a disposable Postgres container, deterministic mock models
// and embedders, and quiet loggers.
package testutil

import (
	"log/slog"
)

// DiscardLogger returns a slog.Logger that discards all output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
