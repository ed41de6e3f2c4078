// Package app wires the application together: configuration, databases,
// Genkit, stores, the safety filter and the assistant agent.
package app

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amparo-care/amparo/internal/assistant"
	"github.com/amparo-care/amparo/internal/config"
	"github.com/amparo-care/amparo/internal/knowledge"
	"github.com/amparo-care/amparo/internal/logbook"
	"github.com/amparo-care/amparo/internal/rag"
	"github.com/amparo-care/amparo/internal/safety"
	"github.com/amparo-care/amparo/internal/session"
)

// App is the application container. Setup builds it; Close tears it
// down in reverse order.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Knowledge   *knowledge.Store
	Retriever   *rag.Retriever
	Ingestor    *rag.Ingestor
	Safety      *safety.Filter
	SafetyLog   *safety.EventStore
	Sessions    *session.Store
	LogbookDB   *sql.DB
	Logbook     *logbook.Store
	Assistant   *assistant.Agent
	Flow        *assistant.Flow
	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially
// initialized App (Setup calls it on failure).
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	var errs []error
	if a.LogbookDB != nil {
		if err := a.LogbookDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DBPool != nil {
		a.DBPool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return errors.Join(errs...)
}
