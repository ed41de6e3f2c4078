package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/genai"

	"github.com/amparo-care/amparo/db"
	"github.com/amparo-care/amparo/internal/assistant"
	"github.com/amparo-care/amparo/internal/config"
	"github.com/amparo-care/amparo/internal/knowledge"
	"github.com/amparo-care/amparo/internal/logbook"
	"github.com/amparo-care/amparo/internal/rag"
	"github.com/amparo-care/amparo/internal/safety"
	"github.com/amparo-care/amparo/internal/session"
)

// Setup creates and initializes the application. On failure everything
// already initialized is released before the error is returned.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if cfg.Tracing.Enabled {
		a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)
	}

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Knowledge, err = knowledge.NewStore(pool, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}

	a.Retriever, err = rag.NewRetriever(a.Knowledge, cfg.TopK, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	a.Ingestor, err = rag.NewIngestor(a.Knowledge, cfg.ChunkSize, cfg.ChunkOverlap, logger)
	if err != nil {
		return nil, fmt.Errorf("creating ingestor: %w", err)
	}

	a.Safety, a.SafetyLog, err = provideSafety(g, pool, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Sessions, err = session.NewStore(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	a.LogbookDB, a.Logbook, err = provideLogbook(cfg)
	if err != nil {
		return nil, err
	}

	a.Assistant, err = assistant.New(assistant.Config{
		Genkit:           g,
		Sessions:         a.Sessions,
		Retriever:        a.Retriever,
		Safety:           a.Safety,
		Logger:           logger,
		ModelName:        providerModelName(cfg),
		GenerationConfig: generationConfig(cfg),
		Helpline:         cfg.Helpline,
		HistoryLimit:     int(cfg.MaxHistoryMessages),
	})
	if err != nil {
		return nil, fmt.Errorf("creating assistant: %w", err)
	}
	a.Flow = assistant.NewFlow(g, a.Assistant)

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit
// initialization so the TracerProvider is ready. A local collector
// handles authentication, buffering and forwarding.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	tr := cfg.Tracing

	agentHost := tr.AgentHost
	if agentHost == "" {
		agentHost = "localhost:4318"
	}

	// os.Setenv is not concurrent-safe, but this runs exactly once
	// during startup, before any goroutines are spawned.
	if tr.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", tr.ServiceName)
	}
	if tr.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+tr.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"agent", agentHost,
		"service", tr.ServiceName,
		"environment", tr.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs Postgres migrations and creates the connection
// pool used by the knowledge, session and safety stores.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama and openai.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	promptDir := cfg.PromptDir
	if promptDir == "" {
		promptDir = "prompts"
	}

	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx,
			genkit.WithPlugins(ollamaPlugin),
			genkit.WithPromptDir(promptDir),
		)
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama has no auto-discovery; models must be registered.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx,
			genkit.WithPlugins(&openai.OpenAI{}),
			genkit.WithPromptDir(promptDir),
		)
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx,
			genkit.WithPlugins(&googlegenai.GoogleAI{}),
			genkit.WithPromptDir(promptDir),
		)
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider
// plugin. Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // gemini
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideSafety builds the two-layer safety filter: keyword screen plus
// LLM classifier, with detections recorded in Postgres.
func provideSafety(g *genkit.Genkit, pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) (*safety.Filter, *safety.EventStore, error) {
	classifier, err := safety.NewClassifier(g, providerModelName(cfg), cfg.SafetyThreshold)
	if err != nil {
		return nil, nil, fmt.Errorf("creating safety classifier: %w", err)
	}

	events, err := safety.NewEventStore(pool)
	if err != nil {
		return nil, nil, fmt.Errorf("creating safety event store: %w", err)
	}

	return safety.NewFilter(classifier, events, cfg.Helpline, logger), events, nil
}

// provideLogbook opens the SQLite logbook, runs its migrations and
// builds the store.
func provideLogbook(cfg *config.Config) (*sql.DB, *logbook.Store, error) {
	sdb, err := logbook.Open(cfg.LogbookPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening logbook database: %w", err)
	}
	if err := logbook.Migrate(sdb); err != nil {
		_ = sdb.Close()
		return nil, nil, fmt.Errorf("migrating logbook database: %w", err)
	}
	store, err := logbook.NewStore(sdb)
	if err != nil {
		_ = sdb.Close()
		return nil, nil, fmt.Errorf("creating logbook store: %w", err)
	}
	return sdb, store, nil
}

// generationConfig maps the configured temperature and token limit to
// the active provider's config shape. Each genkit plugin decodes its
// own config type, so the keys differ per provider; ollama's plugin
// does not forward sampling options at all.
func generationConfig(cfg *config.Config) any {
	if cfg.Temperature <= 0 && cfg.MaxTokens <= 0 {
		return nil
	}

	switch cfg.Provider {
	case config.ProviderOllama:
		return nil
	case config.ProviderOpenAI:
		m := map[string]any{}
		if cfg.Temperature > 0 {
			m["temperature"] = float64(cfg.Temperature)
		}
		if cfg.MaxTokens > 0 {
			m["max_completion_tokens"] = cfg.MaxTokens
		}
		return m
	default: // gemini
		gc := &genai.GenerateContentConfig{}
		if cfg.Temperature > 0 {
			gc.Temperature = genai.Ptr(cfg.Temperature)
		}
		if cfg.MaxTokens > 0 {
			gc.MaxOutputTokens = int32(cfg.MaxTokens)
		}
		return gc
	}
}

// providerModelName qualifies the configured model name for Genkit
// lookup. Gemini and OpenAI models are addressed as provider/model.
func providerModelName(cfg *config.Config) string {
	if cfg.ModelName == "" {
		return ""
	}
	switch cfg.Provider {
	case config.ProviderOllama:
		return "ollama/" + cfg.ModelName
	case config.ProviderOpenAI:
		return "openai/" + cfg.ModelName
	default:
		return "googleai/" + cfg.ModelName
	}
}
