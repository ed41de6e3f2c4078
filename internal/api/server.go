package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amparo-care/amparo/internal/assistant"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	ChatFlow    *assistant.Flow  // Optional: nil disables chat endpoints
	ChatAgent   *assistant.Agent // Optional: nil disables AI title generation
	Sessions    sessionStore     // Required
	Logs        logStore         // Required
	Safety      eventStore       // Optional: nil disables the safety event API
	Pool        *pgxpool.Pool    // Optional: nil disables DB ping in /ready
	CORSOrigins []string         // Allowed origins for CORS
	IsDev       bool             // Disables HSTS
	TrustProxy  bool             // Trust X-Real-IP/X-Forwarded-For behind a reverse proxy
	RateBurst   int              // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Logs == nil {
		return nil, errors.New("logbook store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	ch := &chatHandler{flow: cfg.ChatFlow, logger: logger}
	ch.registerRoutes(mux)

	sh := &sessionHandler{store: cfg.Sessions, logger: logger}
	if cfg.ChatAgent != nil {
		sh.titler = cfg.ChatAgent
	}
	sh.registerRoutes(mux)

	lh := &logHandler{store: cfg.Logs, logger: logger}
	lh.registerRoutes(mux)

	rh := &reportHandler{store: cfg.Logs, logger: logger}
	rh.registerRoutes(mux)

	if cfg.Safety != nil {
		evh := &safetyHandler{store: cfg.Safety, logger: logger}
		evh.registerRoutes(mux)
	}

	// Per-IP token bucket, 1 token/sec refill.
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID precedes Logging so request_id is available in log
	// attributes. CORS precedes RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
