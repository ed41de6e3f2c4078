// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.amparo/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, model selection, temperature, max tokens, embedder
//   - Storage: PostgreSQL (knowledge base, sessions, safety events) and
//     SQLite (daily activity logs)
//   - RAG: chunking and retrieval parameters
//   - Safety: classifier confidence threshold, helpline numbers
//
// Sensitive data (passwords) are masked in MarshalJSON and never logged.
// Validation uses sentinel errors checkable with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidChunking indicates chunk size/overlap are out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top_k")

	// ErrInvalidSafetyThreshold indicates the classifier threshold is out of range.
	ErrInvalidSafetyThreshold = errors.New("invalid safety confidence threshold")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidLogbookPath indicates the SQLite logbook path is invalid.
	ErrInvalidLogbookPath = errors.New("invalid logbook path")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the pgvector schema uses 768 (knowledge.VectorDimension).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultMaxHistoryMessages is the default number of messages to load per session.
	DefaultMaxHistoryMessages int32 = 100

	// MaxAllowedHistoryMessages is the absolute maximum to prevent OOM.
	MaxAllowedHistoryMessages int32 = 10000
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama", "openai"
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash", "llama3.3", "gpt-4o"
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
	PromptDir   string  `mapstructure:"prompt_dir" json:"prompt_dir"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Conversation history configuration
	MaxHistoryMessages int32 `mapstructure:"max_history_messages" json:"max_history_messages"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// LogbookPath is the SQLite database file for daily activity logs.
	LogbookPath string `mapstructure:"logbook_path" json:"logbook_path"`

	// RAG configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	ChunkSize     int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap  int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	TopK          int    `mapstructure:"top_k" json:"top_k"`

	// Safety configuration
	SafetyThreshold float64 `mapstructure:"safety_threshold" json:"safety_threshold"` // classifier confidence gate
	Helpline        string  `mapstructure:"helpline" json:"helpline"`                 // caregiver helpline shown in canned responses

	// Serve mode configuration
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For behind a reverse proxy

	// Observability configuration
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// TracingConfig configures optional OTLP trace export.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"` // OTLP HTTP endpoint, e.g. localhost:4318
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".amparo")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults(configDir)
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings if set.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Fail fast on invalid configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("max_history_messages", DefaultMaxHistoryMessages)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "amparo")
	viper.SetDefault("postgres_password", "amparo_dev_password")
	viper.SetDefault("postgres_db_name", "amparo")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Logbook defaults
	viper.SetDefault("logbook_path", filepath.Join(configDir, "logbook.db"))

	// RAG defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("chunk_size", 800)
	viper.SetDefault("chunk_overlap", 120)
	viper.SetDefault("top_k", 5)

	// Safety defaults
	viper.SetDefault("safety_threshold", 0.70)
	viper.SetDefault("helpline", "1-800-272-3900")

	// CORS defaults (local frontend dev server)
	viper.SetDefault("cors_origins", []string{"http://localhost:4200"})
	viper.SetDefault("trust_proxy", false)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.agent_host", "localhost:4318")
	viper.SetDefault("tracing.service_name", "amparo")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variable overrides explicitly.
//
// GEMINI_API_KEY and OPENAI_API_KEY are read directly by the Genkit provider
// plugins, not via Viper; Validate() checks their presence.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "AMPARO_PROVIDER")
	mustBind("model_name", "AMPARO_MODEL_NAME")
	mustBind("ollama_host", "AMPARO_OLLAMA_HOST")
	mustBind("logbook_path", "AMPARO_LOGBOOK_PATH")
	mustBind("cors_origins", "AMPARO_CORS_ORIGINS")
	mustBind("trust_proxy", "AMPARO_TRUST_PROXY")
	mustBind("safety_threshold", "AMPARO_SAFETY_THRESHOLD")
	mustBind("tracing.enabled", "AMPARO_TRACING")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets show the
// first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + maskedValue + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields before serialization.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	cp := *c
	cp.PostgresPassword = maskSecret(c.PostgresPassword)
	return json.Marshal((*alias)(&cp))
}
