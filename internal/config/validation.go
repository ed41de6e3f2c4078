package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Provider and API key validation
	switch c.Provider {
	case ProviderGemini, "":
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q, must be one of: gemini, ollama, openai", ErrInvalidProvider, c.Provider)
	}

	// Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// RAG configuration
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.ChunkSize < 100 || c.ChunkSize > 8192 {
		return fmt.Errorf("%w: chunk_size must be between 100 and 8192, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.TopK <= 0 || c.TopK > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidTopK, c.TopK)
	}

	// Safety configuration
	if c.SafetyThreshold < 0.5 || c.SafetyThreshold > 1.0 {
		return fmt.Errorf("%w: must be between 0.5 and 1.0, got %.2f", ErrInvalidSafetyThreshold, c.SafetyThreshold)
	}

	// History configuration
	if c.MaxHistoryMessages < 0 || c.MaxHistoryMessages > MaxAllowedHistoryMessages {
		return fmt.Errorf("max_history_messages must be between 0 and %d, got %d",
			MaxAllowedHistoryMessages, c.MaxHistoryMessages)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "amparo_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password in config.yaml for production deployments")
	}

	// Modern SSL modes only; allow/prefer are deprecated (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// Logbook configuration
	if c.LogbookPath == "" {
		return fmt.Errorf("%w: logbook_path cannot be empty", ErrInvalidLogbookPath)
	}

	return nil
}
