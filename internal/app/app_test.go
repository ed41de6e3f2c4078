package app

import (
	"testing"

	"google.golang.org/genai"

	"github.com/amparo-care/amparo/internal/config"
)

func TestProviderModelName(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		want     string
	}{
		{"gemini default", "", "gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{"gemini explicit", config.ProviderGemini, "gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{"ollama", config.ProviderOllama, "llama3.3", "ollama/llama3.3"},
		{"openai", config.ProviderOpenAI, "gpt-4o", "openai/gpt-4o"},
		{"empty model stays empty", config.ProviderGemini, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Provider: tt.provider, ModelName: tt.model}
			if got := providerModelName(cfg); got != tt.want {
				t.Errorf("providerModelName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerationConfig(t *testing.T) {
	t.Run("gemini gets typed config", func(t *testing.T) {
		cfg := &config.Config{Provider: config.ProviderGemini, Temperature: 0.3, MaxTokens: 2048}
		gc, ok := generationConfig(cfg).(*genai.GenerateContentConfig)
		if !ok {
			t.Fatal("gemini generationConfig is not *genai.GenerateContentConfig")
		}
		if gc.Temperature == nil || *gc.Temperature != 0.3 {
			t.Errorf("Temperature = %v, want 0.3", gc.Temperature)
		}
		if gc.MaxOutputTokens != 2048 {
			t.Errorf("MaxOutputTokens = %d, want 2048", gc.MaxOutputTokens)
		}
	})

	t.Run("openai gets map config", func(t *testing.T) {
		cfg := &config.Config{Provider: config.ProviderOpenAI, Temperature: 0.5, MaxTokens: 1024}
		m, ok := generationConfig(cfg).(map[string]any)
		if !ok {
			t.Fatal("openai generationConfig is not map[string]any")
		}
		if m["temperature"] != float64(0.5) {
			t.Errorf("temperature = %v, want 0.5", m["temperature"])
		}
		if m["max_completion_tokens"] != 1024 {
			t.Errorf("max_completion_tokens = %v, want 1024", m["max_completion_tokens"])
		}
	})

	t.Run("ollama sends nothing", func(t *testing.T) {
		cfg := &config.Config{Provider: config.ProviderOllama, Temperature: 0.7, MaxTokens: 1024}
		if got := generationConfig(cfg); got != nil {
			t.Errorf("ollama generationConfig = %v, want nil", got)
		}
	})

	t.Run("unset knobs send nothing", func(t *testing.T) {
		cfg := &config.Config{Provider: config.ProviderGemini}
		if got := generationConfig(cfg); got != nil {
			t.Errorf("generationConfig = %v, want nil", got)
		}
	})
}

func TestClose_PartialApp(t *testing.T) {
	// Close must be safe on a partially initialized App; Setup relies
	// on this for cleanup when a later step fails.
	a := &App{}
	if err := a.Close(); err != nil {
		t.Errorf("Close() on empty App = %v, want nil", err)
	}
}
