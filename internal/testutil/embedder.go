package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// EmbedderSetup bundles the resources embedder-based integration tests
// need.
type EmbedderSetup struct {
	Embedder ai.Embedder
	Genkit   *genkit.Genkit
}

// SetupEmbedder creates a Google AI embedder for integration testing.
// Skips the test when GEMINI_API_KEY is not set.
func SetupEmbedder(t *testing.T) *EmbedderSetup {
	t.Helper()

	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set - skipping test requiring embedder")
	}

	g := genkit.Init(context.Background(),
		genkit.WithPlugins(&googlegenai.GoogleAI{}))

	return &EmbedderSetup{
		Embedder: googlegenai.GoogleAIEmbedder(g, "gemini-embedding-001"),
		Genkit:   g,
	}
}

// SetupMockGenkit initializes a bare Genkit instance with a mock model
// and mock embedder registered, for tests that must not hit the
// network.
func SetupMockGenkit(t *testing.T, llm *MockLLM, embedder *MockEmbedder) (*genkit.Genkit, ai.Model, ai.Embedder) {
	t.Helper()

	g := genkit.Init(context.Background())
	model := llm.RegisterModel(g)
	emb := embedder.RegisterEmbedder(g)
	return g, model, emb
}
