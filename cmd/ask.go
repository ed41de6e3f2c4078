package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/firebase/genkit/go/ai"

	"github.com/amparo-care/amparo/internal/app"
	"github.com/amparo-care/amparo/internal/config"
	"github.com/amparo-care/amparo/internal/rag"
	"github.com/amparo-care/amparo/internal/session"
)

// runAsk answers a single question from the command line.
// The full pipeline applies: safety screening, retrieval, generation.
func runAsk() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: amparo ask <question>")
	}
	question := strings.TrimSpace(strings.Join(os.Args[2:], " "))
	if question == "" {
		return fmt.Errorf("question cannot be empty")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	sess, err := a.Sessions.Create(ctx, "CLI question", session.AudienceCaregiver, nil)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	// Stream chunks to stdout as they arrive.
	resp, err := a.Assistant.ExecuteStream(ctx, sess.ID, question,
		func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			for _, part := range chunk.Content {
				fmt.Print(part.Text)
			}
			return nil
		})
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	// Flagged or redirected answers never stream, so print them whole.
	flagged := resp.Safety != nil && !resp.Safety.Safe
	if flagged || resp.Recommendation == rag.RecommendDoNotAnswer {
		fmt.Println(resp.Text)
	}
	fmt.Println()

	if len(resp.Sources) > 0 {
		fmt.Println("Sources:")
		for _, src := range resp.Sources {
			fmt.Printf("  - %s\n", src)
		}
	}

	return nil
}
