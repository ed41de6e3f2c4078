package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/amparo-care/amparo/internal/app"
	"github.com/amparo-care/amparo/internal/config"
)

// runIngest indexes a document file or directory into the knowledge base.
func runIngest() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: amparo ingest <file-or-directory>")
	}
	path := os.Args[2]

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
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

	var chunks int
	if info.IsDir() {
		chunks, err = a.Ingestor.IngestDir(ctx, path)
	} else {
		chunks, err = a.Ingestor.IngestFile(ctx, path)
	}
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}

	fmt.Printf("Indexed %d chunks from %s\n", chunks, path)
	return nil
}
