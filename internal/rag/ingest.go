package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/amparo-care/amparo/internal/knowledge"
)

// ingestExtensions are the file types IngestDir picks up.
var ingestExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// DocumentAdder is the slice of the knowledge store ingestion needs.
type DocumentAdder interface {
	Add(ctx context.Context, docs []knowledge.Document) error
	DeleteBySource(ctx context.Context, source string) (int, error)
}

// Ingestor splits reference material into overlapping chunks and
// writes them to the knowledge store.
type Ingestor struct {
	store    DocumentAdder
	splitter textsplitter.RecursiveCharacter
	logger   *slog.Logger
}

// NewIngestor creates an Ingestor. chunkSize and chunkOverlap are in
// characters; zero values fall back to 800/120.
func NewIngestor(store DocumentAdder, chunkSize, chunkOverlap int, logger *slog.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 120
	}
	return &Ingestor{
		store: store,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		logger: logger,
	}, nil
}

// IngestText splits text and upserts its chunks under the given
// source label. Existing chunks for the source are removed first so
// edits do not leave stale chunks behind. Returns the chunk count.
func (ing *Ingestor) IngestText(ctx context.Context, source, text string) (int, error) {
	if source == "" {
		return 0, fmt.Errorf("source is required")
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("text is empty")
	}

	chunks, err := ing.splitter.SplitText(text)
	if err != nil {
		return 0, fmt.Errorf("splitting %q: %w", source, err)
	}

	title := deriveTitle(source, text)
	srcType := sourceType(source)
	docs := make([]knowledge.Document, 0, len(chunks))
	for i, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		docs = append(docs, knowledge.Document{
			ID:      chunkID(source, chunk),
			Content: chunk,
			Metadata: map[string]any{
				"source":      source,
				"source_type": srcType,
				"title":       title,
				"chunk":       i,
			},
		})
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("no usable chunks in %q", source)
	}

	if removed, err := ing.store.DeleteBySource(ctx, source); err != nil {
		return 0, fmt.Errorf("clearing previous chunks for %q: %w", source, err)
	} else if removed > 0 {
		ing.logger.Debug("replaced previous ingestion", "source", source, "removed", removed)
	}

	if err := ing.store.Add(ctx, docs); err != nil {
		return 0, fmt.Errorf("storing chunks for %q: %w", source, err)
	}

	ing.logger.Info("ingested document", "source", source, "chunks", len(docs))
	return len(docs), nil
}

// IngestFile reads and ingests a single file. The source label is the
// cleaned file path.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %q: %w", path, err)
	}
	return ing.IngestText(ctx, filepath.Clean(path), string(data))
}

// IngestDir walks dir and ingests every .txt and .md file. Returns
// total chunks written. A file that fails stops the walk; partial
// ingestion of earlier files is already committed.
func (ing *Ingestor) IngestDir(ctx context.Context, dir string) (int, error) {
	total := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !ingestExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		n, err := ing.IngestFile(ctx, path)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("ingesting directory %q: %w", dir, err)
	}
	return total, nil
}

// deriveTitle picks a human-readable title for a document: the first
// Markdown heading when there is one, otherwise the file name without
// its extension.
func deriveTitle(source, text string) string {
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "#"); ok {
			title := strings.TrimSpace(strings.TrimLeft(after, "#"))
			if title != "" {
				return title
			}
		}
	}
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// sourceType classifies the source label by its extension.
func sourceType(source string) string {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".md":
		return "markdown"
	case ".txt":
		return "text"
	default:
		return "unknown"
	}
}

// chunkID derives a stable document ID from source and content so
// re-ingesting unchanged material is idempotent.
func chunkID(source, content string) string {
	sum := sha256.Sum256([]byte(source + "\x00" + content))
	return hex.EncodeToString(sum[:16])
}
