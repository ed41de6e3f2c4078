package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// documentCols is the standard SELECT column list for scanResults.
const documentCols = `id, content, metadata, created_at`

// upsertDocumentSQL makes ingestion idempotent: chunk IDs are derived
// from content, so re-ingesting an unchanged file is a no-op and an
// edited file replaces its chunks in place.
const upsertDocumentSQL = `INSERT INTO documents (id, content, embedding, metadata)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET content = EXCLUDED.content, embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`

// Store manages the caregiving knowledge base backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a knowledge Store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := int32(VectorDimension)
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Add upserts a batch of documents, embedding each one first.
// All rows are written in a single transaction: a partial ingest of a
// file would leave retrieval returning incomplete context.
func (s *Store) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	for i := range docs {
		if docs[i].ID == "" {
			return fmt.Errorf("document %d: id is required", i)
		}
		if strings.TrimSpace(docs[i].Content) == "" {
			return fmt.Errorf("document %q: content is required", docs[i].ID)
		}
	}

	// Embed everything before opening the transaction so no connection
	// is held across embedding API calls.
	vecs := make([]pgvector.Vector, len(docs))
	for i := range docs {
		embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
		vec, err := s.embed(embedCtx, docs[i].Content)
		cancel()
		if err != nil {
			return fmt.Errorf("embedding document %q: %w", docs[i].ID, err)
		}
		vecs[i] = vec
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	for i := range docs {
		if _, err := tx.Exec(ctx, upsertDocumentSQL,
			docs[i].ID, docs[i].Content, vecs[i], docs[i].Metadata,
		); err != nil {
			return fmt.Errorf("upserting document %q: %w", docs[i].ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing documents: %w", err)
	}
	return nil
}

// VectorSearch returns the topK documents nearest to the query by
// cosine similarity. Score is 1 - cosine distance. Each result carries
// its stored embedding so callers can re-rank without another query.
func (s *Store) VectorSearch(ctx context.Context, query string, topK int) ([]*Result, error) {
	query, topK, ok := normalizeSearch(query, topK)
	if !ok {
		return []*Result{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, SearchTimeout)
	defer cancel()

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+`, embedding, 1 - (embedding <=> $1) AS score
		 FROM documents
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector searching documents: %w", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		r := &Result{}
		var embedding pgvector.Vector
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &embedding, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		r.Embedding = embedding.Slice()
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return results, nil
}

// KeywordSearch returns the topK documents ranked by full-text match
// against the query. Score is the ts_rank_cd value clamped to [0, 1].
func (s *Store) KeywordSearch(ctx context.Context, query string, topK int) ([]*Result, error) {
	query, topK, ok := normalizeSearch(query, topK)
	if !ok {
		return []*Result{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, SearchTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+`,
		        LEAST(1.0, ts_rank_cd(search_text, plainto_tsquery('english', $1), 1)) AS score
		 FROM documents
		 WHERE search_text @@ plainto_tsquery('english', $1)
		 ORDER BY score DESC
		 LIMIT $2`,
		query, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("keyword searching documents: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// HybridSearch combines vector similarity and full-text rank in a
// single query. Results are ordered by composite score:
// 0.7*vector + 0.3*text.
func (s *Store) HybridSearch(ctx context.Context, query string, topK int) ([]*Result, error) {
	query, topK, ok := normalizeSearch(query, topK)
	if !ok {
		return []*Result{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, SearchTimeout)
	defer cancel()

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+`,
		        ($3 * (1 - (embedding <=> $1))
		         + $4 * LEAST(1.0, COALESCE(ts_rank_cd(search_text, plainto_tsquery('english', $2), 1), 0))
		        ) AS score
		 FROM documents
		 ORDER BY score DESC
		 LIMIT $5`,
		vec, query,
		searchWeightVector, searchWeightText,
		topK,
	)
	if err != nil {
		return nil, fmt.Errorf("hybrid searching documents: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// Get returns a single document by ID. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	d := &Document{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.Content, &d.Metadata, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %q: %w", id, err)
	}
	return d, nil
}

// Count returns the total number of documents in the knowledge base.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Delete removes a document by ID. Returns ErrNotFound if absent.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBySource removes all chunks ingested from the given source.
// Returns the number of documents removed.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int, error) {
	if source == "" {
		return 0, fmt.Errorf("source is required")
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE metadata->>'source' = $1`, source,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting documents for source %q: %w", source, err)
	}
	return int(tag.RowsAffected()), nil
}

// ListBySource returns all chunks ingested from the given source,
// ordered by chunk index when present.
func (s *Store) ListBySource(ctx context.Context, source string) ([]*Document, error) {
	if source == "" {
		return []*Document{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+`
		 FROM documents
		 WHERE metadata->>'source' = $1
		 ORDER BY COALESCE((metadata->>'chunk')::int, 0), id`,
		source,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents for source %q: %w", source, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d := &Document{}
		if err := rows.Scan(&d.ID, &d.Content, &d.Metadata, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// normalizeSearch clamps search inputs. ok is false when the query is
// unsearchable and the caller should return empty results.
func normalizeSearch(query string, topK int) (string, int, bool) {
	query = strings.TrimSpace(query)
	if query == "" || strings.ContainsRune(query, 0) {
		return "", 0, false
	}
	if len(query) > MaxQueryLen {
		query = query[:MaxQueryLen]
	}
	if topK <= 0 {
		topK = 5
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	return query, topK, true
}

// scanResults reads Results from pgx.Rows (standard column set plus a
// trailing score column).
func scanResults(rows pgx.Rows) ([]*Result, error) {
	var results []*Result
	for rows.Next() {
		r := &Result{}
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return results, nil
}
