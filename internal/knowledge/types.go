package knowledge

import (
	"errors"
	"time"
)

const (
	// VectorDimension is the embedding dimensionality stored in the
	// documents table. Must match the vector(768) column in the schema.
	VectorDimension = 768

	// EmbedTimeout bounds a single embedding API call.
	EmbedTimeout = 15 * time.Second

	// SearchTimeout bounds a single search round-trip (embed + query).
	SearchTimeout = 10 * time.Second

	// MaxTopK caps the number of results a single search may return.
	MaxTopK = 50

	// MaxQueryLen caps search query length before embedding.
	MaxQueryLen = 2000
)

// Hybrid ranking weights. Vector similarity dominates; full-text rank
// breaks ties and rewards exact keyword matches.
const (
	searchWeightVector = 0.7
	searchWeightText   = 0.3
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a chunk of caregiving reference material with its
// provenance metadata.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Source returns the source file or URL recorded at ingestion time,
// or "" when unknown.
func (d *Document) Source() string {
	if d.Metadata == nil {
		return ""
	}
	s, _ := d.Metadata["source"].(string)
	return s
}

// Title returns the document title derived at ingestion time, or ""
// when unknown.
func (d *Document) Title() string {
	if d.Metadata == nil {
		return ""
	}
	t, _ := d.Metadata["title"].(string)
	return t
}

// Result is a document returned from a search, annotated with its
// relevance score. Embedding is populated by VectorSearch so callers
// can re-rank (e.g. maximal marginal relevance) without another
// round-trip; other search paths leave it nil.
type Result struct {
	Document
	Score     float64
	Embedding []float32
}
