package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amparo-care/amparo/internal/knowledge"
)

// Confidence grades how well the knowledge base covers a query,
// derived from the top hybrid-search score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Recommendation tells the assistant what to do with the retrieved
// context.
type Recommendation string

const (
	// RecommendAnswer: context is strong, answer normally.
	RecommendAnswer Recommendation = "answer"
	// RecommendCaution: context is partial, answer but hedge and cite.
	RecommendCaution Recommendation = "answer_with_caution"
	// RecommendDoNotAnswer: the query is outside the knowledge base.
	// The assistant must not generate from this context at all.
	RecommendDoNotAnswer Recommendation = "do_not_answer"
)

// Confidence score thresholds over the hybrid composite score.
const (
	highConfidenceScore   = 0.75
	mediumConfidenceScore = 0.55
)

// Searcher is the slice of the knowledge store the retriever needs.
type Searcher interface {
	HybridSearch(ctx context.Context, query string, topK int) ([]*knowledge.Result, error)
	VectorSearch(ctx context.Context, query string, topK int) ([]*knowledge.Result, error)
}

// SearchResult is the full outcome of a smart search.
type SearchResult struct {
	Query          string
	Rewritten      bool
	Method         string // "hybrid" or "mmr"
	Confidence     Confidence
	Recommendation Recommendation
	Results        []*knowledge.Result
}

// Retriever runs the query pipeline: rewrite, hybrid search, grade,
// and diversity re-rank when confidence is not high.
type Retriever struct {
	searcher Searcher
	logger   *slog.Logger
	topK     int
	lambda   float64
}

// NewRetriever creates a Retriever. topK <= 0 defaults to 5.
func NewRetriever(searcher Searcher, topK int, logger *slog.Logger) (*Retriever, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{searcher: searcher, logger: logger, topK: topK, lambda: DefaultLambda}, nil
}

// SmartSearch retrieves context for a query.
//
// Pipeline:
//  1. Rewrite vague queries into specific ones.
//  2. Hybrid search; the top composite score grades confidence.
//  3. High confidence: return the hybrid results as-is.
//  4. Otherwise: vector search with a doubled candidate pool, then
//     MMR re-rank for diversity. A weakly-covered query benefits more
//     from varied context than from three copies of the nearest chunk.
//  5. Low confidence maps to a do-not-answer recommendation.
func (r *Retriever) SmartSearch(ctx context.Context, query string) (*SearchResult, error) {
	rewritten, didRewrite := RewriteQuery(query)
	if didRewrite {
		r.logger.Debug("rewrote vague query", "original", query, "rewritten", rewritten)
	}

	hybrid, err := r.searcher.HybridSearch(ctx, rewritten, r.topK)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	topScore := 0.0
	if len(hybrid) > 0 {
		topScore = hybrid[0].Score
	}
	confidence := gradeConfidence(topScore)

	out := &SearchResult{
		Query:          rewritten,
		Rewritten:      didRewrite,
		Method:         "hybrid",
		Confidence:     confidence,
		Recommendation: recommend(confidence),
		Results:        hybrid,
	}

	if confidence == ConfidenceHigh {
		return out, nil
	}

	// Fetch twice the pool and re-rank for diversity.
	candidates, err := r.searcher.VectorSearch(ctx, rewritten, 2*r.topK)
	if err != nil {
		r.logger.Warn("mmr candidate fetch failed, keeping hybrid results", "error", err)
		return out, nil
	}
	if len(candidates) > 0 {
		out.Method = "mmr"
		out.Results = maximalMarginalRelevance(candidates, r.topK, r.lambda)
	}

	return out, nil
}

// gradeConfidence maps the top composite score to a confidence grade.
func gradeConfidence(score float64) Confidence {
	switch {
	case score >= highConfidenceScore:
		return ConfidenceHigh
	case score >= mediumConfidenceScore:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// recommend maps confidence to the action the assistant should take.
func recommend(c Confidence) Recommendation {
	switch c {
	case ConfidenceHigh:
		return RecommendAnswer
	case ConfidenceMedium:
		return RecommendCaution
	default:
		return RecommendDoNotAnswer
	}
}
