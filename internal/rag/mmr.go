package rag

import (
	"math"

	"github.com/amparo-care/amparo/internal/knowledge"
)

// DefaultLambda balances relevance against diversity in MMR re-ranking.
// Close to 1 favors relevance; the knowledge base has enough near-
// duplicate chunks that pure similarity tends to return the same
// paragraph five times.
const DefaultLambda = 0.8

// maximalMarginalRelevance re-ranks candidates so the selected set is
// both relevant to the query and diverse among itself.
//
// Candidate Score holds cosine similarity to the query; Embedding holds
// the stored vector for pairwise comparison. At each step the candidate
// maximizing
//
//	lambda*sim(query, d) - (1-lambda)*max(sim(d, selected))
//
// is picked. Candidates without embeddings contribute zero pairwise
// similarity, so they are never penalized for redundancy.
func maximalMarginalRelevance(candidates []*knowledge.Result, k int, lambda float64) []*knowledge.Result {
	if k <= 0 || len(candidates) == 0 {
		return []*knowledge.Result{}
	}
	if k >= len(candidates) {
		k = len(candidates)
	}

	selected := make([]*knowledge.Result, 0, k)
	remaining := make([]*knowledge.Result, len(candidates))
	copy(remaining, candidates)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)

		for i, cand := range remaining {
			redundancy := 0.0
			for _, sel := range selected {
				if sim := cosineSimilarity(cand.Embedding, sel.Embedding); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*cand.Score - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

// cosineSimilarity returns the cosine of the angle between a and b,
// or 0 when either vector is empty, mismatched, or zero-length.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
