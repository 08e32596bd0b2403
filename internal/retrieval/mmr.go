package retrieval

import (
	"math"

	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/vector"
)

// selectMMR greedily picks k candidates maximizing
// lambda*relevance - (1-lambda)*max similarity to anything already picked.
// Similarity between candidates is the cosine of their embeddings. Ties go
// to the earlier pool entry, so lambda=1 reproduces the pool order. The
// reported score stays the candidate's relevance.
func selectMMR(pool []domain.ScoredChunk, k int, lambda float64) []domain.ScoredChunk {
	if len(pool) <= 1 {
		return truncate(pool, k)
	}

	remaining := make([]domain.ScoredChunk, len(pool))
	copy(remaining, pool)
	// redundancy[i] is the max similarity of remaining[i] to the selection so far.
	redundancy := make([]float64, len(remaining))

	selected := make([]domain.ScoredChunk, 0, min(k, len(pool)))
	for len(selected) < k && len(remaining) > 0 {
		best, bestScore := -1, math.Inf(-1)
		for i, c := range remaining {
			score := lambda * c.Score
			if len(selected) > 0 {
				score -= (1 - lambda) * redundancy[i]
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		picked := remaining[best]
		selected = append(selected, picked)
		remaining = append(remaining[:best], remaining[best+1:]...)
		redundancy = append(redundancy[:best], redundancy[best+1:]...)

		for i, c := range remaining {
			sim := vector.Cosine(c.Chunk.Embedding, picked.Chunk.Embedding)
			if len(selected) == 1 || sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}
	return selected
}
