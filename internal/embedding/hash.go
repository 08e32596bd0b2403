package embedding

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/index"
	"github.com/bull/campus-rag/internal/vector"
)

// DefaultHashDimension is the vector size of the offline hash embedder.
const DefaultHashDimension = 256

// HashEmbedder is an offline provider: a signed feature-hashing bag of words
// over the same tokens the lexical index sees, L2-normalized. It needs no
// network access and is deterministic, so it backs local runs and evaluations.
type HashEmbedder struct {
	dim       int
	tokenizer *index.Tokenizer
}

// NewHashEmbedder returns a hash embedder with dim buckets.
func NewHashEmbedder(dim int) (*HashEmbedder, error) {
	if dim <= 0 {
		return nil, &domain.ConfigError{Field: "embedding.dimension", Reason: fmt.Sprintf("must be positive, got %d", dim)}
	}
	return &HashEmbedder{dim: dim, tokenizer: index.NewTokenizer()}, nil
}

// Dimension returns the number of hash buckets.
func (h *HashEmbedder) Dimension() int { return h.dim }

// Embed hashes every token of every text into the vector space.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingProvider, err)
		}
		vec := make([]float32, h.dim)
		for _, tok := range h.tokenizer.Tokens(text) {
			f := fnv.New64a()
			_, _ = f.Write([]byte(tok))
			sum := f.Sum64()
			sign := float32(1)
			if sum>>63 == 1 {
				sign = -1
			}
			vec[sum%uint64(h.dim)] += sign
		}
		out[i] = vector.Normalize(vec)
	}
	return out, nil
}
