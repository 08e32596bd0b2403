// Package embedding maps text to fixed-length vectors.
package embedding

import "context"

// Provider embeds texts. Every vector it returns has length Dimension(),
// and results are in input order. Failures wrap domain.ErrEmbeddingProvider.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

var (
	_ Provider = (*Embedder)(nil)
	_ Provider = (*HashEmbedder)(nil)
)
