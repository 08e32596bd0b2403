package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/vector"
)

func TestHashEmbedder(t *testing.T) {
	h, err := NewHashEmbedder(64)
	require.NoError(t, err)
	assert.Equal(t, 64, h.Dimension())

	vecs, err := h.Embed(context.Background(), []string{
		"Library hours are 9am to 9pm",
		"library HOURS",
		"Parking permits",
		"",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	for _, v := range vecs {
		assert.Len(t, v, 64)
	}

	assert.InDelta(t, 1.0, vector.Norm(vecs[0]), 1e-5)
	assert.Greater(t, vector.Cosine(vecs[0], vecs[1]), vector.Cosine(vecs[0], vecs[2]))
	assert.Zero(t, vector.Norm(vecs[3]))

	again, err := h.Embed(context.Background(), []string{"Library hours are 9am to 9pm"})
	require.NoError(t, err)
	assert.Equal(t, vecs[0], again[0], "hash embeddings are deterministic")
}

func TestHashEmbedder_Errors(t *testing.T) {
	_, err := NewHashEmbedder(0)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	h, err := NewHashEmbedder(8)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Embed(ctx, []string{"x"})
	assert.True(t, errors.Is(err, domain.ErrEmbeddingProvider))
}

func TestModelDimension(t *testing.T) {
	dim, err := ModelDimension("text-embedding-3-large")
	require.NoError(t, err)
	assert.Equal(t, 3072, dim)

	_, err = ModelDimension("word2vec")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestNewEmbedder_Defaults(t *testing.T) {
	e, err := NewEmbedder(&Client{}, "", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, e.model)
	assert.Equal(t, 1536, e.Dimension())
	assert.Equal(t, DefaultBatchSize, e.batchSize)
}

func TestIsRateLimitError(t *testing.T) {
	assert.False(t, IsRateLimitError(errors.New("boom")))
	assert.False(t, IsRateLimitError(nil))
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{0.5, -1, 2}, toFloat32([]float64{0.5, -1, 2}))
}
