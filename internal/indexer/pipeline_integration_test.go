//go:build integration

package indexer

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/campus-rag/internal/chunker"
	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/embedding"
	"github.com/bull/campus-rag/internal/index"
	"github.com/bull/campus-rag/internal/storage"
)

func TestLoadOrBuildAdmin_Integration(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}
	ctx := context.Background()

	client, err := embedding.NewClient("")
	require.NoError(t, err)
	embedder, err := embedding.NewEmbedder(client, embedding.DefaultModel, 0)
	require.NoError(t, err)

	store, err := storage.NewQdrantStorage(storage.Config{
		Host:       "localhost",
		Port:       6334,
		Collection: "campus_it_" + uuid.NewString()[:8],
		Dimension:  embedder.Dimension(),
	})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	require.NoError(t, store.EnsureCollection(ctx))
	t.Cleanup(func() {
		_ = store.DeleteCorpus(context.Background(), domain.AdminCorpus)
		store.Close()
	})

	ch, err := chunker.New(chunker.DefaultConfig(), embedder)
	require.NoError(t, err)
	pipeline := NewPipeline(ch, embedder, 2, slog.Default())
	build := AdminBuild{
		Source:   campusSource(),
		Snapshot: store,
		Index:    index.Options{Metric: index.MetricCosine},
	}

	built, result, err := pipeline.LoadOrBuildAdmin(ctx, build)
	require.NoError(t, err)
	assert.False(t, result.Restored)
	assert.Equal(t, 2, result.SuccessfulDocs)
	assert.Equal(t, 2, built.Size())

	// Second load comes from the snapshot without touching the source.
	source := campusSource()
	build.Source = source
	restored, result, err := pipeline.LoadOrBuildAdmin(ctx, build)
	require.NoError(t, err)
	assert.True(t, result.Restored)
	assert.Equal(t, 0, source.loads)
	assert.Equal(t, built.Size(), restored.Size())
}
