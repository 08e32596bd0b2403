package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/campus-rag/internal/answer"
	"github.com/bull/campus-rag/internal/config"
	"github.com/bull/campus-rag/internal/domain"
	ghclient "github.com/bull/campus-rag/internal/github"
	"github.com/bull/campus-rag/internal/loader"
)

func hashConfig(t *testing.T, docs string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Embedding.Provider = config.ProviderHash
	cfg.Admin.DocsPath = docs
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestLoadAdmin_FromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.md"), []byte("# House Rules\n\nQuiet hours start at 10pm."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.docx"), []byte("nope"), 0o644))

	cfg := hashConfig(t, dir)
	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.Nil(t, p.Client)
	assert.Equal(t, cfg.Embedding.Dimension, p.Dimension())

	admin, err := LoadAdmin(context.Background(), cfg, p, false, slog.Default())
	require.NoError(t, err)
	defer admin.Close()

	assert.Nil(t, admin.Snapshot)
	assert.Equal(t, domain.AdminCorpus, admin.Index.Corpus())
	assert.Equal(t, 1, admin.Index.Size())
	assert.Equal(t, 1, admin.Result.SuccessfulDocs)
	require.Len(t, admin.Result.FailedDocs, 1)
	assert.Equal(t, "broken.docx", admin.Result.FailedDocs[0].Path)
}

func TestLoadAdmin_MissingDirectory(t *testing.T) {
	cfg := hashConfig(t, filepath.Join(t.TempDir(), "missing"))
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	_, err = LoadAdmin(context.Background(), cfg, p, false, slog.Default())
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	cfg := hashConfig(t, "docs")
	src, err := NewSource(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &loader.Dir{}, src)

	cfg.GitHub.Owner, cfg.GitHub.Repo = "campus", "handbook"
	src, err = NewSource(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &ghclient.Fetcher{}, src)
}

func TestNewAnswerer_FallsBackToExtractive(t *testing.T) {
	cfg := hashConfig(t, "docs")
	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, answer.Extractive{}, NewAnswerer(cfg, p, nil))
}

func TestOpenSnapshot_Disabled(t *testing.T) {
	store, err := OpenSnapshot(context.Background(), hashConfig(t, "docs"))
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown", "corpus", "admin")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "corpus=admin")
}
