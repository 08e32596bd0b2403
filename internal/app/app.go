// Package app wires configuration into the components both binaries share.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bull/campus-rag/internal/answer"
	"github.com/bull/campus-rag/internal/chunker"
	"github.com/bull/campus-rag/internal/config"
	"github.com/bull/campus-rag/internal/embedding"
	ghclient "github.com/bull/campus-rag/internal/github"
	"github.com/bull/campus-rag/internal/index"
	"github.com/bull/campus-rag/internal/indexer"
	"github.com/bull/campus-rag/internal/loader"
	"github.com/bull/campus-rag/internal/storage"
)

// NewLogger returns a text logger on w. Binaries pass stderr, since stdout
// may carry the MCP stdio transport.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Provider is the embedding provider plus, for OpenAI, the client it uses.
type Provider struct {
	embedding.Provider
	// Client is nil for the hash provider.
	Client *embedding.Client
}

// NewProvider builds the configured embedding provider.
func NewProvider(cfg *config.Config) (*Provider, error) {
	switch cfg.Embedding.Provider {
	case config.ProviderHash:
		h, err := embedding.NewHashEmbedder(cfg.Embedding.Dimension)
		if err != nil {
			return nil, err
		}
		return &Provider{Provider: h}, nil
	default:
		client, err := embedding.NewClient(cfg.Embedding.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding client: %w", err)
		}
		e, err := embedding.NewEmbedder(client, cfg.Embedding.Model, cfg.Embedding.BatchSize)
		if err != nil {
			return nil, err
		}
		return &Provider{Provider: e, Client: client}, nil
	}
}

// NewAnswerer uses the OpenAI chat model when an OpenAI client exists and
// falls back to extractive answers otherwise.
func NewAnswerer(cfg *config.Config, p *Provider, logger *slog.Logger) answer.Answerer {
	if p.Client == nil {
		return answer.Extractive{}
	}
	return answer.NewOpenAIAnswerer(p.Client.Client(), cfg.Answer.Model, cfg.Answer.MaxTokens, logger)
}

// NewSource returns the GitHub source when a repository is configured and
// the local directory source otherwise.
func NewSource(cfg *config.Config, logger *slog.Logger) (indexer.Source, error) {
	if cfg.GitHub.Enabled() {
		client, err := ghclient.NewClient(cfg.GitHub.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		return ghclient.NewFetcher(client, cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Path, cfg.GitHub.Ref, logger), nil
	}
	return loader.NewDir(cfg.Admin.DocsPath, logger), nil
}

// OpenSnapshot connects to Qdrant and ensures the collection exists. It
// returns nil when Qdrant is not configured.
func OpenSnapshot(ctx context.Context, cfg *config.Config) (*storage.QdrantStorage, error) {
	if !cfg.Qdrant.Enabled() {
		return nil, nil
	}
	store, err := storage.NewQdrantStorage(storage.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		Collection: cfg.Qdrant.Collection,
		Dimension:  cfg.Embedding.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	return store, nil
}

// Admin is a loaded admin corpus.
type Admin struct {
	Index    *index.CorpusIndex
	Result   *indexer.IndexResult
	Snapshot *storage.QdrantStorage
}

// Close releases the snapshot connection.
func (a *Admin) Close() error {
	if a.Snapshot == nil {
		return nil
	}
	return a.Snapshot.Close()
}

// LoadAdmin restores or builds the admin corpus as configured. rebuild
// forces a rebuild from the source even when a snapshot exists.
func LoadAdmin(ctx context.Context, cfg *config.Config, p *Provider, rebuild bool, logger *slog.Logger) (*Admin, error) {
	ch, err := chunker.New(cfg.Chunking, p)
	if err != nil {
		return nil, err
	}
	source, err := NewSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := OpenSnapshot(ctx, cfg)
	if err != nil {
		return nil, err
	}

	build := indexer.AdminBuild{
		Source:  source,
		Rebuild: rebuild || cfg.Admin.Rebuild,
		Index:   index.Options{Dimension: p.Dimension(), Metric: cfg.Metric},
	}
	if store != nil {
		build.Snapshot = store
	}

	pipeline := indexer.NewPipeline(ch, p, cfg.Admin.Concurrency, logger)
	idx, result, err := pipeline.LoadOrBuildAdmin(ctx, build)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}
	return &Admin{Index: idx, Result: result, Snapshot: store}, nil
}
