// Package retrieval runs similarity, MMR, lexical and hybrid searches across
// one or more corpus indexes and merges the results.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/index"
)

// Embedder embeds query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Engine executes searches. It keeps no per-query state and is safe for
// concurrent use.
type Engine struct {
	embedder Embedder
	logger   *slog.Logger
}

// NewEngine creates an Engine. A nil logger uses slog.Default().
func NewEngine(embedder Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{embedder: embedder, logger: logger}
}

// Search runs opts.Strategy over every non-empty corpus and merges the
// results: score descending, then session before admin, then chunk ID.
// Nil or empty corpora are skipped; a blank query or no searchable corpus
// yields an empty result rather than an error.
func (e *Engine) Search(ctx context.Context, query string, opts Options, corpora ...*index.CorpusIndex) (*domain.SearchResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.normalized()
	result := &domain.SearchResult{Query: query, Strategy: string(opts.Strategy)}

	active := activeCorpora(corpora)
	if strings.TrimSpace(query) == "" || len(active) == 0 {
		return result, nil
	}

	start := time.Now()
	var (
		hits []domain.ScoredChunk
		err  error
	)
	if opts.Strategy == StrategyLexical {
		hits = e.lexical(query, opts, active)
	} else {
		var q []float32
		q, err = e.embedQuery(ctx, query, active)
		if err != nil {
			return nil, err
		}
		switch opts.Strategy {
		case StrategySimilarity:
			hits, err = e.similarity(q, opts.K, active)
		case StrategyMMR:
			hits, err = e.mmr(q, opts, active)
		case StrategyHybrid:
			hits, err = e.hybrid(ctx, query, q, opts, active)
		}
		if err != nil {
			return nil, err
		}
	}

	result.Hits = hits
	e.logger.Debug("search complete",
		"strategy", opts.Strategy,
		"corpora", len(active),
		"hits", len(hits),
		"duration", time.Since(start))
	return result, nil
}

func activeCorpora(corpora []*index.CorpusIndex) []*index.CorpusIndex {
	seen := make(map[*index.CorpusIndex]struct{}, len(corpora))
	var active []*index.CorpusIndex
	for _, c := range corpora {
		if c.Empty() {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		active = append(active, c)
	}
	return active
}

// embedQuery checks dimensions before calling the provider, so a
// misconfigured corpus fails without any I/O.
func (e *Engine) embedQuery(ctx context.Context, query string, corpora []*index.CorpusIndex) ([]float32, error) {
	if e.embedder == nil {
		return nil, &domain.ConfigError{Field: "embedding.provider", Reason: "vector search requires an embedding provider"}
	}
	for _, c := range corpora {
		if c.Dimension() != e.embedder.Dimension() {
			return nil, fmt.Errorf("%w: corpus %s has %d, provider has %d",
				domain.ErrDimensionMismatch, c.Corpus(), c.Dimension(), e.embedder.Dimension())
		}
	}

	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d embeddings for one query", domain.ErrEmbeddingProvider, len(vecs))
	}
	return vecs[0], nil
}

func (e *Engine) similarity(q []float32, k int, corpora []*index.CorpusIndex) ([]domain.ScoredChunk, error) {
	var candidates []domain.ScoredChunk
	for _, c := range corpora {
		hits, err := c.VectorSearch(q, k)
		if err != nil {
			return nil, fmt.Errorf("vector search %s: %w", c.Corpus(), err)
		}
		candidates = append(candidates, scored(hits, c.Corpus())...)
	}
	return truncate(merge(candidates), k), nil
}

func (e *Engine) mmr(q []float32, opts Options, corpora []*index.CorpusIndex) ([]domain.ScoredChunk, error) {
	pool, err := e.similarity(q, opts.poolSize(), corpora)
	if err != nil {
		return nil, err
	}
	return selectMMR(pool, opts.K, opts.Lambda), nil
}

func (e *Engine) lexical(query string, opts Options, corpora []*index.CorpusIndex) []domain.ScoredChunk {
	var candidates []domain.ScoredChunk
	for _, c := range corpora {
		candidates = append(candidates, scored(c.LexicalSearch(query, opts.K), c.Corpus())...)
	}
	return truncate(merge(candidates), opts.K)
}

// hybrid runs the vector and lexical searches of every corpus concurrently,
// merges each signal into one ranked list across corpora and fuses the two
// lists once, so fused scores from different corpora are comparable.
func (e *Engine) hybrid(ctx context.Context, query string, q []float32, opts Options, corpora []*index.CorpusIndex) ([]domain.ScoredChunk, error) {
	pool := opts.poolSize()
	vectorHits := make([][]domain.ScoredChunk, len(corpora))
	lexicalHits := make([][]domain.ScoredChunk, len(corpora))

	g, _ := errgroup.WithContext(ctx)
	for i, c := range corpora {
		g.Go(func() error {
			hits, err := c.VectorSearch(q, pool)
			if err != nil {
				return fmt.Errorf("vector search %s: %w", c.Corpus(), err)
			}
			vectorHits[i] = scored(hits, c.Corpus())
			return nil
		})
		g.Go(func() error {
			lexicalHits[i] = scored(c.LexicalSearch(query, pool), c.Corpus())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	vectorList := merge(slices.Concat(vectorHits...))
	lexicalList := merge(slices.Concat(lexicalHits...))

	var fused []domain.ScoredChunk
	switch opts.Fusion {
	case FusionRRF:
		fused = fuseRRF(vectorList, lexicalList, opts.VectorWeight, opts.LexicalWeight, opts.RRFConstant)
	default:
		fused = fuseWeighted(vectorList, lexicalList, opts.VectorWeight, opts.LexicalWeight)
	}
	return truncate(merge(fused), opts.K), nil
}

func scored(hits []index.Hit, corpus domain.Corpus) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, len(hits))
	for i, h := range hits {
		out[i] = domain.ScoredChunk{Chunk: h.Chunk, Score: h.Score, Corpus: corpus}
	}
	return out
}

// merge sorts candidates from any number of corpora and drops repeated
// (corpus, chunk ID) pairs, keeping the best-ranked copy.
func merge(candidates []domain.ScoredChunk) []domain.ScoredChunk {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if pa, pb := a.Corpus.Priority(), b.Corpus.Priority(); pa != pb {
			return pa < pb
		}
		if a.Corpus != b.Corpus {
			return a.Corpus < b.Corpus
		}
		return a.Chunk.ID < b.Chunk.ID
	})

	type key struct {
		corpus domain.Corpus
		id     string
	}
	seen := make(map[key]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		k := key{c.Corpus, c.Chunk.ID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

func truncate(hits []domain.ScoredChunk, k int) []domain.ScoredChunk {
	if len(hits) > k {
		return hits[:k]
	}
	return hits
}
