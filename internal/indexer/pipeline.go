// Package indexer chunks, embeds and inserts documents into corpus indexes,
// and restores or builds the admin corpus at startup.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bull/campus-rag/internal/chunker"
	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/embedding"
	"github.com/bull/campus-rag/internal/index"
)

// DefaultConcurrency bounds how many documents are chunked and embedded at once.
const DefaultConcurrency = 4

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	FailedDocs     []domain.FailedDoc
	DroppedChunks  []DroppedChunk
	// Restored is set when the index came from a snapshot instead of documents.
	Restored bool
	Duration time.Duration
}

// DroppedChunk is a chunk that was embedded but could not be inserted.
// Neither sub-index holds any part of it.
type DroppedChunk struct {
	ChunkID string
	Reason  string
}

// Pipeline chunks and embeds documents and inserts them into a CorpusIndex.
type Pipeline struct {
	chunker     *chunker.Chunker
	embedder    embedding.Provider
	concurrency int
	logger      *slog.Logger
}

// NewPipeline creates a new indexing pipeline with the given components.
// concurrency <= 0 means DefaultConcurrency.
func NewPipeline(ch *chunker.Chunker, embedder embedding.Provider, concurrency int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Pipeline{
		chunker:     ch,
		embedder:    embedder,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Chunker returns the chunker the pipeline applies.
func (p *Pipeline) Chunker() *chunker.Chunker { return p.chunker }

// prepared is one document's embedded chunks, or why it failed.
type prepared struct {
	chunks []domain.Chunk
	err    error
}

// Index adds docs to idx. Documents are chunked and embedded concurrently,
// then inserted one at a time in input order. A document that fails to
// chunk or embed is reported in FailedDocs and contributes nothing; the
// returned error is reserved for configuration problems and cancellation.
func (p *Pipeline) Index(ctx context.Context, idx *index.CorpusIndex, docs []*domain.Document) (*IndexResult, error) {
	start := time.Now()
	if err := p.checkDimension(idx); err != nil {
		return nil, err
	}
	result := &IndexResult{TotalDocs: len(docs)}

	results := make([]prepared, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			chunks, err := p.prepare(gctx, idx.Corpus(), doc)
			results[i] = prepared{chunks: chunks, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, doc := range docs {
		if err := results[i].err; err != nil {
			p.logger.Warn("Failed to index document", "corpus", idx.Corpus(), "document", doc.ID, "error", err)
			result.FailedDocs = append(result.FailedDocs, domain.FailedDoc{Path: doc.ID, Reason: err.Error()})
			continue
		}
		inserted := p.insert(idx, results[i].chunks, result)
		result.SuccessfulDocs++
		result.TotalChunks += inserted
		p.logger.Debug("Indexed document", "corpus", idx.Corpus(), "document", doc.ID, "chunks", inserted)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"corpus", idx.Corpus(),
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"dropped", len(result.DroppedChunks),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)
	return result, nil
}

// IndexDocument adds a single document and returns how many chunks were
// inserted. Unlike Index it returns chunking and embedding errors, so an
// interactive upload can surface them.
func (p *Pipeline) IndexDocument(ctx context.Context, idx *index.CorpusIndex, doc *domain.Document) (int, []DroppedChunk, error) {
	if err := p.checkDimension(idx); err != nil {
		return 0, nil, err
	}
	chunks, err := p.prepare(ctx, idx.Corpus(), doc)
	if err != nil {
		return 0, nil, err
	}
	result := &IndexResult{}
	inserted := p.insert(idx, chunks, result)
	return inserted, result.DroppedChunks, nil
}

func (p *Pipeline) checkDimension(idx *index.CorpusIndex) error {
	if idx.Dimension() != p.embedder.Dimension() {
		return fmt.Errorf("%w: corpus %s has %d, provider has %d",
			domain.ErrDimensionMismatch, idx.Corpus(), idx.Dimension(), p.embedder.Dimension())
	}
	return nil
}

// prepare chunks and embeds one document.
func (p *Pipeline) prepare(ctx context.Context, corpus domain.Corpus, doc *domain.Document) ([]domain.Chunk, error) {
	if doc.Corpus != corpus {
		return nil, fmt.Errorf("document %s belongs to %s, not %s", doc.ID, doc.Corpus, corpus)
	}

	chunks, err := p.chunker.Chunk(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embeddings: %w: got %d for %d chunks", domain.ErrEmbeddingProvider, len(embeddings), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}
	return chunks, nil
}

// insert adds chunks one by one. A rejected chunk is dropped and reported;
// the rest of the document still goes in.
func (p *Pipeline) insert(idx *index.CorpusIndex, chunks []domain.Chunk, result *IndexResult) int {
	inserted := 0
	for _, c := range chunks {
		if err := idx.Insert(c); err != nil {
			p.logger.Warn("Dropped chunk", "corpus", idx.Corpus(), "chunk", c.ID, "error", err)
			result.DroppedChunks = append(result.DroppedChunks, DroppedChunk{ChunkID: c.ID, Reason: err.Error()})
			continue
		}
		inserted++
	}
	return inserted
}
