package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/index"
)

// Source yields the documents of a corpus. Documents it cannot produce are
// reported as failures rather than errors.
type Source interface {
	Load(ctx context.Context, corpus domain.Corpus) ([]*domain.Document, []domain.FailedDoc, error)
}

// Snapshot persists a corpus's embedded chunks between process lifetimes,
// together with the chunker fingerprint that produced them. LoadChunks
// returns domain.ErrCorruptSnapshot for a snapshot it cannot vouch for.
type Snapshot interface {
	LoadChunks(ctx context.Context, corpus domain.Corpus) ([]domain.Chunk, string, error)
	SaveChunks(ctx context.Context, corpus domain.Corpus, chunks []domain.Chunk, chunking string) error
}

// AdminBuild describes how to obtain the admin corpus index.
type AdminBuild struct {
	Source Source
	// Snapshot is optional. Without it the index is built in memory every run.
	Snapshot Snapshot
	// Rebuild ignores an existing snapshot and re-indexes from Source.
	Rebuild bool
	Index   index.Options
}

// LoadOrBuildAdmin restores the admin index from its snapshot when one
// exists and was built with the configured chunking; otherwise it loads
// every document from the source, indexes them and saves a fresh snapshot.
// An incomplete snapshot is rebuilt rather than restored. The returned index is read-only from then on
// by convention: nothing else inserts into it.
func (p *Pipeline) LoadOrBuildAdmin(ctx context.Context, b AdminBuild) (*index.CorpusIndex, *IndexResult, error) {
	start := time.Now()
	opts := b.Index
	if opts.Dimension == 0 {
		opts.Dimension = p.embedder.Dimension()
	}
	idx, err := index.New(domain.AdminCorpus, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := p.checkDimension(idx); err != nil {
		return nil, nil, err
	}

	chunking := p.chunker.Config().Fingerprint()
	if b.Snapshot != nil && !b.Rebuild {
		chunks, stored, err := b.Snapshot.LoadChunks(ctx, domain.AdminCorpus)
		switch {
		case errors.Is(err, domain.ErrCorruptSnapshot):
			p.logger.Warn("Admin snapshot is incomplete, rebuilding from source", "error", err)
		case err != nil:
			return nil, nil, fmt.Errorf("load admin snapshot: %w", err)
		case len(chunks) == 0:
			p.logger.Info("No admin snapshot found, building from source")
		case stored != chunking:
			p.logger.Info("Admin snapshot uses different chunking, rebuilding from source",
				"snapshot", stored, "configured", chunking)
		default:
			result, err := p.restore(idx, chunks)
			if err != nil {
				return nil, nil, err
			}
			result.Duration = time.Since(start)
			p.logger.Info("Restored admin corpus from snapshot", "chunks", result.TotalChunks, "duration", result.Duration)
			return idx, result, nil
		}
	}

	if b.Source == nil {
		return nil, nil, &domain.ConfigError{Field: "admin.source", Reason: "no admin document source configured"}
	}
	docs, failed, err := b.Source.Load(ctx, domain.AdminCorpus)
	if err != nil {
		return nil, nil, fmt.Errorf("load admin documents: %w", err)
	}
	for _, f := range failed {
		p.logger.Warn("Admin document unavailable", "document", f.Path, "reason", f.Reason)
	}

	result, err := p.Index(ctx, idx, docs)
	if err != nil {
		return nil, nil, err
	}
	result.TotalDocs += len(failed)
	result.FailedDocs = append(failed, result.FailedDocs...)

	if b.Snapshot != nil && idx.Size() > 0 {
		if err := b.Snapshot.SaveChunks(ctx, domain.AdminCorpus, idx.Chunks(), chunking); err != nil {
			return nil, nil, fmt.Errorf("save admin snapshot: %w", err)
		}
		p.logger.Info("Saved admin snapshot", "chunks", idx.Size())
	}
	result.Duration = time.Since(start)
	return idx, result, nil
}

// restore inserts snapshot chunks. A snapshot written with a different
// embedding dimension is a configuration error, not a partial restore.
func (p *Pipeline) restore(idx *index.CorpusIndex, chunks []domain.Chunk) (*IndexResult, error) {
	for _, c := range chunks {
		if len(c.Embedding) != idx.Dimension() {
			return nil, fmt.Errorf("%w: admin snapshot chunk %s has %d, provider has %d (rebuild the admin corpus)",
				domain.ErrDimensionMismatch, c.ID, len(c.Embedding), idx.Dimension())
		}
	}

	result := &IndexResult{Restored: true}
	result.TotalChunks = p.insert(idx, chunks, result)
	docs := make(map[string]struct{})
	for _, c := range idx.Chunks() {
		docs[c.DocumentID] = struct{}{}
	}
	result.TotalDocs = len(docs)
	result.SuccessfulDocs = len(docs)
	return result, nil
}
