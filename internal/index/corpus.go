// Package index holds the per-corpus vector and lexical indexes.
package index

import (
	"fmt"
	"sync"

	"github.com/bull/campus-rag/internal/domain"
)

// CorpusIndex pairs a VectorIndex and a LexicalIndex over one chunk set.
// Insert is the only mutation and updates both sub-indexes or neither, so
// every chunk in one has a matching entry in the other.
type CorpusIndex struct {
	mu      sync.RWMutex
	corpus  domain.Corpus
	vectors *VectorIndex
	lexical *LexicalIndex
	byID    map[string]int
	chunks  []domain.Chunk
	closed  bool
}

// Options configures a CorpusIndex.
type Options struct {
	Dimension int
	Metric    Metric
	Tokenizer *Tokenizer
}

// New creates an empty index for corpus.
func New(corpus domain.Corpus, opts Options) (*CorpusIndex, error) {
	vectors, err := NewVectorIndex(opts.Dimension, opts.Metric)
	if err != nil {
		return nil, err
	}
	return &CorpusIndex{
		corpus:  corpus,
		vectors: vectors,
		lexical: NewLexicalIndex(opts.Tokenizer),
		byID:    make(map[string]int),
	}, nil
}

// Insert adds an embedded chunk to both sub-indexes. All checks run before
// either sub-index is touched; on error the index is unchanged.
func (c *CorpusIndex) Insert(chunk domain.Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrIndexClosed
	}
	if chunk.Corpus != c.corpus {
		return &domain.ConfigError{
			Field:  "corpus",
			Reason: fmt.Sprintf("chunk %s belongs to %s, index serves %s", chunk.ID, chunk.Corpus, c.corpus),
		}
	}
	if len(chunk.Embedding) != c.vectors.Dimension() {
		return fmt.Errorf("%w: index has %d, chunk %s has %d",
			domain.ErrDimensionMismatch, c.vectors.Dimension(), chunk.ID, len(chunk.Embedding))
	}
	if _, dup := c.byID[chunk.ID]; dup {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateChunk, chunk.ID)
	}

	if err := c.vectors.Insert(chunk, chunk.Embedding); err != nil {
		return err
	}
	c.lexical.Insert(chunk)
	c.byID[chunk.ID] = len(c.chunks)
	c.chunks = append(c.chunks, chunk)
	return nil
}

// VectorSearch returns the k most similar chunks to the query embedding.
func (c *CorpusIndex) VectorSearch(query []float32, k int) ([]Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, nil
	}
	return c.vectors.Query(query, k)
}

// LexicalSearch returns the k best BM25 matches for the query text.
func (c *CorpusIndex) LexicalSearch(query string, k int) []Hit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	return c.lexical.Query(query, k)
}

// Corpus returns the corpus tag served by the index.
func (c *CorpusIndex) Corpus() domain.Corpus { return c.corpus }

// Dimension returns the embedding dimension every chunk must match.
func (c *CorpusIndex) Dimension() int { return c.vectors.Dimension() }

// Metric returns the vector similarity metric.
func (c *CorpusIndex) Metric() Metric { return c.vectors.Metric() }

// Size returns the number of chunks. Both sub-indexes always agree on it.
// A nil index has size zero.
func (c *CorpusIndex) Size() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks)
}

// Empty reports whether a search could return anything.
func (c *CorpusIndex) Empty() bool {
	return c == nil || c.Size() == 0
}

// Chunk looks a chunk up by ID.
func (c *CorpusIndex) Chunk(id string) (domain.Chunk, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.byID[id]
	if !ok {
		return domain.Chunk{}, false
	}
	return c.chunks[pos], true
}

// Chunks returns a copy of every chunk in insertion order.
func (c *CorpusIndex) Chunks() []domain.Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Chunk, len(c.chunks))
	copy(out, c.chunks)
	return out
}

// Close tears down both sub-indexes together. Later inserts fail with
// ErrIndexClosed and searches return nothing.
func (c *CorpusIndex) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.vectors = &VectorIndex{dim: c.vectors.dim, metric: c.vectors.metric}
	c.lexical = NewLexicalIndex(c.lexical.tokenizer)
	c.byID = nil
	c.chunks = nil
}

// Closed reports whether Close has been called.
func (c *CorpusIndex) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
