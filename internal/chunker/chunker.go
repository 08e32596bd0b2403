// Package chunker splits documents into ordered, provenance-tagged chunks
// using one of a fixed set of strategies.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/bull/campus-rag/internal/domain"
)

// Strategy names a chunking algorithm.
type Strategy string

const (
	// StrategyRecursive splits on prioritized separators and merges pieces up to the target size.
	StrategyRecursive Strategy = "recursive"
	// StrategyFixedSize cuts exact windows, ignoring text structure.
	StrategyFixedSize Strategy = "fixed_size"
	// StrategySemantic groups sentences until embedding similarity drops.
	StrategySemantic Strategy = "semantic"
)

// Strategies lists every supported strategy in a stable order.
var Strategies = []Strategy{StrategyRecursive, StrategyFixedSize, StrategySemantic}

// ParseStrategy validates a strategy name. Unknown names are configuration
// errors; there is no fallback.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.TrimSpace(strings.ToLower(name)))
	for _, known := range Strategies {
		if s == known {
			return s, nil
		}
	}
	return "", &domain.ConfigError{
		Field:  "chunking.strategy",
		Reason: fmt.Sprintf("unknown strategy %q (want recursive, fixed_size or semantic)", name),
	}
}

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
	DefaultThreshold    = 0.5
)

// DefaultSeparators is the recursive strategy's separator priority:
// paragraph, line, sentence, word.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Config selects and parameterizes a strategy. Sizes are in characters (runes).
type Config struct {
	Strategy     Strategy `yaml:"strategy"`
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	// Threshold is the cosine similarity below which the semantic strategy
	// starts a new chunk.
	Threshold float64 `yaml:"threshold"`
	// Separators overrides DefaultSeparators for the recursive strategy.
	Separators []string `yaml:"separators"`
}

// DefaultConfig returns the recursive strategy with its default sizes.
func DefaultConfig() Config {
	return Config{
		Strategy:     StrategyRecursive,
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Threshold:    DefaultThreshold,
	}
}

// Validate checks the configuration without needing an embedder.
func (c Config) Validate() error {
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.ChunkSize <= 0 {
		return &domain.ConfigError{Field: "chunking.chunk_size", Reason: fmt.Sprintf("must be positive, got %d", c.ChunkSize)}
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return &domain.ConfigError{
			Field:  "chunking.chunk_overlap",
			Reason: fmt.Sprintf("must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap),
		}
	}
	if c.Strategy == StrategySemantic && (c.Threshold < -1 || c.Threshold > 1) {
		return &domain.ConfigError{Field: "chunking.threshold", Reason: fmt.Sprintf("must be in [-1, 1], got %g", c.Threshold)}
	}
	for _, sep := range c.Separators {
		if sep == "" {
			return &domain.ConfigError{Field: "chunking.separators", Reason: "separator must not be empty"}
		}
	}
	return nil
}

// Fingerprint identifies the chunk boundaries this configuration produces.
// Two configurations with equal fingerprints chunk any document identically.
func (c Config) Fingerprint() string {
	switch c.Strategy {
	case StrategySemantic:
		return fmt.Sprintf("semantic size=%d threshold=%g", c.ChunkSize, c.Threshold)
	case StrategyFixedSize:
		return fmt.Sprintf("fixed_size size=%d overlap=%d", c.ChunkSize, c.ChunkOverlap)
	default:
		seps := c.Separators
		if len(seps) == 0 {
			seps = DefaultSeparators
		}
		return fmt.Sprintf("%s size=%d overlap=%d separators=%q", c.Strategy, c.ChunkSize, c.ChunkOverlap, seps)
	}
}

// Embedder is the part of an embedding provider the semantic strategy needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker applies one validated configuration to any number of documents.
// It holds no mutable state and is safe for concurrent use.
type Chunker struct {
	cfg      Config
	embedder Embedder
}

// New validates cfg and returns a Chunker. The embedder is only required by
// the semantic strategy and may be nil otherwise.
func New(cfg Config, embedder Embedder) (*Chunker, error) {
	strategy, err := ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, err
	}
	cfg.Strategy = strategy
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strategy == StrategySemantic && embedder == nil {
		return nil, &domain.ConfigError{Field: "chunking.strategy", Reason: "semantic strategy requires an embedding provider"}
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = DefaultSeparators
	}
	return &Chunker{cfg: cfg, embedder: embedder}, nil
}

// Config returns the validated configuration.
func (c *Chunker) Config() Config { return c.cfg }

// Chunk splits doc into chunks in ordinal order. An empty or whitespace-only
// document yields no chunks and no error.
func (c *Chunker) Chunk(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}
	runes := []rune(doc.Text)

	var spans []domain.Span
	switch c.cfg.Strategy {
	case StrategyRecursive:
		spans = c.recursive(runes, doc.Units)
	case StrategyFixedSize:
		spans = c.fixed(len(runes))
	case StrategySemantic:
		var err error
		spans, err = c.semantic(ctx, runes)
		if err != nil {
			return nil, fmt.Errorf("semantic chunking %s: %w", doc.ID, err)
		}
	}

	chunks := make([]domain.Chunk, 0, len(spans))
	for _, span := range spans {
		chunks = append(chunks, domain.NewChunk(doc, runes, len(chunks), span))
	}
	return chunks, nil
}

// trim shrinks span to exclude leading and trailing whitespace.
func trim(runes []rune, span domain.Span) domain.Span {
	for span.Start < span.End && unicode.IsSpace(runes[span.Start]) {
		span.Start++
	}
	for span.End > span.Start && unicode.IsSpace(runes[span.End-1]) {
		span.End--
	}
	return span
}
