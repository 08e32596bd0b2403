package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/vector"
)

// Metric is the similarity function of a VectorIndex, fixed per instance.
type Metric string

const (
	MetricCosine       Metric = "cosine"
	MetricInnerProduct Metric = "inner_product"
)

// ParseMetric validates a metric name.
func ParseMetric(name string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(name))); m {
	case MetricCosine, MetricInnerProduct:
		return m, nil
	case "":
		return MetricCosine, nil
	default:
		return "", &domain.ConfigError{Field: "index.metric", Reason: fmt.Sprintf("unknown metric %q", name)}
	}
}

// Hit is one query match.
type Hit struct {
	Chunk domain.Chunk
	Score float64
}

// VectorIndex is an exact nearest-neighbour index: queries scan every stored
// vector. It is not safe for concurrent mutation; CorpusIndex serializes access.
type VectorIndex struct {
	dim     int
	metric  Metric
	chunks  []domain.Chunk
	vectors [][]float32
}

// NewVectorIndex creates an empty index for vectors of dimension dim.
func NewVectorIndex(dim int, metric Metric) (*VectorIndex, error) {
	if dim <= 0 {
		return nil, &domain.ConfigError{Field: "embedding.dimension", Reason: fmt.Sprintf("must be positive, got %d", dim)}
	}
	m, err := ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	return &VectorIndex{dim: dim, metric: m}, nil
}

// Insert adds chunk with its embedding.
func (v *VectorIndex) Insert(chunk domain.Chunk, embedding []float32) error {
	if len(embedding) != v.dim {
		return fmt.Errorf("%w: index has %d, chunk %s has %d", domain.ErrDimensionMismatch, v.dim, chunk.ID, len(embedding))
	}
	stored := embedding
	if v.metric == MetricCosine {
		stored = vector.Normalize(embedding)
	}
	v.chunks = append(v.chunks, chunk)
	v.vectors = append(v.vectors, stored)
	return nil
}

// Query returns up to k chunks by descending similarity, ties broken by chunk ID.
func (v *VectorIndex) Query(query []float32, k int) ([]Hit, error) {
	if len(query) != v.dim {
		return nil, fmt.Errorf("%w: index has %d, query has %d", domain.ErrDimensionMismatch, v.dim, len(query))
	}
	if k <= 0 || len(v.chunks) == 0 {
		return nil, nil
	}
	if v.metric == MetricCosine {
		query = vector.Normalize(query)
	}

	hits := make([]Hit, len(v.chunks))
	for i, vec := range v.vectors {
		hits[i] = Hit{Chunk: v.chunks[i], Score: vector.Dot(query, vec)}
	}
	sortHits(hits)
	return hits[:min(k, len(hits))], nil
}

// Size returns the number of stored vectors.
func (v *VectorIndex) Size() int { return len(v.chunks) }

// Dimension returns the fixed vector dimension.
func (v *VectorIndex) Dimension() int { return v.dim }

// Metric returns the similarity metric.
func (v *VectorIndex) Metric() Metric { return v.metric }

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
}
