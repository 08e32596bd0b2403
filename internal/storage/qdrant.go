// Package storage persists corpus snapshots (chunks, vectors and provenance)
// in Qdrant so the admin corpus survives restarts without re-embedding.
package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/campus-rag/internal/domain"
)

const (
	upsertBatchSize = 100
	scrollBatchSize = uint32(256)
)

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client     *qdrant.Client
	collection string
	dimension  int
	host       string
	port       int
}

// Config locates the Qdrant server and collection.
type Config struct {
	Host       string
	Port       int
	Collection string
	// Dimension is the vector size of the collection; it must match the
	// embedding provider.
	Dimension int
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(cfg Config) (*QdrantStorage, error) {
	if cfg.Dimension <= 0 {
		return nil, &domain.ConfigError{Field: "qdrant.dimension", Reason: fmt.Sprintf("must be positive, got %d", cfg.Dimension)}
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		host:       cfg.Host,
		port:       cfg.Port,
	}

	if err := storage.retry(context.Background(), func() error { return storage.Health(context.Background()) }); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return storage, nil
}

// retry runs op with exponential backoff: 500ms initial, 10s max interval, 30s max elapsed.
func (s *QdrantStorage) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Addr returns host:port of the server.
func (s *QdrantStorage) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// EnsureCollection creates the snapshot collection (cosine, named vector
// "content") with keyword indexes on corpus and document_id. An existing
// collection with a different vector size is a dimension mismatch.
func (s *QdrantStorage) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == s.collection {
			return s.checkDimension(ctx)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	for _, field := range []string{fieldCorpus, fieldDocumentID} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

func (s *QdrantStorage) checkDimension(ctx context.Context) error {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection: %w", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParamsMap().GetMap()[vectorName]
	if params == nil {
		return fmt.Errorf("%w: collection %s has no %q vector", ErrCorruptSnapshot, s.collection, vectorName)
	}
	if int(params.GetSize()) != s.dimension {
		return fmt.Errorf("%w: collection %s stores %d, provider produces %d",
			domain.ErrDimensionMismatch, s.collection, params.GetSize(), s.dimension)
	}
	return nil
}

func corpusFilter(corpus domain.Corpus) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(fieldCorpus, string(corpus))},
	}
}

// SaveChunks replaces the stored snapshot of corpus with chunks. chunking
// records the chunker configuration that produced them. Chunks are upserted
// in batches of 100 and the manifest point goes last, so an interrupted save
// is detected by LoadChunks instead of restoring a partial corpus.
func (s *QdrantStorage) SaveChunks(ctx context.Context, corpus domain.Corpus, chunks []domain.Chunk, chunking string) error {
	for _, chunk := range chunks {
		if len(chunk.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %s has %d dimensions, expected %d",
				domain.ErrDimensionMismatch, chunk.ID, len(chunk.Embedding), s.dimension)
		}
		if chunk.Corpus != corpus {
			return fmt.Errorf("chunk %s belongs to %s, not %s", chunk.ID, chunk.Corpus, corpus)
		}
	}

	if err := s.DeleteCorpus(ctx, corpus); err != nil {
		return err
	}

	for i := 0; i < len(chunks); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-i)
		for j := i; j < end; j++ {
			points = append(points, chunkToPoint(chunks[j], j))
		}
		if err := s.upsert(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	m := manifest{chunks: len(chunks), chunking: chunking}
	if err := s.upsert(ctx, []*qdrant.PointStruct{manifestPoint(corpus, m, s.dimension)}); err != nil {
		return fmt.Errorf("failed to write snapshot manifest: %w", err)
	}
	return nil
}

func (s *QdrantStorage) upsert(ctx context.Context, points []*qdrant.PointStruct) error {
	return s.retry(ctx, func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	})
}

// LoadChunks returns the stored snapshot of corpus in original insertion
// order, vectors included, and the chunking it was built with. No snapshot
// yields an empty slice. Chunks without a manifest, or a chunk count that
// disagrees with it, yield ErrCorruptSnapshot.
func (s *QdrantStorage) LoadChunks(ctx context.Context, corpus domain.Corpus) ([]domain.Chunk, string, error) {
	type entry struct {
		chunk domain.Chunk
		seq   int
	}
	byID := make(map[string]entry)
	var (
		offset *qdrant.PointId
		info   *manifest
	)

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         corpusFilter(corpus),
			Limit:          qdrant.PtrOf(scrollBatchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to scroll corpus %s: %w", corpus, err)
		}

		// The offset point is included again on the next page; byID absorbs it.
		for _, point := range results {
			if isManifest(point.GetPayload()) {
				m := payloadToManifest(point.GetPayload())
				info = &m
				continue
			}
			chunk, seq, err := payloadToChunk(point.GetPayload(), denseVector(point))
			if err != nil {
				return nil, "", err
			}
			byID[chunk.ID] = entry{chunk: chunk, seq: seq}
		}

		if uint32(len(results)) < scrollBatchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	switch {
	case info == nil && len(byID) == 0:
		return nil, "", nil
	case info == nil:
		return nil, "", fmt.Errorf("%w: %s has %d chunks and no manifest (interrupted save)", ErrCorruptSnapshot, corpus, len(byID))
	case info.chunks != len(byID):
		return nil, "", fmt.Errorf("%w: %s manifest lists %d chunks, found %d", ErrCorruptSnapshot, corpus, info.chunks, len(byID))
	}

	entries := make([]entry, 0, len(byID))
	for _, e := range byID {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	chunks := make([]domain.Chunk, len(entries))
	for i, e := range entries {
		chunks[i] = e.chunk
	}
	return chunks, info.chunking, nil
}

// denseVector extracts the named vector, reading the dense field first and
// the legacy data field for older servers.
func denseVector(point *qdrant.RetrievedPoint) []float32 {
	v := point.GetVectors().GetVectors().GetVectors()[vectorName]
	if data := v.GetDense().GetData(); len(data) > 0 {
		return data
	}
	return v.GetData()
}

// DeleteCorpus removes every stored point of corpus.
func (s *QdrantStorage) DeleteCorpus(ctx context.Context, corpus domain.Corpus) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(corpusFilter(corpus)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete corpus %s: %w", corpus, err)
	}
	return nil
}

// ClearCollection deletes and recreates the collection.
func (s *QdrantStorage) ClearCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx)
}

// CollectionInfo contains collection statistics.
type CollectionInfo struct {
	Name        string
	PointsCount uint64
}

// GetCollectionInfo retrieves collection statistics including total points count.
func (s *QdrantStorage) GetCollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	collection, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &CollectionInfo{
		Name:        s.collection,
		PointsCount: collection.GetPointsCount(),
	}, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
