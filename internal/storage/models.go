package storage

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/campus-rag/internal/domain"
)

// DefaultCollection is the Qdrant collection holding corpus snapshots.
const DefaultCollection = "campus_chunks"

// vectorName is the named vector every chunk point carries.
const vectorName = "content"

// Payload keys. corpus and document_id carry keyword indexes.
const (
	fieldCorpus        = "corpus"
	fieldChunkID       = "chunk_id"
	fieldDocumentID    = "document_id"
	fieldDocumentTitle = "document_title"
	fieldOrdinal       = "ordinal"
	fieldSeq           = "seq"
	fieldText          = "text"
	fieldStart         = "start"
	fieldEnd           = "end"
	fieldPageStart     = "page_start"
	fieldPageEnd       = "page_end"
	fieldKind          = "kind"
	fieldChunkCount    = "chunk_count"
	fieldChunking      = "chunking"
)

// kindManifest marks the one point per corpus that describes its snapshot.
// It is written after every chunk point, so a snapshot without it is an
// interrupted save.
const kindManifest = "manifest"

// manifestKey cannot collide with a chunk ID, which always ends in ":<ordinal>".
const manifestKey = "#manifest"

// manifest describes a complete corpus snapshot.
type manifest struct {
	chunks   int
	chunking string
}

// pointID derives a stable UUID from the corpus and chunk ID, so saving the
// same chunk twice overwrites one point.
func pointID(corpus domain.Corpus, chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(corpus)+"/"+chunkID)).String()
}

// chunkToPoint converts an embedded chunk into a Qdrant point. seq records
// insertion order so a restored index matches the original.
func chunkToPoint(chunk domain.Chunk, seq int) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id: qdrant.NewIDUUID(pointID(chunk.Corpus, chunk.ID)),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			vectorName: qdrant.NewVector(chunk.Embedding...),
		}),
		Payload: qdrant.NewValueMap(map[string]any{
			fieldCorpus:        string(chunk.Corpus),
			fieldChunkID:       chunk.ID,
			fieldDocumentID:    chunk.DocumentID,
			fieldDocumentTitle: chunk.DocumentTitle,
			fieldOrdinal:       chunk.Ordinal,
			fieldSeq:           seq,
			fieldText:          chunk.Text,
			fieldStart:         chunk.Location.Start,
			fieldEnd:           chunk.Location.End,
			fieldPageStart:     chunk.Location.PageStart,
			fieldPageEnd:       chunk.Location.PageEnd,
		}),
	}
}

// manifestPoint builds the manifest point of corpus. Every point needs the
// named vector, so it carries a unit vector that no search ever reads.
func manifestPoint(corpus domain.Corpus, m manifest, dimension int) *qdrant.PointStruct {
	vec := make([]float32, dimension)
	vec[0] = 1
	return &qdrant.PointStruct{
		Id: qdrant.NewIDUUID(pointID(corpus, manifestKey)),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			vectorName: qdrant.NewVector(vec...),
		}),
		Payload: qdrant.NewValueMap(map[string]any{
			fieldCorpus:     string(corpus),
			fieldKind:       kindManifest,
			fieldChunkCount: m.chunks,
			fieldChunking:   m.chunking,
		}),
	}
}

func isManifest(payload map[string]*qdrant.Value) bool {
	return payload[fieldKind].GetStringValue() == kindManifest
}

func payloadToManifest(payload map[string]*qdrant.Value) manifest {
	return manifest{
		chunks:   int(payload[fieldChunkCount].GetIntegerValue()),
		chunking: payload[fieldChunking].GetStringValue(),
	}
}

// payloadToChunk rebuilds a chunk from a stored payload and vector.
func payloadToChunk(payload map[string]*qdrant.Value, embedding []float32) (domain.Chunk, int, error) {
	id := payload[fieldChunkID].GetStringValue()
	if id == "" {
		return domain.Chunk{}, 0, fmt.Errorf("%w: point without %s", ErrCorruptSnapshot, fieldChunkID)
	}
	if len(embedding) == 0 {
		return domain.Chunk{}, 0, fmt.Errorf("%w: chunk %s has no vector", ErrCorruptSnapshot, id)
	}

	chunk := domain.Chunk{
		ID:            id,
		DocumentID:    payload[fieldDocumentID].GetStringValue(),
		DocumentTitle: payload[fieldDocumentTitle].GetStringValue(),
		Corpus:        domain.Corpus(payload[fieldCorpus].GetStringValue()),
		Ordinal:       int(payload[fieldOrdinal].GetIntegerValue()),
		Text:          payload[fieldText].GetStringValue(),
		Location: domain.Location{
			Start:     int(payload[fieldStart].GetIntegerValue()),
			End:       int(payload[fieldEnd].GetIntegerValue()),
			PageStart: int(payload[fieldPageStart].GetIntegerValue()),
			PageEnd:   int(payload[fieldPageEnd].GetIntegerValue()),
		},
		Embedding: embedding,
	}
	return chunk, int(payload[fieldSeq].GetIntegerValue()), nil
}
