package domain

import "fmt"

// Location is where a chunk sits in its source document.
type Location struct {
	Start     int `json:"start"`                // rune offset, inclusive
	End       int `json:"end"`                  // rune offset, exclusive
	PageStart int `json:"page_start,omitempty"` // 0 when the document has no pages
	PageEnd   int `json:"page_end,omitempty"`
}

// Chunk is a contiguous span of a document's text and the unit of retrieval.
// Chunks are immutable after creation apart from Embedding, which is filled in
// once by the indexer.
type Chunk struct {
	ID            string // "<document id>:<ordinal>", unique within an index
	DocumentID    string
	DocumentTitle string
	Corpus        Corpus
	Ordinal       int
	Text          string
	Location      Location
	Embedding     []float32
}

// ChunkID builds the identifier for the chunk at ordinal within a document.
func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s:%d", documentID, ordinal)
}

// NewChunk cuts the rune span out of the document and fills in provenance.
func NewChunk(doc *Document, runes []rune, ordinal int, span Span) Chunk {
	return Chunk{
		ID:            ChunkID(doc.ID, ordinal),
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		Corpus:        doc.Corpus,
		Ordinal:       ordinal,
		Text:          string(runes[span.Start:span.End]),
		Location: Location{
			Start:     span.Start,
			End:       span.End,
			PageStart: doc.PageAt(span.Start),
			PageEnd:   doc.PageAt(max(span.End-1, span.Start)),
		},
	}
}
