package domain

// ScoredChunk is one ranked entry of a SearchResult.
type ScoredChunk struct {
	Chunk  Chunk
	Score  float64
	Corpus Corpus
}

// SearchResult is the ordered output of one retrieval call. It is consumed
// immediately and never persisted.
type SearchResult struct {
	Query    string
	Strategy string
	Hits     []ScoredChunk
}

// Empty reports whether nothing matched. An empty result is a valid outcome.
func (r *SearchResult) Empty() bool {
	return r == nil || len(r.Hits) == 0
}
