package retrieval

import (
	"github.com/bull/campus-rag/internal/domain"
)

// fuseWeighted min-max normalizes each list to [0,1] and combines them with
// the given weights, scaled to sum to 1. A chunk missing from one list
// contributes 0 for it. When every score in a list is equal the list
// normalizes to 1.0 throughout.
func fuseWeighted(vectorHits, lexicalHits []domain.ScoredChunk, vectorWeight, lexicalWeight float64) []domain.ScoredChunk {
	wv, wl := weights(vectorWeight, lexicalWeight)
	f := newFuser()
	for _, h := range normalize(vectorHits) {
		f.add(h, wv*h.Score)
	}
	for _, h := range normalize(lexicalHits) {
		f.add(h, wl*h.Score)
	}
	return f.result()
}

// fuseRRF scores each chunk by weighted reciprocal rank: w / (k + rank),
// rank starting at 1. Both lists must already be in rank order.
func fuseRRF(vectorHits, lexicalHits []domain.ScoredChunk, vectorWeight, lexicalWeight, k float64) []domain.ScoredChunk {
	wv, wl := weights(vectorWeight, lexicalWeight)
	f := newFuser()
	for rank, h := range vectorHits {
		f.add(h, wv/(k+float64(rank+1)))
	}
	for rank, h := range lexicalHits {
		f.add(h, wl/(k+float64(rank+1)))
	}
	return f.result()
}

func weights(vector, lexical float64) (float64, float64) {
	sum := vector + lexical
	return vector / sum, lexical / sum
}

// normalize rescales scores to [0,1] with min-max.
func normalize(hits []domain.ScoredChunk) []domain.ScoredChunk {
	if len(hits) == 0 {
		return nil
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		lo = min(lo, h.Score)
		hi = max(hi, h.Score)
	}

	out := make([]domain.ScoredChunk, len(hits))
	for i, h := range hits {
		out[i] = h
		if hi == lo {
			out[i].Score = 1
		} else {
			out[i].Score = (h.Score - lo) / (hi - lo)
		}
	}
	return out
}

// fuseKey identifies a chunk across corpora; chunk IDs are only unique
// within one index.
type fuseKey struct {
	corpus domain.Corpus
	id     string
}

// fuser accumulates scores by (corpus, chunk ID), remembering first-seen order.
type fuser struct {
	order  []fuseKey
	hits   map[fuseKey]domain.ScoredChunk
	scores map[fuseKey]float64
}

func newFuser() *fuser {
	return &fuser{hits: make(map[fuseKey]domain.ScoredChunk), scores: make(map[fuseKey]float64)}
}

func (f *fuser) add(h domain.ScoredChunk, score float64) {
	k := fuseKey{h.Corpus, h.Chunk.ID}
	if _, ok := f.hits[k]; !ok {
		f.order = append(f.order, k)
		f.hits[k] = h
	}
	f.scores[k] += score
}

func (f *fuser) result() []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, len(f.order))
	for i, k := range f.order {
		h := f.hits[k]
		h.Score = f.scores[k]
		out[i] = h
	}
	return out
}
