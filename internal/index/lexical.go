package index

import (
	"math"

	"github.com/bull/campus-rag/internal/domain"
)

// BM25 parameters.
const (
	BM25K1 = 1.5
	BM25B  = 0.75
)

// LexicalIndex scores chunks against keyword queries with BM25.
// Postings map term -> chunk position -> term frequency.
type LexicalIndex struct {
	tokenizer *Tokenizer
	postings  map[string]map[int]int
	chunks    []domain.Chunk
	lengths   []int
	totalLen  int
}

// NewLexicalIndex creates an empty index. A nil tokenizer means NewTokenizer().
func NewLexicalIndex(tokenizer *Tokenizer) *LexicalIndex {
	if tokenizer == nil {
		tokenizer = NewTokenizer()
	}
	return &LexicalIndex{
		tokenizer: tokenizer,
		postings:  make(map[string]map[int]int),
	}
}

// Tokenizer returns the tokenizer applied at insert and query time.
func (l *LexicalIndex) Tokenizer() *Tokenizer { return l.tokenizer }

// Insert indexes the chunk text.
func (l *LexicalIndex) Insert(chunk domain.Chunk) {
	pos := len(l.chunks)
	tokens := l.tokenizer.Tokens(chunk.Text)
	for _, tok := range tokens {
		p, ok := l.postings[tok]
		if !ok {
			p = make(map[int]int)
			l.postings[tok] = p
		}
		p[pos]++
	}
	l.chunks = append(l.chunks, chunk)
	l.lengths = append(l.lengths, len(tokens))
	l.totalLen += len(tokens)
}

// Query returns up to k chunks with a positive BM25 score, best first,
// ties broken by chunk ID. Repeated query terms count once.
func (l *LexicalIndex) Query(text string, k int) []Hit {
	n := len(l.chunks)
	if k <= 0 || n == 0 {
		return nil
	}
	avgLen := float64(l.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[int]float64)
	seen := make(map[string]struct{})
	for _, term := range l.tokenizer.Tokens(text) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		postings := l.postings[term]
		if len(postings) == 0 {
			continue
		}
		df := float64(len(postings))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
		for pos, tf := range postings {
			f := float64(tf)
			norm := 1 - BM25B + BM25B*float64(l.lengths[pos])/avgLen
			scores[pos] += idf * f * (BM25K1 + 1) / (f + BM25K1*norm)
		}
	}

	hits := make([]Hit, 0, len(scores))
	for pos, score := range scores {
		if score > 0 {
			hits = append(hits, Hit{Chunk: l.chunks[pos], Score: score})
		}
	}
	sortHits(hits)
	return hits[:min(k, len(hits))]
}

// Size returns the number of indexed chunks.
func (l *LexicalIndex) Size() int { return len(l.chunks) }
