package index

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/campus-rag/internal/domain"
)

func chunk(id, text string, emb ...float32) domain.Chunk {
	return domain.Chunk{ID: id, DocumentID: id, Corpus: domain.AdminCorpus, Text: text, Embedding: emb}
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk.ID
	}
	return out
}

func TestTokenizer(t *testing.T) {
	tok := NewTokenizer()
	assert.Equal(t, []string{"library", "hours", "9am", "9pm", "weekdays"},
		tok.Tokens("Library HOURS are 9am to 9pm on weekdays."))
	assert.Equal(t, []string{"student's", "café"}, tok.Tokens("The student's café"))
	assert.Empty(t, tok.Tokens("the and of"))
	assert.Empty(t, tok.Tokens(""))
}

func TestVectorIndex_Cosine(t *testing.T) {
	v, err := NewVectorIndex(2, MetricCosine)
	require.NoError(t, err)

	require.NoError(t, v.Insert(chunk("a", ""), []float32{10, 0}))
	require.NoError(t, v.Insert(chunk("b", ""), []float32{1, 1}))
	require.NoError(t, v.Insert(chunk("c", ""), []float32{0, 3}))
	assert.Equal(t, 3, v.Size())

	hits, err := v.Query([]float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(hits))
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.7071, hits[1].Score, 1e-3)
}

func TestVectorIndex_InnerProduct(t *testing.T) {
	v, err := NewVectorIndex(2, MetricInnerProduct)
	require.NoError(t, err)

	require.NoError(t, v.Insert(chunk("a", ""), []float32{1, 0}))
	require.NoError(t, v.Insert(chunk("b", ""), []float32{5, 5}))

	hits, err := v.Query([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(hits))
	assert.InDelta(t, 5.0, hits[0].Score, 1e-6)
}

func TestVectorIndex_TiesByChunkID(t *testing.T) {
	v, err := NewVectorIndex(2, MetricCosine)
	require.NoError(t, err)
	for _, id := range []string{"z", "m", "a"} {
		require.NoError(t, v.Insert(chunk(id, ""), []float32{1, 0}))
	}

	hits, err := v.Query([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "m", "z"}, ids(hits))
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	v, err := NewVectorIndex(3, MetricCosine)
	require.NoError(t, err)

	err = v.Insert(chunk("a", ""), []float32{1, 2})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = v.Query([]float32{1}, 1)
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))

	_, err = NewVectorIndex(0, MetricCosine)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = NewVectorIndex(3, "euclidean")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestLexicalIndex_BM25(t *testing.T) {
	l := NewLexicalIndex(nil)
	l.Insert(chunk("hours", "Library hours are 9am to 9pm on weekdays."))
	l.Insert(chunk("holiday", "The library is closed on public holidays."))
	l.Insert(chunk("parking", "Parking permits are sold at the transport office."))

	hits := l.Query("library hours", 10)
	require.Len(t, hits, 2)
	assert.Equal(t, "hours", hits[0].Chunk.ID)
	assert.Equal(t, "holiday", hits[1].Chunk.ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	assert.Empty(t, l.Query("dining menu", 10), "no matching terms means no hits")
	assert.Len(t, l.Query("library", 1), 1)
}

func TestLexicalIndex_IDFFavoursRareTerms(t *testing.T) {
	l := NewLexicalIndex(nil)
	l.Insert(chunk("a", "campus campus shuttle"))
	l.Insert(chunk("b", "campus map"))
	l.Insert(chunk("c", "campus dining"))

	hits := l.Query("campus shuttle", 3)
	require.Len(t, hits, 3)
	assert.Equal(t, "a", hits[0].Chunk.ID)
}

// Case and stop words must be treated identically on both sides of the index.
func TestLexicalIndex_SameTokenizationAtIndexAndQuery(t *testing.T) {
	l := NewLexicalIndex(NewTokenizer())
	l.Insert(chunk("a", "REGISTRAR Office Hours"))
	l.Insert(chunk("b", "the of and"))

	for _, q := range []string{"registrar office hours", "Registrar OFFICE", "HOURS"} {
		hits := l.Query(q, 5)
		require.Len(t, hits, 1, q)
		assert.Equal(t, "a", hits[0].Chunk.ID)
	}
	assert.Empty(t, l.Query("The AND", 5), "stop words are dropped from queries as they were from chunks")

	text := "Registrar's Office: Hours"
	assert.Equal(t, l.Tokenizer().Tokens(text), l.Tokenizer().Tokens(text))
}

func TestLexicalIndex_CustomStopwords(t *testing.T) {
	l := NewLexicalIndex(NewTokenizerWithStopwords(nil))
	l.Insert(chunk("a", "the office"))
	hits := l.Query("the", 5)
	require.Len(t, hits, 1)
}

func newCorpus(t *testing.T) *CorpusIndex {
	t.Helper()
	c, err := New(domain.AdminCorpus, Options{Dimension: 2, Metric: MetricCosine})
	require.NoError(t, err)
	return c
}

func TestCorpusIndex_InsertKeepsIndexesPaired(t *testing.T) {
	c := newCorpus(t)
	require.NoError(t, c.Insert(chunk("a", "library hours", 1, 0)))
	require.NoError(t, c.Insert(chunk("b", "parking permits", 0, 1)))

	assert.Equal(t, 2, c.Size())
	assert.Equal(t, c.vectors.Size(), c.lexical.Size())

	// Rejected inserts leave both sub-indexes untouched.
	err := c.Insert(chunk("c", "dining", 1, 2, 3))
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	err = c.Insert(chunk("a", "duplicate", 1, 0))
	assert.True(t, errors.Is(err, domain.ErrDuplicateChunk))
	err = c.Insert(chunk("d", "no embedding"))
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))

	wrong := chunk("e", "session chunk", 1, 0)
	wrong.Corpus = domain.SessionCorpus("s1")
	assert.True(t, errors.Is(c.Insert(wrong), domain.ErrConfiguration))

	assert.Equal(t, 2, c.Size())
	assert.Equal(t, 2, c.vectors.Size())
	assert.Equal(t, 2, c.lexical.Size())
	assert.Empty(t, c.LexicalSearch("dining", 5))

	got, ok := c.Chunk("b")
	require.True(t, ok)
	assert.Equal(t, "parking permits", got.Text)
	assert.Equal(t, []string{"a", "b"}, []string{c.Chunks()[0].ID, c.Chunks()[1].ID})
}

func TestCorpusIndex_Search(t *testing.T) {
	c := newCorpus(t)
	require.NoError(t, c.Insert(chunk("a", "library hours", 1, 0)))
	require.NoError(t, c.Insert(chunk("b", "parking permits", 0, 1)))

	hits, err := c.VectorSearch([]float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(hits))

	assert.Equal(t, []string{"a"}, ids(c.LexicalSearch("library", 5)))
}

func TestCorpusIndex_Close(t *testing.T) {
	c := newCorpus(t)
	require.NoError(t, c.Insert(chunk("a", "library hours", 1, 0)))

	c.Close()
	c.Close()
	assert.True(t, c.Closed())
	assert.Zero(t, c.Size())
	assert.True(t, c.Empty())
	assert.Empty(t, c.LexicalSearch("library", 5))
	hits, err := c.VectorSearch([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.True(t, errors.Is(c.Insert(chunk("b", "x", 1, 0)), domain.ErrIndexClosed))
}

func TestCorpusIndex_ConcurrentInsertAndSearch(t *testing.T) {
	c := newCorpus(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Insert(chunk(fmt.Sprintf("c%02d", i), "shared text", 1, float32(i))))
		}(i)
		go func() {
			defer wg.Done()
			_, err := c.VectorSearch([]float32{1, 0}, 3)
			assert.NoError(t, err)
			c.LexicalSearch("shared", 3)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Size())
	assert.Len(t, c.LexicalSearch("shared", 100), 50)
}
