package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/campus-rag/internal/chunker"
	"github.com/bull/campus-rag/internal/citation"
	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/index"
	"github.com/bull/campus-rag/internal/vector"
)

// conceptEmbedder marks which concept axes a text mentions. Texts about the
// same concepts get identical vectors.
type conceptEmbedder struct {
	calls int
	err   error
}

var concepts = map[string]int{
	"library": 0,
	"hours": 1, "open": 1, "opening": 1, "9am": 1, "9pm": 1, "weekdays": 1,
	"closed": 2, "holidays": 2, "holiday": 2, "public": 2,
	"parking": 3, "permit": 3, "permits": 3,
	"tuition": 4, "fees": 4,
}

func (e *conceptEmbedder) Dimension() int { return 5 }

func (e *conceptEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.Dimension())
		for _, word := range strings.Fields(strings.ToLower(text)) {
			if axis, ok := concepts[strings.Trim(word, ".,?!")]; ok {
				vec[axis] = 1
			}
		}
		out[i] = vec
	}
	return out, nil
}

// fixedEmbedder always returns the same query vector.
type fixedEmbedder struct{ vec []float32 }

func (e *fixedEmbedder) Dimension() int { return len(e.vec) }

func (e *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}

type doc struct{ id, text string }

func buildIndex(t *testing.T, corpus domain.Corpus, embedder *conceptEmbedder, docs ...doc) *index.CorpusIndex {
	t.Helper()
	idx, err := index.New(corpus, index.Options{Dimension: embedder.Dimension(), Metric: index.MetricCosine})
	require.NoError(t, err)

	c, err := chunker.New(chunker.DefaultConfig(), nil)
	require.NoError(t, err)
	for _, d := range docs {
		chunks, err := c.Chunk(context.Background(), &domain.Document{ID: d.id, Title: d.id, Text: d.text, Corpus: corpus})
		require.NoError(t, err)
		for _, ch := range chunks {
			vecs, err := embedder.Embed(context.Background(), []string{ch.Text})
			require.NoError(t, err)
			ch.Embedding = vecs[0]
			require.NoError(t, idx.Insert(ch))
		}
	}
	embedder.calls = 0
	return idx
}

func hitIDs(res *domain.SearchResult) []string {
	out := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = string(h.Corpus) + "/" + h.Chunk.ID
	}
	return out
}

var campusDocs = []doc{
	{"DocA", "Library hours are 9am to 9pm on weekdays."},
	{"DocB", "The library is closed on public holidays."},
	{"DocC", "Parking permits are sold at the transport office."},
	{"DocD", "Tuition fees are due before the semester starts."},
}

func options(strategy Strategy, k int) Options {
	o := DefaultOptions()
	o.Strategy = strategy
	o.K = k
	return o
}

func TestSearch_LibraryHoursScenario(t *testing.T) {
	embedder := &conceptEmbedder{}
	admin := buildIndex(t, domain.AdminCorpus, embedder, campusDocs[0], campusDocs[1])
	engine := NewEngine(embedder, nil)

	res, err := engine.Search(context.Background(), "When is the library open?", options(StrategySimilarity, 1), admin)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "DocA", res.Hits[0].Chunk.DocumentID)
	assert.Equal(t, "similarity", res.Strategy)

	citations := citation.Resolve(res)
	require.Len(t, citations, 1)
	assert.Equal(t, "DocA", citations[0].DocumentID)
}

func TestSearch_SimilarityIsIdempotent(t *testing.T) {
	embedder := &conceptEmbedder{}
	admin := buildIndex(t, domain.AdminCorpus, embedder, campusDocs...)
	session := buildIndex(t, domain.SessionCorpus("s1"), embedder, doc{"Notes", "My notes say the library is open late."})
	engine := NewEngine(embedder, nil)

	first, err := engine.Search(context.Background(), "library opening hours", options(StrategySimilarity, 3), admin, session)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := engine.Search(context.Background(), "library opening hours", options(StrategySimilarity, 3), admin, session)
		require.NoError(t, err)
		assert.Equal(t, first.Hits, again.Hits)
	}
}

func TestSearch_MMRWithLambdaOneMatchesSimilarity(t *testing.T) {
	embedder := &conceptEmbedder{}
	admin := buildIndex(t, domain.AdminCorpus, embedder, campusDocs...)
	session := buildIndex(t, domain.SessionCorpus("s1"), embedder, doc{"Notes", "Library permits for parking near the library."})
	engine := NewEngine(embedder, nil)

	for _, k := range []int{1, 2, 3, 5} {
		sim, err := engine.Search(context.Background(), "library hours", options(StrategySimilarity, k), admin, session)
		require.NoError(t, err)

		opts := options(StrategyMMR, k)
		opts.Lambda = 1
		mmr, err := engine.Search(context.Background(), "library hours", opts, admin, session)
		require.NoError(t, err)

		assert.Equal(t, hitIDs(sim), hitIDs(mmr), "k=%d", k)
	}
}

func TestSearch_MMRDiversity(t *testing.T) {
	idx, err := index.New(domain.AdminCorpus, index.Options{Dimension: 3, Metric: index.MetricCosine})
	require.NoError(t, err)
	insert := func(id string, emb ...float32) {
		require.NoError(t, idx.Insert(domain.Chunk{ID: id, DocumentID: id, Corpus: domain.AdminCorpus, Text: id, Embedding: emb}))
	}
	insert("orig", 1, 0, 0)
	insert("copy", 1, 0.05, 0)
	insert("other", 0.6, 0.8, 0)
	insert("far", 0, 0, 1)

	engine := NewEngine(&fixedEmbedder{vec: []float32{1, 0.2, 0}}, nil)

	sim, err := engine.Search(context.Background(), "q", options(StrategySimilarity, 2), idx)
	require.NoError(t, err)
	require.Len(t, sim.Hits, 2)

	opts := options(StrategyMMR, 2)
	opts.Lambda = 0.5
	mmr, err := engine.Search(context.Background(), "q", opts, idx)
	require.NoError(t, err)
	require.Len(t, mmr.Hits, 2)

	assert.Equal(t, []string{"admin/copy", "admin/other"}, hitIDs(mmr))
	pairSim := func(r *domain.SearchResult) float64 {
		return vector.Cosine(r.Hits[0].Chunk.Embedding, r.Hits[1].Chunk.Embedding)
	}
	assert.Less(t, pairSim(mmr), pairSim(sim))
	assert.Greater(t, mmr.Hits[0].Score, mmr.Hits[1].Score, "mmr reports relevance scores")
}

func TestSearch_HybridTopOfBothListsWins(t *testing.T) {
	embedder := &conceptEmbedder{}
	admin := buildIndex(t, domain.AdminCorpus, embedder, campusDocs...)
	engine := NewEngine(embedder, nil)

	for _, fusion := range []Fusion{FusionWeighted, FusionRRF} {
		t.Run(string(fusion), func(t *testing.T) {
			vec, err := engine.Search(context.Background(), "library hours", options(StrategySimilarity, 1), admin)
			require.NoError(t, err)
			lex, err := engine.Search(context.Background(), "library hours", options(StrategyLexical, 1), admin)
			require.NoError(t, err)
			require.Equal(t, hitIDs(vec), hitIDs(lex), "fixture: same chunk ranks first in both lists")

			opts := options(StrategyHybrid, 3)
			opts.Fusion = fusion
			res, err := engine.Search(context.Background(), "library hours", opts, admin)
			require.NoError(t, err)
			require.NotEmpty(t, res.Hits)
			assert.Equal(t, hitIDs(vec)[0], hitIDs(res)[0])
		})
	}
}

func TestSearch_HybridAcrossCorporaKeepsTopOfBothLists(t *testing.T) {
	embedder := &conceptEmbedder{}
	admin := buildIndex(t, domain.AdminCorpus, embedder, campusDocs...)
	session := buildIndex(t, domain.SessionCorpus("s1"), embedder, doc{"Notes", "Parking near the library."})
	engine := NewEngine(embedder, nil)

	for _, fusion := range []Fusion{FusionWeighted, FusionRRF} {
		t.Run(string(fusion), func(t *testing.T) {
			vec, err := engine.Search(context.Background(), "library hours", options(StrategySimilarity, 1), admin, session)
			require.NoError(t, err)
			lex, err := engine.Search(context.Background(), "library hours", options(StrategyLexical, 1), admin, session)
			require.NoError(t, err)
			require.Equal(t, []string{"admin/DocA:0"}, hitIDs(vec))
			require.Equal(t, []string{"admin/DocA:0"}, hitIDs(lex))

			opts := options(StrategyHybrid, 5)
			opts.Fusion = fusion
			res, err := engine.Search(context.Background(), "library hours", opts, admin, session)
			require.NoError(t, err)
			ids := hitIDs(res)
			require.NotEmpty(t, ids)
			assert.Equal(t, "admin/DocA:0", ids[0])
			assert.Contains(t, ids, "session:s1/Notes:0")
			assert.Greater(t, res.Hits[0].Score, res.Hits[1].Score)
		})
	}
}

func TestSearch_HybridEmptySessionSearchesAdminOnly(t *testing.T) {
	embedder := &conceptEmbedder{}
	admin := buildIndex(t, domain.AdminCorpus, embedder, campusDocs...)
	session, err := index.New(domain.SessionCorpus("s1"), index.Options{Dimension: embedder.Dimension()})
	require.NoError(t, err)
	engine := NewEngine(embedder, nil)

	res, err := engine.Search(context.Background(), "library hours", DefaultOptions(), admin, session)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	for _, h := range res.Hits {
		assert.Equal(t, domain.AdminCorpus, h.Corpus)
	}

	res, err = engine.Search(context.Background(), "library hours", DefaultOptions(), admin, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Hits)
}

func TestSearch_HybridWithoutLexicalMatches(t *testing.T) {
	embedder := &conceptEmbedder{}
	admin := buildIndex(t, domain.AdminCorpus, embedder, campusDocs...)
	engine := NewEngine(embedder, nil)

	lex, err := engine.Search(context.Background(), "opening", options(StrategyLexical, 5), admin)
	require.NoError(t, err)
	require.Empty(t, lex.Hits)

	res, err := engine.Search(context.Background(), "opening", options(StrategyHybrid, 5), admin)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "DocA", res.Hits[0].Chunk.DocumentID)
}

func TestSearch_KLargerThanCorpus(t *testing.T) {
	embedder := &conceptEmbedder{}
	admin := buildIndex(t, domain.AdminCorpus, embedder, campusDocs[0], campusDocs[1])
	engine := NewEngine(embedder, nil)

	for _, s := range []Strategy{StrategySimilarity, StrategyMMR, StrategyHybrid} {
		res, err := engine.Search(context.Background(), "library", options(s, 50), admin)
		require.NoError(t, err)
		assert.Len(t, res.Hits, 2, s)
	}
}

func TestSearch_SessionWinsTies(t *testing.T) {
	embedder := &conceptEmbedder{}
	same := doc{"Handbook", "Library hours are 9am to 9pm on weekdays."}
	admin := buildIndex(t, domain.AdminCorpus, embedder, same)
	session := buildIndex(t, domain.SessionCorpus("s1"), embedder, same)
	engine := NewEngine(embedder, nil)

	for _, s := range []Strategy{StrategySimilarity, StrategyHybrid} {
		res, err := engine.Search(context.Background(), "library hours", options(s, 5), admin, session)
		require.NoError(t, err)
		assert.Equal(t, []string{"session:s1/Handbook:0", "admin/Handbook:0"}, hitIDs(res), s)
	}
}

func TestSearch_ConfigErrorsFailBeforeWork(t *testing.T) {
	embedder := &conceptEmbedder{}
	admin := buildIndex(t, domain.AdminCorpus, embedder, campusDocs...)
	engine := NewEngine(embedder, nil)

	bad := []func(*Options){
		func(o *Options) { o.Strategy = "bm42" },
		func(o *Options) { o.K = 0 },
		func(o *Options) { o.Lambda = 1.5 },
		func(o *Options) { o.Lambda = -0.1 },
		func(o *Options) { o.FetchMultiplier = 0 },
		func(o *Options) { o.Fusion = "borda" },
		func(o *Options) { o.VectorWeight, o.LexicalWeight = 0, 0 },
		func(o *Options) { o.VectorWeight = -1 },
		func(o *Options) { o.RRFConstant = 0 },
	}
	for i, mutate := range bad {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			opts := DefaultOptions()
			mutate(&opts)
			_, err := engine.Search(context.Background(), "library", opts, admin)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
			assert.Zero(t, embedder.calls)
		})
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	embedder := &conceptEmbedder{}
	other, err := index.New(domain.SessionCorpus("s1"), index.Options{Dimension: 3})
	require.NoError(t, err)
	require.NoError(t, other.Insert(domain.Chunk{ID: "x:0", Corpus: domain.SessionCorpus("s1"), Text: "library", Embedding: []float32{1, 0, 0}}))

	_, err = NewEngine(embedder, nil).Search(context.Background(), "library", DefaultOptions(), other)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	assert.Zero(t, embedder.calls)
}

func TestSearch_EmbeddingErrorPropagates(t *testing.T) {
	embedder := &conceptEmbedder{}
	admin := buildIndex(t, domain.AdminCorpus, embedder, campusDocs...)
	embedder.err = fmt.Errorf("%w: 503", domain.ErrEmbeddingProvider)

	_, err := NewEngine(embedder, nil).Search(context.Background(), "library", DefaultOptions(), admin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingProvider))
}

func TestSearch_EmptyInputs(t *testing.T) {
	embedder := &conceptEmbedder{}
	admin := buildIndex(t, domain.AdminCorpus, embedder, campusDocs...)
	engine := NewEngine(embedder, nil)

	res, err := engine.Search(context.Background(), "   ", DefaultOptions(), admin)
	require.NoError(t, err)
	assert.True(t, res.Empty())

	res, err = engine.Search(context.Background(), "library", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Zero(t, embedder.calls)
}

func TestSearch_LexicalNeedsNoEmbedding(t *testing.T) {
	embedder := &conceptEmbedder{}
	admin := buildIndex(t, domain.AdminCorpus, embedder, campusDocs...)

	res, err := NewEngine(embedder, nil).Search(context.Background(), "parking permits", options(StrategyLexical, 2), admin)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "DocC", res.Hits[0].Chunk.DocumentID)
	assert.Zero(t, embedder.calls)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" MMR ")
	require.NoError(t, err)
	assert.Equal(t, StrategyMMR, s)

	_, err = ParseStrategy("vector")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
