// Package evaluate compares chunking and search strategies on a fixed query
// set: the index is rebuilt per chunking strategy and every search strategy
// is run against it.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bull/campus-rag/internal/chunker"
	"github.com/bull/campus-rag/internal/citation"
	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/embedding"
	"github.com/bull/campus-rag/internal/index"
	"github.com/bull/campus-rag/internal/indexer"
	"github.com/bull/campus-rag/internal/retrieval"
)

// Query is one evaluation question. Expect optionally lists the document IDs
// a good answer should cite.
type Query struct {
	Text   string   `yaml:"query"`
	Expect []string `yaml:"expect,omitempty"`
}

// DefaultQueries is used when no query file is given.
var DefaultQueries = []Query{
	{Text: "What is the policy on hostel room changes?"},
	{Text: "How do I file a complaint for a broken fan in my room?"},
	{Text: "What are the library hours during examination week?"},
	{Text: "Summarize the campus code of conduct regarding academic integrity."},
}

// LoadQueries reads a YAML list of queries.
func LoadQueries(path string) ([]Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	var queries []Query
	if err := yaml.Unmarshal(data, &queries); err != nil {
		return nil, fmt.Errorf("parse queries %s: %w", path, err)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries in %s", path)
	}
	return queries, nil
}

// Config is one evaluation run.
type Config struct {
	// Chunkings are the chunker configurations to compare; each gets its own index.
	Chunkings []chunker.Config
	// Strategies are the search strategies run against every index.
	Strategies []retrieval.Strategy
	// Search supplies K and the remaining search parameters.
	Search      retrieval.Options
	Queries     []Query
	Metric      index.Metric
	Concurrency int
}

// Row is the outcome of one query under one strategy pair.
type Row struct {
	Chunking  chunker.Strategy
	Search    retrieval.Strategy
	Query     string
	Hits      int
	Documents []string
	// Recall is the fraction of expected documents cited, or -1 when the
	// query has no expectations.
	Recall  float64
	Latency time.Duration
}

// Summary aggregates the rows of one strategy pair.
type Summary struct {
	Chunking   chunker.Strategy
	Search     retrieval.Strategy
	Chunks     int
	AvgHits    float64
	AvgLatency time.Duration
	// Recall averages the queries that have expectations; -1 if none do.
	Recall float64
}

// Report is the full result of Run.
type Report struct {
	Rows      []Row
	Summaries []Summary
	Failed    []domain.FailedDoc
}

// Run executes the evaluation. Configuration errors abort before any work;
// per-document failures are collected in the report.
func Run(ctx context.Context, docs []*domain.Document, embedder embedding.Provider, cfg Config, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Queries) == 0 {
		cfg.Queries = DefaultQueries
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = retrieval.Strategies
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	chunkers := make([]*chunker.Chunker, 0, len(cfg.Chunkings))
	for _, cc := range cfg.Chunkings {
		ch, err := chunker.New(cc, embedder)
		if err != nil {
			return nil, err
		}
		chunkers = append(chunkers, ch)
	}
	if len(chunkers) == 0 {
		return nil, &domain.ConfigError{Field: "evaluate.chunkings", Reason: "at least one chunking configuration is required"}
	}
	var errs []error
	for _, s := range cfg.Strategies {
		opts := cfg.Search
		opts.Strategy = s
		errs = append(errs, opts.Validate())
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	engine := retrieval.NewEngine(embedder, logger)
	report := &Report{}
	for _, ch := range chunkers {
		idx, err := index.New(domain.AdminCorpus, index.Options{Dimension: embedder.Dimension(), Metric: cfg.Metric})
		if err != nil {
			return nil, err
		}
		pipeline := indexer.NewPipeline(ch, embedder, cfg.Concurrency, logger)
		built, err := pipeline.Index(ctx, idx, docs)
		if err != nil {
			return nil, fmt.Errorf("index with %s chunking: %w", ch.Config().Strategy, err)
		}
		if len(report.Failed) == 0 {
			report.Failed = built.FailedDocs
		}

		for _, s := range cfg.Strategies {
			opts := cfg.Search
			opts.Strategy = s
			rows, err := runQueries(ctx, engine, idx, opts, cfg.Queries, ch.Config().Strategy)
			if err != nil {
				return nil, err
			}
			report.Rows = append(report.Rows, rows...)
			report.Summaries = append(report.Summaries, summarize(rows, idx.Size()))
		}
		idx.Close()
	}
	return report, nil
}

func runQueries(ctx context.Context, engine *retrieval.Engine, idx *index.CorpusIndex, opts retrieval.Options, queries []Query, chunking chunker.Strategy) ([]Row, error) {
	rows := make([]Row, 0, len(queries))
	for _, q := range queries {
		start := time.Now()
		result, err := engine.Search(ctx, q.Text, opts, idx)
		if err != nil {
			return nil, fmt.Errorf("search %q with %s: %w", q.Text, opts.Strategy, err)
		}
		latency := time.Since(start)

		cites := citation.Resolve(result)
		docs := make([]string, len(cites))
		for i, c := range cites {
			docs[i] = c.DocumentID
		}
		rows = append(rows, Row{
			Chunking:  chunking,
			Search:    opts.Strategy,
			Query:     q.Text,
			Hits:      len(result.Hits),
			Documents: docs,
			Recall:    recall(q.Expect, docs),
			Latency:   latency,
		})
	}
	return rows, nil
}

func recall(expect, got []string) float64 {
	if len(expect) == 0 {
		return -1
	}
	cited := make(map[string]bool, len(got))
	for _, d := range got {
		cited[d] = true
	}
	found := 0
	for _, e := range expect {
		if cited[e] {
			found++
		}
	}
	return float64(found) / float64(len(expect))
}

func summarize(rows []Row, chunks int) Summary {
	s := Summary{Chunks: chunks, Recall: -1}
	if len(rows) == 0 {
		return s
	}
	s.Chunking, s.Search = rows[0].Chunking, rows[0].Search

	var hits int
	var latency time.Duration
	var recallSum float64
	var recallN int
	for _, r := range rows {
		hits += r.Hits
		latency += r.Latency
		if r.Recall >= 0 {
			recallSum += r.Recall
			recallN++
		}
	}
	s.AvgHits = float64(hits) / float64(len(rows))
	s.AvgLatency = latency / time.Duration(len(rows))
	if recallN > 0 {
		s.Recall = recallSum / float64(recallN)
	}
	return s
}
