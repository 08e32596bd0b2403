// Package main provides the campus-sync CLI for building, querying and
// evaluating the admin document index.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/campus-rag/internal/app"
	"github.com/bull/campus-rag/internal/chunker"
	"github.com/bull/campus-rag/internal/citation"
	"github.com/bull/campus-rag/internal/config"
	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/evaluate"
	ghclient "github.com/bull/campus-rag/internal/github"
	"github.com/bull/campus-rag/internal/loader"
	"github.com/bull/campus-rag/internal/retrieval"
)

var rootCmd = &cobra.Command{
	Use:   "campus-sync",
	Short: "Campus document indexing tool",
	Long:  "CLI tool for building, searching and evaluating the admin campus document index",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(os.Getenv(config.PathEnv))
		return err
	},
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebuild the admin index from its source",
	Long: `Rebuilds the admin corpus from the configured document source.

This command:
1. Loads documents from ADMIN_DOCS_PATH, or from GitHub when GITHUB_OWNER
   and GITHUB_REPO are set
2. Chunks them with the configured strategy
3. Embeds every chunk and builds the vector and lexical indexes
4. Replaces the Qdrant snapshot when QDRANT_HOST is set

Environment variables:
  CAMPUS_RAG_CONFIG  Path to a YAML config file (optional)
  ADMIN_DOCS_PATH    Admin document directory (default: docs)
  CHUNKING_STRATEGY  recursive, fixed_size or semantic (default: recursive)
  EMBEDDING_PROVIDER openai or hash (default: openai)
  OPENAI_API_KEY     OpenAI API key for embeddings (required for openai)
  QDRANT_HOST        Qdrant hostname (optional, enables snapshots)
  QDRANT_PORT        Qdrant gRPC port (default: 6334)
  GITHUB_TOKEN       GitHub token for higher rate limits (optional)`,
	RunE: runSync,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the admin index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Compare chunking and search strategies on the admin documents",
	Long: `Builds one index per chunking strategy (recursive, fixed_size, semantic)
and runs every query under every search strategy, printing hit counts,
latency and, for queries with expected documents, recall.`,
	RunE: runEvaluate,
}

var (
	cfg *config.Config

	searchStrategy string
	searchK        int

	clearSnapshot bool

	queriesPath string
	details     bool
)

func init() {
	syncCmd.Flags().BoolVar(&clearSnapshot, "clear", false, "drop and recreate the Qdrant collection before indexing")

	searchCmd.Flags().StringVarP(&searchStrategy, "strategy", "s", "", "search strategy: similarity, mmr, hybrid or lexical")
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 0, "number of results")

	evaluateCmd.Flags().StringVarP(&queriesPath, "queries", "q", "", "YAML file of evaluation queries")
	evaluateCmd.Flags().BoolVar(&details, "details", false, "print per-query rows")

	rootCmd.AddCommand(syncCmd, searchCmd, evaluateCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()
	logger := app.NewLogger(os.Stderr, cfg.SlogLevel())

	fmt.Println("Starting sync...")
	fmt.Println()

	provider, err := app.NewProvider(cfg)
	if err != nil {
		return err
	}

	if clearSnapshot && cfg.Qdrant.Enabled() {
		fmt.Printf("Clearing collection %s...\n", cfg.Qdrant.Collection)
		if err := clearCollection(ctx); err != nil {
			return err
		}
		fmt.Println("Collection cleared")
	}

	source, err := app.NewSource(cfg, logger)
	if err != nil {
		return err
	}
	switch src := source.(type) {
	case *ghclient.Fetcher:
		if sha, err := src.GetLatestCommitSHA(ctx); err == nil {
			fmt.Printf("Source: github.com/%s/%s@%s\n", cfg.GitHub.Owner, cfg.GitHub.Repo, sha)
		} else {
			logger.Warn("failed to resolve latest commit", "error", err)
		}
	case *loader.Dir:
		fmt.Printf("Source: %s\n", src.Root())
	}

	fmt.Printf("Indexing documents with %s chunking...\n", cfg.Chunking.Strategy)
	admin, err := app.LoadAdmin(ctx, cfg, provider, true, logger)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	defer admin.Close()

	result := admin.Result
	fmt.Println()
	fmt.Println("Sync complete!")
	fmt.Printf("  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Printf("  Chunks: %d\n", result.TotalChunks)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))
	if admin.Snapshot != nil {
		if info, err := admin.Snapshot.GetCollectionInfo(ctx); err == nil {
			fmt.Printf("  Snapshot: %s/%s (%d points)\n", admin.Snapshot.Addr(), info.Name, info.PointsCount)
		}
	}

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}
	if len(result.DroppedChunks) > 0 {
		fmt.Println()
		fmt.Println("Dropped chunks:")
		for _, dropped := range result.DroppedChunks {
			fmt.Printf("  - %s: %s\n", dropped.ChunkID, dropped.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func clearCollection(ctx context.Context) error {
	store, err := app.OpenSnapshot(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.ClearCollection(ctx); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	logger := app.NewLogger(os.Stderr, cfg.SlogLevel())

	opts := cfg.Search
	if searchStrategy != "" {
		strategy, err := retrieval.ParseStrategy(searchStrategy)
		if err != nil {
			return err
		}
		opts.Strategy = strategy
	}
	if searchK > 0 {
		opts.K = searchK
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	provider, err := app.NewProvider(cfg)
	if err != nil {
		return err
	}
	admin, err := app.LoadAdmin(ctx, cfg, provider, false, logger)
	if err != nil {
		return err
	}
	defer admin.Close()

	engine := retrieval.NewEngine(provider, logger)
	result, err := engine.Search(ctx, strings.Join(args, " "), opts, admin.Index)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func printResult(result *domain.SearchResult) {
	if result.Empty() {
		fmt.Println("No results.")
		return
	}
	fmt.Printf("%d results (%s)\n\n", len(result.Hits), result.Strategy)
	for i, hit := range result.Hits {
		fmt.Printf("%d. [%.4f] %s (chunk %d)\n", i+1, hit.Score, hit.Chunk.DocumentTitle, hit.Chunk.Ordinal)
		fmt.Printf("   %s\n", preview(hit.Chunk.Text, 160))
	}
	fmt.Println()
	fmt.Println("Sources:")
	for i, c := range citation.Resolve(result) {
		fmt.Printf("  [%d] %s\n", i+1, c)
	}
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	logger := app.NewLogger(os.Stderr, cfg.SlogLevel())

	queries := evaluate.DefaultQueries
	if queriesPath != "" {
		var err error
		if queries, err = evaluate.LoadQueries(queriesPath); err != nil {
			return err
		}
	}

	provider, err := app.NewProvider(cfg)
	if err != nil {
		return err
	}
	source, err := app.NewSource(cfg, logger)
	if err != nil {
		return err
	}
	docs, failed, err := source.Load(ctx, domain.AdminCorpus)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	fmt.Printf("Loaded %d documents (%d failed)\n\n", len(docs), len(failed))

	fixed := cfg.Chunking
	fixed.Strategy, fixed.ChunkSize, fixed.ChunkOverlap = chunker.StrategyFixedSize, 800, 100
	recursive := cfg.Chunking
	recursive.Strategy = chunker.StrategyRecursive
	semantic := cfg.Chunking
	semantic.Strategy = chunker.StrategySemantic

	report, err := evaluate.Run(ctx, docs, provider, evaluate.Config{
		Chunkings:   []chunker.Config{recursive, fixed, semantic},
		Search:      cfg.Search,
		Queries:     queries,
		Metric:      cfg.Metric,
		Concurrency: cfg.Admin.Concurrency,
	}, logger)
	if err != nil {
		return err
	}

	if err := report.WriteSummary(os.Stdout); err != nil {
		return err
	}
	if details {
		fmt.Println()
		if err := report.WriteDetails(os.Stdout); err != nil {
			return err
		}
	}
	if len(failed) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, f := range failed {
			fmt.Printf("  - %s: %s\n", f.Path, f.Reason)
		}
	}
	return nil
}
