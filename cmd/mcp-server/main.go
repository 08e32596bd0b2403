// Package main provides the MCP server entry point for campus document search.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/campus-rag/internal/app"
	"github.com/bull/campus-rag/internal/config"
	mcpserver "github.com/bull/campus-rag/internal/mcp"
	"github.com/bull/campus-rag/internal/retrieval"
	"github.com/bull/campus-rag/internal/session"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	envErr := godotenv.Load()

	cfg, err := config.Load(os.Getenv(config.PathEnv))
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stderr, cfg.SlogLevel())
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	provider, err := app.NewProvider(cfg)
	if err != nil {
		return err
	}

	admin, err := app.LoadAdmin(ctx, cfg, provider, false, logger)
	if err != nil {
		return err
	}
	defer admin.Close()
	logger.Info("admin corpus ready",
		"chunks", admin.Index.Size(),
		"restored", admin.Result.Restored,
		"failed_docs", len(admin.Result.FailedDocs))

	sessions, err := session.NewManager(provider, cfg.Chunking, cfg.Metric, logger)
	if err != nil {
		return err
	}
	defer sessions.EndAll()

	serverCfg := &mcpserver.Config{
		Admin:       admin.Index,
		AdminResult: admin.Result,
		Sessions:    sessions,
		Engine:      retrieval.NewEngine(provider, logger),
		Answerer:    app.NewAnswerer(cfg, provider, logger),
		Search:      cfg.Search,
		Chunking:    cfg.Chunking.Strategy,
		Logger:      logger,
	}
	// A nil *QdrantStorage must not become a non-nil HealthChecker.
	var health mcpserver.HealthChecker
	if admin.Snapshot != nil {
		health = admin.Snapshot
	}
	serverCfg.Health = health
	server := mcpserver.NewServer(serverCfg)

	router := mcpserver.NewRouter(server, mcpserver.NewHealthHandler(health, admin.Index, sessions), nil)
	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if cfg.Server.HTTP {
		// HTTP mode: serve MCP over HTTP for remote clients
		logger.Info("starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "health", "/health")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	// Stdio mode: MCP over stdin/stdout, health endpoint in the background
	go func() {
		logger.Info("starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("health server error", "error", err)
		}
	}()

	logger.Info("starting campus documents MCP server (stdio mode)")
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
