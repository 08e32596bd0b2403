package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/campus-rag/internal/answer"
	"github.com/bull/campus-rag/internal/chunker"
	"github.com/bull/campus-rag/internal/index"
	"github.com/bull/campus-rag/internal/indexer"
	"github.com/bull/campus-rag/internal/retrieval"
	"github.com/bull/campus-rag/internal/session"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server      *mcp.Server
	admin       *index.CorpusIndex
	adminResult *indexer.IndexResult
	sessions    *session.Manager
	engine      *retrieval.Engine
	answerer    answer.Answerer
	search      retrieval.Options
	chunking    chunker.Strategy
	health      HealthChecker
	logger      *slog.Logger
}

// Config holds server dependencies.
type Config struct {
	// Admin is the shared admin corpus; nil means none was built.
	Admin       *index.CorpusIndex
	AdminResult *indexer.IndexResult
	Sessions    *session.Manager
	Engine      *retrieval.Engine
	Answerer    answer.Answerer
	// Search holds the default search options; tool inputs override them per call.
	Search retrieval.Options
	// Chunking is the strategy the admin corpus was built with.
	Chunking chunker.Strategy
	// Health reports snapshot store connectivity; nil when Qdrant is disabled.
	Health HealthChecker
	Logger *slog.Logger
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	answerer := cfg.Answerer
	if answerer == nil {
		answerer = answer.Extractive{}
	}

	s := &Server{
		admin:       cfg.Admin,
		adminResult: cfg.AdminResult,
		sessions:    cfg.Sessions,
		engine:      cfg.Engine,
		answerer:    answerer,
		search:      cfg.Search,
		chunking:    cfg.Chunking,
		health:      cfg.Health,
		logger:      logger,
	}

	impl := &mcp.Implementation{
		Name:    "campus-documents",
		Version: "v0.1.0",
	}
	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "open_session",
		Description: "Open a chat session for uploaded documents, optionally choosing how uploads are chunked. Returns the session id.",
	}, s.handleOpenSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "upload_document",
		Description: "Upload a document (txt, md, html, pdf or docx) into a session so it can be searched alongside the campus documents.",
	}, s.handleUpload)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Search campus documents and, with a session id, the session's uploads. Returns ranked chunks with citations.",
	}, s.handleSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from campus documents and session uploads, citing the source documents.",
	}, s.handleAsk)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "end_session",
		Description: "End a session and discard its uploaded documents.",
	}, s.handleEndSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the status of the campus document index: chunk and document counts, failed documents, active sessions and snapshot store connectivity. Pass session_id to also describe one session.",
	}, s.handleStatus)

	s.server = server
	return s
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
