package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/campus-rag/internal/chunker"
	"github.com/bull/campus-rag/internal/citation"
	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/index"
	"github.com/bull/campus-rag/internal/loader"
	"github.com/bull/campus-rag/internal/retrieval"
	"github.com/bull/campus-rag/internal/session"
)

func (s *Server) handleOpenSession(ctx context.Context, req *mcp.CallToolRequest, input OpenSessionInput) (
	*mcp.CallToolResult, OpenSessionOutput, error,
) {
	var cfg *chunker.Config
	if input.ChunkingStrategy != "" || input.ChunkSize > 0 || input.ChunkOverlap != nil || input.Threshold != nil {
		c := chunker.DefaultConfig()
		if input.ChunkingStrategy != "" {
			c.Strategy = chunker.Strategy(input.ChunkingStrategy)
		}
		if input.ChunkSize > 0 {
			c.ChunkSize = input.ChunkSize
			c.ChunkOverlap = min(c.ChunkOverlap, input.ChunkSize/2)
		}
		if input.ChunkOverlap != nil {
			c.ChunkOverlap = *input.ChunkOverlap
		}
		if input.Threshold != nil {
			c.Threshold = *input.Threshold
		}
		cfg = &c
	}

	sess, err := s.sessions.Open(cfg)
	if err != nil {
		return nil, OpenSessionOutput{}, err
	}
	return nil, OpenSessionOutput{SessionID: sess.ID, ChunkingStrategy: string(sess.ChunkingStrategy())}, nil
}

func (s *Server) handleUpload(ctx context.Context, req *mcp.CallToolRequest, input UploadDocumentInput) (
	*mcp.CallToolResult, UploadDocumentOutput, error,
) {
	name := path.Base(strings.TrimSpace(input.Name))
	if name == "" || name == "." || name == "/" {
		return nil, UploadDocumentOutput{}, errors.New("name is required")
	}

	data := []byte(input.Content)
	if input.ContentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(input.ContentBase64)
		if err != nil {
			return nil, UploadDocumentOutput{}, fmt.Errorf("decode content_base64: %w", err)
		}
		data = decoded
	}
	parsed, err := loader.Parse(bytes.NewReader(data), name)
	if err != nil {
		return nil, UploadDocumentOutput{}, fmt.Errorf("document unavailable: %w", err)
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sess, err := s.sessions.Open(nil)
		if err != nil {
			return nil, UploadDocumentOutput{}, err
		}
		sessionID = sess.ID
	}

	title := input.Title
	if title == "" {
		title = parsed.Title
	}
	res, err := s.sessions.Upload(ctx, sessionID, session.Upload{
		ID:    name,
		Title: title,
		Text:  parsed.Text,
		Pages: parsed.Pages,
		Units: parsed.Units,
	})
	if err != nil {
		return nil, UploadDocumentOutput{}, err
	}

	return nil, UploadDocumentOutput{
		SessionID:     res.SessionID,
		DocumentID:    res.DocumentID,
		Title:         title,
		Chunks:        res.Chunks,
		DroppedChunks: len(res.Dropped),
		IndexSize:     res.IndexSize,
	}, nil
}

// options applies per-call overrides to the configured search options. A
// nil lambda keeps the configured value.
func (s *Server) options(strategy string, k int, lambda *float64, fusion string) retrieval.Options {
	opts := s.search
	if strategy != "" {
		opts.Strategy = retrieval.Strategy(strategy)
	}
	if k > 0 {
		opts.K = k
	}
	if lambda != nil {
		opts.Lambda = *lambda
	}
	if fusion != "" {
		opts.Fusion = retrieval.Fusion(fusion)
	}
	return opts
}

// corpora returns the admin index plus the session's index when a session
// is named. An unknown session is an error.
func (s *Server) corpora(sessionID string) ([]*index.CorpusIndex, error) {
	corpora := []*index.CorpusIndex{s.admin}
	if sessionID == "" {
		return corpora, nil
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return append(corpora, sess.Index()), nil
}

func (s *Server) retrieve(ctx context.Context, query, sessionID string, opts retrieval.Options) (*domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is required")
	}
	corpora, err := s.corpora(sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.engine.Search(ctx, query, opts, corpora...)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Search", "strategy", result.Strategy, "session", sessionID, "hits", len(result.Hits), "duration", time.Since(start))
	return result, nil
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentsInput) (
	*mcp.CallToolResult, SearchDocumentsOutput, error,
) {
	opts := s.options(input.Strategy, input.K, input.Lambda, input.Fusion)
	result, err := s.retrieve(ctx, input.Query, input.SessionID, opts)
	if err != nil {
		return nil, SearchDocumentsOutput{}, err
	}

	out := SearchDocumentsOutput{
		Strategy:  result.Strategy,
		Results:   make([]ChunkResult, 0, len(result.Hits)),
		Citations: citation.Resolve(result),
	}
	for _, hit := range result.Hits {
		out.Results = append(out.Results, ChunkResult{
			ChunkID:    hit.Chunk.ID,
			DocumentID: hit.Chunk.DocumentID,
			Title:      hit.Chunk.DocumentTitle,
			Corpus:     string(hit.Corpus),
			Score:      hit.Score,
			Text:       hit.Chunk.Text,
			Location:   hit.Chunk.Location,
		})
	}
	if result.Empty() {
		out.Citations = []citation.Citation{}
		out.Message = "No matching documents found. Try broader search terms."
	}
	return nil, out, nil
}

func (s *Server) handleAsk(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
	*mcp.CallToolResult, AskOutput, error,
) {
	opts := s.options(input.Strategy, input.K, nil, "")
	result, err := s.retrieve(ctx, input.Query, input.SessionID, opts)
	if err != nil {
		return nil, AskOutput{}, err
	}
	ans, err := s.answerer.Answer(ctx, input.Query, result)
	if err != nil {
		return nil, AskOutput{}, fmt.Errorf("answer: %w", err)
	}
	return nil, askOutput(ans), nil
}

func (s *Server) handleEndSession(ctx context.Context, req *mcp.CallToolRequest, input EndSessionInput) (
	*mcp.CallToolResult, EndSessionOutput, error,
) {
	if err := s.sessions.End(input.SessionID); err != nil {
		return nil, EndSessionOutput{}, err
	}
	return nil, EndSessionOutput{SessionID: input.SessionID, Ended: true}, nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
	*mcp.CallToolResult, StatusOutput, error,
) {
	out := StatusOutput{
		AdminChunks:     s.admin.Size(),
		FailedDocuments: []domain.FailedDoc{},
		ActiveSessions:  s.sessions.Count(),
		SearchStrategy:  string(s.search.Strategy),
		Chunking:        string(s.chunking),
		Qdrant:          qdrantStatus(ctx, s.health),
	}
	if s.adminResult != nil {
		out.AdminDocuments = s.adminResult.SuccessfulDocs
		out.Restored = s.adminResult.Restored
		if len(s.adminResult.FailedDocs) > 0 {
			out.FailedDocuments = s.adminResult.FailedDocs
		}
	}
	if input.SessionID != "" {
		sess, err := s.sessions.Get(input.SessionID)
		if err != nil {
			return nil, StatusOutput{}, err
		}
		docs := sess.Documents()
		if docs == nil {
			docs = []string{}
		}
		out.Session = &SessionStatus{
			SessionID: sess.ID,
			Chunking:  string(sess.ChunkingStrategy()),
			Documents: docs,
			Chunks:    sess.Index().Size(),
		}
	}
	return nil, out, nil
}
