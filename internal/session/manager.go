// Package session owns the ephemeral per-session corpora: each chat session
// gets its own index, created on first upload and destroyed when it ends.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bull/campus-rag/internal/chunker"
	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/embedding"
	"github.com/bull/campus-rag/internal/index"
	"github.com/bull/campus-rag/internal/indexer"
)

// Session is one chat session's corpus. Uploads to a session are serialized;
// different sessions share nothing mutable.
type Session struct {
	ID      string
	Corpus  domain.Corpus
	Created time.Time

	mu        sync.Mutex
	pipeline  *indexer.Pipeline
	indexOpts index.Options
	idx       *index.CorpusIndex
	documents []string
	ended     bool
}

// Index returns the session's index, or nil before the first upload.
func (s *Session) Index() *index.CorpusIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

// Documents lists uploaded document IDs in upload order.
func (s *Session) Documents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.documents...)
}

// ChunkingStrategy returns the strategy chosen when the session was opened.
func (s *Session) ChunkingStrategy() chunker.Strategy {
	return s.ChunkingConfig().Strategy
}

// ChunkingConfig returns the validated chunker configuration of the session.
func (s *Session) ChunkingConfig() chunker.Config {
	return s.pipeline.Chunker().Config()
}

// Upload is a document handed over by the loader for one session.
type Upload struct {
	ID    string
	Title string
	Text  string
	Pages []domain.Page
	Units []domain.Span
}

// UploadResult reports what an upload added.
type UploadResult struct {
	SessionID  string
	DocumentID string
	Chunks     int
	Dropped    []indexer.DroppedChunk
	IndexSize  int
}

// Manager is the registry of live sessions.
type Manager struct {
	embedder    embedding.Provider
	defaults    chunker.Config
	metric      index.Metric
	concurrency int
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager. defaults is the chunking configuration for
// sessions that do not choose their own.
func NewManager(embedder embedding.Provider, defaults chunker.Config, metric index.Metric, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	m, err := index.ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	return &Manager{
		embedder:    embedder,
		defaults:    defaults,
		metric:      m,
		concurrency: 1,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}, nil
}

// Open starts a session. cfg selects its chunking strategy; nil uses the
// manager defaults. The configuration is validated here, before any upload.
func (m *Manager) Open(cfg *chunker.Config) (*Session, error) {
	c := m.defaults
	if cfg != nil {
		c = *cfg
	}
	ch, err := chunker.New(c, m.embedder)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		ID:        id,
		Corpus:    domain.SessionCorpus(id),
		Created:   time.Now(),
		pipeline:  indexer.NewPipeline(ch, m.embedder, m.concurrency, m.logger),
		indexOpts: index.Options{Dimension: m.embedder.Dimension(), Metric: m.metric},
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("Session opened", "session", id, "chunking", ch.Config().Strategy)
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// Upload chunks, embeds and indexes one document into the session corpus,
// creating the index on first use. A document ID the session already holds
// is rejected with ErrDuplicateDocument. Chunking and embedding errors are
// returned and leave the index unchanged.
func (m *Manager) Upload(ctx context.Context, sessionID string, up Upload) (*UploadResult, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if up.ID == "" {
		return nil, fmt.Errorf("upload to session %s: document id is required", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	if slices.Contains(s.documents, up.ID) {
		return nil, fmt.Errorf("%w: %s in session %s (end the session to replace it)", domain.ErrDuplicateDocument, up.ID, sessionID)
	}

	if s.idx == nil {
		idx, err := index.New(s.Corpus, s.indexOpts)
		if err != nil {
			return nil, err
		}
		s.idx = idx
	}

	title := up.Title
	if title == "" {
		title = up.ID
	}
	doc := &domain.Document{
		ID:     up.ID,
		Title:  title,
		Text:   up.Text,
		Corpus: s.Corpus,
		Pages:  up.Pages,
		Units:  up.Units,
	}
	n, dropped, err := s.pipeline.IndexDocument(ctx, s.idx, doc)
	if err != nil {
		return nil, fmt.Errorf("index %s into session %s: %w", up.ID, sessionID, err)
	}
	s.documents = append(s.documents, up.ID)

	m.logger.Info("Session upload", "session", sessionID, "document", up.ID, "chunks", n, "dropped", len(dropped))
	return &UploadResult{
		SessionID:  sessionID,
		DocumentID: up.ID,
		Chunks:     n,
		Dropped:    dropped,
		IndexSize:  s.idx.Size(),
	}, nil
}

// End removes the session and tears down its index. Ending an unknown
// session returns ErrSessionNotFound.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	if s.idx != nil {
		s.idx.Close()
	}
	m.logger.Info("Session ended", "session", id, "documents", len(s.documents))
	return nil
}

// EndAll ends every live session, used on shutdown.
func (m *Manager) EndAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.End(id)
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
