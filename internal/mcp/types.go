// Package mcp exposes campus document search over the Model Context Protocol.
package mcp

import (
	"github.com/bull/campus-rag/internal/answer"
	"github.com/bull/campus-rag/internal/citation"
	"github.com/bull/campus-rag/internal/domain"
)

// OpenSessionInput defines the input parameters for the open_session tool.
type OpenSessionInput struct {
	// ChunkingStrategy is recursive, fixed_size or semantic.
	ChunkingStrategy string `json:"chunking_strategy,omitempty" jsonschema:"chunking strategy for uploads: recursive, fixed_size or semantic"`
	ChunkSize        int    `json:"chunk_size,omitempty" jsonschema:"target chunk size in characters"`
	// ChunkOverlap and Threshold are pointers so an explicit 0 is distinct from unset.
	ChunkOverlap *int     `json:"chunk_overlap,omitempty" jsonschema:"characters shared by consecutive chunks"`
	Threshold    *float64 `json:"threshold,omitempty" jsonschema:"similarity below which the semantic strategy starts a new chunk"`
}

// OpenSessionOutput returns the new session.
type OpenSessionOutput struct {
	SessionID        string `json:"session_id"`
	ChunkingStrategy string `json:"chunking_strategy"`
}

// UploadDocumentInput defines the input parameters for the upload_document tool.
type UploadDocumentInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session to upload into; a new session is opened when empty"`
	// Name is the file name; its extension selects the parser.
	Name  string `json:"name" jsonschema:"file name such as notes.md or syllabus.pdf"`
	Title string `json:"title,omitempty" jsonschema:"display title used in citations"`
	// Content holds text formats; ContentBase64 holds binary formats such as PDF and DOCX.
	Content       string `json:"content,omitempty" jsonschema:"document text for txt, md and html files"`
	ContentBase64 string `json:"content_base64,omitempty" jsonschema:"base64 file bytes for pdf and docx files"`
}

// UploadDocumentOutput reports what was indexed.
type UploadDocumentOutput struct {
	SessionID     string `json:"session_id"`
	DocumentID    string `json:"document_id"`
	Title         string `json:"title"`
	Chunks        int    `json:"chunks"`
	DroppedChunks int    `json:"dropped_chunks"`
	IndexSize     int    `json:"index_size"`
}

// SearchDocumentsInput defines the input parameters for the search_documents tool.
type SearchDocumentsInput struct {
	Query     string `json:"query" jsonschema:"the search query"`
	SessionID string `json:"session_id,omitempty" jsonschema:"also search this session's uploaded documents"`
	// Strategy overrides the configured search strategy.
	Strategy string `json:"strategy,omitempty" jsonschema:"similarity, mmr, hybrid or lexical"`
	K        int    `json:"k,omitempty" jsonschema:"maximum number of chunks to return"`
	// Lambda is a pointer so that 0 (pure diversity) can be requested.
	Lambda *float64 `json:"lambda,omitempty" jsonschema:"MMR relevance versus diversity trade-off in [0, 1]"`
	Fusion string   `json:"fusion,omitempty" jsonschema:"hybrid fusion method: weighted or rrf"`
}

// ChunkResult is one retrieved chunk.
type ChunkResult struct {
	ChunkID    string          `json:"chunk_id"`
	DocumentID string          `json:"document_id"`
	Title      string          `json:"title"`
	Corpus     string          `json:"corpus"`
	Score      float64         `json:"score"`
	Text       string          `json:"text"`
	Location   domain.Location `json:"location"`
}

// SearchDocumentsOutput contains the search results.
type SearchDocumentsOutput struct {
	Strategy  string              `json:"strategy"`
	Results   []ChunkResult       `json:"results"`
	Citations []citation.Citation `json:"citations"`
	// Message provides informational context (e.g., "No matching documents found").
	Message string `json:"message,omitempty"`
}

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	Query     string `json:"query" jsonschema:"the question to answer"`
	SessionID string `json:"session_id,omitempty" jsonschema:"also use this session's uploaded documents"`
	Strategy  string `json:"strategy,omitempty" jsonschema:"similarity, mmr, hybrid or lexical"`
	K         int    `json:"k,omitempty" jsonschema:"number of chunks given to the answerer"`
}

// AskOutput is the generated answer.
type AskOutput struct {
	Answer    string              `json:"answer"`
	Citations []citation.Citation `json:"citations"`
	Sources   []string            `json:"sources"`
	Grounded  bool                `json:"grounded"`
}

func askOutput(a *answer.Answer) AskOutput {
	out := AskOutput{Answer: a.Text, Citations: a.Citations, Grounded: a.Grounded, Sources: []string{}}
	if out.Citations == nil {
		out.Citations = []citation.Citation{}
	}
	for _, c := range a.Citations {
		out.Sources = append(out.Sources, c.String())
	}
	return out
}

// EndSessionInput defines the input parameters for the end_session tool.
type EndSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"the session to end"`
}

// EndSessionOutput confirms the session was ended.
type EndSessionOutput struct {
	SessionID string `json:"session_id"`
	Ended     bool   `json:"ended"`
}

// StatusInput defines the input parameters for the get_index_status tool.
type StatusInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"also describe this session"`
}

// SessionStatus describes one live session.
type SessionStatus struct {
	SessionID string   `json:"session_id"`
	Chunking  string   `json:"chunking_strategy"`
	Documents []string `json:"documents"`
	Chunks    int      `json:"chunks"`
}

// StatusOutput describes the admin index and live sessions.
type StatusOutput struct {
	AdminChunks     int                `json:"admin_chunks"`
	AdminDocuments  int                `json:"admin_documents"`
	FailedDocuments []domain.FailedDoc `json:"failed_documents"`
	Restored        bool               `json:"restored"`
	ActiveSessions  int                `json:"active_sessions"`
	SearchStrategy  string             `json:"search_strategy"`
	Chunking        string             `json:"chunking_strategy"`
	Qdrant          string             `json:"qdrant"`
	Session         *SessionStatus     `json:"session,omitempty"`
}
