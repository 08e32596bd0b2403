// Package domain holds the types shared by the chunking, indexing and retrieval packages.
package domain

import (
	"fmt"
	"strings"
)

// Corpus tags the collection a document belongs to: "admin" or "session:<id>".
type Corpus string

// AdminCorpus is the long-lived administrative corpus.
const AdminCorpus Corpus = "admin"

const sessionPrefix = "session:"

// SessionCorpus returns the corpus tag for a chat session.
func SessionCorpus(sessionID string) Corpus {
	return Corpus(sessionPrefix + sessionID)
}

// ParseCorpus validates a corpus tag.
func ParseCorpus(s string) (Corpus, error) {
	switch {
	case s == string(AdminCorpus):
		return AdminCorpus, nil
	case strings.HasPrefix(s, sessionPrefix) && len(s) > len(sessionPrefix):
		return Corpus(s), nil
	default:
		return "", &ConfigError{Field: "corpus", Reason: fmt.Sprintf("unknown corpus tag %q", s)}
	}
}

// IsSession reports whether the corpus is a per-session corpus.
func (c Corpus) IsSession() bool {
	return strings.HasPrefix(string(c), sessionPrefix)
}

// SessionID returns the session identifier, or "" for the admin corpus.
func (c Corpus) SessionID() string {
	if !c.IsSession() {
		return ""
	}
	return strings.TrimPrefix(string(c), sessionPrefix)
}

// Priority orders corpora when scores tie. Lower sorts first: session results
// reflect what the user just uploaded, so they win over admin results.
func (c Corpus) Priority() int {
	if c.IsSession() {
		return 0
	}
	return 1
}

// Page marks where a page starts in a document's text.
type Page struct {
	Number int // 1-based page number
	Start  int // rune offset of the first character of the page
}

// Span is a half-open [Start, End) range of rune offsets.
type Span struct {
	Start int
	End   int
}

// Len returns the number of runes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether pos falls strictly inside the span, i.e. cutting
// the text at pos would split it.
func (s Span) Contains(pos int) bool { return pos > s.Start && pos < s.End }

// Document is a loaded source document. Documents are immutable once loaded.
type Document struct {
	ID     string // unique within its corpus
	Title  string
	Text   string
	Corpus Corpus

	// Pages is optional page metadata, ordered by Start.
	Pages []Page
	// Units are spans that chunking strategies supporting unit-awareness never split.
	Units []Span
}

// PageAt returns the page number containing the rune offset, or 0 when the
// document carries no page metadata.
func (d *Document) PageAt(offset int) int {
	page := 0
	for _, p := range d.Pages {
		if p.Start > offset {
			break
		}
		page = p.Number
	}
	return page
}

// FailedDoc records a document that could not be loaded or indexed. Loader
// failures only mean fewer chunks are indexed; they never abort a build.
type FailedDoc struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}
