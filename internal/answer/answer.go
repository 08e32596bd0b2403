// Package answer turns a query and its retrieved chunks into a response for
// the user. Retrieval never depends on this package.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/bull/campus-rag/internal/citation"
	"github.com/bull/campus-rag/internal/domain"
)

// NoResultsText is returned when nothing relevant was retrieved.
const NoResultsText = "I could not find anything about that in the available documents."

// Answer is a response with the citations it is based on.
type Answer struct {
	Text      string              `json:"answer"`
	Citations []citation.Citation `json:"citations"`
	// Grounded is false when no retrieved context backed the answer.
	Grounded bool `json:"grounded"`
}

// Answerer generates answers from retrieved context.
type Answerer interface {
	Answer(ctx context.Context, query string, result *domain.SearchResult) (*Answer, error)
}

// Extractive answers with the retrieved text itself. It needs no language
// model, so it serves offline runs.
type Extractive struct {
	// MaxHits bounds how many chunks are quoted; 0 means 3.
	MaxHits int
}

func (e Extractive) Answer(_ context.Context, _ string, result *domain.SearchResult) (*Answer, error) {
	if result.Empty() {
		return &Answer{Text: NoResultsText}, nil
	}
	max := e.MaxHits
	if max <= 0 {
		max = 3
	}

	var b strings.Builder
	for i, hit := range result.Hits {
		if i == max {
			break
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s:\n%s", hit.Chunk.DocumentTitle, strings.TrimSpace(hit.Chunk.Text))
	}
	return &Answer{Text: b.String(), Citations: citation.Resolve(result), Grounded: true}, nil
}
