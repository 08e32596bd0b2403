// Package citation maps search hits back to their source documents.
package citation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bull/campus-rag/internal/domain"
)

// Citation points at one source document represented in a search result.
type Citation struct {
	DocumentID string            `json:"document_id"`
	Title      string            `json:"title"`
	Corpus     domain.Corpus     `json:"corpus"`
	Score      float64           `json:"score"`
	Locations  []domain.Location `json:"locations"`
}

// Resolve returns one Citation per distinct source document, in order of the
// document's first appearance in the result. Each citation collects the
// locations of every hit from that document, sorted by offset.
func Resolve(result *domain.SearchResult) []Citation {
	if result.Empty() {
		return nil
	}

	type key struct {
		corpus domain.Corpus
		doc    string
	}
	positions := make(map[key]int)
	var citations []Citation

	for _, hit := range result.Hits {
		k := key{hit.Corpus, hit.Chunk.DocumentID}
		pos, ok := positions[k]
		if !ok {
			pos = len(citations)
			positions[k] = pos
			citations = append(citations, Citation{
				DocumentID: hit.Chunk.DocumentID,
				Title:      hit.Chunk.DocumentTitle,
				Corpus:     hit.Corpus,
				Score:      hit.Score,
			})
		}
		citations[pos].Locations = append(citations[pos].Locations, hit.Chunk.Location)
	}

	for i := range citations {
		citations[i].Locations = sortLocations(citations[i].Locations)
	}
	return citations
}

func sortLocations(locs []domain.Location) []domain.Location {
	sort.Slice(locs, func(i, j int) bool {
		if locs[i].Start != locs[j].Start {
			return locs[i].Start < locs[j].Start
		}
		return locs[i].End < locs[j].End
	})
	out := locs[:0]
	for i, l := range locs {
		if i > 0 && l == locs[i-1] {
			continue
		}
		out = append(out, l)
	}
	return out
}

// String renders the citation as "Title (p. 2-3)" or "Title (chars 0-120)".
func (c Citation) String() string {
	title := c.Title
	if title == "" {
		title = c.DocumentID
	}

	var pages, spans []string
	for _, l := range c.Locations {
		switch {
		case l.PageStart > 0 && l.PageEnd > l.PageStart:
			pages = append(pages, fmt.Sprintf("%d-%d", l.PageStart, l.PageEnd))
		case l.PageStart > 0:
			pages = append(pages, fmt.Sprint(l.PageStart))
		default:
			spans = append(spans, fmt.Sprintf("%d-%d", l.Start, l.End))
		}
	}
	switch {
	case len(pages) > 0:
		return fmt.Sprintf("%s (p. %s)", title, strings.Join(dedupe(pages), ", "))
	case len(spans) > 0:
		return fmt.Sprintf("%s (chars %s)", title, strings.Join(spans, ", "))
	default:
		return title
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
