package answer

import (
	"fmt"
	"strings"

	"github.com/bull/campus-rag/internal/citation"
	"github.com/bull/campus-rag/internal/domain"
)

const systemPrompt = `You answer questions from students and staff using only the numbered sources provided.
If the sources do not contain the answer, say so.
Respond in JSON format:
{"answer": "your answer", "sources": [1, 2]}
where "sources" lists the numbers of the sources you used.`

// buildPrompt lists the sources, one per cited document, each followed by
// the text of its retrieved chunks. Context beyond maxChars is cut.
func buildPrompt(query string, result *domain.SearchResult, cites []citation.Citation, maxChars int) (string, bool) {
	number := make(map[string]int, len(cites))
	for i, c := range cites {
		number[string(c.Corpus)+"\x00"+c.DocumentID] = i
	}
	texts := make([][]string, len(cites))
	for _, hit := range result.Hits {
		i := number[string(hit.Corpus)+"\x00"+hit.Chunk.DocumentID]
		texts[i] = append(texts[i], strings.TrimSpace(hit.Chunk.Text))
	}

	var sources strings.Builder
	for i, c := range cites {
		fmt.Fprintf(&sources, "[%d] %s\n%s\n\n", i+1, c.String(), strings.Join(texts[i], "\n...\n"))
	}
	body, truncated := truncate(sources.String(), maxChars)

	return fmt.Sprintf("Sources:\n\n%s\nQuestion: %s", body, query), truncated
}

// truncate cuts s to at most maxChars runes.
func truncate(s string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s, false
	}
	return string(runes[:maxChars]), true
}
