package chunker

import (
	"context"
	"fmt"
	"unicode"

	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/vector"
)

// semantic embeds every sentence in one batch and starts a new chunk when
// consecutive sentences fall below the similarity threshold, or when the
// chunk would outgrow ChunkSize. A single sentence longer than ChunkSize
// becomes its own chunk.
func (c *Chunker) semantic(ctx context.Context, runes []rune) ([]domain.Span, error) {
	sentences := sentenceSpans(runes)
	if len(sentences) <= 1 {
		return sentences, nil
	}

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = string(runes[s.Start:s.End])
	}
	embeddings, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d sentences: %w", len(texts), err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d sentences", domain.ErrEmbeddingProvider, len(embeddings), len(texts))
	}

	var out []domain.Span
	current := sentences[0]
	for i := 1; i < len(sentences); i++ {
		sim := vector.Cosine(embeddings[i-1], embeddings[i])
		if sim < c.cfg.Threshold || sentences[i].End-current.Start > c.cfg.ChunkSize {
			out = append(out, current)
			current = sentences[i]
			continue
		}
		current.End = sentences[i].End
	}
	return append(out, current), nil
}

// sentenceSpans finds trimmed sentences. A sentence ends after a run of
// '.', '!' or '?' followed by whitespace, or at a blank line.
func sentenceSpans(runes []rune) []domain.Span {
	var out []domain.Span
	add := func(start, end int) {
		if span := trim(runes, domain.Span{Start: start, End: end}); span.Len() > 0 {
			out = append(out, span)
		}
	}

	start := 0
	for i := 0; i < len(runes); i++ {
		switch {
		case isTerminator(runes[i]):
			j := i + 1
			for j < len(runes) && isTerminator(runes[j]) {
				j++
			}
			if j == len(runes) || unicode.IsSpace(runes[j]) {
				add(start, j)
				start = j
			}
			i = j - 1
		case runes[i] == '\n' && i+1 < len(runes) && runes[i+1] == '\n':
			add(start, i)
			start = i
		}
	}
	add(start, len(runes))
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
