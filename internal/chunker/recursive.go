package chunker

import (
	"github.com/bull/campus-rag/internal/domain"
)

// recursive splits the text into pieces no longer than ChunkSize, trying each
// separator in priority order, then merges adjacent pieces greedily. Pieces
// always tile the text exactly, so chunk offsets stay valid.
func (c *Chunker) recursive(runes []rune, units []domain.Span) []domain.Span {
	whole := domain.Span{Start: 0, End: len(runes)}
	if whole.Len() <= c.cfg.ChunkSize {
		if span := trim(runes, whole); span.Len() > 0 {
			return []domain.Span{span}
		}
		return nil
	}

	s := splitter{runes: runes, units: units, size: c.cfg.ChunkSize}
	pieces := s.split(whole, c.cfg.Separators)
	return c.merge(runes, pieces)
}

type splitter struct {
	runes []rune
	units []domain.Span
	size  int
}

func (s *splitter) split(span domain.Span, seps []string) []domain.Span {
	if span.Len() <= s.size {
		return []domain.Span{span}
	}
	if len(seps) == 0 {
		return s.hardCut(span)
	}

	parts := s.splitOn(span, []rune(seps[0]))
	if len(parts) == 1 {
		return s.split(span, seps[1:])
	}

	var out []domain.Span
	for _, p := range parts {
		if p.Len() <= s.size {
			out = append(out, p)
			continue
		}
		out = append(out, s.split(p, seps[1:])...)
	}
	return out
}

// splitOn cuts span after every occurrence of sep, keeping the separator at
// the end of the left piece. Cut points inside a unit are skipped.
func (s *splitter) splitOn(span domain.Span, sep []rune) []domain.Span {
	var parts []domain.Span
	start := span.Start
	for i := span.Start; i+len(sep) <= span.End; {
		if !hasPrefixAt(s.runes, i, sep) {
			i++
			continue
		}
		cut := i + len(sep)
		if cut < span.End && s.unitAt(cut) == nil {
			parts = append(parts, domain.Span{Start: start, End: cut})
			start = cut
		}
		i = cut
	}
	return append(parts, domain.Span{Start: start, End: span.End})
}

// hardCut is the last resort: fixed cuts of size runes. A cut that would land
// inside a unit moves to the unit's start, or past its end when the unit
// begins the piece.
func (s *splitter) hardCut(span domain.Span) []domain.Span {
	var out []domain.Span
	start := span.Start
	for start < span.End {
		cut := min(start+s.size, span.End)
		if u := s.unitAt(cut); u != nil {
			if u.Start > start {
				cut = u.Start
			} else {
				cut = min(u.End, span.End)
			}
		}
		out = append(out, domain.Span{Start: start, End: cut})
		start = cut
	}
	return out
}

func (s *splitter) unitAt(pos int) *domain.Span {
	for i := range s.units {
		if s.units[i].Contains(pos) {
			return &s.units[i]
		}
	}
	return nil
}

func hasPrefixAt(runes []rune, i int, prefix []rune) bool {
	if i+len(prefix) > len(runes) {
		return false
	}
	for j, r := range prefix {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}

// merge packs contiguous pieces into chunks of at most ChunkSize runes.
// When a chunk is emitted, its trailing pieces totalling no more than
// ChunkOverlap runes are carried into the next chunk.
func (c *Chunker) merge(runes []rune, pieces []domain.Span) []domain.Span {
	size, overlap := c.cfg.ChunkSize, c.cfg.ChunkOverlap

	var out []domain.Span
	emit := func(span domain.Span) {
		span = trim(runes, span)
		if span.Len() == 0 {
			return
		}
		if n := len(out); n > 0 && span.Start >= out[n-1].Start && span.End <= out[n-1].End {
			return
		}
		out = append(out, span)
	}

	var window []domain.Span
	for _, p := range pieces {
		if len(window) > 0 && p.End-window[0].Start > size {
			emit(domain.Span{Start: window[0].Start, End: window[len(window)-1].End})
			for len(window) > 0 {
				kept := window[len(window)-1].End - window[0].Start
				if kept <= overlap && p.End-window[0].Start <= size {
					break
				}
				window = window[1:]
			}
		}
		window = append(window, p)
	}
	if len(window) > 0 {
		emit(domain.Span{Start: window[0].Start, End: window[len(window)-1].End})
	}
	return out
}
