package chunker

import "github.com/bull/campus-rag/internal/domain"

// fixed cuts windows of exactly ChunkSize runes advancing by
// ChunkSize-ChunkOverlap. Only the last window may be shorter.
func (c *Chunker) fixed(length int) []domain.Span {
	step := c.cfg.ChunkSize - c.cfg.ChunkOverlap
	var out []domain.Span
	for start := 0; start < length; start += step {
		end := min(start+c.cfg.ChunkSize, length)
		out = append(out, domain.Span{Start: start, End: end})
		if end == length {
			break
		}
	}
	return out
}
