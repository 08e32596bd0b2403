package loader

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/bull/campus-rag/internal/markdown"
)

// TextParser handles plain text files. The text is kept verbatim.
type TextParser struct{}

func (p *TextParser) Parse(data []byte, filename string) (*Parsed, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("parse %s: text is not valid UTF-8", filename)
	}
	return &Parsed{Text: string(bytes.TrimPrefix(data, []byte("\ufeff")))}, nil
}

// MarkdownParser keeps the markdown source as the document text, so code
// blocks found by the inspector can be protected from splitting.
type MarkdownParser struct {
	inspector *markdown.Inspector
}

// NewMarkdownParser creates a MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{inspector: markdown.NewInspector()}
}

func (p *MarkdownParser) Parse(data []byte, filename string) (*Parsed, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("parse %s: text is not valid UTF-8", filename)
	}
	info, err := p.inspector.Inspect(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return &Parsed{Title: info.Title, Text: string(data), Units: info.Units}, nil
}
