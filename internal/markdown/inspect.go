// Package markdown extracts the structure the chunker needs from markdown
// sources: a display title and the blocks that must never be split.
package markdown

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"

	"github.com/bull/campus-rag/internal/domain"
)

// Info is what Inspect learns about a markdown document.
type Info struct {
	// Title is the text of the first heading, or empty.
	Title string
	// Units are code and HTML blocks as rune offsets into the source.
	Units []domain.Span
}

// Inspector parses markdown with goldmark.
type Inspector struct {
	md goldmark.Markdown
}

// NewInspector creates an Inspector with auto heading IDs, which toc needs.
func NewInspector() *Inspector {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Inspector{md: md}
}

// Inspect parses source. The returned unit offsets index the source as
// runes, so the caller must keep the source text unchanged.
func (in *Inspector) Inspect(source []byte) (*Info, error) {
	doc := in.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(6),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	info := &Info{Title: firstTitle(tree.Items)}

	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		var start, stop int
		var ok bool
		switch n.Kind() {
		case ast.KindFencedCodeBlock:
			start, stop, ok = fencedBounds(source, n.Lines())
		case ast.KindCodeBlock, ast.KindHTMLBlock:
			start, stop, ok = lineBounds(source, n.Lines())
		default:
			return ast.WalkContinue, nil
		}
		if ok {
			info.Units = append(info.Units, domain.Span{Start: runeOffset(source, start), End: runeOffset(source, stop)})
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk markdown: %w", err)
	}
	return info, nil
}

func firstTitle(items toc.Items) string {
	for len(items) > 0 {
		item := items[0]
		if len(item.Title) > 0 {
			return string(bytes.TrimSpace(item.Title))
		}
		items = item.Items
	}
	return ""
}

// lineBounds covers the block's lines from the start of the first line to
// the end of the last one, excluding the final newline.
func lineBounds(source []byte, lines *text.Segments) (int, int, bool) {
	if lines == nil || lines.Len() == 0 {
		return 0, 0, false
	}
	start := lineStart(source, lines.At(0).Start)
	stop := trimNewline(source, lines.At(lines.Len()-1).Stop)
	return start, stop, stop > start
}

// fencedBounds widens the content lines of a fenced block to include the
// opening and closing fence lines.
func fencedBounds(source []byte, lines *text.Segments) (int, int, bool) {
	if lines == nil || lines.Len() == 0 {
		return 0, 0, false
	}
	first := lineStart(source, lines.At(0).Start)
	start := first
	if first > 0 {
		start = lineStart(source, first-1)
	}
	stop := lineEnd(source, lines.At(lines.Len()-1).Stop)
	return start, stop, stop > start
}

func lineStart(source []byte, pos int) int {
	if i := bytes.LastIndexByte(source[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

// lineEnd returns the end of the line starting at pos, without its newline.
func lineEnd(source []byte, pos int) int {
	if pos >= len(source) {
		return len(source)
	}
	if i := bytes.IndexByte(source[pos:], '\n'); i >= 0 {
		return pos + i
	}
	return len(source)
}

func trimNewline(source []byte, stop int) int {
	for stop > 0 && (source[stop-1] == '\n' || source[stop-1] == '\r') {
		stop--
	}
	return stop
}

func runeOffset(source []byte, b int) int {
	return utf8.RuneCount(source[:b])
}
