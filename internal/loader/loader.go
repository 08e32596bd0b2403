// Package loader turns raw files into documents: plain text plus page and
// do-not-split metadata. Every parser returns text whose rune offsets match
// the Pages and Units it reports.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bull/campus-rag/internal/domain"
)

// ErrUnsupported is returned for file extensions no parser handles.
var ErrUnsupported = errors.New("unsupported document format")

// Parsed is the output of a parser.
type Parsed struct {
	Title string
	Text  string
	Pages []domain.Page
	Units []domain.Span
}

// Parser converts raw document bytes into text.
type Parser interface {
	Parse(data []byte, filename string) (*Parsed, error)
}

// SupportedExtensions lists file extensions this package can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// IsSupported checks if a file extension is supported.
func IsSupported(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ForFile returns the parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return NewMarkdownParser(), nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// Parse reads r fully and parses it with the parser for filename.
func Parse(r io.Reader, filename string) (*Parsed, error) {
	p, err := ForFile(filename)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	parsed, err := p.Parse(data, filename)
	if err != nil {
		return nil, err
	}
	if parsed.Title == "" {
		parsed.Title = stem(filename)
	}
	return parsed, nil
}

// LoadFile parses the file at path into a document of corpus with the given ID.
func LoadFile(path, id string, corpus domain.Corpus) (*domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	parsed, err := Parse(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	return &domain.Document{
		ID:     id,
		Title:  parsed.Title,
		Text:   parsed.Text,
		Corpus: corpus,
		Pages:  parsed.Pages,
		Units:  parsed.Units,
	}, nil
}

func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// joiner concatenates text blocks with blank lines and tracks rune offsets.
type joiner struct {
	b     strings.Builder
	runes int
}

// add appends a block and returns the rune offset it starts at.
func (j *joiner) add(block string) int {
	if j.runes > 0 {
		j.b.WriteString("\n\n")
		j.runes += 2
	}
	start := j.runes
	j.b.WriteString(block)
	j.runes += len([]rune(block))
	return start
}

func (j *joiner) String() string { return j.b.String() }
