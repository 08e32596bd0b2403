package loader

import (
	"bytes"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/bull/campus-rag/internal/domain"
)

// PDFParser extracts plain text page by page and records where each page
// starts, so chunks can be cited by page.
type PDFParser struct{}

func (p *PDFParser) Parse(data []byte, filename string) (*Parsed, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filename, err)
	}

	var out joiner
	var pages []domain.Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i, Start: out.add(text)})
	}
	return &Parsed{Text: out.String(), Pages: pages}, nil
}
