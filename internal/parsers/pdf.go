package parsers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Parser = (*PDFParser)(nil)

// PDFParser extracts per-page text from PDF uploads.
type PDFParser struct{}

// NewPDFParser creates a new PDF parser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse reads every page. Pages that fail extraction are kept as empty
// pages so page numbering stays aligned with the source document.
func (p *PDFParser) Parse(ctx context.Context, data []byte, filename string) (_ *domain.ParsedDocument, err error) {
	// The pdf package panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: malformed pdf %s: %v", domain.ErrInvalidInput, filename, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filename, err)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("%w: pdf has no pages: %s", domain.ErrInvalidInput, filename)
	}

	pages := make([]domain.Page, 0, numPages)
	var b strings.Builder
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		pageText := ""
		if !page.V.IsNull() {
			if content, err := page.GetPlainText(nil); err == nil {
				pageText = content
			}
		}
		pages = append(pages, domain.Page{Number: i, Text: pageText})
		if pageText != "" {
			b.WriteString(pageText)
			b.WriteString("\n\n")
		}
	}

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no extractable text in %s", domain.ErrInvalidInput, filename)
	}

	return &domain.ParsedDocument{Text: text, Pages: pages}, nil
}

func (p *PDFParser) SupportedExtensions() []string {
	return []string{".pdf"}
}

func (p *PDFParser) Priority() int {
	return 50
}

func (p *PDFParser) Name() string {
	return "pdf"
}
