package parsers

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Parser = (*TextParser)(nil)

// TextParser handles plain text uploads.
type TextParser struct{}

// NewTextParser creates a new plain text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse decodes the file as UTF-8 text. Invalid bytes are replaced
// rather than rejected; a BOM is stripped.
func (p *TextParser) Parse(ctx context.Context, data []byte, filename string) (*domain.ParsedDocument, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	var text string
	if utf8.Valid(data) {
		text = string(data)
	} else {
		text = string(bytes.ToValidUTF8(data, []byte("�")))
	}
	if len(text) == 0 {
		return nil, fmt.Errorf("%w: empty text file %s", domain.ErrInvalidInput, filename)
	}

	return &domain.ParsedDocument{Text: text}, nil
}

func (p *TextParser) SupportedExtensions() []string {
	return []string{".txt"}
}

func (p *TextParser) Priority() int {
	return 50
}

func (p *TextParser) Name() string {
	return "text"
}
