package parsers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Parser = (*HTMLParser)(nil)

// HTMLParser extracts readable text from HTML uploads.
type HTMLParser struct{}

// NewHTMLParser creates a new HTML parser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

// skippedElements are containers whose text is boilerplate, not content
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"iframe":   true,
}

// blockElements get a newline after their text so paragraphs survive
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "tr": true, "section": true, "article": true,
	"blockquote": true, "pre": true,
}

// Parse builds a DOM and walks it, collecting text nodes.
func (p *HTMLParser) Parse(ctx context.Context, data []byte, filename string) (*domain.ParsedDocument, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", filename, err)
	}

	var b strings.Builder
	extractText(doc, &b)

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text content in %s", domain.ErrInvalidInput, filename)
	}

	return &domain.ParsedDocument{Text: text}, nil
}

func extractText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && skippedElements[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		trimmed := strings.TrimSpace(n.Data)
		if trimmed != "" {
			b.WriteString(trimmed)
			b.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, b)
	}
	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteByte('\n')
	}
}

func (p *HTMLParser) SupportedExtensions() []string {
	return []string{".html", ".htm"}
}

func (p *HTMLParser) Priority() int {
	return 50
}

func (p *HTMLParser) Name() string {
	return "html"
}
