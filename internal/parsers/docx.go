package parsers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Parser = (*DocxParser)(nil)

// DocxParser extracts paragraph text from Word uploads.
// A .docx file is a zip archive holding word/document.xml; the text
// lives in w:t runs grouped into w:p paragraphs. Legacy binary .doc
// files are not a zip and are rejected with a clear error.
type DocxParser struct{}

// NewDocxParser creates a new Word document parser.
func NewDocxParser() *DocxParser {
	return &DocxParser{}
}

func (p *DocxParser) Parse(ctx context.Context, data []byte, filename string) (*domain.ParsedDocument, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a valid word document (legacy .doc is not supported, convert to .docx)", domain.ErrInvalidInput, filename)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document.xml in %s: %w", filename, err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read document.xml in %s: %w", filename, err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("%w: no word/document.xml in %s", domain.ErrInvalidInput, filename)
	}

	text, err := extractDocxText(docXML)
	if err != nil {
		return nil, fmt.Errorf("parse document.xml in %s: %w", filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text content in %s", domain.ErrInvalidInput, filename)
	}

	return &domain.ParsedDocument{Text: text}, nil
}

// extractDocxText streams the XML, emitting w:t character data and a
// newline at the end of each w:p paragraph. w:tab and w:br become
// whitespace so runs do not fuse.
func extractDocxText(docXML []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(docXML))

	var b strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

func (p *DocxParser) SupportedExtensions() []string {
	return []string{".docx", ".doc"}
}

func (p *DocxParser) Priority() int {
	return 50
}

func (p *DocxParser) Name() string {
	return "docx"
}
