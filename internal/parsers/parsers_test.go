package parsers

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// fakeParser is a configurable parser for registry tests
type fakeParser struct {
	name     string
	exts     []string
	priority int
}

func (f *fakeParser) Parse(ctx context.Context, data []byte, filename string) (*domain.ParsedDocument, error) {
	return &domain.ParsedDocument{Text: string(data)}, nil
}
func (f *fakeParser) SupportedExtensions() []string { return f.exts }
func (f *fakeParser) Priority() int                 { return f.priority }
func (f *fakeParser) Name() string                  { return f.name }

var _ driven.Parser = (*fakeParser)(nil)

func TestTextParser(t *testing.T) {
	p := NewTextParser()

	doc, err := p.Parse(context.Background(), []byte("hello world"), "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "hello world" {
		t.Errorf("got %q", doc.Text)
	}
	if doc.PageCount() != 0 {
		t.Errorf("text files have no pages, got %d", doc.PageCount())
	}
}

func TestTextParserStripsBOM(t *testing.T) {
	p := NewTextParser()

	doc, err := p.Parse(context.Background(), []byte("\xEF\xBB\xBFcontent"), "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "content" {
		t.Errorf("expected BOM stripped, got %q", doc.Text)
	}
}

func TestTextParserInvalidUTF8Replaced(t *testing.T) {
	p := NewTextParser()

	doc, err := p.Parse(context.Background(), []byte("ok\xff\xfeok"), "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc.Text, "ok") || !strings.Contains(doc.Text, "�") {
		t.Errorf("expected replacement characters, got %q", doc.Text)
	}
}

func TestTextParserEmptyFile(t *testing.T) {
	p := NewTextParser()

	_, err := p.Parse(context.Background(), nil, "a.txt")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestHTMLParserExtractsText(t *testing.T) {
	p := NewHTMLParser()

	input := `<html><head><title>ignored</title><style>body{color:red}</style></head>
<body><nav>menu items</nav><h1>Welcome</h1><p>First paragraph.</p>
<script>var x = 1;</script><p>Second paragraph.</p><footer>copyright</footer></body></html>`

	doc, err := p.Parse(context.Background(), []byte(input), "page.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Welcome", "First paragraph.", "Second paragraph."} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("expected %q in output, got %q", want, doc.Text)
		}
	}
	for _, skip := range []string{"var x", "color:red", "menu items", "copyright", "ignored"} {
		if strings.Contains(doc.Text, skip) {
			t.Errorf("boilerplate %q leaked into output", skip)
		}
	}
}

func TestHTMLParserParagraphBreaks(t *testing.T) {
	p := NewHTMLParser()

	doc, err := p.Parse(context.Background(), []byte("<p>one</p><p>two</p>"), "a.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc.Text, "\n") {
		t.Errorf("expected newline between paragraphs, got %q", doc.Text)
	}
}

func TestHTMLParserNoContent(t *testing.T) {
	p := NewHTMLParser()

	_, err := p.Parse(context.Background(), []byte("<html><body><script>x()</script></body></html>"), "a.html")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestDocxParser(t *testing.T) {
	p := NewDocxParser()

	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
<w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t xml:space="preserve"> paragraph.</w:t></w:r></w:p>
</w:body></w:document>`

	doc, err := p.Parse(context.Background(), buildDocx(t, docXML), "report.docx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc.Text, "First paragraph.") {
		t.Errorf("missing first paragraph: %q", doc.Text)
	}
	if !strings.Contains(doc.Text, "Second paragraph.") {
		t.Errorf("runs in one paragraph must concatenate: %q", doc.Text)
	}
	if !strings.Contains(doc.Text, "First paragraph.\n") {
		t.Errorf("expected newline after paragraph: %q", doc.Text)
	}
}

func TestDocxParserRejectsNonZip(t *testing.T) {
	p := NewDocxParser()

	_, err := p.Parse(context.Background(), []byte("this is legacy .doc binary junk"), "old.doc")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDocxParserMissingDocumentXML(t *testing.T) {
	p := NewDocxParser()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("word/other.xml")
	w.Write([]byte("<x/>"))
	zw.Close()

	_, err := p.Parse(context.Background(), buf.Bytes(), "broken.docx")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPDFParserRejectsGarbage(t *testing.T) {
	p := NewPDFParser()

	_, err := p.Parse(context.Background(), []byte("not a pdf at all"), "fake.pdf")
	if err == nil {
		t.Fatal("expected error for non-pdf bytes")
	}
}
