package domain

import "testing"

func TestDocumentStatusValid(t *testing.T) {
	valid := []DocumentStatus{
		DocumentStatusPending,
		DocumentStatusProcessing,
		DocumentStatusIndexed,
		DocumentStatusError,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}

	if DocumentStatus("done").Valid() {
		t.Error("expected unknown status to be invalid")
	}
	if DocumentStatus("").Valid() {
		t.Error("expected empty status to be invalid")
	}
}

func TestFileTypeOf(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"report.pdf", ".pdf"},
		{"Notes.TXT", ".txt"},
		{"index.HTML", ".html"},
		{"archive.tar.gz", ".gz"},
		{"no_extension", ""},
		{"trailing.", "."},
	}

	for _, tt := range tests {
		if got := FileTypeOf(tt.filename); got != tt.want {
			t.Errorf("FileTypeOf(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestAllowedFileTypes(t *testing.T) {
	for _, ext := range []string{".pdf", ".docx", ".doc", ".txt", ".html", ".htm"} {
		if !AllowedFileTypes[ext] {
			t.Errorf("expected %s to be allowed", ext)
		}
	}
	if AllowedFileTypes[".exe"] {
		t.Error("expected .exe to be rejected")
	}
	if AllowedFileTypes[".PDF"] {
		t.Error("lookup is case-sensitive, callers must lowercase first")
	}
}

func TestParsedDocumentPageCount(t *testing.T) {
	doc := &ParsedDocument{Text: "hello"}
	if doc.PageCount() != 0 {
		t.Errorf("expected 0 pages, got %d", doc.PageCount())
	}

	doc.Pages = []Page{{Number: 1, Text: "a"}, {Number: 2, Text: "b"}}
	if doc.PageCount() != 2 {
		t.Errorf("expected 2 pages, got %d", doc.PageCount())
	}
}
