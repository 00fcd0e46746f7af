package parsers

import "testing"

func TestRegistryGet(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		ext  string
		want string
	}{
		{".txt", "text"},
		{".html", "html"},
		{".htm", "html"},
		{".pdf", "pdf"},
		{".docx", "docx"},
		{".doc", "docx"},
		{".HTML", "html"}, // lookup normalizes case
	}
	for _, tt := range tests {
		p := r.Get(tt.ext)
		if p == nil {
			t.Errorf("Get(%q) = nil, want %s", tt.ext, tt.want)
			continue
		}
		if p.Name() != tt.want {
			t.Errorf("Get(%q) = %s, want %s", tt.ext, p.Name(), tt.want)
		}
	}

	if p := r.Get(".exe"); p != nil {
		t.Errorf("expected nil for unregistered extension, got %s", p.Name())
	}
}

func TestRegistryPrioritySelection(t *testing.T) {
	r := NewRegistry()
	r.Register(NewTextParser())
	r.Register(&fakeParser{name: "special-text", exts: []string{".txt"}, priority: 90})

	p := r.Get(".txt")
	if p == nil || p.Name() != "special-text" {
		t.Fatalf("expected highest priority parser, got %v", p)
	}
}

func TestRegistryList(t *testing.T) {
	r := DefaultRegistry()
	exts := r.List()

	want := map[string]bool{".txt": true, ".html": true, ".htm": true, ".pdf": true, ".docx": true, ".doc": true}
	if len(exts) != len(want) {
		t.Fatalf("expected %d extensions, got %d: %v", len(want), len(exts), exts)
	}
	for _, ext := range exts {
		if !want[ext] {
			t.Errorf("unexpected extension %q", ext)
		}
	}
}
