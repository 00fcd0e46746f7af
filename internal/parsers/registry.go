package parsers

import (
	"sort"
	"strings"
	"sync"

	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ParserRegistry = (*Registry)(nil)

// Registry implements ParserRegistry with priority-based selection.
// When multiple parsers claim an extension, the highest priority one is used.
type Registry struct {
	mu      sync.RWMutex
	parsers []driven.Parser
}

// NewRegistry creates a new parser registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make([]driven.Parser, 0),
	}
}

// Register registers a parser.
// Parsers are stored and later selected by priority.
func (r *Registry) Register(parser driven.Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.parsers = append(r.parsers, parser)
}

// Get retrieves the best-matching parser for a file extension.
// Returns nil if no parser is registered for the extension.
func (r *Registry) Get(extension string) driven.Parser {
	extension = strings.ToLower(strings.TrimSpace(extension))

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []driven.Parser
	for _, p := range r.parsers {
		for _, ext := range p.SupportedExtensions() {
			if ext == extension {
				matches = append(matches, p)
				break
			}
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Priority() > matches[j].Priority()
	})
	return matches[0]
}

// List returns all registered extensions.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	extSet := make(map[string]struct{})
	for _, p := range r.parsers {
		for _, ext := range p.SupportedExtensions() {
			extSet[ext] = struct{}{}
		}
	}

	exts := make([]string, 0, len(extSet))
	for ext := range extSet {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DefaultRegistry creates a registry with all built-in parsers registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewTextParser())
	r.Register(NewHTMLParser())
	r.Register(NewPDFParser())
	r.Register(NewDocxParser())
	return r
}
