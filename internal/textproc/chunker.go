package textproc

import (
	"strings"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// ChunkSize is the target characters per chunk
	ChunkSize int

	// Overlap is the character overlap between consecutive chunks
	Overlap int

	// MinChunkSize is the smallest chunk worth emitting
	MinChunkSize int

	// MaxChunkSize caps the configured chunk size
	MaxChunkSize int
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize:    800,
		Overlap:      160,
		MinChunkSize: 100,
		MaxChunkSize: 1500,
	}
}

// Span is one chunk of text with its position metadata.
// StartChar and EndChar are offsets into the normalized document text,
// before the chunk's own leading/trailing whitespace is trimmed.
type Span struct {
	Text       string
	Index      int
	StartChar  int
	EndChar    int
	PageNumber *int
	TokenCount int
}

// Chunker splits normalized text into overlapping spans, preferring
// sentence, then paragraph, then word boundaries. Output is
// deterministic for identical input and config.
type Chunker struct {
	config ChunkConfig
}

// NewChunker creates a chunker, clamping the config to safe bounds.
func NewChunker(config ChunkConfig) *Chunker {
	if config.MinChunkSize <= 0 {
		config.MinChunkSize = 100
	}
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = 1500
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = 800
	}
	if config.ChunkSize < config.MinChunkSize {
		config.ChunkSize = config.MinChunkSize
	}
	if config.ChunkSize > config.MaxChunkSize {
		config.ChunkSize = config.MaxChunkSize
	}
	if config.Overlap >= config.ChunkSize {
		config.Overlap = config.ChunkSize / 10
		if config.Overlap < 1 {
			config.Overlap = 1
		}
	}
	if config.Overlap < 0 {
		config.Overlap = 0
	}
	return &Chunker{config: config}
}

// Chunk splits text into spans. Pages, when present, drive page
// attribution; an empty page list leaves PageNumber nil on every span.
func (c *Chunker) Chunk(text string, pages []domain.Page) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	pageMap := buildPageMap(text, pages)
	size := c.config.ChunkSize
	overlap := c.config.Overlap
	minSize := c.config.MinChunkSize

	var spans []Span
	start := 0
	index := 0

	for start < len(text) {
		end := start + size
		if end > len(text) {
			end = len(text)
		}

		if end < len(text) {
			if bp := c.findBreakPoint(text, start, end); bp > start+minSize {
				end = bp
			}
		}

		chunkText := strings.TrimSpace(text[start:end])

		// A too-short tail before the end of text gets extended so the
		// final chunk is never a fragment of a fragment
		if len(chunkText) < minSize && end < len(text) {
			end = start + minSize
			if end > len(text) {
				end = len(text)
			}
			chunkText = strings.TrimSpace(text[start:end])
		}

		if chunkText != "" {
			spans = append(spans, Span{
				Text:       chunkText,
				Index:      index,
				StartChar:  start,
				EndChar:    end,
				PageNumber: pageMap.pageFor(start),
				TokenCount: EstimateTokens(chunkText),
			})
			index++
		}

		if end >= len(text) {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}

	return spans
}

// findBreakPoint scans backward from end looking for a natural boundary.
// Sentence ends win over paragraph breaks, which win over word
// boundaries. The scan window is a quarter of the chunk size.
func (c *Chunker) findBreakPoint(text string, start, end int) int {
	lookback := c.config.ChunkSize / 4
	floor := end - lookback
	if floor < start {
		floor = start
	}

	for i := end - 1; i >= floor; i-- {
		ch := text[i]
		if ch == '.' || ch == '!' || ch == '?' {
			if i+1 >= len(text) || isSpace(text[i+1]) {
				return i + 1
			}
		}
	}

	for i := end - 1; i >= floor; i-- {
		if text[i] == '\n' && i > 0 && text[i-1] == '\n' {
			return i + 1
		}
	}

	for i := end - 1; i >= floor; i-- {
		if text[i] == ' ' && i+1 < len(text) && !isSpace(text[i+1]) {
			return i + 1
		}
	}

	return end
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

type pageRange struct {
	number int
	start  int
	end    int
}

type pageMap struct {
	ranges []pageRange
}

// buildPageMap locates each page's text within the normalized document.
// Normalization shifts offsets, so each page is found by searching for
// the first 100 characters of its stripped text; pages that cannot be
// found fall back to a running cursor.
func buildPageMap(text string, pages []domain.Page) *pageMap {
	if len(pages) == 0 {
		return &pageMap{}
	}

	m := &pageMap{ranges: make([]pageRange, 0, len(pages))}
	cursor := 0
	for _, page := range pages {
		stripped := strings.TrimSpace(page.Text)
		pageStart := cursor
		if stripped != "" {
			snippet := stripped
			if len(snippet) > 100 {
				snippet = snippet[:100]
			}
			if idx := strings.Index(text[cursor:], snippet); idx >= 0 {
				pageStart = cursor + idx
			}
		}
		pageEnd := pageStart + len(stripped)
		m.ranges = append(m.ranges, pageRange{number: page.Number, start: pageStart, end: pageEnd})
		cursor = pageEnd
	}
	return m
}

// pageFor returns the page containing the given offset, or the last page
// when the offset lands past every range. Nil when there are no pages.
func (m *pageMap) pageFor(offset int) *int {
	if len(m.ranges) == 0 {
		return nil
	}
	for _, r := range m.ranges {
		if offset >= r.start && offset < r.end {
			n := r.number
			return &n
		}
	}
	n := m.ranges[len(m.ranges)-1].number
	return &n
}
