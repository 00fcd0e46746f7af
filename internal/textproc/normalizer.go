package textproc

import (
	"regexp"
	"strings"
)

// NormalizeConfig configures text normalization.
type NormalizeConfig struct {
	// RemoveHeadersFooters enables repeated header/footer line removal
	RemoveHeadersFooters bool

	// MinRepeats is how many times a line must repeat to count as a
	// header or footer
	MinRepeats int
}

// DefaultNormalizeConfig returns sensible defaults.
func DefaultNormalizeConfig() NormalizeConfig {
	return NormalizeConfig{
		RemoveHeadersFooters: true,
		MinRepeats:           3,
	}
}

// NormalizeStats summarizes one normalization pass.
type NormalizeStats struct {
	OriginalChars   int `json:"original_chars"`
	NormalizedChars int `json:"normalized_chars"`
	EstimatedTokens int `json:"estimated_tokens"`
	RepeatedRemoved int `json:"repeated_removed"`
}

var (
	excessiveNewlines = regexp.MustCompile(`\n{3,}`)
	controlChars      = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x{9f}]`)
	unicodeSpaces     = regexp.MustCompile(`[\x{2000}-\x{200b}\x{2028}\x{2029}\x{3000}]`)
	repeatedSpaces    = regexp.MustCompile(` {2,}`)
)

// Normalizer cleans parser output into stable text for chunking.
// Normalization is idempotent: normalizing already-normalized text
// returns it unchanged.
type Normalizer struct {
	config NormalizeConfig
}

// NewNormalizer creates a new normalizer with the given config.
func NewNormalizer(config NormalizeConfig) *Normalizer {
	if config.MinRepeats <= 0 {
		config.MinRepeats = 3
	}
	return &Normalizer{config: config}
}

// Normalize applies the full cleaning pipeline in a fixed order.
func (n *Normalizer) Normalize(text string) (string, NormalizeStats) {
	stats := NormalizeStats{OriginalChars: len(text)}

	// Unify line endings
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	// Collapse runs of blank lines to a single blank line
	text = excessiveNewlines.ReplaceAllString(text, "\n\n")

	// Strip trailing whitespace per line
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")

	// Drop control characters, fold exotic unicode spaces, collapse runs
	text = controlChars.ReplaceAllString(text, "")
	text = unicodeSpaces.ReplaceAllString(text, " ")
	text = repeatedSpaces.ReplaceAllString(text, " ")

	if n.config.RemoveHeadersFooters {
		text, stats.RepeatedRemoved = removeRepeatedLines(text, n.config.MinRepeats)
	}

	// Collapse again, header removal can leave new blank runs
	text = excessiveNewlines.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	stats.NormalizedChars = len(text)
	stats.EstimatedTokens = EstimateTokens(text)
	return text, stats
}

// removeRepeatedLines drops short lines that repeat across the document,
// which is how page headers and footers survive PDF extraction. The first
// occurrence of each repeated line is kept. Documents too short to contain
// a meaningful repeat are left untouched.
func removeRepeatedLines(text string, minRepeats int) (string, int) {
	lines := strings.Split(text, "\n")
	if len(lines) < minRepeats*2 {
		return text, 0
	}

	counts := make(map[string]int)
	for _, line := range lines {
		key := strings.ToLower(strings.TrimSpace(line))
		if key != "" {
			counts[key]++
		}
	}

	repeated := make(map[string]bool)
	for key, count := range counts {
		if count >= minRepeats && len(key) < 100 {
			repeated[key] = true
		}
	}
	if len(repeated) == 0 {
		return text, 0
	}

	seen := make(map[string]bool)
	removed := 0
	result := lines[:0]
	for _, line := range lines {
		key := strings.ToLower(strings.TrimSpace(line))
		if repeated[key] {
			if seen[key] {
				removed++
				continue
			}
			seen[key] = true
		}
		result = append(result, line)
	}
	return strings.Join(result, "\n"), removed
}

// EstimateTokens approximates the token count as one token per 4 characters.
func EstimateTokens(text string) int {
	return len(text) / 4
}
