package ai

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Ensure interface compliance
var (
	_ driven.EmbeddingService = (*PlaceholderEmbedding)(nil)
	_ driven.LLMService       = (*PlaceholderLLM)(nil)
)

const placeholderDimensions = 384

// PlaceholderEmbedding produces deterministic pseudo-embeddings without
// any external service. It exists so the full ingest and query pipeline
// can run in development with no API key configured. Vectors are
// derived from a text hash, so identical texts always embed identically.
type PlaceholderEmbedding struct{}

// NewPlaceholderEmbedding creates the no-dependency embedding service
func NewPlaceholderEmbedding() (driven.EmbeddingService, error) {
	return &PlaceholderEmbedding{}, nil
}

// Embed generates deterministic pseudo-embeddings for multiple texts
func (e *PlaceholderEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for _, text := range texts {
		embeddings = append(embeddings, pseudoEmbedding(text))
	}
	return embeddings, nil
}

// EmbedQuery generates a deterministic pseudo-embedding for a query
func (e *PlaceholderEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return pseudoEmbedding(query), nil
}

// Dimensions returns the embedding dimension size
func (e *PlaceholderEmbedding) Dimensions() int {
	return placeholderDimensions
}

// Model returns the model name being used
func (e *PlaceholderEmbedding) Model() string {
	return "placeholder"
}

// HealthCheck always succeeds
func (e *PlaceholderEmbedding) HealthCheck(ctx context.Context) error {
	return nil
}

// Close releases nothing
func (e *PlaceholderEmbedding) Close() error {
	return nil
}

// pseudoEmbedding builds a unit vector seeded by an FNV hash of the text
func pseudoEmbedding(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, placeholderDimensions)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed>>11)) / float64(1<<52)
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

// citationMarker matches the source headers embedded in the context
var citationMarker = regexp.MustCompile(`\[DOC:[^\]]*CHUNK:[^\]]*\]`)

// PlaceholderLLM returns a structured canned answer without calling any
// model. It echoes the citation markers found in the assembled context
// so downstream citation extraction still works.
type PlaceholderLLM struct {
	model string
}

// NewPlaceholderLLM creates the no-dependency LLM service.
// The model name defaults to "placeholder" and can carry a provider
// prefix (e.g. "gemini-placeholder") to show what it substituted for.
func NewPlaceholderLLM(model string) (driven.LLMService, error) {
	if model == "" {
		model = "placeholder"
	}
	return &PlaceholderLLM{model: model}, nil
}

// Answer builds a canned response citing the sources found in the prompt
func (l *PlaceholderLLM) Answer(ctx context.Context, systemPrompt, userPrompt string) (*domain.LLMAnswer, error) {
	var b strings.Builder
	b.WriteString("This is a placeholder response generated without a language model. ")
	b.WriteString("Configure an LLM provider to receive grounded answers.\n")

	markers := citationMarker.FindAllString(contextSection(userPrompt), -1)
	if len(markers) > 0 {
		b.WriteString("\nSources considered:\n")
		for _, m := range markers {
			b.WriteString("- ")
			b.WriteString(m)
			b.WriteString("\n")
		}
	}

	answer := b.String()
	estimated := (len(userPrompt) + len(answer)) / 4

	return &domain.LLMAnswer{
		Text:  answer,
		Model: l.model,
		Usage: domain.TokenUsage{
			PromptTokens:     estimated / 2,
			CompletionTokens: estimated / 2,
			TotalTokens:      estimated,
		},
	}, nil
}

// Model returns the model name being used
func (l *PlaceholderLLM) Model() string {
	return l.model
}

// Ping always succeeds
func (l *PlaceholderLLM) Ping(ctx context.Context) error {
	return nil
}

// Close releases nothing
func (l *PlaceholderLLM) Close() error {
	return nil
}

// contextSection isolates the source listing from the full prompt so
// the question text cannot inject extra citation markers.
func contextSection(prompt string) string {
	_, after, found := strings.Cut(prompt, "[CONTEXT SOURCES]")
	if !found {
		return prompt
	}
	section, _, _ := strings.Cut(after, "[USER QUESTION]")
	return section
}
