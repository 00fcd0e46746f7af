package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Ensure GeminiLLM implements LLMService
var _ driven.LLMService = (*GeminiLLM)(nil)

// GeminiLLM implements LLMService using the Gemini API
type GeminiLLM struct {
	client *genai.Client
	model  string
}

// NewGeminiLLM creates an LLM service backed by the Gemini API
func NewGeminiLLM(apiKey, model string) (driven.LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiLLM{client: client, model: model}, nil
}

// Answer generates a completion for the user prompt
func (l *GeminiLLM) Answer(ctx context.Context, systemPrompt, userPrompt string) (*domain.LLMAnswer, error) {
	config := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	resp, err := l.client.Models.GenerateContent(ctx, l.model, genai.Text(userPrompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini returned an empty response")
	}

	answer := &domain.LLMAnswer{
		Text:  text,
		Model: l.model,
	}
	if resp.UsageMetadata != nil {
		answer.Usage = domain.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return answer, nil
}

// Model returns the model name being used
func (l *GeminiLLM) Model() string {
	return l.model
}

// Ping verifies the LLM service is reachable
func (l *GeminiLLM) Ping(ctx context.Context) error {
	_, err := l.client.Models.Get(ctx, l.model, nil)
	if err != nil {
		return fmt.Errorf("gemini ping failed: %w", err)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *GeminiLLM) Close() error {
	return nil
}
