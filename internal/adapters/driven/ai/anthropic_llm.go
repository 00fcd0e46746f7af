package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Ensure AnthropicLLM implements LLMService
var _ driven.LLMService = (*AnthropicLLM)(nil)

const anthropicMaxTokens = 4096

// AnthropicLLM implements LLMService using Anthropic's Messages API
type AnthropicLLM struct {
	client anthropic.Client
	model  string
}

// NewAnthropicLLM creates an LLM service backed by Anthropic
func NewAnthropicLLM(apiKey, model string) (driven.LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &AnthropicLLM{client: client, model: model}, nil
}

// Answer generates a completion for the user prompt
func (l *AnthropicLLM) Answer(ctx context.Context, systemPrompt, userPrompt string) (*domain.LLMAnswer, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(l.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		}
	}

	msg, err := l.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("anthropic returned an empty response")
	}

	return &domain.LLMAnswer{
		Text:  text.String(),
		Model: string(msg.Model),
		Usage: domain.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

// Model returns the model name being used
func (l *AnthropicLLM) Model() string {
	return l.model
}

// Ping verifies the LLM service is reachable
func (l *AnthropicLLM) Ping(ctx context.Context) error {
	_, err := l.client.Models.Get(ctx, l.model, anthropic.ModelGetParams{})
	if err != nil {
		return fmt.Errorf("anthropic ping failed: %w", err)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *AnthropicLLM) Close() error {
	return nil
}
