package driven

import (
	"context"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// LLMService generates grounded answers from assembled context
type LLMService interface {
	// Answer generates a completion for the user prompt under the given
	// system prompt. The prompt already contains the retrieved context.
	Answer(ctx context.Context, systemPrompt, userPrompt string) (*domain.LLMAnswer, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
