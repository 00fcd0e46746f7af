package mocks

import (
	"context"
	"sync"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// MockLLMService is a mock implementation of LLMService for testing
type MockLLMService struct {
	mu     sync.Mutex
	model  string
	answer string
	err    error

	// Prompts records every (system, user) prompt pair passed to Answer
	Prompts [][2]string
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{
		model:  "mock-llm",
		answer: "mock answer",
	}
}

func (m *MockLLMService) Answer(ctx context.Context, systemPrompt, userPrompt string) (*domain.LLMAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, [2]string{systemPrompt, userPrompt})
	if m.err != nil {
		return nil, m.err
	}
	return &domain.LLMAnswer{
		Text:  m.answer,
		Model: m.model,
		Usage: domain.TokenUsage{
			PromptTokens:     len(userPrompt) / 4,
			CompletionTokens: len(m.answer) / 4,
			TotalTokens:      len(userPrompt)/4 + len(m.answer)/4,
		},
	}, nil
}

func (m *MockLLMService) Model() string {
	return m.model
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Helper methods for testing

func (m *MockLLMService) SetAnswer(answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answer = answer
}

func (m *MockLLMService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// LastPrompt returns the most recent user prompt, or "" if none
func (m *MockLLMService) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1][1]
}
