package runtime

import (
	"context"
	"sync"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Services is the registry of AI backends the indexing and query paths
// depend on. Either slot may be nil when the corresponding provider is
// not configured; callers check availability through the runtime config
// flags before using them. Safe for concurrent use.
type Services struct {
	mu sync.RWMutex

	config *domain.RuntimeConfig

	embedding driven.EmbeddingService
	llm       driven.LLMService
}

// NewServices returns an empty registry bound to the given runtime config.
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{config: config}
}

// Config returns the runtime configuration backing the availability flags.
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current embedding backend, or nil.
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedding
}

// LLMService returns the current LLM backend, or nil.
func (s *Services) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llm
}

// SetEmbeddingService swaps in a new embedding backend, closing the
// previous one and updating the availability flag. Passing nil marks
// embeddings unavailable.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embedding != nil {
		_ = s.embedding.Close()
	}
	s.embedding = svc
	s.config.SetEmbeddingAvailable(svc != nil)
}

// SetLLMService swaps in a new LLM backend, closing the previous one
// and updating the availability flag. Passing nil marks answer
// generation unavailable.
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.llm != nil {
		_ = s.llm.Close()
	}
	s.llm = svc
	s.config.SetLLMAvailable(svc != nil)
}

// Close releases both backends and clears the availability flags.
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embedding != nil {
		_ = s.embedding.Close()
		s.embedding = nil
	}
	if s.llm != nil {
		_ = s.llm.Close()
		s.llm = nil
	}

	s.config.SetEmbeddingAvailable(false)
	s.config.SetLLMAvailable(false)
	return nil
}

// ValidateAndSetEmbedding probes the backend before installing it, so a
// misconfigured provider never becomes the active embedding service.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}
	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}
	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM probes the backend before installing it.
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc == nil {
		s.SetLLMService(nil)
		return nil
	}
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return err
	}
	s.SetLLMService(svc)
	return nil
}
