package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

type stubEmbedder struct {
	healthErr error
	closed    bool
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return nil, nil
}

func (s *stubEmbedder) Dimensions() int { return 384 }

func (s *stubEmbedder) Model() string { return "stub-embed" }

func (s *stubEmbedder) HealthCheck(context.Context) error { return s.healthErr }

func (s *stubEmbedder) Close() error {
	s.closed = true
	return nil
}

type stubLLM struct {
	pingErr error
	closed  bool
}

func (s *stubLLM) Answer(ctx context.Context, systemPrompt, userPrompt string) (*domain.LLMAnswer, error) {
	return &domain.LLMAnswer{Text: "answer", Model: "stub-llm"}, nil
}

func (s *stubLLM) Model() string { return "stub-llm" }

func (s *stubLLM) Ping(context.Context) error { return s.pingErr }

func (s *stubLLM) Close() error {
	s.closed = true
	return nil
}

func newTestServices() (*Services, *domain.RuntimeConfig) {
	cfg := domain.NewRuntimeConfig("postgres")
	return NewServices(cfg), cfg
}

func TestServicesStartEmpty(t *testing.T) {
	services, cfg := newTestServices()

	if services.Config() != cfg {
		t.Error("Config should return the config passed to NewServices")
	}
	if services.EmbeddingService() != nil {
		t.Error("no embedding backend should be registered initially")
	}
	if services.LLMService() != nil {
		t.Error("no LLM backend should be registered initially")
	}
	if cfg.EmbeddingAvailable() || cfg.LLMAvailable() {
		t.Error("availability flags should start false")
	}
}

func TestSetEmbeddingServiceTogglesAvailability(t *testing.T) {
	services, cfg := newTestServices()

	backend := &stubEmbedder{}
	services.SetEmbeddingService(backend)

	if services.EmbeddingService() == nil {
		t.Fatal("embedding backend should be registered")
	}
	if !cfg.EmbeddingAvailable() {
		t.Error("embedding availability flag should be set")
	}

	services.SetEmbeddingService(nil)
	if services.EmbeddingService() != nil {
		t.Error("embedding backend should be cleared")
	}
	if cfg.EmbeddingAvailable() {
		t.Error("embedding availability flag should be cleared")
	}
	if !backend.closed {
		t.Error("replaced backend should be closed")
	}
}

func TestSetLLMServiceTogglesAvailability(t *testing.T) {
	services, cfg := newTestServices()

	backend := &stubLLM{}
	services.SetLLMService(backend)

	if services.LLMService() == nil {
		t.Fatal("LLM backend should be registered")
	}
	if !cfg.LLMAvailable() {
		t.Error("LLM availability flag should be set")
	}

	services.SetLLMService(nil)
	if services.LLMService() != nil {
		t.Error("LLM backend should be cleared")
	}
	if cfg.LLMAvailable() {
		t.Error("LLM availability flag should be cleared")
	}
	if !backend.closed {
		t.Error("replaced backend should be closed")
	}
}

func TestReplacingBackendClosesPrevious(t *testing.T) {
	services, _ := newTestServices()

	first := &stubEmbedder{}
	second := &stubEmbedder{}

	services.SetEmbeddingService(first)
	services.SetEmbeddingService(second)

	if !first.closed {
		t.Error("previous backend should be closed on replacement")
	}
	if second.closed {
		t.Error("active backend should stay open")
	}
}

func TestValidateAndSetEmbedding(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy backend is installed", func(t *testing.T) {
		services, cfg := newTestServices()
		if err := services.ValidateAndSetEmbedding(ctx, &stubEmbedder{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if services.EmbeddingService() == nil || !cfg.EmbeddingAvailable() {
			t.Error("healthy backend should be installed and flagged available")
		}
	})

	t.Run("unhealthy backend is rejected and closed", func(t *testing.T) {
		services, cfg := newTestServices()
		backend := &stubEmbedder{healthErr: errors.New("connection refused")}
		if err := services.ValidateAndSetEmbedding(ctx, backend); err == nil {
			t.Fatal("expected health check error")
		}
		if !backend.closed {
			t.Error("rejected backend should be closed")
		}
		if services.EmbeddingService() != nil || cfg.EmbeddingAvailable() {
			t.Error("rejected backend must not be installed")
		}
	})

	t.Run("nil clears the slot", func(t *testing.T) {
		services, _ := newTestServices()
		if err := services.ValidateAndSetEmbedding(ctx, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestValidateAndSetLLM(t *testing.T) {
	ctx := context.Background()

	t.Run("reachable backend is installed", func(t *testing.T) {
		services, cfg := newTestServices()
		if err := services.ValidateAndSetLLM(ctx, &stubLLM{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if services.LLMService() == nil || !cfg.LLMAvailable() {
			t.Error("reachable backend should be installed and flagged available")
		}
	})

	t.Run("unreachable backend is rejected and closed", func(t *testing.T) {
		services, cfg := newTestServices()
		backend := &stubLLM{pingErr: errors.New("connection refused")}
		if err := services.ValidateAndSetLLM(ctx, backend); err == nil {
			t.Fatal("expected ping error")
		}
		if !backend.closed {
			t.Error("rejected backend should be closed")
		}
		if services.LLMService() != nil || cfg.LLMAvailable() {
			t.Error("rejected backend must not be installed")
		}
	})
}

func TestCloseReleasesBothBackends(t *testing.T) {
	services, cfg := newTestServices()

	embed := &stubEmbedder{}
	llm := &stubLLM{}
	services.SetEmbeddingService(embed)
	services.SetLLMService(llm)

	if err := services.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !embed.closed || !llm.closed {
		t.Error("both backends should be closed")
	}
	if cfg.EmbeddingAvailable() || cfg.LLMAvailable() {
		t.Error("availability flags should be cleared after Close")
	}
}
