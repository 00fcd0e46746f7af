package mocks

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	failNext   bool

	// oomBatches holds batch sizes that fail with ErrOutOfMemory.
	// oomBudget limits how many OOM failures fire before embedding
	// succeeds regardless (0 = unlimited while sizes match).
	// oomAfter delays OOM failures until that many calls completed.
	oomBatches map[int]bool
	oomFired   int
	oomBudget  int
	oomAfter   int

	// Calls records the batch sizes of every Embed invocation
	Calls []int
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 384,
		model:      "mock-embedding-model",
		oomBatches: make(map[int]bool),
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, len(texts))
	if m.failNext {
		m.failNext = false
		m.mu.Unlock()
		return nil, context.DeadlineExceeded
	}
	if m.oomBatches[len(texts)] && len(m.Calls) > m.oomAfter && (m.oomBudget == 0 || m.oomFired < m.oomBudget) {
		m.oomFired++
		m.mu.Unlock()
		return nil, domain.ErrOutOfMemory
	}
	m.mu.Unlock()

	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.generateEmbedding(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	m.mu.Lock()
	if m.failNext {
		m.failNext = false
		m.mu.Unlock()
		return nil, context.DeadlineExceeded
	}
	m.mu.Unlock()
	return m.generateEmbedding(query), nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

// generateEmbedding generates a deterministic embedding based on text hash
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		// Generate deterministic pseudo-random values
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000) / 1000.0
	}
	return embedding
}

// Helper methods for testing

func (m *MockEmbeddingService) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.dimensions = dim
}

// FailOOMAtBatchSize makes Embed return ErrOutOfMemory whenever the
// batch has exactly the given size
func (m *MockEmbeddingService) FailOOMAtBatchSize(sizes ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sizes {
		m.oomBatches[s] = true
	}
}

// SetOOMBudget caps how many OOM failures fire in total
func (m *MockEmbeddingService) SetOOMBudget(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oomBudget = n
}

// SetOOMAfter delays OOM failures until the given number of Embed
// calls have completed, so earlier batches succeed
func (m *MockEmbeddingService) SetOOMAfter(calls int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oomAfter = calls
}
