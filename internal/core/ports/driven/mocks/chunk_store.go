package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// MockChunkStore is a mock implementation of ChunkStore for testing
type MockChunkStore struct {
	mu         sync.RWMutex
	chunks     map[string]*domain.Chunk
	byDocument map[string][]*domain.Chunk

	// Custom behavior hooks (optional)
	SaveBatchFn func(chunks []*domain.Chunk) error
}

// NewMockChunkStore creates a new MockChunkStore
func NewMockChunkStore() *MockChunkStore {
	return &MockChunkStore{
		chunks:     make(map[string]*domain.Chunk),
		byDocument: make(map[string][]*domain.Chunk),
	}
}

func (m *MockChunkStore) Save(ctx context.Context, chunk *domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(chunk)
}

func (m *MockChunkStore) save(chunk *domain.Chunk) error {
	cp := *chunk
	m.chunks[chunk.ID] = &cp

	found := false
	for i, c := range m.byDocument[chunk.DocumentID] {
		if c.ID == chunk.ID {
			m.byDocument[chunk.DocumentID][i] = &cp
			found = true
			break
		}
	}
	if !found {
		m.byDocument[chunk.DocumentID] = append(m.byDocument[chunk.DocumentID], &cp)
	}
	return nil
}

func (m *MockChunkStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	if m.SaveBatchFn != nil {
		if err := m.SaveBatchFn(chunks); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chunk := range chunks {
		if err := m.save(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chunks := make([]*domain.Chunk, len(m.byDocument[documentID]))
	for i, c := range m.byDocument[documentID] {
		cp := *c
		chunks[i] = &cp
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Index < chunks[j].Index
	})
	return chunks, nil
}

func (m *MockChunkStore) GetByIndex(ctx context.Context, documentID string, index int) (*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.byDocument[documentID] {
		if c.Index == index {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byDocument[documentID] {
		delete(m.chunks, c.ID)
	}
	delete(m.byDocument, documentID)
	return nil
}

func (m *MockChunkStore) CountByDocument(ctx context.Context, documentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byDocument[documentID]), nil
}
