package mocks

import (
	"context"
	"sync"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// MockQueryLogStore is a mock implementation of QueryLogStore for testing
type MockQueryLogStore struct {
	mu   sync.RWMutex
	logs []*domain.QueryLog
}

// NewMockQueryLogStore creates a new MockQueryLogStore
func NewMockQueryLogStore() *MockQueryLogStore {
	return &MockQueryLogStore{}
}

func (m *MockQueryLogStore) Save(ctx context.Context, log *domain.QueryLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *log
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *MockQueryLogStore) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.QueryLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.QueryLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		if ownerID == "" || m.logs[i].OwnerID == ownerID {
			cp := *m.logs[i]
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of saved logs
func (m *MockQueryLogStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logs)
}
