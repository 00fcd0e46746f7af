package mocks

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// MockVectorStore is a mock implementation of VectorStore for testing.
// Similarity search is real cosine over the stored embeddings.
type MockVectorStore struct {
	mu      sync.RWMutex
	records map[string]domain.VectorRecord

	// Custom behavior hooks (optional)
	UpsertFn func(records []domain.VectorRecord) error
	QueryFn  func(embedding []float32, topK int, where map[string]string) ([]domain.RetrievedChunk, error)
}

// NewMockVectorStore creates a new MockVectorStore
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{
		records: make(map[string]domain.VectorRecord),
	}
}

func (m *MockVectorStore) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if m.UpsertFn != nil {
		if err := m.UpsertFn(records); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *MockVectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.Metadata.DocumentID == documentID {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *MockVectorStore) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	existing := make(map[string]bool)
	for _, id := range ids {
		if _, ok := m.records[id]; ok {
			existing[id] = true
		}
	}
	return existing, nil
}

func (m *MockVectorStore) Query(ctx context.Context, embedding []float32, topK int, where map[string]string) ([]domain.RetrievedChunk, error) {
	if m.QueryFn != nil {
		return m.QueryFn(embedding, topK, where)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []domain.RetrievedChunk
	for _, r := range m.records {
		if !matchesWhere(r.Metadata, where) {
			continue
		}
		hits = append(hits, domain.RetrievedChunk{
			DocumentID: r.Metadata.DocumentID,
			ChunkIndex: r.Metadata.ChunkIndex,
			ChunkUUID:  r.Metadata.ChunkUUID,
			Text:       r.Text,
			StartChar:  r.Metadata.StartChar,
			EndChar:    r.Metadata.EndChar,
			PageNumber: r.Metadata.PageNumber,
			Similarity: cosine(embedding, r.Embedding),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *MockVectorStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *MockVectorStore) Ping(ctx context.Context) error {
	return nil
}

// Helper methods for testing

// Has reports whether a record with the given id is stored
func (m *MockVectorStore) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[id]
	return ok
}

// Record returns a stored record for assertions
func (m *MockVectorStore) Record(id string) (domain.VectorRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	return r, ok
}

func matchesWhere(meta domain.VectorMetadata, where map[string]string) bool {
	for key, want := range where {
		var got string
		switch key {
		case "doc_id":
			got = meta.DocumentID
		case "owner_id":
			got = meta.OwnerID
		case "chunk_id":
			got = strconv.Itoa(meta.ChunkIndex)
		case "content_hash":
			got = meta.ContentHash
		default:
			return false
		}
		if !strings.EqualFold(got, want) {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
