package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*Store)(nil)

const collectionName = "documents"

// Store implements VectorStore using chromem-go, an embedded vector
// database. With a persistence path the collection survives restarts;
// without one it lives in memory only.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewStore creates a vector store persisted under path.
// An empty path creates an in-memory store.
func NewStore(path string) (*Store, error) {
	var db *chromem.DB
	var err error

	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector db at %s: %w", path, err)
		}
	}

	// The embedding func is never used: every document and query
	// arrives with a precomputed embedding.
	collection, err := db.GetOrCreateCollection(collectionName, nil, noEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", collectionName, err)
	}

	return &Store{db: db, collection: collection}, nil
}

func noEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("embeddings must be precomputed")
}

// Upsert inserts or replaces records by id.
func (s *Store) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	for _, rec := range records {
		if rec.ID == "" {
			return errors.New("vector record id is required")
		}
		if len(rec.Embedding) == 0 {
			return fmt.Errorf("vector record %s has no embedding", rec.ID)
		}

		doc := chromem.Document{
			ID:        rec.ID,
			Content:   rec.Text,
			Embedding: rec.Embedding,
			Metadata:  encodeMetadata(rec.Metadata),
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", rec.ID, err)
		}
	}
	return nil
}

// DeleteByDocument removes every record for a document.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return errors.New("document id is required")
	}
	if s.collection.Count() == 0 {
		return nil
	}

	where := map[string]string{"doc_id": documentID}
	if err := s.collection.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("failed to delete vectors for document %s: %w", documentID, err)
	}
	return nil
}

// ExistingIDs reports which of the candidate ids are already stored.
// chromem has no bulk id lookup, so each candidate is probed directly.
func (s *Store) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := s.collection.GetByID(ctx, id); err == nil {
			existing[id] = true
		}
	}
	return existing, nil
}

// Query returns the topK most similar records, best first.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int, where map[string]string) ([]domain.RetrievedChunk, error) {
	if len(embedding) == 0 {
		return nil, errors.New("query embedding is required")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	// chromem rejects nResults larger than the collection
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	chunks := make([]domain.RetrievedChunk, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, resultToChunk(res))
	}
	return chunks, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Ping checks if the vector backend is usable.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil || s.collection == nil {
		return errors.New("vector store not initialized")
	}
	return nil
}

// encodeMetadata flattens metadata to the string map chromem stores.
func encodeMetadata(m domain.VectorMetadata) map[string]string {
	meta := map[string]string{
		"doc_id":       m.DocumentID,
		"chunk_id":     strconv.Itoa(m.ChunkIndex),
		"chunk_uuid":   m.ChunkUUID,
		"start_char":   strconv.Itoa(m.StartChar),
		"end_char":     strconv.Itoa(m.EndChar),
		"content_hash": m.ContentHash,
	}
	if m.PageNumber != nil {
		meta["page_number"] = strconv.Itoa(*m.PageNumber)
	}
	if m.OwnerID != "" {
		meta["owner_id"] = m.OwnerID
	}
	return meta
}

func resultToChunk(res chromem.Result) domain.RetrievedChunk {
	chunk := domain.RetrievedChunk{
		DocumentID: res.Metadata["doc_id"],
		ChunkUUID:  res.Metadata["chunk_uuid"],
		Text:       res.Content,
		Similarity: float64(res.Similarity),
	}
	if chunk.Similarity < 0 {
		chunk.Similarity = 0
	}
	chunk.ChunkIndex, _ = strconv.Atoi(res.Metadata["chunk_id"])
	chunk.StartChar, _ = strconv.Atoi(res.Metadata["start_char"])
	chunk.EndChar, _ = strconv.Atoi(res.Metadata["end_char"])
	if raw, ok := res.Metadata["page_number"]; ok {
		if page, err := strconv.Atoi(raw); err == nil {
			chunk.PageNumber = &page
		}
	}
	return chunk
}
