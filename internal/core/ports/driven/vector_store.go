package driven

import (
	"context"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// VectorStore handles embedding persistence and similarity search.
// Records are keyed by the composite id "{document_id}_{chunk_index}",
// so re-upserting a re-ingested document overwrites rather than
// duplicates.
type VectorStore interface {
	// Upsert inserts or replaces records by id
	Upsert(ctx context.Context, records []domain.VectorRecord) error

	// DeleteByDocument removes every record for a document
	DeleteByDocument(ctx context.Context, documentID string) error

	// ExistingIDs reports which of the candidate ids are already stored
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)

	// Query returns the topK most similar records, best first.
	// Similarity is cosine, in [0, 1]. The where filter matches stored
	// metadata fields exactly; a nil filter matches everything.
	Query(ctx context.Context, embedding []float32, topK int, where map[string]string) ([]domain.RetrievedChunk, error)

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)

	// Ping checks if the vector backend is usable
	Ping(ctx context.Context) error
}
