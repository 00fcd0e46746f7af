package driven

import (
	"context"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// DocumentStore handles document persistence (PostgreSQL)
type DocumentStore interface {
	// Save creates or updates a document
	Save(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// List retrieves documents for an owner with pagination, newest first
	List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error)

	// UpdateStatus sets the lifecycle status and error message
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errorMessage string) error

	// UpdateCounters sets the post-chunking totals and status
	UpdateCounters(ctx context.Context, id string, totalPages *int, totalChunks, totalCharacters int, status domain.DocumentStatus) error

	// Delete deletes a document. Chunk rows cascade.
	Delete(ctx context.Context, id string) error

	// Count returns total document count for an owner
	Count(ctx context.Context, ownerID string) (int, error)
}

// ChunkStore handles chunk persistence (PostgreSQL)
type ChunkStore interface {
	// Save creates or updates a chunk
	Save(ctx context.Context, chunk *domain.Chunk) error

	// SaveBatch saves multiple chunks in a transaction
	SaveBatch(ctx context.Context, chunks []*domain.Chunk) error

	// GetByDocument retrieves all chunks for a document ordered by index
	GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error)

	// GetByIndex retrieves one chunk by document and chunk index
	GetByIndex(ctx context.Context, documentID string, index int) (*domain.Chunk, error)

	// DeleteByDocument deletes all chunks for a document
	DeleteByDocument(ctx context.Context, documentID string) error

	// CountByDocument returns the chunk count for a document
	CountByDocument(ctx context.Context, documentID string) (int, error)
}

// QueryLogStore persists query analytics records (PostgreSQL)
type QueryLogStore interface {
	// Save appends one query log record
	Save(ctx context.Context, log *domain.QueryLog) error

	// List retrieves recent query logs for an owner, newest first
	List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.QueryLog, error)
}
