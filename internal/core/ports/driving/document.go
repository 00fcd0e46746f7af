package driving

import (
	"context"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// DocumentService provides read and delete access to stored documents
type DocumentService interface {
	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// List retrieves documents for an owner with pagination
	List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error)

	// Progress reports ingestion progress for a document
	Progress(ctx context.Context, id string) (*domain.DocumentProgress, error)

	// Chunks retrieves all chunks for a document ordered by index
	Chunks(ctx context.Context, id string) ([]*domain.Chunk, error)

	// Chunk retrieves one chunk by document and chunk index
	Chunk(ctx context.Context, id string, index int) (*domain.Chunk, error)

	// Delete removes a document, its chunks and its vectors
	Delete(ctx context.Context, id string) error

	// Count returns the total number of documents for an owner
	Count(ctx context.Context, ownerID string) (int, error)
}
