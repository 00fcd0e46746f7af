package driving

import (
	"context"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// UploadRequest carries one uploaded file through ingestion
type UploadRequest struct {
	OwnerID  string
	Filename string
	Data     []byte
}

// IngestService runs the upload-to-index pipeline
type IngestService interface {
	// Ingest validates, parses, chunks, persists and embeds one upload.
	// On failure after document creation the document is left in error
	// state and the error is returned.
	Ingest(ctx context.Context, req UploadRequest) (*domain.IngestResult, error)
}

// IndexService embeds and indexes the stored chunks of a document
type IndexService interface {
	// Index runs a full indexing pass over a document's chunks.
	// With skipExisting, chunks already present in the vector store
	// are not re-embedded.
	Index(ctx context.Context, documentID string, skipExisting bool) (*domain.IndexReport, error)
}
