package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
	"github.com/astra-labs/astra-core/internal/core/ports/driving"
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// documentService implements the DocumentService interface
type documentService struct {
	documentStore driven.DocumentStore
	chunkStore    driven.ChunkStore
	vectorStore   driven.VectorStore
	logger        *slog.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	documentStore driven.DocumentStore,
	chunkStore driven.ChunkStore,
	vectorStore driven.VectorStore,
	logger *slog.Logger,
) driving.DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentService{
		documentStore: documentStore,
		chunkStore:    chunkStore,
		vectorStore:   vectorStore,
		logger:        logger,
	}
}

// Get retrieves a document by ID
func (s *documentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.documentStore.Get(ctx, id)
}

// List retrieves documents for an owner with pagination
func (s *documentService) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return s.documentStore.List(ctx, ownerID, limit, offset)
}

// Progress reports ingestion progress for a document
func (s *documentService) Progress(ctx context.Context, id string) (*domain.DocumentProgress, error) {
	doc, err := s.documentStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.DocumentProgress{
		DocumentID:  doc.ID,
		Status:      doc.Status,
		TotalChunks: doc.TotalChunks,
		Error:       doc.ErrorMessage,
	}, nil
}

// Chunks retrieves all chunks for a document ordered by index
func (s *documentService) Chunks(ctx context.Context, id string) ([]*domain.Chunk, error) {
	// Verify the document exists so a missing id is a not-found, not
	// an empty list
	if _, err := s.documentStore.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.chunkStore.GetByDocument(ctx, id)
}

// Chunk retrieves one chunk by document and chunk index
func (s *documentService) Chunk(ctx context.Context, id string, index int) (*domain.Chunk, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: chunk index must not be negative", domain.ErrInvalidInput)
	}
	return s.chunkStore.GetByIndex(ctx, id, index)
}

// Delete removes a document, its chunks and its vectors. Vector
// deletion runs first so a partial failure never leaves orphaned
// embeddings behind a deleted database row.
func (s *documentService) Delete(ctx context.Context, id string) error {
	if _, err := s.documentStore.Get(ctx, id); err != nil {
		return err
	}

	if err := s.vectorStore.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}

	if err := s.chunkStore.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	if err := s.documentStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	s.logger.Info("document deleted", "doc_id", id)
	return nil
}

// Count returns the total number of documents for an owner
func (s *documentService) Count(ctx context.Context, ownerID string) (int, error) {
	return s.documentStore.Count(ctx, ownerID)
}
