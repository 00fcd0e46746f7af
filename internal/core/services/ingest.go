package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
	"github.com/astra-labs/astra-core/internal/core/ports/driving"
	"github.com/astra-labs/astra-core/internal/runtime"
	"github.com/astra-labs/astra-core/internal/textproc"
)

// Verify interface compliance
var _ driving.IngestService = (*IngestPipeline)(nil)

// ingestEmbedBatchSize is the embedding batch size used during the
// synchronous ingest path
const ingestEmbedBatchSize = 8

// IngestPipeline coordinates the upload-to-index flow:
//  1. Validate file type and size
//  2. Create document record (processing)
//  3. Parse file into text and pages
//  4. Normalize text
//  5. Chunk text (error if no chunks survive)
//  6. Persist chunks and counters (indexed)
//  7. Embed chunk texts in batches
//  8. Upsert vectors
//
// Any failure after step 2 leaves the document in error state with a
// message, removes its vectors best-effort, and keeps partial chunk
// rows for inspection.
type IngestPipeline struct {
	documentStore driven.DocumentStore
	chunkStore    driven.ChunkStore
	vectorStore   driven.VectorStore
	parsers       driven.ParserRegistry
	services      *runtime.Services
	normalizer    *textproc.Normalizer
	chunker       *textproc.Chunker
	logger        *slog.Logger
}

// IngestPipelineConfig holds dependencies for IngestPipeline.
type IngestPipelineConfig struct {
	DocumentStore driven.DocumentStore
	ChunkStore    driven.ChunkStore
	VectorStore   driven.VectorStore
	Parsers       driven.ParserRegistry
	Services      *runtime.Services
	NormalizeCfg  *textproc.NormalizeConfig
	ChunkCfg      *textproc.ChunkConfig
	Logger        *slog.Logger
}

// NewIngestPipeline creates a new ingestion pipeline.
func NewIngestPipeline(cfg IngestPipelineConfig) *IngestPipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	normalizeCfg := textproc.DefaultNormalizeConfig()
	if cfg.NormalizeCfg != nil {
		normalizeCfg = *cfg.NormalizeCfg
	}
	chunkCfg := textproc.DefaultChunkConfig()
	if cfg.ChunkCfg != nil {
		chunkCfg = *cfg.ChunkCfg
	}

	return &IngestPipeline{
		documentStore: cfg.DocumentStore,
		chunkStore:    cfg.ChunkStore,
		vectorStore:   cfg.VectorStore,
		parsers:       cfg.Parsers,
		services:      cfg.Services,
		normalizer:    textproc.NewNormalizer(normalizeCfg),
		chunker:       textproc.NewChunker(chunkCfg),
		logger:        logger,
	}
}

// Ingest runs the full pipeline for one uploaded file.
func (p *IngestPipeline) Ingest(ctx context.Context, req driving.UploadRequest) (*domain.IngestResult, error) {
	startTime := time.Now()

	// Step 1: validate before touching storage
	fileType := domain.FileTypeOf(req.Filename)
	if !domain.AllowedFileTypes[fileType] {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, req.Filename)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrInvalidInput)
	}
	if int64(len(req.Data)) > domain.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes", domain.ErrFileTooLarge, len(req.Data))
	}

	parser := p.parsers.Get(fileType)
	if parser == nil {
		return nil, fmt.Errorf("%w: no parser for %s", domain.ErrUnsupportedFileType, fileType)
	}

	// Step 2: create the document record
	now := time.Now()
	doc := &domain.Document{
		ID:         uuid.NewString(),
		OwnerID:    req.OwnerID,
		Filename:   req.Filename,
		FileType:   fileType,
		FileSize:   int64(len(req.Data)),
		Status:     domain.DocumentStatusProcessing,
		UploadedAt: now,
		UpdatedAt:  now,
	}
	if err := p.documentStore.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	p.logger.Info("ingestion started",
		"doc_id", doc.ID,
		"filename", req.Filename,
		"file_type", fileType,
		"file_size", doc.FileSize,
	)

	// Step 3: parse
	parsed, err := parser.Parse(ctx, req.Data, req.Filename)
	if err != nil {
		return p.failIngest(ctx, doc, fmt.Errorf("failed to parse %s: %w", fileType, err))
	}

	// Step 4: normalize
	text, stats := p.normalizer.Normalize(parsed.Text)

	// Step 5: chunk
	spans := p.chunker.Chunk(text, parsed.Pages)
	if len(spans) == 0 {
		return p.failIngest(ctx, doc, domain.ErrNoChunks)
	}

	// Step 6: persist chunks and counters
	chunks := make([]*domain.Chunk, 0, len(spans))
	for _, span := range spans {
		chunks = append(chunks, &domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Index:      span.Index,
			Text:       span.Text,
			StartChar:  span.StartChar,
			EndChar:    span.EndChar,
			PageNumber: span.PageNumber,
			TokenCount: span.TokenCount,
			CreatedAt:  time.Now(),
		})
	}
	if err := p.chunkStore.SaveBatch(ctx, chunks); err != nil {
		return p.failIngest(ctx, doc, fmt.Errorf("failed to save chunks: %w", err))
	}

	totalPages := parsed.PageCount()
	doc.TotalChunks = len(chunks)
	doc.TotalCharacters = stats.NormalizedChars
	if totalPages > 0 {
		doc.TotalPages = &totalPages
	}
	doc.Status = domain.DocumentStatusIndexed
	if err := p.documentStore.UpdateCounters(ctx, doc.ID, doc.TotalPages, doc.TotalChunks, doc.TotalCharacters, doc.Status); err != nil {
		return p.failIngest(ctx, doc, fmt.Errorf("failed to update counters: %w", err))
	}

	// Steps 7 and 8: embed and upsert
	if err := p.embedAndPersist(ctx, doc, chunks); err != nil {
		return p.failIngest(ctx, doc, err)
	}

	p.logger.Info("ingestion completed",
		"doc_id", doc.ID,
		"chunks", len(chunks),
		"pages", totalPages,
		"characters", stats.NormalizedChars,
		"duration_seconds", time.Since(startTime).Seconds(),
	)

	return &domain.IngestResult{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Status:     domain.DocumentStatusIndexed,
		Stats: domain.IngestStats{
			Chunks:     len(chunks),
			Pages:      totalPages,
			Characters: stats.NormalizedChars,
		},
	}, nil
}

// embedAndPersist generates embeddings in fixed batches and upserts
// them into the vector store.
func (p *IngestPipeline) embedAndPersist(ctx context.Context, doc *domain.Document, chunks []*domain.Chunk) error {
	embeddingService := p.services.EmbeddingService()
	if embeddingService == nil {
		return fmt.Errorf("%w: no embedding service configured", domain.ErrServiceUnavailable)
	}

	records := make([]domain.VectorRecord, 0, len(chunks))
	for start := 0; start < len(chunks); start += ingestEmbedBatchSize {
		end := start + ingestEmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, 0, len(batch))
		for _, chunk := range batch {
			texts = append(texts, chunk.Text)
		}

		embeddings, err := embeddingService.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(embeddings), len(batch))
		}

		for i, chunk := range batch {
			records = append(records, domain.VectorRecord{
				ID:        domain.VectorID(doc.ID, chunk.Index),
				Embedding: embeddings[i],
				Text:      chunk.Text,
				Metadata: domain.VectorMetadata{
					DocumentID:  doc.ID,
					ChunkIndex:  chunk.Index,
					ChunkUUID:   chunk.ID,
					StartChar:   chunk.StartChar,
					EndChar:     chunk.EndChar,
					ContentHash: contentHash(chunk.Text),
					PageNumber:  chunk.PageNumber,
					OwnerID:     doc.OwnerID,
				},
			})
		}
	}

	if err := p.vectorStore.Upsert(ctx, records); err != nil {
		return fmt.Errorf("failed to persist embeddings: %w", err)
	}
	return nil
}

// failIngest marks the document as failed and cleans up its vectors.
// Chunk rows are intentionally kept for inspection.
func (p *IngestPipeline) failIngest(ctx context.Context, doc *domain.Document, err error) (*domain.IngestResult, error) {
	p.logger.Error("ingestion failed", "doc_id", doc.ID, "filename", doc.Filename, "error", err)

	if updateErr := p.documentStore.UpdateStatus(ctx, doc.ID, domain.DocumentStatusError, err.Error()); updateErr != nil {
		p.logger.Warn("failed to mark document as errored", "doc_id", doc.ID, "error", updateErr)
	}
	if deleteErr := p.vectorStore.DeleteByDocument(ctx, doc.ID); deleteErr != nil {
		p.logger.Warn("failed to clean up vectors", "doc_id", doc.ID, "error", deleteErr)
	}

	return nil, err
}

// contentHash returns the truncated sha256 hex digest stored in vector
// metadata for change detection.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}
