package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
	"github.com/astra-labs/astra-core/internal/core/ports/driving"
	rt "github.com/astra-labs/astra-core/internal/runtime"
)

// Verify interface compliance
var _ driving.IndexService = (*Indexer)(nil)

// indexLockTTL bounds how long one indexing run may hold the
// per-document lock before another worker can claim it
const indexLockTTL = 10 * time.Minute

// Indexer generates and persists embeddings for chunks already stored
// in the database. Batches adapt to memory pressure: they start at
// domain.IndexBatchInitial, halve on out-of-memory failures, and never
// grow back within a run. All embeddings are collected and upserted in
// a single call at the end.
type Indexer struct {
	documentStore driven.DocumentStore
	chunkStore    driven.ChunkStore
	vectorStore   driven.VectorStore
	services      *rt.Services
	lock          driven.DistributedLock
	memoryMB      func() float64
	logger        *slog.Logger
}

// IndexerConfig holds dependencies for Indexer.
type IndexerConfig struct {
	DocumentStore driven.DocumentStore
	ChunkStore    driven.ChunkStore
	VectorStore   driven.VectorStore
	Services      *rt.Services
	Lock          driven.DistributedLock

	// MemoryMB overrides the process memory gauge, used in tests
	MemoryMB func() float64

	Logger *slog.Logger
}

// NewIndexer creates a new embedding indexer.
func NewIndexer(cfg IndexerConfig) *Indexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	memoryMB := cfg.MemoryMB
	if memoryMB == nil {
		memoryMB = processMemoryMB
	}

	return &Indexer{
		documentStore: cfg.DocumentStore,
		chunkStore:    cfg.ChunkStore,
		vectorStore:   cfg.VectorStore,
		services:      cfg.Services,
		lock:          cfg.Lock,
		memoryMB:      memoryMB,
		logger:        logger,
	}
}

// Index runs a full indexing pass over one document's chunks.
func (ix *Indexer) Index(ctx context.Context, documentID string, skipExisting bool) (*domain.IndexReport, error) {
	startTime := time.Now()
	metrics := domain.IndexMetrics{Errors: []string{}}

	embeddingService := ix.services.EmbeddingService()
	if embeddingService == nil {
		return nil, fmt.Errorf("%w: no embedding service configured", domain.ErrServiceUnavailable)
	}

	doc, err := ix.documentStore.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	// One indexing run per document at a time
	if ix.lock != nil {
		lockName := "index:" + documentID
		acquired, err := ix.lock.Acquire(ctx, lockName, indexLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire index lock: %w", err)
		}
		if !acquired {
			return nil, fmt.Errorf("%w: document %s is already being indexed", domain.ErrAlreadyExists, documentID)
		}
		defer func() {
			if releaseErr := ix.lock.Release(context.WithoutCancel(ctx), lockName); releaseErr != nil {
				ix.logger.Warn("failed to release index lock", "doc_id", documentID, "error", releaseErr)
			}
		}()
	}

	chunks, err := ix.chunkStore.GetByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	if len(chunks) == 0 {
		ix.logger.Warn("no chunks found for document", "doc_id", documentID)
		return ix.report(ctx, documentID, 0, 0, startTime, metrics), nil
	}

	toIndex := chunks
	if skipExisting {
		toIndex, err = ix.filterExisting(ctx, documentID, chunks)
		if err != nil {
			ix.logger.Warn("could not check existing embeddings", "doc_id", documentID, "error", err)
			toIndex = chunks
		}
		if skipped := len(chunks) - len(toIndex); skipped > 0 {
			ix.logger.Info("skipping already indexed chunks", "doc_id", documentID, "skipped", skipped)
		}
	}

	if len(toIndex) == 0 {
		ix.logger.Info("all chunks already indexed", "doc_id", documentID)
		return ix.report(ctx, documentID, 0, len(chunks), startTime, metrics), nil
	}

	ix.logger.Info("indexing chunks",
		"doc_id", documentID,
		"total_chunks", len(chunks),
		"to_index", len(toIndex),
		"batch_size", domain.IndexBatchInitial,
	)

	records, batchTimes := ix.embedBatches(ctx, embeddingService, doc, toIndex, &metrics)

	// Single persistence pass at the end
	chunksIndexed := 0
	if len(records) > 0 {
		persistStart := time.Now()
		if err := ix.vectorStore.Upsert(ctx, records); err != nil {
			metrics.Errors = append(metrics.Errors, fmt.Sprintf("failed to persist embeddings: %v", err))
			return nil, fmt.Errorf("failed to persist embeddings: %w", err)
		}
		metrics.PersistenceTimeSeconds = time.Since(persistStart).Seconds()
		chunksIndexed = len(records)
	}

	if len(batchTimes) > 0 {
		var total float64
		for _, bt := range batchTimes {
			total += bt
		}
		metrics.AvgBatchTimeSeconds = total / float64(len(batchTimes))
	}

	report := ix.report(ctx, documentID, chunksIndexed, len(chunks), startTime, metrics)

	ix.logger.Info("indexing completed",
		"doc_id", documentID,
		"chunks_indexed", report.ChunksIndexed,
		"total_chunks", report.TotalChunks,
		"total_time_seconds", report.TotalTimeSeconds,
		"peak_memory_mb", metrics.PeakMemoryMB,
		"errors", len(metrics.Errors),
	)

	return report, nil
}

// embedBatches walks the chunk list with an adaptive batch size and
// returns the accumulated vector records and per-batch timings. It
// never fails outright: batch errors are recorded in metrics, and an
// OOM at the minimum batch size stops embedding so that the records
// gathered so far can still be persisted.
func (ix *Indexer) embedBatches(
	ctx context.Context,
	embeddingService driven.EmbeddingService,
	doc *domain.Document,
	chunks []*domain.Chunk,
	metrics *domain.IndexMetrics,
) ([]domain.VectorRecord, []float64) {
	batchSize := domain.IndexBatchInitial
	records := make([]domain.VectorRecord, 0, len(chunks))
	var batchTimes []float64

	pos := 0
	batchNum := 0
	for pos < len(chunks) {
		end := pos + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[pos:end]
		batchNum++
		batchStart := time.Now()

		texts := make([]string, 0, len(batch))
		for _, chunk := range batch {
			texts = append(texts, chunk.Text)
		}

		memoryBefore := ix.memoryMB()

		embedStart := time.Now()
		embeddings, err := embeddingService.Embed(ctx, texts)
		metrics.EmbeddingTimeSeconds += time.Since(embedStart).Seconds()

		if err != nil && errors.Is(err, domain.ErrOutOfMemory) {
			if batchSize <= domain.IndexBatchMin {
				errMsg := fmt.Sprintf("OOM at minimum batch size %d", domain.IndexBatchMin)
				ix.logger.Error(errMsg, "doc_id", doc.ID)
				metrics.Errors = append(metrics.Errors, errMsg)
				break
			}

			newSize := batchSize / 2
			if newSize < domain.IndexBatchMin {
				newSize = domain.IndexBatchMin
			}
			ix.logger.Warn("OOM during embedding, reducing batch size",
				"doc_id", doc.ID,
				"old_batch_size", batchSize,
				"new_batch_size", newSize,
			)
			metrics.Errors = append(metrics.Errors,
				fmt.Sprintf("OOM on batch %d: reduced batch size from %d to %d and retried", batchNum, batchSize, newSize))
			batchSize = newSize

			// Retry the same span once at the reduced size
			end = pos + batchSize
			if end > len(chunks) {
				end = len(chunks)
			}
			batch = chunks[pos:end]
			texts = texts[:len(batch)]

			embedStart = time.Now()
			embeddings, err = embeddingService.Embed(ctx, texts)
			metrics.EmbeddingTimeSeconds += time.Since(embedStart).Seconds()
		}

		if err != nil {
			errMsg := fmt.Sprintf("error processing batch %d: %v", batchNum, err)
			ix.logger.Error("batch failed", "doc_id", doc.ID, "batch", batchNum, "error", err)
			metrics.Errors = append(metrics.Errors, errMsg)
			pos = end
			continue
		}

		memoryAfter := ix.memoryMB()
		if memoryBefore > metrics.PeakMemoryMB {
			metrics.PeakMemoryMB = memoryBefore
		}
		if memoryAfter > metrics.PeakMemoryMB {
			metrics.PeakMemoryMB = memoryAfter
		}

		if len(embeddings) != len(batch) {
			errMsg := fmt.Sprintf("batch %d returned %d embeddings for %d chunks", batchNum, len(embeddings), len(batch))
			metrics.Errors = append(metrics.Errors, errMsg)
			pos = end
			continue
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

		batchTime := time.Since(batchStart).Seconds()
		batchTimes = append(batchTimes, batchTime)
		metrics.BatchesProcessed++

		pos = end
	}

	return records, batchTimes
}

// filterExisting drops chunks whose composite vector id is already in
// the store.
func (ix *Indexer) filterExisting(ctx context.Context, documentID string, chunks []*domain.Chunk) ([]*domain.Chunk, error) {
	ids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		ids = append(ids, domain.VectorID(documentID, chunk.Index))
	}

	existing, err := ix.vectorStore.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	remaining := make([]*domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if !existing[domain.VectorID(documentID, chunk.Index)] {
			remaining = append(remaining, chunk)
		}
	}
	return remaining, nil
}

func (ix *Indexer) report(ctx context.Context, documentID string, indexed, total int, startTime time.Time, metrics domain.IndexMetrics) *domain.IndexReport {
	collectionSize, err := ix.vectorStore.Count(ctx)
	if err != nil {
		ix.logger.Warn("failed to read collection size", "error", err)
	}

	return &domain.IndexReport{
		DocumentID:       documentID,
		ChunksIndexed:    indexed,
		TotalChunks:      total,
		TotalTimeSeconds: time.Since(startTime).Seconds(),
		CollectionSize:   collectionSize,
		Metrics:          metrics,
	}
}

// processMemoryMB samples the Go heap as a proxy for process memory
func processMemoryMB() float64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return float64(stats.Alloc) / 1024 / 1024
}
