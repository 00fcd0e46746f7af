package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven/mocks"
	"github.com/astra-labs/astra-core/internal/core/ports/driving"
	"github.com/astra-labs/astra-core/internal/parsers"
	rt "github.com/astra-labs/astra-core/internal/runtime"
)

type ingestFixture struct {
	pipeline      *IngestPipeline
	documentStore *mocks.MockDocumentStore
	chunkStore    *mocks.MockChunkStore
	vectorStore   *mocks.MockVectorStore
	embedding     *mocks.MockEmbeddingService
}

func setupIngest(t *testing.T) *ingestFixture {
	t.Helper()

	documentStore := mocks.NewMockDocumentStore()
	chunkStore := mocks.NewMockChunkStore()
	vectorStore := mocks.NewMockVectorStore()
	embedding := mocks.NewMockEmbeddingService()

	registry := parsers.NewRegistry()
	registry.Register(parsers.NewTextParser())

	services := rt.NewServices(domain.NewRuntimeConfig(""))
	services.SetEmbeddingService(embedding)

	pipeline := NewIngestPipeline(IngestPipelineConfig{
		DocumentStore: documentStore,
		ChunkStore:    chunkStore,
		VectorStore:   vectorStore,
		Parsers:       registry,
		Services:      services,
	})

	return &ingestFixture{
		pipeline:      pipeline,
		documentStore: documentStore,
		chunkStore:    chunkStore,
		vectorStore:   vectorStore,
		embedding:     embedding,
	}
}

func ingestText(length int) []byte {
	var sb strings.Builder
	for sb.Len() < length {
		sb.WriteString("The quick brown fox jumps over the lazy dog. ")
	}
	return []byte(sb.String())
}

func TestIngestHappyPath(t *testing.T) {
	f := setupIngest(t)
	ctx := context.Background()

	result, err := f.pipeline.Ingest(ctx, driving.UploadRequest{
		OwnerID:  "owner-1",
		Filename: "notes.txt",
		Data:     ingestText(5000),
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if result.Status != domain.DocumentStatusIndexed {
		t.Errorf("expected status indexed, got %s", result.Status)
	}
	if result.Stats.Chunks == 0 {
		t.Error("expected at least one chunk")
	}

	doc, err := f.documentStore.Get(ctx, result.DocumentID)
	if err != nil {
		t.Fatalf("document not persisted: %v", err)
	}
	if doc.Status != domain.DocumentStatusIndexed {
		t.Errorf("expected document status indexed, got %s", doc.Status)
	}
	if doc.TotalChunks != result.Stats.Chunks {
		t.Errorf("document counter %d does not match result %d", doc.TotalChunks, result.Stats.Chunks)
	}
	if doc.OwnerID != "owner-1" {
		t.Errorf("expected owner-1, got %s", doc.OwnerID)
	}

	chunks, err := f.chunkStore.GetByDocument(ctx, result.DocumentID)
	if err != nil {
		t.Fatalf("GetByDocument failed: %v", err)
	}
	if len(chunks) != result.Stats.Chunks {
		t.Errorf("expected %d chunk rows, got %d", result.Stats.Chunks, len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has index %d", i, chunk.Index)
		}
	}

	count, _ := f.vectorStore.Count(ctx)
	if count != result.Stats.Chunks {
		t.Errorf("expected %d vectors, got %d", result.Stats.Chunks, count)
	}
	record, ok := f.vectorStore.Record(domain.VectorID(result.DocumentID, 0))
	if !ok {
		t.Fatal("first chunk vector missing")
	}
	if record.Metadata.OwnerID != "owner-1" {
		t.Errorf("expected owner-1 in vector metadata, got %s", record.Metadata.OwnerID)
	}
	if record.Metadata.ContentHash == "" || len(record.Metadata.ContentHash) != 16 {
		t.Errorf("unexpected content hash %q", record.Metadata.ContentHash)
	}
}

func TestIngestUnsupportedFileType(t *testing.T) {
	f := setupIngest(t)

	_, err := f.pipeline.Ingest(context.Background(), driving.UploadRequest{
		OwnerID:  "owner-1",
		Filename: "image.png",
		Data:     []byte("binary"),
	})
	if !errors.Is(err, domain.ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}

	// Nothing should have been created
	count, _ := f.documentStore.Count(context.Background(), "")
	if count != 0 {
		t.Errorf("expected no documents, got %d", count)
	}
}

func TestIngestEmptyFile(t *testing.T) {
	f := setupIngest(t)

	_, err := f.pipeline.Ingest(context.Background(), driving.UploadRequest{
		OwnerID:  "owner-1",
		Filename: "empty.txt",
		Data:     nil,
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIngestFileTooLarge(t *testing.T) {
	f := setupIngest(t)

	oversized := bytes.Repeat([]byte("a"), int(domain.MaxUploadBytes)+1)
	_, err := f.pipeline.Ingest(context.Background(), driving.UploadRequest{
		OwnerID:  "owner-1",
		Filename: "big.txt",
		Data:     oversized,
	})
	if !errors.Is(err, domain.ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestIngestNoChunks(t *testing.T) {
	f := setupIngest(t)
	ctx := context.Background()

	// Whitespace normalizes to nothing, so chunking produces no chunks
	_, err := f.pipeline.Ingest(ctx, driving.UploadRequest{
		OwnerID:  "owner-1",
		Filename: "blank.txt",
		Data:     []byte("   \n\n   \t  \n"),
	})
	if !errors.Is(err, domain.ErrNoChunks) {
		t.Fatalf("expected ErrNoChunks, got %v", err)
	}

	// The document record exists in error state
	docs, _ := f.documentStore.List(ctx, "owner-1", 10, 0)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Status != domain.DocumentStatusError {
		t.Errorf("expected status error, got %s", docs[0].Status)
	}
	if docs[0].ErrorMessage == "" {
		t.Error("expected an error message on the document")
	}
}

func TestIngestEmbeddingFailure(t *testing.T) {
	f := setupIngest(t)
	ctx := context.Background()

	f.embedding.SetFailNext(true)

	_, err := f.pipeline.Ingest(ctx, driving.UploadRequest{
		OwnerID:  "owner-1",
		Filename: "notes.txt",
		Data:     ingestText(2000),
	})
	if err == nil {
		t.Fatal("expected ingest to fail")
	}

	docs, _ := f.documentStore.List(ctx, "owner-1", 10, 0)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Status != domain.DocumentStatusError {
		t.Errorf("expected status error, got %s", docs[0].Status)
	}

	// Vectors are cleaned up, chunk rows are kept for inspection
	count, _ := f.vectorStore.Count(ctx)
	if count != 0 {
		t.Errorf("expected no vectors after failure, got %d", count)
	}
	chunkCount, _ := f.chunkStore.CountByDocument(ctx, docs[0].ID)
	if chunkCount == 0 {
		t.Error("expected chunk rows to survive the failure")
	}
}

func TestIngestNoEmbeddingService(t *testing.T) {
	f := setupIngest(t)
	ctx := context.Background()

	// Drop the embedding service entirely
	services := rt.NewServices(domain.NewRuntimeConfig(""))
	f.pipeline.services = services

	_, err := f.pipeline.Ingest(ctx, driving.UploadRequest{
		OwnerID:  "owner-1",
		Filename: "notes.txt",
		Data:     ingestText(1000),
	})
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestIngestBatchesEmbeddings(t *testing.T) {
	f := setupIngest(t)

	result, err := f.pipeline.Ingest(context.Background(), driving.UploadRequest{
		OwnerID:  "owner-1",
		Filename: "long.txt",
		Data:     ingestText(40000),
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.Stats.Chunks <= ingestEmbedBatchSize {
		t.Skipf("need more than %d chunks to observe batching, got %d", ingestEmbedBatchSize, result.Stats.Chunks)
	}

	for i, size := range f.embedding.Calls {
		if size > ingestEmbedBatchSize {
			t.Errorf("batch %d has size %d, limit is %d", i, size, ingestEmbedBatchSize)
		}
	}
}

func TestContentHash(t *testing.T) {
	h1 := contentHash("hello world")
	h2 := contentHash("hello world")
	h3 := contentHash("different")

	if h1 != h2 {
		t.Error("hash is not deterministic")
	}
	if h1 == h3 {
		t.Error("distinct texts produced the same hash")
	}
	if len(h1) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(h1))
	}
}
