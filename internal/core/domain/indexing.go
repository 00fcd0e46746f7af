package domain

import "strconv"

// Indexer batch sizing. The batch starts at the initial size, halves on
// out-of-memory failures, and never grows back within a run.
const (
	IndexBatchInitial = 6
	IndexBatchMin     = 2
	IndexBatchMax     = 8
)

// IndexMetrics captures per-run indexer measurements
type IndexMetrics struct {
	BatchesProcessed       int      `json:"batches_processed"`
	EmbeddingTimeSeconds   float64  `json:"embedding_time_seconds"`
	PersistenceTimeSeconds float64  `json:"persistence_time_seconds"`
	PeakMemoryMB           float64  `json:"peak_memory_mb"`
	Errors                 []string `json:"errors"`
	AvgBatchTimeSeconds    float64  `json:"avg_batch_time_seconds"`
}

// IndexReport summarizes one indexing run over a document
type IndexReport struct {
	DocumentID       string       `json:"doc_id"`
	ChunksIndexed    int          `json:"chunks_indexed"`
	TotalChunks      int          `json:"total_chunks"`
	TotalTimeSeconds float64      `json:"total_time_seconds"`
	CollectionSize   int          `json:"collection_size"`
	Metrics          IndexMetrics `json:"metrics"`
}

// VectorRecord is one embedded chunk ready for vector store upsert.
// ID is the composite "{document_id}_{chunk_index}".
type VectorRecord struct {
	ID        string
	Embedding []float32
	Text      string
	Metadata  VectorMetadata
}

// VectorMetadata is the metadata stored alongside each embedding
type VectorMetadata struct {
	DocumentID  string `json:"doc_id"`
	ChunkIndex  int    `json:"chunk_id"`
	ChunkUUID   string `json:"chunk_uuid"`
	StartChar   int    `json:"start_char"`
	EndChar     int    `json:"end_char"`
	ContentHash string `json:"content_hash"`
	PageNumber  *int   `json:"page_number,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
}

// VectorID builds the composite vector store id for a chunk
func VectorID(documentID string, chunkIndex int) string {
	return documentID + "_" + strconv.Itoa(chunkIndex)
}
