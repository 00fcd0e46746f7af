package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Query request bounds. Values outside these ranges are rejected
// with ErrInvalidInput.
const (
	DefaultTopK       = 6
	MinTopK           = 1
	MaxTopK           = 50
	DefaultContextMax = 4000
	MinContextMax     = 100
	MaxContextMax     = 50000
)

// QueryRequest is a question against the indexed corpus
type QueryRequest struct {
	Query           string `json:"q"`
	TopK            int    `json:"top_k"`
	MaxContextChars int    `json:"max_context_chars"`
	OwnerID         string `json:"-"` // set from auth context, never from the body
}

// Normalize applies defaults and validates bounds
func (r *QueryRequest) Normalize() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query must not be empty", ErrInvalidInput)
	}
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	if r.TopK < MinTopK || r.TopK > MaxTopK {
		return fmt.Errorf("%w: top_k must be between %d and %d", ErrInvalidInput, MinTopK, MaxTopK)
	}
	if r.MaxContextChars == 0 {
		r.MaxContextChars = DefaultContextMax
	}
	if r.MaxContextChars < MinContextMax || r.MaxContextChars > MaxContextMax {
		return fmt.Errorf("%w: max_context_chars must be between %d and %d", ErrInvalidInput, MinContextMax, MaxContextMax)
	}
	return nil
}

// CacheKey derives the cache hash for a (query, top_k, max_context_chars)
// triple. The same triple always hashes to the same key.
func (r *QueryRequest) CacheKey(maxContextChars int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", r.Query, r.TopK, maxContextChars)))
	return hex.EncodeToString(sum[:])[:16]
}

// RetrievedChunk is one vector search hit with its stored metadata
type RetrievedChunk struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	ChunkUUID  string  `json:"chunk_uuid"`
	Text       string  `json:"text"`
	StartChar  int     `json:"start_char"`
	EndChar    int     `json:"end_char"`
	PageNumber *int    `json:"page_number,omitempty"`
	Similarity float64 `json:"similarity"`
}

// Citation is a source reference carried alongside an answer
type Citation struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	PageNumber *int    `json:"page_number,omitempty"`
	Similarity float64 `json:"similarity"`
}

// QueryMetrics reports latency and usage for one query
type QueryMetrics struct {
	RetrievalLatencyMS int64  `json:"retrieval_latency_ms"`
	LLMLatencyMS       int64  `json:"llm_latency_ms"`
	TotalLatencyMS     int64  `json:"total_latency_ms"`
	ContextLength      int    `json:"context_length"`
	ChunksRetrieved    int    `json:"chunks_retrieved"`
	TokensUsed         int    `json:"tokens_used"`
	Model              string `json:"model"`
}

// QueryResult is the full answer returned to the caller
type QueryResult struct {
	QueryID   string           `json:"query_id"`
	Answer    string           `json:"answer"`
	Citations []Citation       `json:"citations"`
	Sources   []RetrievedChunk `json:"sources"`
	Metrics   QueryMetrics     `json:"metrics"`
}

// QueryLog is the analytics record persisted per query
type QueryLog struct {
	ID                 string    `json:"id"`
	OwnerID            string    `json:"owner_id"`
	QueryText          string    `json:"query_text"`
	QueryHash          string    `json:"query_hash"`
	TopK               int       `json:"top_k"`
	ChunksRetrieved    int       `json:"chunks_retrieved"`
	RetrievalLatencyMS int64     `json:"retrieval_latency_ms"`
	LLMLatencyMS       int64     `json:"llm_latency_ms"`
	TotalLatencyMS     int64     `json:"total_latency_ms"`
	TokensUsed         int       `json:"tokens_used"`
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
}

// TokenUsage is the LLM-reported token accounting for one completion
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMAnswer is the raw provider response before citation extraction
type LLMAnswer struct {
	Text  string     `json:"text"`
	Model string     `json:"model"`
	Usage TokenUsage `json:"usage"`
}
