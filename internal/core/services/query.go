package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
	"github.com/astra-labs/astra-core/internal/core/ports/driving"
	rt "github.com/astra-labs/astra-core/internal/runtime"
)

// Verify interface compliance
var _ driving.QueryService = (*QueryEngine)(nil)

// queryCacheSize bounds the retrieval and context LRU caches
const queryCacheSize = 128

// masterSystemPrompt is the fixed system identity sent with every
// completion request.
const masterSystemPrompt = `You are Astra Intelligence Agent, an advanced reasoning and retrieval system combining RAG, ReAct, and Transformer-based inference. Your role is to analyze documents, perform structured reasoning, and generate accurate, sourced, explainable intelligence outputs.

Your Core Behaviors

Precision First:

Always prioritize factual accuracy.

If uncertain, explicitly state uncertainty and propose verification steps.

Structured Reasoning (ReAct):
For every complex query, internally follow:

Thought: Analyze task, break into steps.

Action: Retrieval, tool usage, or computations.

Observation: Summaries of retrieved info.

Answer: Final, concise, actionable result.

RAG Integration:

You always prefer grounded answers over general knowledge.

Responses should cite retrieved documents or embeddings context.

Style Guidelines:

Extremely clear, technical, concise.

Executive tone (consulting / government-grade).

No filler, no vague answers.

Default to bullet points and hierarchical clarity.

Capabilities:

Summarization

Contextual Q&A

Multi-document synthesis

Technical explanation

Risk & impact analysis

Architecture recommendations

Decision support

Restrictions:

Never fabricate citations or details.

Never reveal internal chain-of-thought; return only "Final Answer" to user.

Do not hallucinate non-existing documents.

Output Format

Always return information using the following structure:
[🔹 Summary]
One short executive paragraph.

[🔹 Detailed Analysis]
- Bullet point breakdown, numbered sections if needed.
- Reference retrieved passages when relevant.

[🔹 Final Answer]
One clear, concise solution or next action.


This is your permanent identity and behavior. Operate consistently.`

// contextHeader opens every assembled prompt. The source blocks and
// the user question follow it.
const contextHeader = "[SYSTEM CONTEXT RULES]\n" +
	"Use only the information provided below.\n" +
	"Cite evidence using [DOC:doc_id | CHUNK:chunk_id].\n\n" +
	"[CONTEXT SOURCES]\n"

var (
	citationDocPattern   = regexp.MustCompile(`\[DOC:\s*([^|]+)`)
	citationChunkPattern = regexp.MustCompile(`CHUNK:\s*(\d+)`)
	citationPagePattern  = regexp.MustCompile(`PAGE:\s*(\d+)`)
)

// assembledContext is one cached prompt together with the chunks and
// citations it was built from.
type assembledContext struct {
	prompt    string
	citations []domain.Citation
	sources   []domain.RetrievedChunk
}

// QueryEngine answers questions against the indexed corpus. Retrieval
// results and assembled contexts are cached per (query, top_k,
// max_context_chars) so repeated questions skip embedding and vector
// search entirely.
type QueryEngine struct {
	vectorStore   driven.VectorStore
	queryLogStore driven.QueryLogStore
	services      *rt.Services
	chunksCache   *lru.Cache[string, []domain.RetrievedChunk]
	contextCache  *lru.Cache[string, assembledContext]
	logger        *slog.Logger
}

// QueryEngineConfig holds dependencies for QueryEngine.
type QueryEngineConfig struct {
	VectorStore   driven.VectorStore
	QueryLogStore driven.QueryLogStore
	Services      *rt.Services
	Logger        *slog.Logger
}

// NewQueryEngine creates a new query engine.
func NewQueryEngine(cfg QueryEngineConfig) *QueryEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// lru.New only fails on non-positive sizes
	chunksCache, _ := lru.New[string, []domain.RetrievedChunk](queryCacheSize)
	contextCache, _ := lru.New[string, assembledContext](queryCacheSize)

	return &QueryEngine{
		vectorStore:   cfg.VectorStore,
		queryLogStore: cfg.QueryLogStore,
		services:      cfg.Services,
		chunksCache:   chunksCache,
		contextCache:  contextCache,
		logger:        logger,
	}
}

// Query retrieves relevant chunks, assembles a bounded context and
// generates a cited answer.
func (q *QueryEngine) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	totalStart := time.Now()

	// An assembled-context hit answers without embedding the query or
	// touching the vector store
	contextKey := "context_" + req.CacheKey(req.MaxContextChars)
	ac, cached := q.contextCache.Get(contextKey)
	var retrievalLatency time.Duration
	if cached {
		q.logger.Debug("context cache hit", "query", truncateForLog(req.Query))
	} else {
		retrievalStart := time.Now()
		chunks, err := q.retrieve(ctx, req)
		if err != nil {
			return nil, err
		}
		retrievalLatency = time.Since(retrievalStart)

		prompt, citations := q.assembleContext(req, chunks)
		ac = assembledContext{prompt: prompt, citations: citations, sources: chunks}
		q.contextCache.Add(contextKey, ac)
	}

	llmService := q.services.LLMService()
	if llmService == nil {
		return nil, fmt.Errorf("%w: no LLM service configured", domain.ErrServiceUnavailable)
	}

	llmStart := time.Now()
	answer, err := llmService.Answer(ctx, masterSystemPrompt, ac.prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	llmLatency := time.Since(llmStart)

	citations := ac.citations
	if len(citations) == 0 && len(ac.sources) > 0 {
		// Fallback reparse of the source tags
		citations = extractCitations(ac.prompt)
	}

	result := &domain.QueryResult{
		QueryID:   domain.GenerateID(),
		Answer:    answer.Text,
		Citations: citations,
		Sources:   ac.sources,
		Metrics: domain.QueryMetrics{
			RetrievalLatencyMS: retrievalLatency.Milliseconds(),
			LLMLatencyMS:       llmLatency.Milliseconds(),
			TotalLatencyMS:     time.Since(totalStart).Milliseconds(),
			ContextLength:      len(ac.prompt),
			ChunksRetrieved:    len(ac.sources),
			TokensUsed:         answer.Usage.TotalTokens,
			Model:              answer.Model,
		},
	}

	q.persistLog(ctx, req, result)

	q.logger.Info("query answered",
		"query_id", result.QueryID,
		"chunks_retrieved", len(ac.sources),
		"context_length", len(ac.prompt),
		"model", answer.Model,
		"total_latency_ms", result.Metrics.TotalLatencyMS,
	)

	return result, nil
}

// ClearCache empties the retrieval and context caches.
func (q *QueryEngine) ClearCache() {
	q.chunksCache.Purge()
	q.contextCache.Purge()
	q.logger.Info("query caches cleared")
}

// retrieve embeds the question and runs the vector search, scoped to
// the requesting owner when one is set.
func (q *QueryEngine) retrieve(ctx context.Context, req domain.QueryRequest) ([]domain.RetrievedChunk, error) {
	cacheKey := "chunks_" + req.CacheKey(0)
	if cached, ok := q.chunksCache.Get(cacheKey); ok {
		q.logger.Debug("retrieval cache hit", "query", truncateForLog(req.Query))
		return cached, nil
	}

	embeddingService := q.services.EmbeddingService()
	if embeddingService == nil {
		return nil, fmt.Errorf("%w: no embedding service configured", domain.ErrServiceUnavailable)
	}

	embedding, err := embeddingService.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var where map[string]string
	if req.OwnerID != "" {
		where = map[string]string{"owner_id": req.OwnerID}
	}

	chunks, err := q.vectorStore.Query(ctx, embedding, req.TopK, where)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}

	q.chunksCache.Add(cacheKey, chunks)
	return chunks, nil
}

// assembleContext builds the deterministic, tagged prompt from the
// retrieved chunks, bounded by req.MaxContextChars, together with one
// citation per included source.
func (q *QueryEngine) assembleContext(req domain.QueryRequest, chunks []domain.RetrievedChunk) (string, []domain.Citation) {
	citations := []domain.Citation{}

	if len(chunks) == 0 {
		prompt := contextHeader + "No relevant sources found.\n\n" + "[USER QUESTION]\n" + req.Query + "\n"
		return prompt, citations
	}

	var sb strings.Builder
	sb.WriteString(contextHeader)
	currentLength := len(contextHeader)

	for i, chunk := range chunks {
		pagePart := ""
		if chunk.PageNumber != nil {
			pagePart = fmt.Sprintf(" | PAGE: %d", *chunk.PageNumber)
		}
		sourceHeader := fmt.Sprintf("--- SOURCE %d ---\n[DOC: %s | CHUNK: %d%s]\n\n", i+1, chunk.DocumentID, chunk.ChunkIndex, pagePart)
		sourceFooter := "\n\n"

		available := req.MaxContextChars - currentLength - len(sourceHeader) - len(sourceFooter)
		if available <= 0 {
			break
		}

		text := chunk.Text
		if len(text) > available {
			truncated := extractTopSentences(text, available)
			if len(truncated) > available {
				cut := text[:available]
				if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
					cut = cut[:idx]
				}
				truncated = cut + "..."
			}
			text = truncated
		}

		block := sourceHeader + text + sourceFooter
		sb.WriteString(block)
		currentLength += len(block)
		citations = append(citations, domain.Citation{
			DocumentID: chunk.DocumentID,
			ChunkIndex: chunk.ChunkIndex,
			PageNumber: chunk.PageNumber,
			Similarity: chunk.Similarity,
		})

		if currentLength >= req.MaxContextChars {
			break
		}
	}

	sb.WriteString("\n[USER QUESTION]\n" + req.Query + "\n")
	prompt := sb.String()

	q.logger.Debug("context assembled",
		"context_length", len(prompt),
		"sources_included", len(citations),
	)

	return prompt, citations
}

// persistLog appends a query analytics record. Logging failures never
// fail the query.
func (q *QueryEngine) persistLog(ctx context.Context, req domain.QueryRequest, result *domain.QueryResult) {
	if q.queryLogStore == nil {
		return
	}

	record := &domain.QueryLog{
		ID:                 result.QueryID,
		OwnerID:            req.OwnerID,
		QueryText:          req.Query,
		QueryHash:          req.CacheKey(req.MaxContextChars),
		TopK:               req.TopK,
		ChunksRetrieved:    result.Metrics.ChunksRetrieved,
		RetrievalLatencyMS: result.Metrics.RetrievalLatencyMS,
		LLMLatencyMS:       result.Metrics.LLMLatencyMS,
		TotalLatencyMS:     result.Metrics.TotalLatencyMS,
		TokensUsed:         result.Metrics.TokensUsed,
		Model:              result.Metrics.Model,
		CreatedAt:          time.Now().UTC(),
	}

	if err := q.queryLogStore.Save(ctx, record); err != nil {
		q.logger.Warn("failed to persist query log", "query_id", result.QueryID, "error", err)
	}
}

// extractTopSentences keeps whole leading sentences of text within
// maxChars. Sentences end at '.', '!' or '?'. When not even the first
// sentence fits, a hard prefix cut is returned instead.
func extractTopSentences(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	var result strings.Builder
	for _, sentence := range sentences {
		if result.Len()+len(sentence)+1 > maxChars {
			break
		}
		result.WriteString(sentence)
		result.WriteByte(' ')
	}

	if result.Len() == 0 {
		return text[:maxChars]
	}
	return strings.TrimSpace(result.String())
}

// extractCitations parses the source tags out of the assembled prompt.
// Only lines between the sources and question sections are considered.
func extractCitations(prompt string) []domain.Citation {
	citations := []domain.Citation{}

	_, after, found := strings.Cut(prompt, "[CONTEXT SOURCES]")
	if !found {
		return citations
	}
	section, _, _ := strings.Cut(after, "[USER QUESTION]")

	for _, line := range strings.Split(section, "\n") {
		if !strings.Contains(line, "[DOC:") || !strings.Contains(line, "CHUNK:") {
			continue
		}

		docMatch := citationDocPattern.FindStringSubmatch(line)
		chunkMatch := citationChunkPattern.FindStringSubmatch(line)
		if docMatch == nil || chunkMatch == nil {
			continue
		}
		chunkIndex, err := strconv.Atoi(chunkMatch[1])
		if err != nil {
			continue
		}

		citation := domain.Citation{
			DocumentID: strings.TrimSpace(docMatch[1]),
			ChunkIndex: chunkIndex,
		}
		if pageMatch := citationPagePattern.FindStringSubmatch(line); pageMatch != nil {
			if page, err := strconv.Atoi(pageMatch[1]); err == nil {
				citation.PageNumber = &page
			}
		}
		citations = append(citations, citation)
	}

	return citations
}

func truncateForLog(s string) string {
	if len(s) <= 50 {
		return s
	}
	return s[:50]
}
