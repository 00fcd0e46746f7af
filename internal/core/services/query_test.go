package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven/mocks"
	rt "github.com/astra-labs/astra-core/internal/runtime"
)

type queryFixture struct {
	engine      *QueryEngine
	vectorStore *mocks.MockVectorStore
	logStore    *mocks.MockQueryLogStore
	embedding   *mocks.MockEmbeddingService
	llm         *mocks.MockLLMService
}

func setupQuery(t *testing.T) *queryFixture {
	t.Helper()

	vectorStore := mocks.NewMockVectorStore()
	logStore := mocks.NewMockQueryLogStore()
	embedding := mocks.NewMockEmbeddingService()
	llm := mocks.NewMockLLMService()

	services := rt.NewServices(domain.NewRuntimeConfig(""))
	services.SetEmbeddingService(embedding)
	services.SetLLMService(llm)

	engine := NewQueryEngine(QueryEngineConfig{
		VectorStore:   vectorStore,
		QueryLogStore: logStore,
		Services:      services,
	})

	return &queryFixture{
		engine:      engine,
		vectorStore: vectorStore,
		logStore:    logStore,
		embedding:   embedding,
		llm:         llm,
	}
}

// seedVectors stores chunks whose embeddings match the mock embedding
// service output for their own text, so retrieval ranks the chunk with
// the query's nearest text first.
func (f *queryFixture) seedVectors(t *testing.T, docID, ownerID string, texts ...string) {
	t.Helper()
	ctx := context.Background()

	records := make([]domain.VectorRecord, 0, len(texts))
	for i, text := range texts {
		embedding, err := f.embedding.EmbedQuery(ctx, text)
		if err != nil {
			t.Fatalf("embed seed text: %v", err)
		}
		records = append(records, domain.VectorRecord{
			ID:        domain.VectorID(docID, i),
			Embedding: embedding,
			Text:      text,
			Metadata: domain.VectorMetadata{
				DocumentID: docID,
				ChunkIndex: i,
				ChunkUUID:  fmt.Sprintf("%s-uuid-%d", docID, i),
				OwnerID:    ownerID,
			},
		})
	}
	if err := f.vectorStore.Upsert(ctx, records); err != nil {
		t.Fatalf("seed vectors: %v", err)
	}
}

func TestQueryHappyPath(t *testing.T) {
	f := setupQuery(t)
	f.seedVectors(t, "doc-1", "", "alpha content", "beta content", "gamma content")
	f.llm.SetAnswer("the grounded answer")

	result, err := f.engine.Query(context.Background(), domain.QueryRequest{Query: "alpha content"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if result.Answer != "the grounded answer" {
		t.Errorf("unexpected answer %q", result.Answer)
	}
	if result.QueryID == "" {
		t.Error("expected a query id")
	}
	if len(result.Sources) != 3 {
		t.Errorf("expected 3 sources, got %d", len(result.Sources))
	}
	if result.Sources[0].Text != "alpha content" {
		t.Errorf("expected the matching chunk first, got %q", result.Sources[0].Text)
	}
	if len(result.Citations) != 3 {
		t.Errorf("expected 3 citations, got %d", len(result.Citations))
	}
	if result.Citations[0].DocumentID != "doc-1" {
		t.Errorf("unexpected citation doc %q", result.Citations[0].DocumentID)
	}
	for i, c := range result.Citations {
		if c.Similarity != result.Sources[i].Similarity {
			t.Errorf("citation %d similarity %v does not match its source %v", i, c.Similarity, result.Sources[i].Similarity)
		}
	}
	if result.Metrics.ChunksRetrieved != 3 {
		t.Errorf("expected 3 chunks retrieved, got %d", result.Metrics.ChunksRetrieved)
	}
	if result.Metrics.Model != "mock-llm" {
		t.Errorf("unexpected model %q", result.Metrics.Model)
	}

	// The prompt carries the rules header, tagged sources and question
	prompt := f.llm.LastPrompt()
	if !strings.HasPrefix(prompt, "[SYSTEM CONTEXT RULES]\n") {
		t.Error("prompt missing rules header")
	}
	if !strings.Contains(prompt, "--- SOURCE 1 ---\n[DOC: doc-1 | CHUNK: 0]") {
		t.Error("prompt missing first source tag")
	}
	if !strings.HasSuffix(prompt, "\n[USER QUESTION]\nalpha content\n") {
		t.Error("prompt missing user question footer")
	}

	// The system prompt is the fixed identity
	if f.llm.Prompts[0][0] != masterSystemPrompt {
		t.Error("expected the master system prompt")
	}
}

func TestQueryValidation(t *testing.T) {
	f := setupQuery(t)

	cases := []domain.QueryRequest{
		{Query: "   "},
		{Query: "q", TopK: -1},
		{Query: "q", TopK: domain.MaxTopK + 1},
		{Query: "q", MaxContextChars: domain.MinContextMax - 1},
	}
	for _, req := range cases {
		if _, err := f.engine.Query(context.Background(), req); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("request %+v: expected ErrInvalidInput, got %v", req, err)
		}
	}
}

func TestQueryEmptyRetrieval(t *testing.T) {
	f := setupQuery(t)

	result, err := f.engine.Query(context.Background(), domain.QueryRequest{Query: "anything"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(result.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(result.Sources))
	}
	if len(result.Citations) != 0 {
		t.Errorf("expected no citations, got %d", len(result.Citations))
	}

	prompt := f.llm.LastPrompt()
	if !strings.Contains(prompt, "No relevant sources found.\n\n") {
		t.Error("prompt missing empty-retrieval notice")
	}
	if !strings.Contains(prompt, "[USER QUESTION]\nanything\n") {
		t.Error("prompt missing user question")
	}
}

func TestQueryOwnerScoping(t *testing.T) {
	f := setupQuery(t)
	f.seedVectors(t, "doc-a", "owner-a", "shared topic from a")
	f.seedVectors(t, "doc-b", "owner-b", "shared topic from b")

	result, err := f.engine.Query(context.Background(), domain.QueryRequest{
		Query:   "shared topic",
		OwnerID: "owner-a",
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(result.Sources) != 1 {
		t.Fatalf("expected only owner-a's chunk, got %d sources", len(result.Sources))
	}
	if result.Sources[0].DocumentID != "doc-a" {
		t.Errorf("expected doc-a, got %s", result.Sources[0].DocumentID)
	}
}

func TestQueryCachesRetrieval(t *testing.T) {
	f := setupQuery(t)
	f.seedVectors(t, "doc-1", "", "cached content")
	ctx := context.Background()

	req := domain.QueryRequest{Query: "cached content"}
	if _, err := f.engine.Query(ctx, req); err != nil {
		t.Fatalf("first Query failed: %v", err)
	}
	promptsBefore := len(f.llm.Prompts)

	// The vector store goes away; the cached retrieval still answers
	f.vectorStore.QueryFn = func([]float32, int, map[string]string) ([]domain.RetrievedChunk, error) {
		return nil, errors.New("store offline")
	}

	result, err := f.engine.Query(ctx, domain.QueryRequest{Query: "cached content"})
	if err != nil {
		t.Fatalf("cached Query failed: %v", err)
	}
	if len(result.Sources) != 1 {
		t.Errorf("expected cached source, got %d", len(result.Sources))
	}
	if len(f.llm.Prompts) != promptsBefore+1 {
		t.Error("expected the LLM to be called again on a cache hit")
	}

	// Different top_k misses the cache and hits the offline store
	if _, err := f.engine.Query(ctx, domain.QueryRequest{Query: "cached content", TopK: 3}); err == nil {
		t.Error("expected a different top_k to bypass the cache")
	}
}

func TestQueryAnswersFromContextCache(t *testing.T) {
	f := setupQuery(t)
	f.seedVectors(t, "doc-1", "", "durable content")
	ctx := context.Background()

	first, err := f.engine.Query(ctx, domain.QueryRequest{Query: "durable content"})
	if err != nil {
		t.Fatalf("first Query failed: %v", err)
	}

	// Only the assembled context survives. A repeat of the same
	// question must answer without embedding or searching again.
	f.engine.chunksCache.Purge()
	f.embedding.SetFailNext(true)
	f.vectorStore.QueryFn = func([]float32, int, map[string]string) ([]domain.RetrievedChunk, error) {
		return nil, errors.New("store offline")
	}

	result, err := f.engine.Query(ctx, domain.QueryRequest{Query: "durable content"})
	if err != nil {
		t.Fatalf("context-cached Query failed: %v", err)
	}
	if len(result.Sources) != 1 {
		t.Fatalf("expected the cached source, got %d", len(result.Sources))
	}
	if len(result.Citations) != 1 {
		t.Fatalf("expected the cached citation, got %d", len(result.Citations))
	}
	if result.Citations[0].Similarity != first.Sources[0].Similarity {
		t.Errorf("citation similarity %v does not match the ranked chunk %v",
			result.Citations[0].Similarity, first.Sources[0].Similarity)
	}
}

func TestClearCache(t *testing.T) {
	f := setupQuery(t)
	f.seedVectors(t, "doc-1", "", "some content")
	ctx := context.Background()

	if _, err := f.engine.Query(ctx, domain.QueryRequest{Query: "some content"}); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	f.engine.ClearCache()

	f.vectorStore.QueryFn = func([]float32, int, map[string]string) ([]domain.RetrievedChunk, error) {
		return nil, errors.New("store offline")
	}
	if _, err := f.engine.Query(ctx, domain.QueryRequest{Query: "some content"}); err == nil {
		t.Error("expected cleared cache to hit the store")
	}
}

func TestQueryContextTruncation(t *testing.T) {
	f := setupQuery(t)

	long := strings.Repeat("This sentence repeats itself to fill space. ", 50)
	f.seedVectors(t, "doc-1", "", long, long, long)

	result, err := f.engine.Query(context.Background(), domain.QueryRequest{
		Query:           "fill space",
		MaxContextChars: 500,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if result.Metrics.ContextLength > 500+len("\n[USER QUESTION]\nfill space\n") {
		t.Errorf("context length %d exceeds the bound", result.Metrics.ContextLength)
	}
	// Not all sources fit into 500 chars
	if len(result.Citations) >= 3 {
		t.Errorf("expected truncation to drop sources, got %d citations", len(result.Citations))
	}

	prompt := f.llm.LastPrompt()
	if !strings.Contains(prompt, "This sentence repeats itself") {
		t.Error("expected at least a truncated first source")
	}
}

func TestQueryNoLLMService(t *testing.T) {
	f := setupQuery(t)
	services := rt.NewServices(domain.NewRuntimeConfig(""))
	services.SetEmbeddingService(f.embedding)
	f.engine.services = services

	_, err := f.engine.Query(context.Background(), domain.QueryRequest{Query: "anything"})
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestQueryLLMFailure(t *testing.T) {
	f := setupQuery(t)
	f.llm.SetError(errors.New("provider down"))

	_, err := f.engine.Query(context.Background(), domain.QueryRequest{Query: "anything"})
	if err == nil {
		t.Fatal("expected LLM failure to surface")
	}
	if f.logStore.Len() != 0 {
		t.Error("failed queries must not be logged")
	}
}

func TestQueryPersistsLog(t *testing.T) {
	f := setupQuery(t)
	f.seedVectors(t, "doc-1", "owner-1", "logged content")

	result, err := f.engine.Query(context.Background(), domain.QueryRequest{
		Query:   "logged content",
		OwnerID: "owner-1",
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	logs, err := f.logStore.List(context.Background(), "owner-1", 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(logs))
	}
	if logs[0].ID != result.QueryID {
		t.Errorf("log id %q does not match query id %q", logs[0].ID, result.QueryID)
	}
	if logs[0].QueryText != "logged content" {
		t.Errorf("unexpected query text %q", logs[0].QueryText)
	}
	if logs[0].QueryHash == "" {
		t.Error("expected a query hash")
	}
	if logs[0].ChunksRetrieved != 1 {
		t.Errorf("expected 1 chunk retrieved, got %d", logs[0].ChunksRetrieved)
	}
}

func TestExtractCitations(t *testing.T) {
	prompt := contextHeader +
		"--- SOURCE 1 ---\n[DOC: doc-1 | CHUNK: 0]\n\nfirst text\n\n" +
		"--- SOURCE 2 ---\n[DOC: doc-2 | CHUNK: 5 | PAGE: 12]\n\nsecond text\n\n" +
		"\n[USER QUESTION]\nirrelevant [DOC: fake | CHUNK: 9]\n"

	citations := extractCitations(prompt)
	if len(citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(citations))
	}

	if citations[0].DocumentID != "doc-1" || citations[0].ChunkIndex != 0 {
		t.Errorf("unexpected first citation %+v", citations[0])
	}
	if citations[0].PageNumber != nil {
		t.Error("first citation must not carry a page")
	}

	if citations[1].DocumentID != "doc-2" || citations[1].ChunkIndex != 5 {
		t.Errorf("unexpected second citation %+v", citations[1])
	}
	if citations[1].PageNumber == nil || *citations[1].PageNumber != 12 {
		t.Errorf("expected page 12, got %v", citations[1].PageNumber)
	}
}

func TestExtractTopSentences(t *testing.T) {
	text := "First sentence. Second sentence! Third sentence? Fourth sentence."

	got := extractTopSentences(text, len(text))
	if got != text {
		t.Errorf("text within the limit must pass through, got %q", got)
	}

	got = extractTopSentences(text, 35)
	if got != "First sentence. Second sentence!" {
		t.Errorf("unexpected sentence extraction %q", got)
	}

	// Nothing fits: hard prefix cut
	got = extractTopSentences("Unbroken run of words with no terminator at all", 10)
	if got != "Unbroken r" {
		t.Errorf("unexpected hard cut %q", got)
	}
}
