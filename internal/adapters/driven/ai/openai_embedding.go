package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*OpenAIEmbedding)(nil)

const (
	defaultOpenAIEmbedModel = "text-embedding-3-small"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	openAICallTimeout       = 60 * time.Second
)

// openAIEmbedDims maps known embedding models to their vector width.
// Unknown models fall back to 1536 so the vector store can still be
// provisioned; a mismatch surfaces on the first upsert.
var openAIEmbedDims = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedding produces chunk and query vectors through the OpenAI
// embeddings endpoint. It talks to the REST API directly so that
// OpenAI-compatible servers can be targeted via a custom base URL.
type OpenAIEmbedding struct {
	apiKey  string
	model   string
	baseURL string
	dims    int
	client  *http.Client
}

// NewOpenAIEmbedding returns an embedding backend for the given model.
// Model and base URL default to text-embedding-3-small against the
// public OpenAI API when left empty.
func NewOpenAIEmbedding(apiKey, model, baseURL string) (driven.EmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = defaultOpenAIEmbedModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	dims, ok := openAIEmbedDims[model]
	if !ok {
		dims = 1536
	}

	return &OpenAIEmbedding{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		dims:    dims,
		client:  &http.Client{Timeout: openAICallTimeout},
	}, nil
}

type openAIEmbedRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Embed returns one vector per input text, in input order.
func (e *OpenAIEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.call(ctx, openAIEmbedRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, err
	}

	// The API may return data out of order; place each vector at the
	// index of the text it embeds.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single retrieval query.
func (e *OpenAIEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	return vectors[0], nil
}

// Dimensions returns the vector width of the configured model.
func (e *OpenAIEmbedding) Dimensions() int {
	return e.dims
}

// Model returns the configured model name.
func (e *OpenAIEmbedding) Model() string {
	return e.model
}

// HealthCheck embeds a tiny probe string to confirm the API is
// reachable and the key is valid.
func (e *OpenAIEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

// Close drops pooled connections.
func (e *OpenAIEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *OpenAIEmbedding) call(ctx context.Context, payload openAIEmbedRequest) (*openAIEmbedResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	httpResp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp openAIEmbedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Error bodies can arrive with any status code; prefer the API's
	// own message when one is present.
	if resp.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s (type: %s, code: %s)",
			resp.Error.Message, resp.Error.Type, resp.Error.Code)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API returned status %d", httpResp.StatusCode)
	}

	return &resp, nil
}
