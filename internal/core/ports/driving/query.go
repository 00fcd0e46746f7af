package driving

import (
	"context"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// QueryService answers questions against the indexed corpus
type QueryService interface {
	// Query retrieves relevant chunks, assembles a bounded context and
	// generates a cited answer.
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)

	// ClearCache empties the retrieval and context caches
	ClearCache()
}
