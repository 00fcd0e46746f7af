package postgres

import (
	"context"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.QueryLogStore = (*QueryLogStore)(nil)

// QueryLogStore implements driven.QueryLogStore using PostgreSQL
type QueryLogStore struct {
	db *DB
}

// NewQueryLogStore creates a new QueryLogStore
func NewQueryLogStore(db *DB) *QueryLogStore {
	return &QueryLogStore{db: db}
}

// Save appends one query log record
func (s *QueryLogStore) Save(ctx context.Context, log *domain.QueryLog) error {
	query := `
		INSERT INTO query_logs (id, owner_id, query_text, query_hash, top_k, chunks_retrieved, retrieval_latency_ms, llm_latency_ms, total_latency_ms, tokens_used, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		log.ID,
		log.OwnerID,
		log.QueryText,
		log.QueryHash,
		log.TopK,
		log.ChunksRetrieved,
		log.RetrievalLatencyMS,
		log.LLMLatencyMS,
		log.TotalLatencyMS,
		log.TokensUsed,
		log.Model,
		log.CreatedAt,
	)
	return err
}

// List retrieves recent query logs for an owner, newest first
func (s *QueryLogStore) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.QueryLog, error) {
	query := `
		SELECT id, owner_id, query_text, query_hash, top_k, chunks_retrieved, retrieval_latency_ms, llm_latency_ms, total_latency_ms, tokens_used, model, created_at
		FROM query_logs
		WHERE ($1 = '' OR owner_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.QueryLog
	for rows.Next() {
		var log domain.QueryLog
		err := rows.Scan(
			&log.ID,
			&log.OwnerID,
			&log.QueryText,
			&log.QueryHash,
			&log.TopK,
			&log.ChunksRetrieved,
			&log.RetrievalLatencyMS,
			&log.LLMLatencyMS,
			&log.TotalLatencyMS,
			&log.TokensUsed,
			&log.Model,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
