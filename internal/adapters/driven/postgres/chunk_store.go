package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore implements driven.ChunkStore using PostgreSQL
// Note: Embeddings are stored in the vector store, not here
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new ChunkStore
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

const chunkUpsert = `
	INSERT INTO chunks (id, document_id, chunk_index, text, start_char, end_char, page_number, token_count, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (document_id, chunk_index) DO UPDATE SET
		text = EXCLUDED.text,
		start_char = EXCLUDED.start_char,
		end_char = EXCLUDED.end_char,
		page_number = EXCLUDED.page_number,
		token_count = EXCLUDED.token_count
`

// Save creates or updates a chunk
func (s *ChunkStore) Save(ctx context.Context, chunk *domain.Chunk) error {
	_, err := s.db.ExecContext(ctx, chunkUpsert,
		chunk.ID,
		chunk.DocumentID,
		chunk.Index,
		chunk.Text,
		chunk.StartChar,
		chunk.EndChar,
		NullInt(chunk.PageNumber),
		chunk.TokenCount,
		chunk.CreatedAt,
	)
	return err
}

// SaveBatch saves multiple chunks in a transaction
func (s *ChunkStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, chunkUpsert)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			_, err = stmt.ExecContext(ctx,
				chunk.ID,
				chunk.DocumentID,
				chunk.Index,
				chunk.Text,
				chunk.StartChar,
				chunk.EndChar,
				NullInt(chunk.PageNumber),
				chunk.TokenCount,
				chunk.CreatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByDocument retrieves all chunks for a document ordered by index
func (s *ChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	query := `
		SELECT id, document_id, chunk_index, text, start_char, end_char, page_number, token_count, created_at
		FROM chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// GetByIndex retrieves one chunk by document and chunk index
func (s *ChunkStore) GetByIndex(ctx context.Context, documentID string, index int) (*domain.Chunk, error) {
	query := `
		SELECT id, document_id, chunk_index, text, start_char, end_char, page_number, token_count, created_at
		FROM chunks
		WHERE document_id = $1 AND chunk_index = $2
	`
	chunk, err := scanChunk(s.db.QueryRowContext(ctx, query, documentID, index))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return chunk, err
}

// DeleteByDocument deletes all chunks for a document
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return err
}

// CountByDocument returns the chunk count for a document
func (s *ChunkStore) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`, documentID,
	).Scan(&count)
	return count, err
}

func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var pageNumber sql.NullInt64

	err := row.Scan(
		&chunk.ID,
		&chunk.DocumentID,
		&chunk.Index,
		&chunk.Text,
		&chunk.StartChar,
		&chunk.EndChar,
		&pageNumber,
		&chunk.TokenCount,
		&chunk.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	chunk.PageNumber = IntPtr(pageNumber)
	return &chunk, nil
}
