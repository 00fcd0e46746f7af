package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Save creates or updates a document
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, owner_id, filename, file_type, file_size, status, total_pages, total_chunks, total_characters, error_message, uploaded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			total_pages = EXCLUDED.total_pages,
			total_chunks = EXCLUDED.total_chunks,
			total_characters = EXCLUDED.total_characters,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.OwnerID,
		doc.Filename,
		doc.FileType,
		doc.FileSize,
		string(doc.Status),
		NullInt(doc.TotalPages),
		doc.TotalChunks,
		doc.TotalCharacters,
		nullIfEmpty(doc.ErrorMessage),
		doc.UploadedAt,
		doc.UpdatedAt,
	)
	return err
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	query := `
		SELECT id, owner_id, filename, file_type, file_size, status, total_pages, total_chunks, total_characters, error_message, uploaded_at, updated_at
		FROM documents
		WHERE id = $1
	`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// List retrieves documents for an owner with pagination, newest first.
// An empty ownerID lists across all owners.
func (s *DocumentStore) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error) {
	query := `
		SELECT id, owner_id, filename, file_type, file_size, status, total_pages, total_chunks, total_characters, error_message, uploaded_at, updated_at
		FROM documents
		WHERE ($1 = '' OR owner_id = $1)
		ORDER BY uploaded_at DESC
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

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateStatus sets the lifecycle status and error message
func (s *DocumentStore) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errorMessage string) error {
	query := `
		UPDATE documents
		SET status = $2, error_message = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, string(status), nullIfEmpty(errorMessage), time.Now())
	if err != nil {
		return err
	}
	return requireRow(result)
}

// UpdateCounters sets the post-chunking totals and status
func (s *DocumentStore) UpdateCounters(ctx context.Context, id string, totalPages *int, totalChunks, totalCharacters int, status domain.DocumentStatus) error {
	query := `
		UPDATE documents
		SET total_pages = $2, total_chunks = $3, total_characters = $4, status = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, NullInt(totalPages), totalChunks, totalCharacters, string(status), time.Now())
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete deletes a document. Chunk rows cascade via the FK.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Count returns total document count for an owner
func (s *DocumentStore) Count(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE ($1 = '' OR owner_id = $1)`, ownerID,
	).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var totalPages sql.NullInt64
	var errorMessage sql.NullString

	err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.Filename,
		&doc.FileType,
		&doc.FileSize,
		&status,
		&totalPages,
		&doc.TotalChunks,
		&doc.TotalCharacters,
		&errorMessage,
		&doc.UploadedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Status = domain.DocumentStatus(status)
	doc.TotalPages = IntPtr(totalPages)
	if errorMessage.Valid {
		doc.ErrorMessage = errorMessage.String
	}
	return &doc, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
