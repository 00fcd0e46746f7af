package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentStatus tracks a document through the ingestion lifecycle
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusIndexed    DocumentStatus = "indexed"
	DocumentStatusError      DocumentStatus = "error"
)

// Valid returns true if the status is one of the known lifecycle states
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing, DocumentStatusIndexed, DocumentStatusError:
		return true
	}
	return false
}

// Document represents an uploaded file and its ingestion state
type Document struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"owner_id"`
	Filename        string         `json:"filename"`
	FileType        string         `json:"file_type"` // lowercase extension including dot, e.g. ".pdf"
	FileSize        int64          `json:"file_size"`
	Status          DocumentStatus `json:"status"`
	TotalPages      *int           `json:"total_pages,omitempty"` // nil for formats without pages
	TotalChunks     int            `json:"total_chunks"`
	TotalCharacters int            `json:"total_characters"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	UploadedAt      time.Time      `json:"uploaded_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Chunk represents a contiguous slice of a document's normalized text
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"` // 0-based position within the document
	Text       string    `json:"text"`
	StartChar  int       `json:"start_char"`
	EndChar    int       `json:"end_char"`
	PageNumber *int      `json:"page_number,omitempty"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Page holds the extracted text of one page of a paginated document.
// Parsers for unpaginated formats return a single page with Number 1.
type Page struct {
	Number int
	Text   string
}

// ParsedDocument is the parser output before normalization
type ParsedDocument struct {
	Text  string
	Pages []Page
}

// PageCount returns the number of extracted pages, or 0 when the format
// has no page structure.
func (p *ParsedDocument) PageCount() int {
	return len(p.Pages)
}

// AllowedFileTypes are the upload extensions accepted by ingestion
var AllowedFileTypes = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".txt":  true,
	".html": true,
	".htm":  true,
}

// MaxUploadBytes is the default upload size limit (50 MiB)
const MaxUploadBytes = 50 * 1024 * 1024

// FileTypeOf extracts the lowercase extension from a filename
func FileTypeOf(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// DocumentProgress reports ingestion progress for a document
type DocumentProgress struct {
	DocumentID  string         `json:"document_id"`
	Status      DocumentStatus `json:"status"`
	TotalChunks int            `json:"total_chunks"`
	Error       string         `json:"error,omitempty"`
}

// IngestResult summarizes a completed (or failed) ingestion
type IngestResult struct {
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	Status     DocumentStatus `json:"status"`
	Stats      IngestStats    `json:"stats"`
}

// IngestStats are the counters produced by a successful ingestion
type IngestStats struct {
	Chunks     int `json:"chunks"`
	Pages      int `json:"pages"`
	Characters int `json:"characters"`
}
