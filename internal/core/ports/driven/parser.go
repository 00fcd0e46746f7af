package driven

import (
	"context"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// Parser extracts plain text (and pages, where the format has them)
// from an uploaded file.
type Parser interface {
	// Parse extracts text from raw file bytes.
	// Paginated formats fill Pages; others leave it empty.
	Parse(ctx context.Context, data []byte, filename string) (*domain.ParsedDocument, error)

	// SupportedExtensions returns lowercase extensions this parser
	// handles, including the dot (".pdf")
	SupportedExtensions() []string

	// Priority returns the parser priority (higher = more specific).
	// Format-specific parsers sit at 50, fallbacks below 10.
	Priority() int

	// Name returns the parser name for logging/debugging
	Name() string
}

// ParserRegistry manages file parsers.
// When multiple parsers claim an extension, the highest priority one is used.
type ParserRegistry interface {
	// Get retrieves the best-matching parser for a file extension.
	// Returns nil if no parser is registered for the extension.
	Get(extension string) Parser

	// Register registers a parser
	Register(parser Parser)

	// List returns all registered extensions
	List() []string
}
