package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrFileTooLarge indicates the upload exceeds the size limit
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedFileType indicates no parser accepts the file extension
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrNoChunks indicates chunking produced no chunks from the document
	ErrNoChunks = errors.New("no chunks created from document")

	// ErrOutOfMemory indicates an embedding call failed due to memory pressure
	ErrOutOfMemory = errors.New("out of memory")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates the AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
