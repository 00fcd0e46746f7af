package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  "database unreachable",
			})
			return
		}
	}

	collectionSize := 0
	if s.vectorStore != nil {
		if count, err := s.vectorStore.Count(r.Context()); err == nil {
			collectionSize = count
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ready",
		"collection_size": collectionSize,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Ingestion endpoints

// handleUpload accepts a multipart upload under the "file" field and
// runs the full ingestion pipeline synchronously.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	result, err := s.ingestService.Ingest(r.Context(), driving.UploadRequest{
		OwnerID:  OwnerID(r.Context()),
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// Document endpoints

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	skip := parseIntQuery(r, "skip", 0)
	ownerID := OwnerID(r.Context())

	docs, err := s.documentService.List(r.Context(), ownerID, limit, skip)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	total, err := s.documentService.Count(r.Context(), ownerID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if docs == nil {
		docs = []*domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     total,
		"limit":     limit,
		"skip":      skip,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ownedDocument(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ownedDocument(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	progress, err := s.documentService.Progress(r.Context(), doc.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// handleGetContent returns all chunks of a document, or a single chunk
// when chunk_id holds its index.
func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ownedDocument(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if chunkParam := r.URL.Query().Get("chunk_id"); chunkParam != "" {
		index, err := strconv.Atoi(chunkParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "chunk_id must be an integer")
			return
		}
		chunk, err := s.documentService.Chunk(r.Context(), doc.ID, index)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chunk)
		return
	}

	chunks, err := s.documentService.Chunks(r.Context(), doc.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if chunks == nil {
		chunks = []*domain.Chunk{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": doc.ID,
		"chunks":      chunks,
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ownedDocument(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if err := s.documentService.Delete(r.Context(), doc.ID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Indexing endpoints

// handleIndex triggers an indexing run for one document. With a task
// queue configured the run is enqueued and processed by a worker;
// without one it runs inline.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	documentID := r.URL.Query().Get("doc_id")
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "doc_id is required")
		return
	}
	// Already-indexed chunks are skipped unless explicitly requested
	skipExisting := r.URL.Query().Get("skip_existing") != "false"

	doc, err := s.documentService.Get(r.Context(), documentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if ownerID := OwnerID(r.Context()); ownerID != "" && doc.OwnerID != ownerID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if s.taskQueue != nil {
		task := domain.NewIndexDocumentTask(doc.OwnerID, doc.ID, skipExisting)
		if err := s.taskQueue.Enqueue(r.Context(), task); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"task_id": task.ID,
			"status":  string(task.Status),
		})
		return
	}

	report, err := s.indexService.Index(r.Context(), doc.ID, skipExisting)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Query endpoints

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OwnerID = OwnerID(r.Context())

	result, err := s.queryService.Query(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.queryService.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Helper functions

// ownedDocument loads the path document and enforces owner scoping.
// A document belonging to someone else is reported as not found.
func (s *Server) ownedDocument(r *http.Request) (*domain.Document, error) {
	doc, err := s.documentService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if ownerID := OwnerID(r.Context()); ownerID != "" && doc.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

// writeServiceError maps domain errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrUnsupportedFileType),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNoChunks):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func parseIntQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
