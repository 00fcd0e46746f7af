package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
	"github.com/astra-labs/astra-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	maxUpload  int64
	logger     *slog.Logger

	// Services
	ingestService   driving.IngestService
	indexService    driving.IndexService
	queryService    driving.QueryService
	documentService driving.DocumentService

	// Infrastructure
	taskQueue   driven.TaskQueue   // nil means inline indexing
	vectorStore driven.VectorStore // readiness collection count
	db          Pinger             // PostgreSQL health check
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	MaxUploadBytes int64
	AuthEnabled    bool
	JWTSecret      string
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		MaxUploadBytes: domain.MaxUploadBytes,
		AllowedOrigins: []string{"*"},
	}
}

// Dependencies bundles the services and infrastructure the server needs.
type Dependencies struct {
	IngestService   driving.IngestService
	IndexService    driving.IndexService
	QueryService    driving.QueryService
	DocumentService driving.DocumentService
	TaskQueue       driven.TaskQueue // optional
	VectorStore     driven.VectorStore
	DB              Pinger
	Logger          *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = domain.MaxUploadBytes
	}

	s := &Server{
		router:          http.NewServeMux(),
		version:         cfg.Version,
		maxUpload:       maxUpload,
		logger:          logger,
		ingestService:   deps.IngestService,
		indexService:    deps.IndexService,
		queryService:    deps.QueryService,
		documentService: deps.DocumentService,
		taskQueue:       deps.TaskQueue,
		vectorStore:     deps.VectorStore,
		db:              deps.DB,
	}

	s.setupRoutes(cfg)

	handler := NewRecoveryMiddleware(logger).Handler(
		NewCORSMiddleware(cfg.AllowedOrigins).Handler(
			NewLoggingMiddleware(logger).Handler(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config) {
	auth := NewAuthMiddleware(cfg.JWTSecret, cfg.AuthEnabled)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Ingestion
	s.router.Handle("POST /api/v1/ingest/upload",
		auth.Authenticate(http.HandlerFunc(s.handleUpload)))

	// Documents
	s.router.Handle("GET /api/v1/documents",
		auth.Authenticate(http.HandlerFunc(s.handleListDocuments)))
	s.router.Handle("GET /api/v1/documents/{id}",
		auth.Authenticate(http.HandlerFunc(s.handleGetDocument)))
	s.router.Handle("GET /api/v1/documents/{id}/progress",
		auth.Authenticate(http.HandlerFunc(s.handleGetProgress)))
	s.router.Handle("GET /api/v1/documents/{id}/content",
		auth.Authenticate(http.HandlerFunc(s.handleGetContent)))
	s.router.Handle("DELETE /api/v1/documents/{id}",
		auth.Authenticate(http.HandlerFunc(s.handleDeleteDocument)))

	// Indexing
	s.router.Handle("POST /api/v1/index",
		auth.Authenticate(http.HandlerFunc(s.handleIndex)))

	// Query
	s.router.Handle("POST /api/v1/query",
		auth.Authenticate(http.HandlerFunc(s.handleQuery)))
	s.router.Handle("POST /api/v1/query/clear-cache",
		auth.Authenticate(http.HandlerFunc(s.handleClearCache)))
}

// Handler returns the fully wrapped HTTP handler, used in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server. Blocks until the server exits.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
