package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"mediamill/internal/events"
	"mediamill/internal/queue"
	"mediamill/internal/workspace"
)

// JobQueuer defines the interface for job queue operations
type JobQueuer interface {
	Enqueue(ctx context.Context, req queue.EnqueueRequest) (string, error)
	Fetch(ctx context.Context, jobID string) (*queue.Job, error)
	List(ctx context.Context) ([]queue.Summary, error)
	Depth(ctx context.Context) (int, error)
}

// Uploader defines the interface for persisting uploaded files
type Uploader interface {
	SaveUpload(originalName string, r io.Reader) (workspace.StoredFile, error)
	OutputPathFor(fileID, ext string) string
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is a single bearer token. Empty leaves the API unauthenticated.
	APIKey string
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	queue     JobQueuer
	uploads   Uploader
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	events    *events.Hub
}

// New creates a new API server instance
func New(config Config, queue JobQueuer, uploads Uploader, hub *events.Hub, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		queue:     queue,
		uploads:   uploads,
		logger:    logger,
		startedAt: time.Now(),
		events:    hub,
	}
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // /api/events streams indefinitely
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)
	if s.config.APIKey == "" {
		s.logger.Warn("no API key configured, API is unauthenticated")
	}

	// Run server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	// Job API.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/api/enqueue", s.handleEnqueue)
		r.Get("/api/jobs", s.handleListJobs)
		r.Get("/api/jobs/{jobID}", s.handleGetJob)
		r.Get("/api/tasks", s.handleListTasks)
		r.Post("/api/upload", s.handleUpload)
		r.Post("/api/process", s.handleProcess)
		r.Get("/api/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
