// Package api provides the read-only HTTP API over the bucket tables. It
// consumes only the state the worker produces; there is no write path back
// into the engine.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/account-tracker/internal/logging"
	"github.com/account-tracker/internal/models"
	"github.com/account-tracker/internal/storage"
	"github.com/gorilla/mux"
)

// BucketReader reads persisted bucket records.
type BucketReader interface {
	List(ctx context.Context, bucket models.Bucket, limit int) ([]models.BucketRecord, error)
	Counts(ctx context.Context) (*storage.TableCounts, error)
}

// BaselineReader reads baseline metadata.
type BaselineReader interface {
	LatestBaselineAt(ctx context.Context) (*time.Time, error)
	Count(ctx context.Context) (int, error)
}

// RunReader reads the latest run summary.
type RunReader interface {
	Latest(ctx context.Context) (*models.RunSummary, error)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	buckets    BucketReader
	baselines  BaselineReader
	runs       RunReader
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	BearerToken     string // empty disables the auth check
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, buckets BucketReader, baselines BaselineReader, runs RunReader) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		buckets:   buckets,
		baselines: baselines,
		runs:      runs,
		config:    config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes. The health check stays open; the
// data endpoints sit behind the optional bearer check.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	auth := BearerAuthMiddleware(s.config.BearerToken)
	s.router.Handle("/data/latest", auth(http.HandlerFunc(s.handleDataLatest))).Methods("GET")
	s.router.Handle("/status", auth(http.HandlerFunc(s.handleStatus))).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "account-tracker",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.L().WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.L().Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
