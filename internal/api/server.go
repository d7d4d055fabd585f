// Package api exposes the HTTP surface: evaluation, the review workflow,
// policy management, and the audit log.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/explainable-finance/verdict/internal/domain"
	"github.com/explainable-finance/verdict/internal/engine"
	"github.com/explainable-finance/verdict/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.ResultCache, bus domain.EventBus, evaluator *engine.Evaluator, policies *rules.PolicyEngine, version string) *Server {
	handler := NewHandler(repo, cache, bus, evaluator, policies, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Direct evaluation
	router.Post("/decision/{domain}", handler.Decide)
	router.Post("/decision/{domain}/batch", handler.DecideBatch)
	router.Post("/decision/{domain}/upload", handler.DecideUpload)

	// Application review workflow
	router.Post("/applications", handler.SubmitApplication)
	router.Get("/applications", handler.ListApplications)
	router.Get("/applications/{id}", handler.GetApplication)
	router.Post("/applications/{id}/review", handler.ReviewApplication)
	router.Put("/applications/{id}/explanation", handler.UpdateExplanation)

	// Policy management
	router.Get("/policies", handler.ListPolicies)
	router.Post("/policies", handler.CreatePolicy)
	router.Post("/policies/reload", handler.ReloadPolicies)
	router.Post("/policies/upload", handler.UploadPolicies)
	router.Get("/policies/{id}", handler.GetPolicy)
	router.Put("/policies/{id}", handler.UpdatePolicy)
	router.Delete("/policies/{id}", handler.DeletePolicy)

	// Audit trail
	router.Get("/audit-log", handler.AuditLog)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
