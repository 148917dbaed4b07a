package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driving"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/poller"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/runtime"
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
	deployment string
	streams    *poller.Supervisor
	logger     *slog.Logger

	// Services
	intakeService driving.IntakeService
	resultService driving.ResultService
	agents        *runtime.AgentDirectory

	// Infrastructure
	taskQueue      driven.TaskQueue
	callbackTokens driven.CallbackTokens
	adminAuth      driven.AdminAuth
	db             Pinger // PostgreSQL health check (optional)
	redisClient    Pinger // Redis health check (optional)

	intakeLimiter *RateLimitMiddleware
	corsOrigins   []string
}

// Config holds server configuration
type Config struct {
	Host       string
	Port       int
	Version    string
	Deployment string

	// Poll configures the server-side resolver behind the event stream
	Poll poller.Resolver

	// IntakeRatePerSec and IntakeBurst limit searches per client
	IntakeRatePerSec float64
	IntakeBurst      int
	// TrustProxyHeaders keys the intake limiter on forwarding headers
	TrustProxyHeaders bool

	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:             "0.0.0.0",
		Port:             8080,
		Version:          "dev",
		IntakeRatePerSec: 5,
		IntakeBurst:      10,
		AllowedOrigins:   []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	intakeService driving.IntakeService,
	resultService driving.ResultService,
	agents *runtime.AgentDirectory,
	taskQueue driven.TaskQueue,
	callbackTokens driven.CallbackTokens,
	adminAuth driven.AdminAuth, // can be nil
	db Pinger, // can be nil
	redisClient Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		deployment:     cfg.Deployment,
		logger:         logger,
		intakeService:  intakeService,
		resultService:  resultService,
		agents:         agents,
		taskQueue:      taskQueue,
		callbackTokens: callbackTokens,
		adminAuth:      adminAuth,
		db:             db,
		redisClient:    redisClient,
		intakeLimiter:  NewRateLimitMiddleware(cfg.IntakeRatePerSec, cfg.IntakeBurst, cfg.TrustProxyHeaders),
		corsOrigins:    cfg.AllowedOrigins,
	}
	stream := cfg.Poll
	if resultService != nil {
		stream.Fetcher = poller.FetcherFunc(resultService.Get)
	}
	s.streams = poller.NewSupervisor(stream, logger)

	if s.deployment == "" && agents != nil {
		s.deployment = agents.Deployment()
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: the event stream stays open for the whole poll budget
		IdleTimeout: 60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewCORSMiddleware(s.corsOrigins).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return h
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	adminMiddleware := NewAdminMiddleware(s.adminAuth)

	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleAPIDoc)

	// Search intake (rate limited)
	s.router.Handle("POST /api/v1/search",
		s.intakeLimiter.Handler(http.HandlerFunc(s.handleSearch)))

	// Polling and session view
	s.router.HandleFunc("GET /api/v1/search/{sessionId}", s.handleGetSession)
	s.router.HandleFunc("GET /api/v1/search/{sessionId}/results", s.handleGetResults)
	s.router.HandleFunc("GET /api/v1/search/{sessionId}/events", s.handleSearchEvents)

	// Workflow callback (session-scoped bearer token)
	s.router.HandleFunc("POST /api/v1/search/callback", s.handleCallback)

	// Legacy routes kept for existing clients and workflows
	s.router.HandleFunc("GET /api/search-results", s.handleLegacyGetResults)
	s.router.HandleFunc("POST /api/search-results", s.handleCallback)

	// Operator endpoints
	s.router.Handle("POST /api/v1/admin/catalog/publish",
		adminMiddleware.RequireAdmin(http.HandlerFunc(s.handlePublishCatalog)))
	s.router.Handle("GET /api/v1/admin/tasks",
		adminMiddleware.RequireAdmin(http.HandlerFunc(s.handleListTasks)))
	s.router.Handle("GET /api/v1/admin/tasks/{id}",
		adminMiddleware.RequireAdmin(http.HandlerFunc(s.handleGetTask)))
	s.router.Handle("GET /api/v1/admin/agent",
		adminMiddleware.RequireAdmin(http.HandlerFunc(s.handleGetAgent)))
	s.router.Handle("POST /api/v1/admin/agent/refresh",
		adminMiddleware.RequireAdmin(http.HandlerFunc(s.handleRefreshAgent)))
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	// Request contexts end with ctx so open event streams close on shutdown
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.streams.Close()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	defer s.streams.Close()
	return s.httpServer.Shutdown(ctx)
}
