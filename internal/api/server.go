// Package api exposes company analysis over HTTP: a JSON analyze endpoint,
// health and readiness probes, Prometheus metrics, and an optional MCP
// endpoint sharing the same tool surface.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foresight-intel/foresight/internal/agent/session"
	"github.com/foresight-intel/foresight/internal/config"
)

// Analyzer runs one analysis session per call.
type Analyzer interface {
	Analyze(ctx context.Context, company string) (*session.Outcome, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, company string) (*session.Outcome, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, company string) (*session.Outcome, error) {
	return f(ctx, company)
}

// Server handles HTTP API requests.
type Server struct {
	port     int
	server   *http.Server
	router   *http.ServeMux
	logger   *slog.Logger
	analyzer Analyzer
	gatherer prometheus.Gatherer

	// resolver holds the current company alias map. Swapped atomically on
	// watchlist reload.
	resolver atomic.Pointer[config.Resolver]

	mcpServer *mcpserver.MCPServer
}

// Options configures optional server features.
type Options struct {
	// Gatherer serves GET /metrics when set.
	Gatherer prometheus.Gatherer

	// MCPServer is mounted at /v1/mcp when set.
	MCPServer *mcpserver.MCPServer

	Logger *slog.Logger
}

// New creates an API server listening on the given port.
func New(port int, analyzer Analyzer, opts Options) *Server {
	s := &Server{
		port:      port,
		router:    http.NewServeMux(),
		logger:    opts.Logger,
		analyzer:  analyzer,
		gatherer:  opts.Gatherer,
		mcpServer: opts.MCPServer,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.registerHandlers()

	// Session timeouts dominate request latency, so the write timeout has
	// to cover a full analysis run.
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.corsMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// SetResolver installs a new alias resolver. Safe under concurrent requests.
func (s *Server) SetResolver(r *config.Resolver) {
	s.resolver.Store(r)
}

func (s *Server) registerHandlers() {
	s.router.HandleFunc("/api/v1/analyze", s.withMethod(http.MethodPost, s.handleAnalyze))
	s.router.HandleFunc("/healthz", s.handleHealth)
	s.router.HandleFunc("/readyz", s.handleReady)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	if s.mcpServer != nil {
		endpointPath := "/v1/mcp"
		streamable := mcpserver.NewStreamableHTTPServer(
			s.mcpServer,
			mcpserver.WithEndpointPath(endpointPath),
			mcpserver.WithStateLess(true),
		)
		s.router.Handle(endpointPath, streamable)
		s.logger.Info("MCP endpoint registered", "path", endpointPath)
	}
}

// Start begins listening. Non-blocking.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.logger.Info("starting API server", "port", s.port)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ready := s.analyzer != nil
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeData(w, status, map[string]any{"ready": ready})
}

// corsMiddleware adds CORS headers to allow browser access.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withMethod wraps a handler to enforce HTTP method.
func (s *Server) withMethod(method string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
				fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path))
			return
		}
		handler(w, r)
	}
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	return s.port
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.router)
}
