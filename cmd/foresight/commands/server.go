package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/foresight-intel/foresight/internal/agent/audit"
	"github.com/foresight-intel/foresight/internal/agent/session"
	"github.com/foresight-intel/foresight/internal/api"
	"github.com/foresight-intel/foresight/internal/config"
	"github.com/foresight-intel/foresight/internal/mcp"
	"github.com/foresight-intel/foresight/internal/tracing"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the analysis API server",
	Long: `Run the HTTP server exposing company analysis. Endpoints:

  POST /api/v1/analyze   run an analysis session for a company
  GET  /healthz          liveness probe
  GET  /readyz           readiness probe
  GET  /metrics          Prometheus metrics
  POST /v1/mcp           MCP endpoint (with --mcp)

The company watchlist (alias map) is hot-reloaded when the file changes.`,
	RunE: runServer,
}

var (
	serverPort int
	serverMCP  bool
)

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 0,
		"Port to listen on (overrides config)")
	serverCmd.Flags().BoolVar(&serverMCP, "mcp", false,
		"Also expose the source tools over MCP at /v1/mcp")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.ReadFile(configPath)
	if err != nil {
		return err
	}
	if serverPort > 0 {
		cfg.Server.Port = serverPort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := setupLogging(effectiveLogLevel(cfg.LogLevel))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	tracingProvider, err := tracing.NewProvider(tracing.Config{
		Enabled:  cfg.Tracing.Enabled,
		Endpoint: cfg.Tracing.Endpoint,
	}, logger)
	if err != nil {
		return err
	}
	defer tracingProvider.Shutdown(context.Background())

	adapters, cleanup, err := buildAdapters(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	registry := newRegistry(adapters, logger)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := session.NewMetrics(promRegistry, "foresight")

	if cfg.Audit.Dir != "" {
		if err := os.MkdirAll(cfg.Audit.Dir, 0o750); err != nil {
			return fmt.Errorf("creating audit dir: %w", err)
		}
	}

	// Sessions are single-use; each request builds a fresh one over the
	// shared provider, registry, and metrics.
	analyzer := api.AnalyzerFunc(func(ctx context.Context, company string) (*session.Outcome, error) {
		sessionID := uuid.NewString()
		opts := []session.Option{
			session.WithID(sessionID),
			session.WithLogger(logger),
			session.WithMetrics(metrics),
		}
		if cfg.Audit.Dir != "" {
			auditLogger, err := audit.NewLogger(filepath.Join(cfg.Audit.Dir, sessionID+".jsonl"), sessionID)
			if err != nil {
				logger.Warn("audit log unavailable for session", "session_id", sessionID, "error", err)
			} else {
				defer auditLogger.Close()
				opts = append(opts, session.WithAudit(auditLogger))
			}
		}
		sess := session.New(p, registry, sessionConfig(cfg), opts...)
		return sess.Run(ctx, company)
	})

	apiOpts := api.Options{Gatherer: promRegistry, Logger: logger}
	if serverMCP {
		apiOpts.MCPServer = mcp.NewServer(registry, Version, logger).MCPServer()
	}
	server := api.New(cfg.Server.Port, analyzer, apiOpts)

	var watcher *config.WatchlistWatcher
	if cfg.Sources.WatchlistPath != "" {
		watcher, err = config.NewWatchlistWatcher(config.WatcherConfig{
			FilePath: cfg.Sources.WatchlistPath,
		}, func(wl *config.WatchlistFile) error {
			server.SetResolver(wl.Resolver())
			return nil
		}, logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	if err := server.Start(ctx); err != nil {
		return err
	}
	logger.Info("foresight server running", "port", cfg.Server.Port, "provider", p.Name())

	<-sigCh
	logger.Info("shutdown signal received")
	cancel()
	return server.Stop(context.Background())
}
