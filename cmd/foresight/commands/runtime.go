package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/firestore"

	"github.com/foresight-intel/foresight/internal/agent/provider"
	"github.com/foresight-intel/foresight/internal/agent/session"
	"github.com/foresight-intel/foresight/internal/agent/tools"
	"github.com/foresight-intel/foresight/internal/config"
	"github.com/foresight-intel/foresight/internal/sources"
)

// buildAdapters wires the four source adapters from config. The returned
// cleanup closes any cloud clients.
func buildAdapters(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]sources.Adapter, func(), error) {
	var (
		adapters []sources.Adapter
		cleanup  = func() {}
	)

	if cfg.Sources.FixturesPath != "" {
		static, err := sources.LoadFixtures(cfg.Sources.FixturesPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading fixtures: %w", err)
		}
		logger.Info("using static fixtures", "path", cfg.Sources.FixturesPath)
		for _, a := range static {
			adapters = append(adapters, a)
		}
	} else {
		fsClient, err := firestore.NewClient(ctx, cfg.Sources.GCPProject)
		if err != nil {
			return nil, nil, fmt.Errorf("creating Firestore client: %w", err)
		}
		bqClient, err := bigquery.NewClient(ctx, cfg.Sources.GCPProject)
		if err != nil {
			fsClient.Close()
			return nil, nil, fmt.Errorf("creating BigQuery client: %w", err)
		}
		cleanup = func() {
			fsClient.Close()
			bqClient.Close()
		}
		adapters = []sources.Adapter{
			sources.NewJobsAdapter(fsClient, logger),
			sources.NewNewsAdapter(fsClient, logger),
			sources.NewPatentAdapter(bqClient, cfg.Sources.PatentLimit, logger),
			sources.NewReposAdapter(fsClient, logger),
		}
	}

	fetchTimeout := time.Duration(cfg.Sources.FetchTimeoutSeconds) * time.Second
	for i, a := range adapters {
		if fetchTimeout > 0 {
			a = &sources.WithTimeout{Inner: a, Timeout: fetchTimeout}
		}
		if cfg.Sources.CacheSize > 0 {
			cached, err := sources.NewCached(a, cfg.Sources.CacheSize)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("creating source cache: %w", err)
			}
			a = cached
		}
		adapters[i] = a
	}
	return adapters, cleanup, nil
}

// buildProvider constructs the model backend from config. API keys come
// from GEMINI_API_KEY and ANTHROPIC_API_KEY.
func buildProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (provider.Provider, error) {
	pcfg := provider.Config{
		Model:       cfg.Provider.Model,
		MaxTokens:   cfg.Provider.MaxTokens,
		Temperature: cfg.Provider.Temperature,
	}

	var (
		inner provider.Provider
		err   error
	)
	switch cfg.Provider.Name {
	case "mock":
		scenario, loadErr := provider.LoadScenario(cfg.Provider.ScenarioPath)
		if loadErr != nil {
			return nil, loadErr
		}
		// No retry wrapper: the script is deterministic.
		return provider.NewScripted(scenario), nil

	case "gemini":
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("Gemini API key required: set GEMINI_API_KEY")
		}
		inner, err = provider.NewGeminiProvider(ctx, apiKey, pcfg)

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("Anthropic API key required: set ANTHROPIC_API_KEY")
		}
		inner, err = provider.NewAnthropicProvider(apiKey, pcfg)

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider.Name)
	}
	if err != nil {
		return nil, err
	}

	retrying := provider.NewRetrying(inner, logger)
	if cfg.Provider.MaxRetries > 0 {
		retrying.MaxRetries = cfg.Provider.MaxRetries
	}
	return retrying, nil
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		MaxIterations: cfg.Session.MaxIterations,
		Timeout:       time.Duration(cfg.Session.TimeoutSeconds) * time.Second,
		ToolTimeout:   time.Duration(cfg.Session.ToolTimeoutSeconds) * time.Second,
	}
}

func newRegistry(adapters []sources.Adapter, logger *slog.Logger) *tools.Registry {
	return tools.NewRegistry(tools.Dependencies{Adapters: adapters, Logger: logger})
}
