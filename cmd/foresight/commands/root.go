package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "foresight",
	Short: "Foresight - LLM-driven competitive intelligence",
	Long: `Foresight analyzes a company's public footprint across patents, job
postings, press coverage, and open source activity. An LLM agent gathers
evidence through tools, deterministic metrics are computed over it, and the
result is a structured report with grounded predictions.`,
	Version: Version,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(mcpCmd)
}

// setupLogging installs the default slog logger at the given level.
func setupLogging(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", level)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger, nil
}

// effectiveLogLevel picks the CLI flag over the config value.
func effectiveLogLevel(configured string) string {
	if logLevel != "" {
		return logLevel
	}
	return configured
}
