package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/foresight-intel/foresight/internal/config"
	"github.com/foresight-intel/foresight/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the source tools over MCP on stdin/stdout",
	Long: `Run an MCP server exposing get_patents, get_jobs, get_news, and
get_github over stdio, for use from MCP-capable assistants.

Example Claude Desktop configuration:
  {
    "mcpServers": {
      "foresight": {
        "command": "foresight",
        "args": ["mcp", "--config", "/etc/foresight/config.yaml"]
      }
    }
  }`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Logs go to stderr; stdout belongs to the MCP transport.
	logger, err := setupLogging(effectiveLogLevel(cfg.LogLevel))
	if err != nil {
		return err
	}

	ctx := context.Background()
	adapters, cleanup, err := buildAdapters(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := mcp.NewServer(newRegistry(adapters, logger), Version, logger)
	logger.Info("serving MCP over stdio")
	return server.ServeStdio()
}
