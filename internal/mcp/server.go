// Package mcp exposes the company intelligence tools over the Model
// Context Protocol so external assistants can fetch the same patent, job,
// news, and repository data the built-in agent uses.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/foresight-intel/foresight/internal/agent/tools"
)

// Server wraps an mcp-go server around the tool registry.
type Server struct {
	mcpServer *server.MCPServer
	registry  *tools.Registry
	logger    *slog.Logger
}

// NewServer builds an MCP server exposing every registered tool.
func NewServer(registry *tools.Registry, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mcpServer := server.NewMCPServer(
		"Foresight MCP Server",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		registry:  registry,
		logger:    logger,
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

func (s *Server) registerTools() {
	for _, tool := range s.registry.List() {
		schemaJSON, err := json.Marshal(tool.InputSchema())
		if err != nil {
			panic(fmt.Sprintf("failed to marshal schema for tool %s: %v", tool.Name(), err))
		}
		mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schemaJSON)
		s.mcpServer.AddTool(mcpTool, s.createToolHandler(tool.Name()))
		s.logger.Debug("registered MCP tool", "name", tool.Name())
	}
}

func (s *Server) createToolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		result := s.registry.Execute(ctx, name, args)
		if !result.Success {
			return mcp.NewToolResultError(result.Error), nil
		}

		resultJSON, err := json.MarshalIndent(result.Data, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
		}
		if result.Summary != "" {
			return mcp.NewToolResultText(result.Summary + "\n" + string(resultJSON)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func (s *Server) registerPrompts() {
	prompt := mcp.Prompt{
		Name:        "competitive_analysis",
		Description: "Gather signals across patents, hiring, press, and open source for one company",
		Arguments: []mcp.PromptArgument{
			{Name: "company", Description: "Company name to analyze", Required: true},
			{Name: "focus", Description: "Optional area to emphasize (e.g. hiring, patents)", Required: false},
		},
	}

	s.mcpServer.AddPrompt(prompt, func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		company := request.Params.Arguments["company"]
		focus := request.Params.Arguments["focus"]

		text := fmt.Sprintf("Analyze %s. Call get_patents, get_jobs, get_news, and get_github to gather evidence, then summarize what the signals say about their direction.", company)
		if focus != "" {
			text += fmt.Sprintf(" Emphasize: %s.", focus)
		}

		return &mcp.GetPromptResult{
			Description: "Competitive analysis workflow",
			Messages: []mcp.PromptMessage{
				{
					Role: mcp.RoleUser,
					Content: mcp.TextContent{
						Type: "text",
						Text: text,
					},
				},
			},
		}, nil
	})
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}
