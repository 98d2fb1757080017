// Package mcp serves the tool registry over the Model Context Protocol.
package mcp

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nextlevelbuilder/gomemory/internal/tools"
	"github.com/nextlevelbuilder/gomemory/pkg/protocol"
)

// Server exposes every tool of a registry as an MCP tool.
type Server struct {
	mcp      *server.MCPServer
	registry *tools.Registry
	logger   *slog.Logger
}

// NewServer registers the tools currently in registry.
func NewServer(registry *tools.Registry, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp: server.NewMCPServer(protocol.ServerName, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		registry: registry,
		logger:   logger,
	}
	for _, t := range registry.Tools() {
		s.mcp.AddTool(toolDefinition(t), s.handler(t.Name()))
	}
	logger.Debug("mcp tools registered", "count", registry.Count())
	return s
}

// MCPServer returns the underlying server, for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// ServeStdio answers JSON-RPC requests on in and out until ctx is done or in
// is closed. stdout must carry nothing but protocol frames.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp server listening on stdio", "tools", s.registry.Count())
	return stdio.Listen(ctx, in, out)
}

// HTTPHandler serves the same tools over MCP streamable HTTP.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		res := s.registry.Execute(ctx, name, req.GetArguments())
		out := mcpgo.NewToolResultText(res.JSON())
		out.IsError = !res.Success
		return out, nil
	}
}

// toolDefinition converts a tool's JSON Schema map into an MCP tool.
func toolDefinition(t tools.Tool) mcpgo.Tool {
	def := mcpgo.NewTool(t.Name(), mcpgo.WithDescription(t.Description()))
	def.InputSchema = schemaFromMap(t.Parameters())
	if ro, ok := t.(tools.ReadOnlyTool); ok && ro.ReadOnly() {
		def.Annotations.ReadOnlyHint = mcpgo.ToBoolPtr(true)
	}
	return def
}

func schemaFromMap(m map[string]any) mcpgo.ToolInputSchema {
	schema := mcpgo.ToolInputSchema{Type: "object", Properties: map[string]any{}}
	if typ, ok := m["type"].(string); ok && typ != "" {
		schema.Type = typ
	}
	if props, ok := m["properties"].(map[string]any); ok {
		schema.Properties = props
	}
	if req, ok := m["required"].([]string); ok {
		schema.Required = req
	}
	return schema
}
