// Package mcp binds the trace queries to the Model Context Protocol (MCP) server standard.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"agenttrace/internal/query"
)

// Dispatcher is the query surface the MCP tools call into.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args query.Args) (string, error)
	Catalog() []query.Definition
}

// Server defines the MCP capability layer, exposing one read-only tool per trace query.
type Server struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// New creates a new MCP server wrapper
func New(d Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{dispatcher: d, logger: logger}
}

// Tools builds the tool definitions from the query catalog.
func (s *Server) Tools() []mcplib.Tool {
	defs := s.dispatcher.Catalog()
	tools := make([]mcplib.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, newTool(def))
	}
	return tools
}

// RegisterTools registers the trace tools with the MCP server
func (s *Server) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range s.dispatcher.Catalog() {
		mcpServer.AddTool(newTool(def), s.Handler(def.Name))
	}
}

// Handler returns the tool handler for one query name. Not-found results are
// plain text; only dispatch failures become tool errors.
func (s *Server) Handler(queryName string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		out, err := s.dispatcher.Dispatch(ctx, queryName, query.Args(request.GetArguments()))
		if err != nil {
			if errors.Is(err, query.ErrUnsupportedQuery) {
				return mcplib.NewToolResultError(fmt.Sprintf("Unknown tool: %s", request.Params.Name)), nil
			}
			s.logger.Error("mcp: tool call failed", "tool", request.Params.Name, "error", err)
			return mcplib.NewToolResultError(fmt.Sprintf("Query failed: %v", err)), nil
		}
		return mcplib.NewToolResultText(out), nil
	}
}

func newTool(def query.Definition) mcplib.Tool {
	opts := []mcplib.ToolOption{
		mcplib.WithDescription(def.Description),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithIdempotentHintAnnotation(true),
		mcplib.WithOpenWorldHintAnnotation(false),
	}
	for _, p := range def.Params {
		props := []mcplib.PropertyOption{mcplib.Description(p.Description)}
		if p.Required {
			props = append(props, mcplib.Required())
		}
		if len(p.Enum) > 0 {
			props = append(props, mcplib.Enum(p.Enum...))
		}

		switch p.Type {
		case query.ParamNumber:
			if n, ok := p.Default.(int); ok {
				props = append(props, mcplib.Min(1), mcplib.DefaultNumber(float64(n)))
			}
			opts = append(opts, mcplib.WithNumber(p.Name, props...))
		default:
			if v, ok := p.Default.(string); ok {
				props = append(props, mcplib.DefaultString(v))
			}
			opts = append(opts, mcplib.WithString(p.Name, props...))
		}
	}
	return mcplib.NewTool(def.ToolName, opts...)
}
