package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/mtag/pkg/mcplog"
)

// loggingMiddleware records every tool call in the JSONL call log. Only
// installed when the server has a logger.
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := mcplog.Now()
			result, err := next(ctx, req)
			_ = s.logger.Write(mcplog.NewEntry(req, start, result, err))
			return result, err
		}
	}
}
