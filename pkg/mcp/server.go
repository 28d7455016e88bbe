// Package mcp exposes the rewriter to MCP clients over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/mtag/pkg/mcplog"
	"github.com/gnana997/mtag/pkg/rewriter"
	"github.com/gnana997/mtag/pkg/workspace"
)

// Version is reported to MCP clients; the CLI overrides it at build time.
var Version = "0.1.0-dev"

// Server implements the MCP server for mtag.
type Server struct {
	mcpServer *server.MCPServer
	rewriter  *rewriter.Rewriter
	runner    *workspace.Runner
	logger    *mcplog.Logger // nil disables call logging
}

// NewServer creates a server backed by rw for in-memory sources and runner
// for files on disk. callLog may be nil.
func NewServer(rw *rewriter.Rewriter, runner *workspace.Runner, callLog *mcplog.Logger) *Server {
	s := &Server{rewriter: rw, runner: runner, logger: callLog}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if callLog != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}

	s.mcpServer = server.NewMCPServer("mtag", Version, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: tagSourceTool(), Handler: s.handleTagSource},
		server.ServerTool{Tool: tagFileTool(), Handler: s.handleTagFile},
		server.ServerTool{Tool: describePathTool(), Handler: s.handleDescribePath},
		server.ServerTool{Tool: indexWorkspaceTool(), Handler: s.handleIndexWorkspace},
		server.ServerTool{Tool: findComponentTool(), Handler: s.handleFindComponent},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
