package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/depscan/pkg/cache"
	"github.com/gnana997/depscan/pkg/indexer"
	"github.com/gnana997/depscan/pkg/mcplog"
)

const serverVersion = "0.1.0"

// Server implements the MCP server for depscan, exposing specifier
// extraction and the workspace dependency index as tools.
type Server struct {
	mcpServer *server.MCPServer
	extractor *cache.Extractor
	scanner   *indexer.WorkspaceScanner
	callLog   *mcplog.Logger
	logger    *slog.Logger
}

// NewServer creates a new MCP server. callLog may be nil to disable the
// per-call JSONL log.
func NewServer(ex *cache.Extractor, scanner *indexer.WorkspaceScanner, callLog *mcplog.Logger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{extractor: ex, scanner: scanner, callLog: callLog, logger: logger}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if callLog != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}

	s.mcpServer = server.NewMCPServer("depscan", serverVersion, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: extractRequiresTool(), Handler: s.handleExtractRequires},
		server.ServerTool{Tool: scanWorkspaceTool(), Handler: s.handleScanWorkspace},
		server.ServerTool{Tool: getFileDependenciesTool(), Handler: s.handleGetFileDependencies},
		server.ServerTool{Tool: findDependentsTool(), Handler: s.handleFindDependents},
		server.ServerTool{Tool: parseDependenciesTool(), Handler: s.handleParseDependencies},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
