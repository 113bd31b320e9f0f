package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/depscan/pkg/mcplog"
)

// loggingMiddleware records every tool call in the JSONL call log. Only
// installed when callLog is non-nil. Log write failures never affect the
// call result.
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := mcplog.Now()
			result, err := next(ctx, req)

			if werr := s.callLog.Write(mcplog.NewEntry(req, start, result, err)); werr != nil {
				s.logger.Warn("Failed to write tool call log", "tool", req.Params.Name, "error", werr)
			}
			return result, err
		}
	}
}
