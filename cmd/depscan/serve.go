package main

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/gnana997/depscan/pkg/mcp"
	"github.com/gnana997/depscan/pkg/mcplog"
)

func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("mcp-log") {
				a.cfg.MCP.LogPath, _ = cmd.Flags().GetString("mcp-log")
			}

			callLog, err := mcplog.NewLogger(a.cfg.MCP.LogPath)
			if err != nil {
				return err
			}
			if callLog != nil {
				defer callLog.Close()
			}

			ws, err := a.newWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()

			a.logger.Info("Starting MCP server", "version", version, "call_log", a.cfg.MCP.LogPath)
			srv := mcpserver.NewServer(ws.extractor, ws.scanner, callLog, a.logger)
			return srv.ServeStdio()
		},
	}

	cmd.Flags().String("mcp-log", "", "append a JSONL line per tool call to this file")
	return cmd
}
