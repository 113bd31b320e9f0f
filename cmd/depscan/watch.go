package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/gnana997/depscan/pkg/indexer"
	"github.com/gnana997/depscan/pkg/metrics"
)

func watchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Scan a workspace, then re-extract files as they change",
		Long: `Scan a workspace, then watch it and re-extract files as they change.
One line is printed per change. With --metrics-addr, Prometheus metrics are
served at /metrics until the command is interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := rootArg(args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				a.cfg.Watch.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
			}
			if cmd.Flags().Changed("debounce") {
				a.cfg.Watch.DebounceMs, _ = cmd.Flags().GetInt("debounce")
			}

			ws, err := a.newWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx, stop := scanContext(cmd)
			defer stop()

			if addr := a.cfg.Watch.MetricsAddr; addr != "" {
				shutdown := a.serveMetrics(addr)
				defer shutdown()
			}

			stats, err := ws.scanner.ScanWorkspace(ctx, root, a.scanOptions(cmd), nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "indexed %d files (%d failed) under %s\n", stats.FilesIndexed, stats.FilesFailed, root)
			if stats.Cancelled {
				return nil
			}

			var outMu sync.Mutex
			options := a.cfg.WatchOptions()
			options.OnChange = func(e indexer.WatchEvent) {
				outMu.Lock()
				defer outMu.Unlock()
				fmt.Fprintln(a.stdout, formatWatchEvent(e))
			}

			watcher, err := indexer.NewFileWatcher(ws.index, ws.extractor, ws.files, options, a.logger)
			if err != nil {
				return err
			}
			defer watcher.Stop()

			if err := watcher.Start(ctx, root); err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		},
	}

	addScanFlags(cmd)
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().Int("debounce", 0, "debounce delay in milliseconds")
	return cmd
}

func formatWatchEvent(e indexer.WatchEvent) string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Op, e.FilePath, e.Err)
	case e.Result != nil:
		return fmt.Sprintf("%s %s: [%s]", e.Op, e.FilePath, strings.Join(e.Result.Specifiers, ", "))
	default:
		return fmt.Sprintf("%s %s", e.Op, e.FilePath)
	}
}

// serveMetrics serves /metrics in the background and returns a function
// that shuts the server down.
func (a *app) serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
