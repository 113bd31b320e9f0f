package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/gnana997/depscan/pkg/cache"
	"github.com/gnana997/depscan/pkg/indexer"
	"github.com/gnana997/depscan/pkg/util"
)

// scanReport is the json/yaml form of scan output.
type scanReport struct {
	Root     string                 `json:"root" yaml:"root"`
	Stats    *indexer.ScanStats     `json:"stats" yaml:"stats"`
	Packages []indexer.PackageUsage `json:"packages" yaml:"packages"`
	Index    indexer.IndexStats     `json:"index" yaml:"index"`
}

// workspace bundles what a scan leaves behind for watch and serve.
type workspace struct {
	extractor *cache.Extractor
	index     *indexer.DependencyIndex
	scanner   *indexer.WorkspaceScanner
	files     util.FileCache
	release   func()
}

func (w *workspace) Close() {
	w.index.Close()
	w.files.Close()
	w.release()
}

// newWorkspace wires the extractor, file cache, index and scanner.
func (a *app) newWorkspace() (*workspace, error) {
	ex, release, err := a.newExtractor()
	if err != nil {
		return nil, err
	}

	fcConfig := util.DefaultFileCacheConfig()
	fcConfig.Logger = a.logger
	files, err := util.NewFileCache(fcConfig)
	if err != nil {
		release()
		return nil, err
	}

	index := indexer.NewDependencyIndex(a.logger)
	return &workspace{
		extractor: ex,
		index:     index,
		scanner:   indexer.NewWorkspaceScanner(ex, index, files, a.logger),
		files:     files,
		release:   release,
	}, nil
}

// scanOptions applies --include/--exclude over the configured options.
func (a *app) scanOptions(cmd *cobra.Command) indexer.ScanOptions {
	options := a.cfg.ScanOptions()
	if cmd.Flags().Changed("include") {
		options.Include, _ = cmd.Flags().GetStringSlice("include")
	}
	if cmd.Flags().Changed("exclude") {
		options.Exclude, _ = cmd.Flags().GetStringSlice("exclude")
	}
	return options
}

func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("include", nil, "include glob patterns relative to the root (repeatable)")
	cmd.Flags().StringSlice("exclude", nil, "exclude glob patterns relative to the root (repeatable)")
}

func scanCmd(a *app) *cobra.Command {
	var (
		format string
		top    int
	)

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Extract every source file in a workspace and summarize dependencies",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			root, err := rootArg(args)
			if err != nil {
				return err
			}

			ws, err := a.newWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx, stop := scanContext(cmd)
			defer stop()

			stats, err := ws.scanner.ScanWorkspace(ctx, root, a.scanOptions(cmd), nil)
			if err != nil {
				return err
			}

			report := scanReport{
				Root:     root,
				Stats:    stats,
				Packages: ws.index.Packages(),
				Index:    ws.index.Stats(),
			}
			if top > 0 && len(report.Packages) > top {
				report.Packages = report.Packages[:top]
			}

			switch format {
			case formatJSON:
				return writeJSON(a.stdout, report)
			case formatYAML:
				return writeYAML(a.stdout, report)
			default:
				renderScan(a.stdout, report)
				return nil
			}
		},
	}

	addScanFlags(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: json, yaml, table")
	cmd.Flags().IntVar(&top, "top", 20, "number of packages to list (0 = all)")
	return cmd
}

func rootArg(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root %q: %w", root, err)
	}
	return abs, nil
}

func renderScan(w io.Writer, report scanReport) {
	stats := report.Stats

	summary := newTable(w, table.Row{"Metric", "Value"})
	summary.SetTitle(report.Root)
	summary.AppendRows([]table.Row{
		{"Files discovered", humanize.Comma(int64(stats.FilesDiscovered))},
		{"Files indexed", humanize.Comma(int64(stats.FilesIndexed))},
		{"Files failed", humanize.Comma(int64(stats.FilesFailed))},
		{"Files skipped (size)", humanize.Comma(int64(stats.FilesSkipped))},
		{"Module files", humanize.Comma(int64(stats.ModuleFiles))},
		{"Specifiers", humanize.Comma(int64(stats.SpecifiersExtracted))},
		{"Unique specifiers", humanize.Comma(int64(report.Index.UniqueSpecifiers))},
		{"Bytes read", humanize.IBytes(uint64(stats.BytesRead))},
		{"Duration", (time.Duration(stats.TotalTimeMs) * time.Millisecond).String()},
		{"Files/sec", humanize.FormatFloat("#,###.#", stats.FilesPerSecond)},
		{"Workers", stats.WorkerCount},
	})
	if stats.Cancelled {
		summary.AppendRow(table.Row{"Cancelled", "yes"})
	}
	summary.Render()

	if len(report.Packages) > 0 {
		fmt.Fprintln(w)
		packages := newTable(w, table.Row{"Package", "Files"})
		for _, p := range report.Packages {
			packages.AppendRow(table.Row{p.Name, humanize.Comma(int64(p.Files))})
		}
		packages.Render()
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w)
		failures := newTable(w, table.Row{"Failed file", "Error"})
		for _, fe := range stats.Errors {
			failures.AppendRow(table.Row{fe.FilePath, fe.Err.Error()})
		}
		failures.Render()
	}
}

// scanContext returns a context cancelled on SIGINT/SIGTERM.
func scanContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}
