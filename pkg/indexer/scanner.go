package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gnana997/depscan/pkg/metrics"
	"github.com/gnana997/depscan/pkg/parser"
	"github.com/gnana997/depscan/pkg/util"
)

// WorkspaceScanner extracts and indexes entire workspaces in parallel.
//
// **Three-Phase Pipeline:**
//  1. File Discovery - Walk directory tree and find matching files
//  2. Parallel Processing - Read (mmap) and extract files using the worker pool
//  3. Indexing - Store results in the DependencyIndex
//
// **Usage:**
//
//	scanner := NewWorkspaceScanner(extractor, index, fileCache, logger)
//	stats, err := scanner.ScanWorkspace(ctx,
//	    "/path/to/workspace",
//	    DefaultScanOptions(),
//	    func(done, total int, file string) {
//	        fmt.Printf("Progress: %d/%d - %s\n", done, total, file)
//	    },
//	)
type WorkspaceScanner struct {
	extractor FileExtractor
	index     *DependencyIndex
	files     util.FileCache
	logger    *slog.Logger
}

// NewWorkspaceScanner creates a new workspace scanner. files may be nil.
func NewWorkspaceScanner(
	extractor FileExtractor,
	index *DependencyIndex,
	files util.FileCache,
	logger *slog.Logger,
) *WorkspaceScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceScanner{
		extractor: extractor,
		index:     index,
		files:     files,
		logger:    logger,
	}
}

// Index returns the index the scanner writes to.
func (ws *WorkspaceScanner) Index() *DependencyIndex {
	return ws.index
}

// ScanWorkspace scans a workspace and indexes all matching files.
//
// Per-file failures, including sources unparsable under both grammars, are
// collected in ScanStats.Errors and do not stop the scan. Cancelling ctx
// stops the scan; the partial stats are returned with Cancelled set.
func (ws *WorkspaceScanner) ScanWorkspace(
	ctx context.Context,
	rootPath string,
	options ScanOptions,
	progressCallback ProgressCallback,
) (*ScanStats, error) {
	startTime := time.Now()
	stats := &ScanStats{
		StartTime: startTime,
		Errors:    make([]FileError, 0),
	}

	ws.logger.Info("Starting workspace scan", "root", rootPath)

	// Phase 1: Discover files
	discoveryStart := time.Now()
	files, skipped, err := ws.discoverFiles(ctx, rootPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			stats.Cancelled = true
			ws.finish(stats, startTime)
			return stats, nil
		}
		return nil, fmt.Errorf("file discovery failed: %w", err)
	}
	stats.FilesDiscovered = len(files)
	stats.FilesSkipped = skipped
	stats.DiscoveryTimeMs = time.Since(discoveryStart).Milliseconds()

	ws.logger.Info("File discovery complete",
		"files_found", len(files),
		"files_skipped", skipped,
		"duration_ms", stats.DiscoveryTimeMs)

	if len(files) == 0 {
		ws.logger.Warn("No files found matching criteria")
		ws.finish(stats, startTime)
		return stats, nil
	}

	// Phase 2 & 3: Process files in parallel and index
	indexingStart := time.Now()
	ws.processFilesParallel(ctx, files, options.Workers, stats, progressCallback)
	stats.IndexingTimeMs = time.Since(indexingStart).Milliseconds()

	ws.finish(stats, startTime)
	if stats.IndexingTimeMs > 0 {
		stats.FilesPerSecond = float64(stats.FilesIndexed) / (float64(stats.IndexingTimeMs) / 1000.0)
	}
	if stats.FilesDiscovered > 0 {
		stats.SuccessRate = float64(stats.FilesIndexed) / float64(stats.FilesDiscovered)
	}

	ws.logger.Info("Workspace scan complete",
		"files_indexed", stats.FilesIndexed,
		"files_failed", stats.FilesFailed,
		"specifiers_extracted", stats.SpecifiersExtracted,
		"cancelled", stats.Cancelled,
		"duration_ms", stats.TotalTimeMs,
		"files_per_second", fmt.Sprintf("%.1f", stats.FilesPerSecond))

	return stats, nil
}

func (ws *WorkspaceScanner) finish(stats *ScanStats, startTime time.Time) {
	stats.EndTime = time.Now()
	stats.TotalTimeMs = stats.EndTime.Sub(startTime).Milliseconds()
}

// discoverFiles walks the directory tree and returns matching files and
// the number of files skipped for size.
func (ws *WorkspaceScanner) discoverFiles(ctx context.Context, rootPath string, options ScanOptions) ([]string, int, error) {
	for _, pattern := range options.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, 0, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	for _, pattern := range options.Include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, 0, fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}

	var files []string
	skipped := 0

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == rootPath {
				return err
			}
			ws.logger.Warn("Walk error", "path", path, "error", err)
			return nil
		}

		relPath, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		if relPath != "." && matchAny(options.Exclude, relPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if len(options.Include) > 0 {
			if !matchAny(options.Include, relPath) {
				return nil
			}
		} else if parser.DetectLanguage(path) == parser.LanguageUnknown {
			return nil
		}

		if options.MaxFileSize > 0 {
			if info, err := d.Info(); err == nil && info.Size() > options.MaxFileSize {
				ws.logger.Debug("Skipping large file", "path", path, "size", info.Size())
				skipped++
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return files, skipped, nil
}

func matchAny(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}

// processFilesParallel extracts files using a worker pool and indexes the
// results.
//
// **Architecture:**
//  1. Start the collector BEFORE submitting, so a full jobs channel never
//     deadlocks submission
//  2. Submit all file jobs (stopping early on cancellation)
//  3. Stop the pool, which closes the result channels and ends the collector
func (ws *WorkspaceScanner) processFilesParallel(
	ctx context.Context,
	files []string,
	workers int,
	stats *ScanStats,
	progressCallback ProgressCallback,
) {
	totalFiles := len(files)

	pool := NewWorkerPool(workers, ws.extractor, ws.files, ws.logger)
	stats.WorkerCount = pool.numWorkers
	pool.Start(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)

		processed := 0
		results, errs := pool.Results(), pool.Errors()
		for results != nil || errs != nil {
			select {
			case result, ok := <-results:
				if !ok {
					results = nil
					continue
				}
				ws.index.Add(result.FilePath, result.Result, result.ContentHash)

				stats.FilesIndexed++
				stats.SpecifiersExtracted += len(result.Result.Specifiers)
				stats.BytesRead += result.Size
				if result.Result.IsModule {
					stats.ModuleFiles++
				}
				metrics.RecordScannedFile(true)

				processed++
				if progressCallback != nil {
					progressCallback(processed, totalFiles, result.FilePath)
				}

			case fileErr, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				stats.Errors = append(stats.Errors, fileErr)
				stats.FilesFailed++
				metrics.RecordScannedFile(false)

				ws.logger.Warn("File processing failed",
					"file", fileErr.FilePath,
					"error", fileErr.Err)

				processed++
				if progressCallback != nil {
					progressCallback(processed, totalFiles, fileErr.FilePath)
				}
			}
		}
	}()

	for i, file := range files {
		if err := pool.Submit(ctx, FileJob{FilePath: file, JobID: i}); err != nil {
			ws.logger.Info("Scan cancelled", "submitted", i, "total", totalFiles)
			break
		}
	}

	pool.Stop()
	<-done

	if ctx.Err() != nil {
		stats.Cancelled = true
	}
}
