package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gnana997/depscan/pkg/extractor"
	"github.com/gnana997/depscan/pkg/util"
)

// FileJob represents a file to be processed by the worker pool.
type FileJob struct {
	FilePath string
	JobID    int
}

// FileResult contains the extraction result for a file.
type FileResult struct {
	FilePath    string
	Result      *extractor.Result
	ContentHash string
	Size        int64
	JobID       int
}

// WorkerPool manages a pool of goroutines for parallel file extraction.
//
// **Architecture:**
//   - Buffered channel for job distribution
//   - Separate result and error channels
//   - Graceful shutdown support
//
// **Usage:**
//
//	pool := NewWorkerPool(numWorkers, extractor, fileCache, logger)
//	pool.Start(ctx)
//
//	go collect(pool.Results(), pool.Errors()) // until both channels close
//
//	for _, file := range files {
//	    pool.Submit(ctx, FileJob{FilePath: file})
//	}
//	pool.Stop()
type WorkerPool struct {
	numWorkers int
	jobs       chan FileJob
	results    chan FileResult
	errors     chan FileError
	wg         sync.WaitGroup
	extractor  FileExtractor
	files      util.FileCache
	logger     *slog.Logger

	// Lifecycle management
	ctx        context.Context
	cancel     context.CancelFunc
	started    atomic.Bool
	stopped    atomic.Bool
	jobsClosed atomic.Bool

	// Statistics
	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
}

// NewWorkerPool creates a new worker pool.
//
// Parameters:
//   - numWorkers: Number of worker goroutines (0 = auto-detect)
//   - extractor: Extracts each file
//   - files: Reads file contents; nil reads with os.ReadFile
//   - logger: Logger for worker messages
//
// Auto-detection uses util.GetOptimalPoolSize(), the parser pool size, so
// workers never queue for a parser.
func NewWorkerPool(numWorkers int, extractor FileExtractor, files util.FileCache, logger *slog.Logger) *WorkerPool {
	numWorkers = util.GetOptimalPoolSizeWithOverride(numWorkers)
	if logger == nil {
		logger = slog.Default()
	}

	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan FileJob, numWorkers*2),
		results:    make(chan FileResult, numWorkers),
		errors:     make(chan FileError, numWorkers),
		extractor:  extractor,
		files:      files,
		logger:     logger,
	}
}

// Start spawns all worker goroutines. Cancelling ctx makes workers exit
// without draining queued jobs.
func (wp *WorkerPool) Start(ctx context.Context) {
	if !wp.started.CompareAndSwap(false, true) {
		wp.logger.Warn("WorkerPool already started")
		return
	}

	wp.ctx, wp.cancel = context.WithCancel(ctx)
	wp.logger.Debug("Starting worker pool", "workers", wp.numWorkers)

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// worker receives jobs until the jobs channel is closed or the pool
// context is cancelled.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug("Worker cancelled", "worker_id", id)
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.processJob(id, job)
		}
	}
}

// processJob reads and extracts a single file.
func (wp *WorkerPool) processJob(workerID int, job FileJob) {
	content, err := wp.read(job.FilePath)
	if err != nil {
		wp.logger.Debug("File read error", "worker_id", workerID, "file", job.FilePath, "error", err)
		wp.fail(job.FilePath, fmt.Errorf("failed to read file: %w", err))
		return
	}

	result, err := wp.extractor.ExtractFile(job.FilePath, content)
	if err != nil {
		wp.logger.Debug("Extraction error", "worker_id", workerID, "file", job.FilePath, "error", err)
		wp.fail(job.FilePath, err)
		return
	}

	wp.jobsProcessed.Add(1)
	wp.results <- FileResult{
		FilePath:    job.FilePath,
		Result:      result,
		ContentHash: ComputeContentHash(content),
		Size:        int64(len(content)),
		JobID:       job.JobID,
	}
}

func (wp *WorkerPool) read(filePath string) ([]byte, error) {
	if wp.files != nil {
		return wp.files.Read(filePath)
	}
	return os.ReadFile(filePath)
}

func (wp *WorkerPool) fail(filePath string, err error) {
	wp.jobsFailed.Add(1)
	wp.errors <- FileError{FilePath: filePath, Err: err}
}

// Submit enqueues a job for processing.
//
// **Blocking:** Blocks while the jobs channel is full, until ctx or the
// pool is cancelled.
func (wp *WorkerPool) Submit(ctx context.Context, job FileJob) error {
	if !wp.started.Load() {
		return fmt.Errorf("worker pool is not started")
	}
	if wp.stopped.Load() || wp.jobsClosed.Load() {
		return fmt.Errorf("worker pool is stopped")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool cancelled")
	case wp.jobs <- job:
		wp.jobsSubmitted.Add(1)
		return nil
	}
}

// Results returns the results channel. It is closed by Stop.
func (wp *WorkerPool) Results() <-chan FileResult {
	return wp.results
}

// Errors returns the errors channel. It is closed by Stop.
func (wp *WorkerPool) Errors() <-chan FileError {
	return wp.errors
}

// FinishSubmitting closes the jobs channel so workers exit once it drains.
//
// **Thread Safety:** Safe to call multiple times (idempotent).
func (wp *WorkerPool) FinishSubmitting() {
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
		wp.logger.Debug("Jobs channel closed", "total_submitted", wp.jobsSubmitted.Load())
	}
}

// Stop closes the jobs channel if needed, waits for workers to finish and
// closes the result and error channels.
//
// Results and errors must be consumed concurrently, or Stop can block on a
// worker waiting to send.
//
// **Thread Safety:** Safe to call multiple times (idempotent).
func (wp *WorkerPool) Stop() {
	if !wp.stopped.CompareAndSwap(false, true) {
		return
	}

	wp.FinishSubmitting()
	wp.wg.Wait()

	close(wp.results)
	close(wp.errors)

	if wp.cancel != nil {
		wp.cancel()
	}

	wp.logger.Debug("Worker pool stopped",
		"jobs_submitted", wp.jobsSubmitted.Load(),
		"jobs_processed", wp.jobsProcessed.Load(),
		"jobs_failed", wp.jobsFailed.Load())
}

// GetStats returns current worker pool statistics.
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:    wp.numWorkers,
		JobsSubmitted: wp.jobsSubmitted.Load(),
		JobsProcessed: wp.jobsProcessed.Load(),
		JobsFailed:    wp.jobsFailed.Load(),
		QueueLength:   len(wp.jobs),
	}
}

// WorkerPoolStats contains statistics about the worker pool.
type WorkerPoolStats struct {
	NumWorkers    int
	JobsSubmitted int64
	JobsProcessed int64
	JobsFailed    int64
	QueueLength   int // Current jobs in queue
}
