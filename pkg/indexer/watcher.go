package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/depscan/pkg/metrics"
	"github.com/gnana997/depscan/pkg/parser"
	"github.com/gnana997/depscan/pkg/util"
)

// FileWatcher watches a workspace and re-extracts files as they change.
//
// **Features:**
//   - Debouncing - Groups rapid changes to one file into one extraction
//   - Selective - Only re-extracts changed files
//   - New directories are watched as they appear
//
// **Usage:**
//
//	watcher, err := NewFileWatcher(index, extractor, fileCache, DefaultWatchOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	if err := watcher.Start(ctx, "/path/to/workspace"); err != nil {
//	    return err
//	}
//	defer watcher.Stop()
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	index     *DependencyIndex
	extractor FileExtractor
	files     util.FileCache
	logger    *slog.Logger
	options   WatchOptions
	root      string

	// Debouncing
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	// Lifecycle
	stopChan chan struct{}
	loopDone chan struct{}
	started  bool
	stopped  bool
	mu       sync.Mutex
}

// NewFileWatcher creates a new file watcher. files may be nil.
func NewFileWatcher(
	index *DependencyIndex,
	extractor FileExtractor,
	files util.FileCache,
	options WatchOptions,
	logger *slog.Logger,
) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if options.DebounceMs <= 0 {
		options.DebounceMs = DefaultWatchOptions().DebounceMs
	}
	for _, pattern := range options.IgnorePatterns {
		if !doublestar.ValidatePattern(pattern) {
			watcher.Close()
			return nil, fmt.Errorf("invalid ignore pattern: %s", pattern)
		}
	}

	return &FileWatcher{
		watcher:        watcher,
		index:          index,
		extractor:      extractor,
		files:          files,
		logger:         logger,
		options:        options,
		debounceTimers: make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
		loopDone:       make(chan struct{}),
	}, nil
}

// Start begins watching rootPath and its subdirectories. The watcher stops
// when ctx is cancelled or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context, rootPath string) error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already stopped")
	}
	if fw.started {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	fw.started = true
	fw.root = rootPath
	fw.mu.Unlock()

	if err := fw.watchTree(rootPath); err != nil {
		return err
	}

	fw.logger.Info("File watcher started", "root", rootPath)

	go fw.eventLoop(ctx)
	return nil
}

// watchTree adds a watch on dir and every non-ignored directory below it.
func (fw *FileWatcher) watchTree(dir string) error {
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == dir {
			return nil
		}
		if fw.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Stop stops the file watcher.
//
// **Thread Safety:** Safe to call multiple times (idempotent).
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	started := fw.started
	close(fw.stopChan)
	fw.mu.Unlock()

	if started {
		<-fw.loopDone
	}

	fw.debounceMu.Lock()
	for _, timer := range fw.debounceTimers {
		timer.Stop()
	}
	fw.debounceTimers = make(map[string]*time.Timer)
	fw.debounceMu.Unlock()

	err := fw.watcher.Close()
	fw.logger.Info("File watcher stopped")
	return err
}

// eventLoop is the main event processing loop.
func (fw *FileWatcher) eventLoop(ctx context.Context) {
	defer close(fw.loopDone)

	for {
		select {
		case <-ctx.Done():
			return

		case <-fw.stopChan:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("File watcher error", "error", err)
		}
	}
}

// handleEvent processes a file system event.
func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	filePath := event.Name
	if fw.shouldIgnore(filePath) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(filePath); err == nil && info.IsDir() {
			if err := fw.watchTree(filePath); err != nil {
				fw.logger.Warn("Failed to watch new directory", "path", filePath, "error", err)
			}
			return
		}
	}

	if parser.DetectLanguage(filePath) == parser.LanguageUnknown {
		return
	}

	fw.logger.Debug("File event", "op", event.Op.String(), "file", filePath)

	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		fw.debounceReindex(filePath)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		fw.cancelPending(filePath)
		fw.removeFile(filePath)
	}
}

// debounceReindex schedules a re-extraction after the debounce delay.
//
// If multiple events for the same file occur within the debounce window,
// only the last one triggers work.
func (fw *FileWatcher) debounceReindex(filePath string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if timer, exists := fw.debounceTimers[filePath]; exists {
		timer.Stop()
	}

	fw.debounceTimers[filePath] = time.AfterFunc(
		time.Duration(fw.options.DebounceMs)*time.Millisecond,
		func() {
			fw.debounceMu.Lock()
			delete(fw.debounceTimers, filePath)
			fw.debounceMu.Unlock()

			fw.reindexFile(filePath)
		},
	)
}

func (fw *FileWatcher) cancelPending(filePath string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if timer, exists := fw.debounceTimers[filePath]; exists {
		timer.Stop()
		delete(fw.debounceTimers, filePath)
	}
}

// reindexFile re-extracts a single file and updates the index.
func (fw *FileWatcher) reindexFile(filePath string) {
	content, err := fw.read(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fw.removeFile(filePath)
			return
		}
		fw.logger.Warn("Failed to read file for re-extraction", "file", filePath, "error", err)
		return
	}

	result, err := fw.extractor.ExtractFile(filePath, content)
	if err != nil {
		fw.logger.Warn("Failed to extract file", "file", filePath, "error", err)
		fw.index.Remove(filePath)
		metrics.RecordWatchEvent(string(WatchOpRemove))
		fw.notify(WatchEvent{FilePath: filePath, Op: WatchOpRemove, Err: err, Timestamp: time.Now()})
		return
	}

	fw.index.Add(filePath, result, ComputeContentHash(content))
	metrics.RecordWatchEvent(string(WatchOpUpdate))

	fw.logger.Debug("File re-extracted",
		"file", filePath,
		"specifiers", len(result.Specifiers),
		"is_module", result.IsModule)

	fw.notify(WatchEvent{FilePath: filePath, Op: WatchOpUpdate, Result: result, Timestamp: time.Now()})
}

func (fw *FileWatcher) read(filePath string) ([]byte, error) {
	if fw.files != nil {
		fw.files.Invalidate(filePath)
		return fw.files.Read(filePath)
	}
	return os.ReadFile(filePath)
}

// removeFile removes a file from the index.
func (fw *FileWatcher) removeFile(filePath string) {
	if fw.files != nil {
		fw.files.Invalidate(filePath)
	}
	if !fw.index.Remove(filePath) {
		return
	}
	metrics.RecordWatchEvent(string(WatchOpRemove))
	fw.notify(WatchEvent{FilePath: filePath, Op: WatchOpRemove, Timestamp: time.Now()})
}

func (fw *FileWatcher) notify(event WatchEvent) {
	if fw.options.OnChange != nil {
		fw.options.OnChange(event)
	}
}

// shouldIgnore matches a path against the ignore patterns, both relative to
// the watched root and by base name.
func (fw *FileWatcher) shouldIgnore(path string) bool {
	rel := path
	if fw.root != "" {
		if r, err := filepath.Rel(fw.root, path); err == nil {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)

	for _, pattern := range fw.options.IgnorePatterns {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// GetStats returns file watcher statistics.
func (fw *FileWatcher) GetStats() FileWatcherStats {
	fw.debounceMu.Lock()
	pending := len(fw.debounceTimers)
	fw.debounceMu.Unlock()

	fw.mu.Lock()
	running := fw.started && !fw.stopped
	fw.mu.Unlock()

	return FileWatcherStats{
		PendingReindexes: pending,
		IsRunning:        running,
	}
}

// FileWatcherStats contains file watcher statistics.
type FileWatcherStats struct {
	PendingReindexes int
	IsRunning        bool
}
