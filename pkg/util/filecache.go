// FileCache provides source file access through memory-mapped files.
//
// **Why mmap:**
//   - Re-reading a file the watcher reports as unchanged costs no syscall read
//   - Only accessed pages are loaded into RAM (on-demand paging)
//
// **Safety Features:**
//   - MaxFiles bounds open mappings; the least recently used file is unmapped
//   - MaxMemoryMB bounds mapped virtual memory the same way
//   - Graceful fallback to os.ReadFile if mmap fails
//   - Mapped bytes never leave the cache: Read returns a copy, so eviction
//     can unmap safely while callers still hold their data
//   - Size and modification time are re-checked on every hit, so a file
//     rewritten on disk is remapped rather than served stale
package util

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
	lru "github.com/hashicorp/golang-lru/v2"
)

// FileCache reads source files through a bounded set of memory mappings.
//
// Thread-safe: Multiple goroutines can call methods concurrently.
type FileCache interface {
	// Read returns the file contents, mapping the file on first access.
	Read(filePath string) ([]byte, error)

	// Invalidate unmaps a file so the next Read loads it again.
	Invalidate(filePath string)

	// Size returns number of currently cached files.
	Size() int

	// Stats returns current cache metrics.
	Stats() FileCacheStats

	// Close unmaps all files and releases resources.
	Close() error
}

// FileCacheConfig controls FileCache behavior.
type FileCacheConfig struct {
	// MaxFiles is the maximum number of files kept mapped.
	// Least recently read files are unmapped first.
	MaxFiles int

	// MaxMemoryMB bounds the total mapped size (virtual memory, not RSS).
	// Zero disables the bound.
	MaxMemoryMB int

	// Logger for warnings. If nil, uses slog.Default().
	Logger *slog.Logger
}

// DefaultFileCacheConfig returns defaults suited to scanning a repository.
func DefaultFileCacheConfig() *FileCacheConfig {
	return &FileCacheConfig{
		MaxFiles:    4096,
		MaxMemoryMB: 1024,
	}
}

// FileCacheStats tracks cache performance metrics.
type FileCacheStats struct {
	FilesLoaded  int64
	FilesCached  int
	CacheHits    int64
	CacheMisses  int64
	Evictions    int64
	MmapFailures int64
	MappedBytes  int64
}

// mappedFile is one cached file. data is either an mmap region or, when
// mmap failed, a heap copy (file is nil in that case).
type mappedFile struct {
	data    mmap.MMap
	file    *os.File
	heap    bool
	size    int64
	modTime time.Time
}

func (mf *mappedFile) release() error {
	var err error
	if mf.data != nil && !mf.heap {
		err = mf.data.Unmap()
	}
	if mf.file != nil {
		if cerr := mf.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type fileCacheImpl struct {
	config *FileCacheConfig
	logger *slog.Logger

	// mu guards every access to mapped bytes; eviction happens under Lock.
	mu     sync.RWMutex
	cache  *lru.Cache[string, *mappedFile]
	mapped int64

	statsMu sync.Mutex
	stats   FileCacheStats
}

// NewFileCache creates a new FileCache. If config is nil, uses DefaultFileCacheConfig().
func NewFileCache(config *FileCacheConfig) (FileCache, error) {
	if config == nil {
		config = DefaultFileCacheConfig()
	}
	if config.MaxFiles <= 0 {
		config.MaxFiles = DefaultFileCacheConfig().MaxFiles
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fc := &fileCacheImpl{config: config, logger: logger}

	cache, err := lru.NewWithEvict(config.MaxFiles, fc.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create file cache: %w", err)
	}
	fc.cache = cache
	return fc, nil
}

// onEvict runs inside cache mutations, which only happen under fc.mu.Lock.
func (fc *fileCacheImpl) onEvict(path string, mf *mappedFile) {
	fc.mapped -= mf.size
	if err := mf.release(); err != nil {
		fc.logger.Warn("failed to release mapped file", "path", path, "error", err)
	}
	fc.statsMu.Lock()
	fc.stats.Evictions++
	fc.statsMu.Unlock()
}

// Read returns a copy of the file contents.
func (fc *fileCacheImpl) Read(filePath string) ([]byte, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		fc.record(func(s *FileCacheStats) { s.CacheMisses++ })
		return nil, fmt.Errorf("failed to stat file %q: %w", filePath, err)
	}

	fc.mu.RLock()
	if mf, ok := fc.cache.Get(filePath); ok && fresh(mf, info) {
		data := copyBytes(mf.data)
		fc.mu.RUnlock()
		fc.record(func(s *FileCacheStats) { s.CacheHits++ })
		return data, nil
	}
	fc.mu.RUnlock()

	fc.mu.Lock()
	defer fc.mu.Unlock()

	if mf, ok := fc.cache.Peek(filePath); ok {
		if fresh(mf, info) {
			fc.record(func(s *FileCacheStats) { s.CacheHits++ })
			return copyBytes(mf.data), nil
		}
		fc.cache.Remove(filePath)
	}

	fc.record(func(s *FileCacheStats) { s.CacheMisses++ })

	mf, err := fc.load(filePath)
	if err != nil {
		return nil, err
	}
	fc.makeRoom(mf.size)
	fc.cache.Add(filePath, mf)
	fc.mapped += mf.size
	fc.record(func(s *FileCacheStats) { s.FilesLoaded++ })

	return copyBytes(mf.data), nil
}

// makeRoom evicts least recently used files until size more bytes fit.
// Must be called while holding mu.Lock.
func (fc *fileCacheImpl) makeRoom(size int64) {
	if fc.config.MaxMemoryMB <= 0 {
		return
	}
	limit := int64(fc.config.MaxMemoryMB) * 1024 * 1024
	for fc.mapped+size > limit && fc.cache.Len() > 0 {
		fc.cache.RemoveOldest()
	}
}

// load opens and maps a file, falling back to os.ReadFile if mmap fails.
func (fc *fileCacheImpl) load(filePath string) (*mappedFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", filePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file %q: %w", filePath, err)
	}

	// Zero-length files cannot be mapped.
	if info.Size() == 0 {
		file.Close()
		return &mappedFile{heap: true, modTime: info.ModTime()}, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		fc.logger.Warn("mmap failed, using fallback", "file", filePath, "error", err)
		fc.record(func(s *FileCacheStats) { s.MmapFailures++ })

		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("mmap failed and fallback failed for %q: mmap error: %v, read error: %w",
				filePath, err, readErr)
		}
		return &mappedFile{data: mmap.MMap(raw), heap: true, size: int64(len(raw)), modTime: info.ModTime()}, nil
	}

	return &mappedFile{data: data, file: file, size: info.Size(), modTime: info.ModTime()}, nil
}

// Invalidate drops a file from the cache.
func (fc *fileCacheImpl) Invalidate(filePath string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.cache.Remove(filePath)
}

// Size returns number of currently cached files.
func (fc *fileCacheImpl) Size() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.cache.Len()
}

// Stats returns current cache metrics.
func (fc *fileCacheImpl) Stats() FileCacheStats {
	fc.mu.RLock()
	cached := fc.cache.Len()
	mapped := fc.mapped
	fc.mu.RUnlock()

	fc.statsMu.Lock()
	defer fc.statsMu.Unlock()

	stats := fc.stats
	stats.FilesCached = cached
	stats.MappedBytes = mapped
	return stats
}

// Close unmaps all files and releases resources.
//
// Release failures are logged by the eviction callback; Close itself never fails.
func (fc *fileCacheImpl) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.cache.Purge()
	fc.mapped = 0

	fc.statsMu.Lock()
	fc.logger.Debug("FileCache closed",
		"files_loaded", fc.stats.FilesLoaded,
		"cache_hits", fc.stats.CacheHits,
		"cache_misses", fc.stats.CacheMisses,
		"mmap_failures", fc.stats.MmapFailures)
	fc.statsMu.Unlock()

	return nil
}

func (fc *fileCacheImpl) record(update func(*FileCacheStats)) {
	fc.statsMu.Lock()
	update(&fc.stats)
	fc.statsMu.Unlock()
}

func fresh(mf *mappedFile, info os.FileInfo) bool {
	return mf.size == info.Size() && mf.modTime.Equal(info.ModTime())
}

func copyBytes(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
