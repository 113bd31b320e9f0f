package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gnana997/depscan/pkg/deps"
	"github.com/gnana997/depscan/pkg/extractor"
	"github.com/gnana997/depscan/pkg/metrics"
)

// DependencyIndex maps files to their extracted specifiers and specifiers
// back to the files that reference them.
//
// **Architecture:**
//   - Hash map FilePath → FileDependencies for O(1) lookups
//   - Reverse index specifier → set of files for Dependents queries
//
// **Thread Safety:**
//   - Uses sync.RWMutex for concurrent access
//   - Multiple readers, single writer pattern
//   - Atomic counters for statistics
//
// **Usage:**
//
//	index := NewDependencyIndex(logger)
//	index.Add(filePath, result, ComputeContentHash(content))
//
//	files := index.Dependents("react")
type DependencyIndex struct {
	// Primary storage: FilePath → FileDependencies
	files map[string]*FileDependencies

	// Reverse index: specifier → set of FilePaths
	dependents map[string]map[string]struct{}

	mu sync.RWMutex

	indexOperations atomic.Int64
	totalIndexTime  atomic.Int64 // Microseconds

	logger *slog.Logger
}

// NewDependencyIndex creates an empty index.
func NewDependencyIndex(logger *slog.Logger) *DependencyIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &DependencyIndex{
		files:      make(map[string]*FileDependencies, 1000),
		dependents: make(map[string]map[string]struct{}, 1000),
		logger:     logger,
	}
}

// Add stores the extraction result for a file, replacing any previous entry.
//
// The index keeps its own copy of result.
func (di *DependencyIndex) Add(filePath string, result *extractor.Result, contentHash string) *FileDependencies {
	start := time.Now()
	defer func() {
		di.totalIndexTime.Add(time.Since(start).Microseconds())
	}()

	entry := &FileDependencies{
		FilePath:    filePath,
		Result:      result.Clone(),
		ContentHash: contentHash,
		Timestamp:   time.Now().UnixMilli(),
	}

	di.mu.Lock()
	di.removeUnsafe(filePath)
	di.files[filePath] = entry
	for _, spec := range entry.Result.Specifiers {
		set, ok := di.dependents[spec]
		if !ok {
			set = make(map[string]struct{})
			di.dependents[spec] = set
		}
		set[filePath] = struct{}{}
	}
	size := len(di.files)
	di.mu.Unlock()

	di.indexOperations.Add(1)
	metrics.SetIndexedFiles(size)

	di.logger.Debug("Indexed file", "path", filePath, "specifiers", len(entry.Result.Specifiers))
	return entry
}

// Get returns a copy of the indexed entry for a file.
func (di *DependencyIndex) Get(filePath string) (*FileDependencies, bool) {
	di.mu.RLock()
	defer di.mu.RUnlock()

	entry, ok := di.files[filePath]
	if !ok {
		return nil, false
	}
	out := *entry
	out.Result = entry.Result.Clone()
	return &out, true
}

// Remove drops a file from the index. It reports whether the file was indexed.
func (di *DependencyIndex) Remove(filePath string) bool {
	di.mu.Lock()
	removed := di.removeUnsafe(filePath)
	size := len(di.files)
	di.mu.Unlock()

	if removed {
		metrics.SetIndexedFiles(size)
		di.logger.Debug("Removed file", "path", filePath)
	}
	return removed
}

// removeUnsafe removes a file and its reverse index entries.
//
// **IMPORTANT:** Must be called with write lock held.
func (di *DependencyIndex) removeUnsafe(filePath string) bool {
	entry, ok := di.files[filePath]
	if !ok {
		return false
	}
	for _, spec := range entry.Result.Specifiers {
		if set, ok := di.dependents[spec]; ok {
			delete(set, filePath)
			if len(set) == 0 {
				delete(di.dependents, spec)
			}
		}
	}
	delete(di.files, filePath)
	return true
}

// Files returns all indexed file paths, sorted.
func (di *DependencyIndex) Files() []string {
	di.mu.RLock()
	files := make([]string, 0, len(di.files))
	for path := range di.files {
		files = append(files, path)
	}
	di.mu.RUnlock()

	sort.Strings(files)
	return files
}

// Dependents returns the files that reference specifier exactly, sorted.
func (di *DependencyIndex) Dependents(specifier string) []string {
	di.mu.RLock()
	set := di.dependents[specifier]
	files := make([]string, 0, len(set))
	for path := range set {
		files = append(files, path)
	}
	di.mu.RUnlock()

	sort.Strings(files)
	return files
}

// Packages returns the bare packages referenced across the index, most
// referenced first. Subpath imports count toward their package.
func (di *DependencyIndex) Packages() []PackageUsage {
	di.mu.RLock()
	byPackage := make(map[string]map[string]struct{})
	for spec, set := range di.dependents {
		name := deps.PackageName(spec)
		if name == "" {
			continue
		}
		files, ok := byPackage[name]
		if !ok {
			files = make(map[string]struct{}, len(set))
			byPackage[name] = files
		}
		for path := range set {
			files[path] = struct{}{}
		}
	}
	di.mu.RUnlock()

	usage := make([]PackageUsage, 0, len(byPackage))
	for name, files := range byPackage {
		usage = append(usage, PackageUsage{Name: name, Files: len(files)})
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].Files != usage[j].Files {
			return usage[i].Files > usage[j].Files
		}
		return usage[i].Name < usage[j].Name
	})
	return usage
}

// Stats returns current index statistics.
func (di *DependencyIndex) Stats() IndexStats {
	di.mu.RLock()
	stats := IndexStats{
		Files:            len(di.files),
		UniqueSpecifiers: len(di.dependents),
	}
	packages := make(map[string]struct{})
	for spec := range di.dependents {
		if name := deps.PackageName(spec); name != "" {
			packages[name] = struct{}{}
		}
	}
	for _, entry := range di.files {
		if entry.Result.IsModule {
			stats.ModuleFiles++
		}
		stats.Specifiers += len(entry.Result.Specifiers)
	}
	di.mu.RUnlock()

	stats.Packages = len(packages)
	stats.IndexOperations = di.indexOperations.Load()
	if stats.IndexOperations > 0 {
		stats.AverageIndexTimeMs = float64(di.totalIndexTime.Load()) / float64(stats.IndexOperations) / 1000.0
	}
	return stats
}

// Close releases the index contents.
func (di *DependencyIndex) Close() {
	di.mu.Lock()
	defer di.mu.Unlock()

	di.files = make(map[string]*FileDependencies)
	di.dependents = make(map[string]map[string]struct{})
	metrics.SetIndexedFiles(0)

	di.logger.Debug("DependencyIndex closed")
}

// ComputeContentHash computes SHA-256 hash of file content.
func ComputeContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
