package indexer

import (
	"encoding/json"
	"time"

	"github.com/gnana997/depscan/pkg/extractor"
)

// FileExtractor extracts one file. Both *extractor.Extractor and the
// caching *cache.Extractor implement it.
type FileExtractor interface {
	ExtractFile(filePath string, source []byte) (*extractor.Result, error)
}

// FileDependencies is the indexed extraction result of a single file.
type FileDependencies struct {
	// FilePath is the path the file was scanned under
	FilePath string `json:"file" yaml:"file"`

	// Result of extracting the file
	Result *extractor.Result `json:"result" yaml:"result"`

	// ContentHash is the SHA-256 of the content that was extracted
	ContentHash string `json:"contentHash" yaml:"contentHash"`

	// Timestamp when the file was indexed (Unix milliseconds)
	Timestamp int64 `json:"timestamp" yaml:"timestamp"`
}

// IndexStats describes the dependency index.
type IndexStats struct {
	// Files currently indexed
	Files int `json:"files" yaml:"files"`

	// ModuleFiles is the number of indexed files using module syntax
	ModuleFiles int `json:"moduleFiles" yaml:"moduleFiles"`

	// Specifiers is the total number of specifier occurrences
	Specifiers int `json:"specifiers" yaml:"specifiers"`

	// UniqueSpecifiers is the number of distinct specifier strings
	UniqueSpecifiers int `json:"uniqueSpecifiers" yaml:"uniqueSpecifiers"`

	// Packages is the number of distinct bare packages referenced
	Packages int `json:"packages" yaml:"packages"`

	// IndexOperations counts Add calls, including replacements
	IndexOperations int64 `json:"indexOperations" yaml:"indexOperations"`

	// AverageIndexTimeMs is the average time spent in Add
	AverageIndexTimeMs float64 `json:"averageIndexTimeMs" yaml:"averageIndexTimeMs"`
}

// PackageUsage is a bare package and the files that reference it.
type PackageUsage struct {
	Name  string `json:"name" yaml:"name"`
	Files int    `json:"files" yaml:"files"`
}

// ScanOptions configures workspace scanning behavior.
type ScanOptions struct {
	// Include patterns (doublestar syntax, relative to the root).
	// If empty, every supported source file is included.
	Include []string

	// Exclude patterns. A matching directory is skipped entirely.
	Exclude []string

	// MaxFileSize skips files larger than this many bytes. 0 = unlimited.
	MaxFileSize int64

	// Workers is the number of extraction goroutines. 0 = auto-detect.
	Workers int
}

// DefaultScanOptions returns recommended scan options.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Include: []string{
			"**/*.{js,jsx,mjs,cjs}",
			"**/*.{ts,tsx,mts,cts}",
		},
		Exclude: []string{
			"**/node_modules",
			"**/.git",
			"**/dist",
			"**/build",
			"**/coverage",
			"**/.next",
			"**/*.min.js",
		},
		MaxFileSize: 4 * 1024 * 1024,
	}
}

// ScanStats contains statistics about a workspace scan.
type ScanStats struct {
	// FilesDiscovered is the total number of files found
	FilesDiscovered int `json:"filesDiscovered" yaml:"filesDiscovered"`

	// FilesIndexed is the number of files successfully extracted and indexed
	FilesIndexed int `json:"filesIndexed" yaml:"filesIndexed"`

	// FilesFailed is the number of files that failed to extract
	FilesFailed int `json:"filesFailed" yaml:"filesFailed"`

	// FilesSkipped is the number of files over MaxFileSize
	FilesSkipped int `json:"filesSkipped" yaml:"filesSkipped"`

	// SpecifiersExtracted is the total number of specifiers extracted
	SpecifiersExtracted int `json:"specifiersExtracted" yaml:"specifiersExtracted"`

	// ModuleFiles is the number of indexed files using module syntax
	ModuleFiles int `json:"moduleFiles" yaml:"moduleFiles"`

	// BytesRead is the total size of the extracted files
	BytesRead int64 `json:"bytesRead" yaml:"bytesRead"`

	// TotalTimeMs is the total scan duration in milliseconds
	TotalTimeMs int64 `json:"totalTimeMs" yaml:"totalTimeMs"`

	// DiscoveryTimeMs is time spent discovering files
	DiscoveryTimeMs int64 `json:"discoveryTimeMs" yaml:"discoveryTimeMs"`

	// IndexingTimeMs is time spent extracting and indexing files
	IndexingTimeMs int64 `json:"indexingTimeMs" yaml:"indexingTimeMs"`

	// FilesPerSecond is the throughput rate
	FilesPerSecond float64 `json:"filesPerSecond" yaml:"filesPerSecond"`

	// WorkerCount is the number of workers used
	WorkerCount int `json:"workerCount" yaml:"workerCount"`

	// SuccessRate is the fraction of discovered files indexed (0.0 - 1.0)
	SuccessRate float64 `json:"successRate" yaml:"successRate"`

	// Errors contains per-file errors (if any)
	Errors []FileError `json:"errors" yaml:"errors"`

	// Cancelled indicates if the scan was cancelled
	Cancelled bool `json:"cancelled" yaml:"cancelled"`

	// StartTime is when the scan started
	StartTime time.Time `json:"startTime" yaml:"startTime"`

	// EndTime is when the scan completed
	EndTime time.Time `json:"endTime" yaml:"endTime"`
}

// FileError is an error that occurred while processing a file.
type FileError struct {
	FilePath string
	Err      error
}

func (e FileError) Error() string {
	return e.FilePath + ": " + e.Err.Error()
}

func (e FileError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error as its message.
func (e FileError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FilePath string `json:"file"`
		Error    string `json:"error"`
	}{e.FilePath, e.Err.Error()})
}

// MarshalYAML renders the error as its message.
func (e FileError) MarshalYAML() (any, error) {
	return map[string]string{"file": e.FilePath, "error": e.Err.Error()}, nil
}

// ProgressCallback is called after each file a scan processes.
//
// Parameters:
//   - done: Number of files processed so far (indexed or failed)
//   - total: Total number of files to process
//   - currentFile: Path of the file just processed
type ProgressCallback func(done, total int, currentFile string)

// WatchOptions configures file watching behavior.
type WatchOptions struct {
	// DebounceMs is the debounce delay in milliseconds.
	// Multiple rapid changes to one file trigger a single re-extraction.
	// Default: 200ms
	DebounceMs int

	// IgnorePatterns are doublestar patterns matched against the path
	// relative to the watched root and against the base name.
	IgnorePatterns []string

	// OnChange, if set, is called after each handled event.
	OnChange func(WatchEvent)
}

// DefaultWatchOptions returns recommended watch options.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		DebounceMs: 200,
		IgnorePatterns: []string{
			"*.swp",
			"*.tmp",
			"*~",
			"**/node_modules",
			"**/node_modules/**",
			"**/.git",
			"**/.git/**",
			"**/dist",
			"**/dist/**",
		},
	}
}

// WatchOp is what the watcher did in response to an event.
type WatchOp string

const (
	WatchOpUpdate WatchOp = "update"
	WatchOpRemove WatchOp = "remove"
)

// WatchEvent reports a handled file system change.
type WatchEvent struct {
	// FilePath is the path of the changed file
	FilePath string

	// Op is the index operation performed
	Op WatchOp

	// Result is the new extraction result for WatchOpUpdate
	Result *extractor.Result

	// Err is set when re-extraction failed; the stale entry is removed
	Err error

	// Timestamp is when the event was handled
	Timestamp time.Time
}
