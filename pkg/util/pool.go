package util

import "runtime"

const (
	minPoolSize = 4
	maxPoolSize = 32
)

// GetOptimalPoolSize returns the pool size for CPU-bound parsing work.
//
// Formula: min(max(runtime.NumCPU() * 2, 4), 32)
//
// tree-sitter parsing runs in cgo, so twice the core count keeps cores busy
// while goroutines sit in cgo calls. The cap bounds parser memory.
//
// Used for:
//   - Parser pool size (parsers per grammar)
//   - Worker pool size (concurrent file extractions)
func GetOptimalPoolSize() int {
	size := runtime.NumCPU() * 2
	if size < minPoolSize {
		size = minPoolSize
	}
	if size > maxPoolSize {
		size = maxPoolSize
	}
	return size
}

// GetOptimalPoolSizeWithOverride returns override when positive,
// otherwise GetOptimalPoolSize().
func GetOptimalPoolSizeWithOverride(override int) int {
	if override > 0 {
		return override
	}
	return GetOptimalPoolSize()
}
