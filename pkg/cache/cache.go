// Package cache memoizes extraction results by source content.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/gnana997/depscan/pkg/extractor"
	"github.com/gnana997/depscan/pkg/metrics"
	"github.com/gnana997/depscan/pkg/parser"
)

// Config controls ResultCache behavior.
type Config struct {
	// MaxEntries bounds the number of cached results.
	MaxEntries int

	// Logger for debug output. If nil, uses slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a cache sized for a large workspace.
func DefaultConfig() Config {
	return Config{MaxEntries: 16384}
}

// Stats tracks cache activity.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// ComputeFunc produces the result for a key on a miss.
type ComputeFunc func() (*extractor.Result, error)

// ResultCache is a bounded LRU of extraction results keyed by content hash.
//
// Concurrent lookups of a populated key proceed in parallel. Concurrent
// misses on the same key run the compute function once and share its
// outcome. Errors are never cached.
type ResultCache struct {
	entries *lru.Cache[string, *extractor.Result]
	group   singleflight.Group
	logger  *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a ResultCache.
func New(config Config) (*ResultCache, error) {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultConfig().MaxEntries
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &ResultCache{logger: logger}
	entries, err := lru.NewWithEvict(config.MaxEntries, func(string, *extractor.Result) {
		c.evictions.Add(1)
		metrics.RecordCacheEviction()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Key derives the cache key for a source read under a language and tsx flag.
func Key(source []byte, lang parser.Language, isTSX bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%t\x00", lang, isTSX)
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a copy of the cached result for key.
func (c *ResultCache) Get(key string) (*extractor.Result, bool) {
	result, ok := c.entries.Get(key)
	c.record(ok)
	if !ok {
		return nil, false
	}
	return result.Clone(), true
}

// GetOrCompute returns the cached result for key, computing and storing it
// on a miss. The returned result is a copy the caller may modify.
func (c *ResultCache) GetOrCompute(key string, compute ComputeFunc) (*extractor.Result, error) {
	if result, ok := c.entries.Get(key); ok {
		c.record(true)
		return result.Clone(), nil
	}
	c.record(false)

	v, err, shared := c.group.Do(key, func() (any, error) {
		// A previous flight may have stored the key since the lookup above.
		if result, ok := c.entries.Peek(key); ok {
			return result, nil
		}
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, result.Clone())
		return result, nil
	})
	if err != nil {
		var perr *extractor.ParseError
		if !errors.As(err, &perr) {
			c.logger.Debug("result computation failed", "key", key[:12], "error", err)
		}
		return nil, err
	}
	if shared {
		c.logger.Debug("shared in-flight extraction", "key", key[:12])
	}
	return v.(*extractor.Result).Clone(), nil
}

// Remove drops key from the cache.
func (c *ResultCache) Remove(key string) {
	c.entries.Remove(key)
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	return c.entries.Len()
}

// Purge empties the cache. Purged entries count as evictions.
func (c *ResultCache) Purge() {
	c.entries.Purge()
}

// Stats returns current cache metrics.
func (c *ResultCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.entries.Len(),
	}
}

func (c *ResultCache) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	metrics.RecordCacheLookup(hit)
}

// Extractor wraps an extractor.Extractor with a ResultCache.
type Extractor struct {
	inner *extractor.Extractor
	cache *ResultCache
}

// NewExtractor returns a caching wrapper around ex.
func NewExtractor(ex *extractor.Extractor, cache *ResultCache) *Extractor {
	return &Extractor{inner: ex, cache: cache}
}

// Extract behaves like extractor.Extractor.Extract, serving repeated
// content from the cache.
func (e *Extractor) Extract(source []byte, lang parser.Language, isTSX bool) (*extractor.Result, error) {
	return e.cache.GetOrCompute(Key(source, lang, isTSX), func() (*extractor.Result, error) {
		return e.inner.Extract(source, lang, isTSX)
	})
}

// ExtractFile behaves like extractor.Extractor.ExtractFile. The file path is
// not part of the key: identical content in two files is extracted once.
func (e *Extractor) ExtractFile(filePath string, source []byte) (*extractor.Result, error) {
	lang := parser.DetectLanguage(filePath)
	if lang == parser.LanguageUnknown {
		return nil, fmt.Errorf("unsupported language for file: %s", filePath)
	}
	isTSX := parser.IsTSXFile(filePath)

	result, err := e.Extract(source, lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	result.FilePath = filePath
	return result, nil
}
