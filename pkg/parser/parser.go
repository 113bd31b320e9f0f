package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// ParserManager manages tree-sitter parsers for JavaScript and TypeScript with
// lazy initialization and thread-safe concurrent access.
//
// Memory Management:
//   - Parser pools are created lazily on first use per grammar
//   - ParserManager owns the pools and must be closed via Close()
//   - Callers own Tree instances and must call tree.Close() after use
//
// Thread Safety:
//   - Multiple goroutines can parse the same grammar simultaneously
//   - Pool creation is synchronized with double-checked locking
//
// Example:
//
//	manager := NewParserManager(logger)
//	defer manager.Close()
//
//	tree, err := manager.ParseGrammar([]byte(`import a from "a"`), LanguageJavaScript, false, GrammarModule)
//	if err != nil {
//	    return err
//	}
//	defer tree.Close()
type ParserManager struct {
	pools map[grammarKey]*parserPool
	mutex sync.RWMutex

	poolSize int
	logger   *slog.Logger

	parsesCalled int
}

// Option configures a ParserManager.
type Option func(*ParserManager)

// WithPoolSize overrides the number of parsers kept per grammar.
// Zero keeps the CPU-based default.
func WithPoolSize(n int) Option {
	return func(pm *ParserManager) {
		pm.poolSize = poolSize(n)
	}
}

// NewParserManager creates a new ParserManager instance.
//
// The returned manager must be closed via Close() to free resources.
func NewParserManager(logger *slog.Logger, opts ...Option) *ParserManager {
	if logger == nil {
		logger = slog.Default()
	}

	pm := &ParserManager{
		pools:    make(map[grammarKey]*parserPool),
		poolSize: poolSize(0),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(pm)
	}
	return pm
}

// Parse parses source with the tree-sitter grammar for lang.
//
// The isTSX parameter is only relevant for TypeScript. The returned tree may
// contain ERROR nodes; tree-sitter recovers from syntax errors instead of
// failing. Use CheckGrammar or ParseGrammar to reject invalid text.
//
// Returns a Tree that MUST be closed by the caller via tree.Close().
func (pm *ParserManager) Parse(source []byte, lang Language, isTSX bool) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse unknown language")
	}

	pm.mutex.Lock()
	pm.parsesCalled++
	pm.mutex.Unlock()

	pool, err := pm.getOrCreatePool(grammarKey{lang: lang, isTSX: isTSX && lang == LanguageTypeScript})
	if err != nil {
		return nil, fmt.Errorf("failed to get pool for %s: %w", lang, err)
	}

	p, err := pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire parser: %w", err)
	}
	tree := p.Parse(source, nil)
	pool.release(p)

	if tree == nil {
		return nil, fmt.Errorf("parser.Parse returned nil tree")
	}

	if tree.RootNode().HasError() {
		pm.logger.Debug("parse tree contains errors", "language", lang.String())
	}

	return tree, nil
}

// ParseGrammar parses source and validates the tree against the given
// grammar goal. On failure the tree is closed and a *SyntaxError is returned.
//
// Returns a Tree that MUST be closed by the caller via tree.Close().
func (pm *ParserManager) ParseGrammar(source []byte, lang Language, isTSX bool, mode GrammarMode) (*ts.Tree, error) {
	tree, err := pm.Parse(source, lang, isTSX)
	if err != nil {
		return nil, err
	}
	if err := CheckGrammar(tree, source, mode); err != nil {
		tree.Close()
		return nil, err
	}
	return tree, nil
}

// ParseFile parses a file by detecting its language from the file path.
//
// Returns a Tree that MUST be closed by the caller via tree.Close().
func (pm *ParserManager) ParseFile(source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", filePath)
	}
	return pm.Parse(source, lang, IsTSXFile(filePath))
}

// Close releases all parser pool resources.
// After Close(), the ParserManager cannot be used.
func (pm *ParserManager) Close() error {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	closed := 0
	for _, pool := range pm.pools {
		closed += pool.close()
	}
	pm.pools = make(map[grammarKey]*parserPool)

	pm.logger.Debug("closed ParserManager",
		"parsers_closed", closed,
		"parses_called", pm.parsesCalled)

	return nil
}

// getOrCreatePool returns an existing parser pool or creates a new one.
func (pm *ParserManager) getOrCreatePool(key grammarKey) (*parserPool, error) {
	pm.mutex.RLock()
	pool, exists := pm.pools[key]
	pm.mutex.RUnlock()
	if exists {
		return pool, nil
	}

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pool, exists = pm.pools[key]; exists {
		return pool, nil
	}

	langPtr, err := languagePointer(key)
	if err != nil {
		return nil, err
	}

	pool = newParserPool(key, langPtr, pm.poolSize, pm.logger)
	pm.pools[key] = pool

	pm.logger.Debug("created new parser pool",
		"grammar", key.String(),
		"max_size", pm.poolSize)

	return pool, nil
}

// languagePointer returns the tree-sitter language for a grammar key.
func languagePointer(key grammarKey) (unsafe.Pointer, error) {
	switch key.lang {
	case LanguageTypeScript:
		if key.isTSX {
			return ts_typescript.LanguageTSX(), nil
		}
		return ts_typescript.LanguageTypescript(), nil
	case LanguageJavaScript:
		return ts_javascript.Language(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", key.lang.String())
	}
}

// GetStats returns parser usage statistics.
func (pm *ParserManager) GetStats() ParserStats {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	total := 0
	for _, pool := range pm.pools {
		total += pool.createdCount()
	}

	return ParserStats{
		ParsersCreated: total,
		ParsesCalled:   pm.parsesCalled,
	}
}

// ParserStats contains parser usage statistics.
type ParserStats struct {
	// ParsersCreated is the total number of parser instances created
	ParsersCreated int

	// ParsesCalled is the total number of Parse() calls
	ParsesCalled int
}
