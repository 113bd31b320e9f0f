package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// grammarKey identifies one tree-sitter grammar (language + TSX variant).
type grammarKey struct {
	lang  Language
	isTSX bool
}

func (k grammarKey) String() string {
	if k.isTSX {
		return "tsx"
	}
	return k.lang.String()
}

// parserPool hands out tree-sitter parsers bound to a single grammar.
//
// Idle parsers wait in a buffered channel. New parsers are created lazily
// until maxSize is reached, after which acquire blocks for a release.
// A tree-sitter parser is not safe for concurrent use, so each parser is
// held by exactly one goroutine between acquire and release.
type parserPool struct {
	idle    chan *ts.Parser
	langPtr unsafe.Pointer
	key     grammarKey
	maxSize int

	mu      sync.Mutex
	created int

	logger *slog.Logger
}

func newParserPool(key grammarKey, langPtr unsafe.Pointer, maxSize int, logger *slog.Logger) *parserPool {
	return &parserPool{
		idle:    make(chan *ts.Parser, maxSize),
		langPtr: langPtr,
		key:     key,
		maxSize: maxSize,
		logger:  logger,
	}
}

// acquire returns an idle parser, creating one if the pool has headroom.
func (p *parserPool) acquire() (*ts.Parser, error) {
	select {
	case parser := <-p.idle:
		return parser, nil
	default:
	}

	p.mu.Lock()
	if p.created >= p.maxSize {
		p.mu.Unlock()
		return <-p.idle, nil
	}

	parser := ts.NewParser()
	if parser == nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("failed to create parser")
	}
	if err := parser.SetLanguage(ts.NewLanguage(p.langPtr)); err != nil {
		parser.Close()
		p.mu.Unlock()
		return nil, fmt.Errorf("failed to set language %s: %w", p.key, err)
	}
	p.created++
	created := p.created
	p.mu.Unlock()

	p.logger.Debug("created parser in pool",
		"grammar", p.key.String(),
		"pool_size", created)

	return parser, nil
}

// release returns a parser to the pool. Parsers beyond capacity are closed.
func (p *parserPool) release(parser *ts.Parser) {
	if parser == nil {
		return
	}

	select {
	case p.idle <- parser:
	default:
		parser.Close()
		p.logger.Warn("parser pool full, closing excess parser",
			"grammar", p.key.String())
	}
}

// close releases every idle parser. The pool must not be used afterwards.
func (p *parserPool) close() int {
	close(p.idle)

	count := 0
	for parser := range p.idle {
		parser.Close()
		count++
	}
	return count
}

func (p *parserPool) createdCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}
