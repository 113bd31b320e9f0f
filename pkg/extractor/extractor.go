package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gnana997/depscan/pkg/metrics"
	"github.com/gnana997/depscan/pkg/parser"
)

// Extractor enumerates module specifiers referenced by source text.
//
// An Extractor holds no per-call state: it is safe for concurrent use as
// long as its TreeParser is.
//
// Usage:
//
//	pm := parser.NewParserManager(logger)
//	defer pm.Close()
//
//	ex := NewExtractor(pm, logger)
//	result, err := ex.ExtractFile(filePath, source)
//	if errors.Is(err, ErrUnparsable) {
//	    // neither grammar accepted the file
//	}
type Extractor struct {
	resolver *resolver
	rules    ruleTable
	logger   *slog.Logger
}

// NewExtractor creates an Extractor reading trees from pm.
func NewExtractor(pm TreeParser, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		resolver: &resolver{parser: pm},
		rules:    defaultRules(),
		logger:   logger,
	}
}

// Extract returns the specifiers referenced by source.
//
// The error is a *ParseError (matching ErrUnparsable) when the source is
// invalid under both the script and module grammars. Any other error means
// parsing could not be attempted. Constructs that cannot be resolved
// statically are skipped silently.
func (e *Extractor) Extract(source []byte, lang parser.Language, isTSX bool) (*Result, error) {
	start := time.Now()

	res, err := e.resolver.resolve(source, lang, isTSX)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			metrics.RecordParseFailure(lang.String())
		}
		return nil, err
	}
	defer res.tree.Close()

	acc := newAccumulator(res.moduleSeed)
	walk(res.tree.RootNode(), source, e.rules, acc)

	result := acc.result()
	result.Grammar = res.grammar
	result.Language = lang

	metrics.RecordExtraction(lang.String(), res.grammar.String(), len(result.Specifiers), time.Since(start).Seconds())
	e.logger.Debug("extracted specifiers",
		"language", lang.String(),
		"grammar", res.grammar.String(),
		"specifiers", len(result.Specifiers),
		"is_module", result.IsModule)

	return result, nil
}

// ExtractFile extracts source, choosing the grammar from the file extension.
func (e *Extractor) ExtractFile(filePath string, source []byte) (*Result, error) {
	lang := parser.DetectLanguage(filePath)
	if lang == parser.LanguageUnknown {
		return nil, fmt.Errorf("unsupported language for file: %s", filePath)
	}

	result, err := e.Extract(source, lang, parser.IsTSXFile(filePath))
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("%s: %w", filePath, err)
		}
		return nil, fmt.Errorf("failed to extract %s: %w", filePath, err)
	}
	result.FilePath = filePath
	return result, nil
}

var (
	defaultOnce      sync.Once
	defaultExtractor *Extractor
)

// Extract reads source as JavaScript using a shared parser manager.
func Extract(source []byte) (*Result, error) {
	defaultOnce.Do(func() {
		defaultExtractor = NewExtractor(parser.NewParserManager(nil), nil)
	})
	return defaultExtractor.Extract(source, parser.LanguageJavaScript, false)
}
