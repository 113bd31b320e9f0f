// Package extractor enumerates the module specifiers a JavaScript or
// TypeScript source file references, without executing it.
//
// Recognized forms: static imports, dynamic import(), re-exports
// (export ... from, export * from), require(...) and require.resolve(...).
// Only statically known specifiers are reported: string literals and
// template literals without interpolation. Everything else is skipped.
package extractor

import (
	"errors"
	"fmt"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/depscan/pkg/parser"
)

// Kind is the discriminating tag of a syntax node as seen by the rule table.
type Kind string

const (
	KindOther                    Kind = ""
	KindImportDeclaration        Kind = "ImportDeclaration"
	KindImportExpression         Kind = "ImportExpression"
	KindExportNamedDeclaration   Kind = "ExportNamedDeclaration"
	KindExportAllDeclaration     Kind = "ExportAllDeclaration"
	KindExportDefaultDeclaration Kind = "ExportDefaultDeclaration"
	KindCallExpression           Kind = "CallExpression"
)

// Result is the outcome of one extraction.
//
// Specifiers and IsModule are the extraction proper. Grammar, Language and
// FilePath describe how the source was read and never affect them.
type Result struct {
	// Specifiers in document order. Duplicates are preserved. Never nil.
	Specifiers []string `json:"specifiers" yaml:"specifiers"`

	// IsModule reports module-only syntax, or that the source only parsed
	// under the module grammar.
	IsModule bool `json:"isModule" yaml:"isModule"`

	Grammar  parser.GrammarMode `json:"grammar" yaml:"grammar"`
	Language parser.Language    `json:"language" yaml:"language"`
	FilePath string             `json:"file,omitempty" yaml:"file,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Specifiers = append(make([]string, 0, len(r.Specifiers)), r.Specifiers...)
	return &out
}

// ErrUnparsable matches every *ParseError via errors.Is.
var ErrUnparsable = errors.New("source is not valid under the script or module grammar")

// ParseError reports a source rejected by both grammars. It is the only
// fatal extraction failure; no partial result accompanies it.
type ParseError struct {
	Script *parser.SyntaxError
	Module *parser.SyntaxError
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v (%v; %v)", ErrUnparsable, e.Script, e.Module)
}

// Unwrap exposes ErrUnparsable and both grammar errors.
func (e *ParseError) Unwrap() []error {
	errs := []error{ErrUnparsable}
	if e.Script != nil {
		errs = append(errs, e.Script)
	}
	if e.Module != nil {
		errs = append(errs, e.Module)
	}
	return errs
}

// TreeParser produces raw tree-sitter trees. *parser.ParserManager
// implements it.
type TreeParser interface {
	Parse(source []byte, lang parser.Language, isTSX bool) (*ts.Tree, error)
}
