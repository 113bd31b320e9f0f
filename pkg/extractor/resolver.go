package extractor

import (
	"errors"
	"fmt"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/depscan/pkg/parser"
)

// resolverState is a step of grammar resolution.
type resolverState int

const (
	stateUnresolved resolverState = iota
	stateParsedScript
	stateParsedModule
	stateFailed
)

func (s resolverState) String() string {
	switch s {
	case stateUnresolved:
		return "unresolved"
	case stateParsedScript:
		return "parsed(script)"
	case stateParsedModule:
		return "parsed(module)"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("resolverState(%d)", int(s))
	}
}

// resolution is a successfully resolved source. The caller owns tree.
type resolution struct {
	tree    *ts.Tree
	grammar parser.GrammarMode

	// moduleSeed is the initial value of the module flag: true when only
	// the module grammar accepted the source.
	moduleSeed bool

	// transitions lists every state visited, starting at stateUnresolved.
	transitions []resolverState
}

// resolver picks the grammar a source is read under: script first, module
// as the fallback.
//
// The tree-sitter grammar is a superset of both goals, so the source is
// parsed once and the tree is checked against each goal in turn.
type resolver struct {
	parser TreeParser
}

// resolve returns the tree and module flag seed for source, a *ParseError
// when neither grammar accepts it, or a wrapped error when parsing itself
// could not run. Alongside a *ParseError the resolution carries only its
// transitions.
func (r *resolver) resolve(source []byte, lang parser.Language, isTSX bool) (*resolution, error) {
	res := &resolution{transitions: []resolverState{stateUnresolved}}

	tree, err := r.parser.Parse(source, lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s source: %w", lang, err)
	}

	scriptErr := parser.CheckGrammar(tree, source, parser.GrammarScript)
	if scriptErr == nil {
		res.tree = tree
		res.grammar = parser.GrammarScript
		res.transitions = append(res.transitions, stateParsedScript)
		return res, nil
	}

	moduleErr := parser.CheckGrammar(tree, source, parser.GrammarModule)
	if moduleErr == nil {
		res.tree = tree
		res.grammar = parser.GrammarModule
		res.moduleSeed = true
		res.transitions = append(res.transitions, stateParsedModule)
		return res, nil
	}

	tree.Close()
	res.transitions = append(res.transitions, stateFailed)
	return res, &ParseError{
		Script: asSyntaxError(scriptErr),
		Module: asSyntaxError(moduleErr),
	}
}

func asSyntaxError(err error) *parser.SyntaxError {
	var se *parser.SyntaxError
	if errors.As(err, &se) {
		return se
	}
	return &parser.SyntaxError{Message: err.Error()}
}
