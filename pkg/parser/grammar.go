package parser

import (
	"fmt"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// GrammarMode selects one of the two top-level ECMAScript grammar goals.
//
// tree-sitter parses a single permissive superset of both goals, so a mode
// is enforced by checking the parsed tree for constructs the goal forbids.
// A text may be valid under one mode, both, or neither.
type GrammarMode int

const (
	// GrammarScript is the classic (sloppy) script goal.
	GrammarScript GrammarMode = iota
	// GrammarModule is the module goal: strict mode plus import/export.
	GrammarModule
)

// String returns the mode name.
func (m GrammarMode) String() string {
	if m == GrammarModule {
		return "module"
	}
	return "script"
}

// MarshalText implements encoding.TextMarshaler.
func (m GrammarMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *GrammarMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "script":
		*m = GrammarScript
	case "module":
		*m = GrammarModule
	default:
		return fmt.Errorf("unknown grammar mode: %q", text)
	}
	return nil
}

// SyntaxError reports text that is invalid under a grammar mode.
// Line and Column are 1-based.
type SyntaxError struct {
	Mode    GrammarMode
	Line    uint
	Column  uint
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s grammar: line %d, column %d: %s", e.Mode, e.Line, e.Column, e.Message)
}

// strictReserved are identifiers that strict mode code may not bind or
// reference. Modules additionally reserve `await`.
var strictReserved = map[string]bool{
	"implements": true,
	"interface":  true,
	"let":        true,
	"package":    true,
	"private":    true,
	"protected":  true,
	"public":     true,
	"static":     true,
	"yield":      true,
}

// functionKinds are the node kinds that open a function body.
var functionKinds = map[string]bool{
	"function_declaration":           true,
	"function_expression":            true,
	"function":                       true,
	"generator_function":             true,
	"generator_function_declaration": true,
	"arrow_function":                 true,
	"method_definition":              true,
}

var loopKinds = map[string]bool{
	"for_statement":    true,
	"for_in_statement": true,
	"while_statement":  true,
	"do_statement":     true,
}

var classKinds = map[string]bool{
	"class":                      true,
	"class_declaration":          true,
	"abstract_class_declaration": true,
}

// CheckGrammar validates a parsed tree against a grammar mode.
//
// It returns nil when the text is valid under mode, or a *SyntaxError for
// the first offending node in document order. Any tree-sitter ERROR or
// MISSING node fails both modes.
func CheckGrammar(tree *ts.Tree, source []byte, mode GrammarMode) error {
	root := tree.RootNode()
	if root.HasError() {
		if bad := firstErrorNode(root); bad != nil {
			msg := "unexpected token"
			if bad.IsMissing() {
				msg = fmt.Sprintf("missing %q", bad.Kind())
			}
			return newSyntaxError(mode, bad, msg)
		}
		return newSyntaxError(mode, root, "unexpected token")
	}

	c := &grammarChecker{source: source, mode: mode}
	c.visit(root, scope{})
	if c.err != nil {
		return c.err
	}
	return nil
}

// firstErrorNode finds the first ERROR or MISSING node, descending only into
// subtrees that report errors.
func firstErrorNode(node *ts.Node) *ts.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || !(child.HasError() || child.IsMissing()) {
			continue
		}
		if bad := firstErrorNode(child); bad != nil {
			return bad
		}
	}
	return nil
}

func newSyntaxError(mode GrammarMode, node *ts.Node, msg string) *SyntaxError {
	pos := node.StartPosition()
	return &SyntaxError{
		Mode:    mode,
		Line:    pos.Row + 1,
		Column:  pos.Column + 1,
		Message: msg,
	}
}

type grammarChecker struct {
	source []byte
	mode   GrammarMode
	err    *SyntaxError
}

// scope is the syntactic context a node is checked in.
type scope struct {
	strict     bool
	inFunction bool // any function, arrows included
	inAsync    bool
	inNonArrow bool // new.target is bound
	inMethod   bool // super is bound
	inLoop     bool
	inBreak    bool // loop or switch
	labels     int
}

func (c *grammarChecker) visit(node *ts.Node, s scope) {
	if c.err != nil {
		return
	}

	if msg := c.violation(node, s); msg != "" {
		c.err = newSyntaxError(c.mode, node, msg)
		return
	}

	s = c.enter(node, s)
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			c.visit(child, s)
		}
	}
}

// enter returns the scope for node's children.
func (c *grammarChecker) enter(node *ts.Node, s scope) scope {
	kind := node.Kind()
	switch {
	case kind == "program":
		s.strict = c.mode == GrammarModule || hasUseStrict(node, c.source)
	case functionKinds[kind]:
		s.inFunction = true
		s.inAsync = hasChildKind(node, "async")
		s.inLoop, s.inBreak, s.labels = false, false, 0
		if kind != "arrow_function" {
			s.inNonArrow = true
			s.inMethod = kind == "method_definition"
		}
		if body := node.ChildByFieldName("body"); body != nil && body.Kind() == "statement_block" &&
			hasUseStrict(body, c.source) {
			s.strict = true
		}
	case classKinds[kind]:
		s.strict = true
	case kind == "field_definition":
		s.inNonArrow, s.inMethod = true, true
	case kind == "class_static_block":
		s.inNonArrow, s.inMethod = true, true
		s.inLoop, s.inBreak, s.labels = false, false, 0
	case loopKinds[kind]:
		s.inLoop, s.inBreak = true, true
	case kind == "switch_statement":
		s.inBreak = true
	case kind == "labeled_statement":
		s.labels++
	}
	return s
}

// violation reports the first rule node breaks under the checker's mode.
func (c *grammarChecker) violation(node *ts.Node, s scope) string {
	if msg := c.earlyError(node, s); msg != "" {
		return msg
	}
	if c.mode == GrammarScript {
		if msg := c.scriptViolation(node, s); msg != "" {
			return msg
		}
	} else if msg := c.moduleViolation(node, s); msg != "" {
		return msg
	}
	if s.strict || c.mode == GrammarModule {
		return c.strictViolation(node)
	}
	return ""
}

// earlyError reports context errors that both goals reject.
func (c *grammarChecker) earlyError(node *ts.Node, s scope) string {
	switch node.Kind() {
	case "return_statement":
		if !s.inFunction {
			return "return statements are only valid inside functions"
		}
	case "break_statement":
		if node.ChildByFieldName("label") != nil {
			if s.labels == 0 {
				return "break to an undefined label"
			}
		} else if !s.inBreak {
			return "break statements are only valid inside a loop or switch"
		}
	case "continue_statement":
		if !s.inLoop {
			return "continue statements are only valid inside a loop"
		}
	case "meta_property":
		if strings.HasPrefix(node.Utf8Text(c.source), "new") && !s.inNonArrow {
			return "new.target is only valid inside functions"
		}
	case "super":
		if !s.inMethod {
			return "super is only valid inside methods"
		}
	}
	return ""
}

// scriptViolation reports module-only syntax.
func (c *grammarChecker) scriptViolation(node *ts.Node, s scope) string {
	switch node.Kind() {
	case "import_statement":
		return "import declarations may only appear in module code"
	case "export_statement":
		return "export declarations may only appear in module code"
	case "meta_property":
		if strings.HasPrefix(node.Utf8Text(c.source), "import") {
			return "import.meta may only appear in module code"
		}
	case "await_expression":
		if !s.inAsync && !c.awaitIsIdentifier(node) {
			return "await is only valid in async functions and module code"
		}
	case "for_in_statement":
		if !s.inAsync && hasChildKind(node, "await") {
			return "for await is only valid in async functions and module code"
		}
	}
	return ""
}

// awaitIsIdentifier reports whether a script's await_expression reads as the
// identifier `await` being called, indexed, tagged or used as an operand,
// as in await(x), await[0] or await - 1.
func (c *grammarChecker) awaitIsIdentifier(node *ts.Node) bool {
	arg := firstNonComment(node)
	if arg == nil {
		return false
	}
	text := arg.Utf8Text(c.source)
	if text == "" {
		return false
	}
	switch text[0] {
	case '(', '[', '`':
		return true
	case '+', '-':
		return len(text) < 2 || text[1] != text[0]
	}
	return false
}

// moduleViolation reports syntax only the module goal rejects.
func (c *grammarChecker) moduleViolation(node *ts.Node, s scope) string {
	switch node.Kind() {
	case "html_comment":
		return "HTML-like comments are not allowed in module code"
	case "await_expression":
		if s.inFunction && !s.inAsync {
			return "await is only valid in async functions and the top level of modules"
		}
	case "for_in_statement":
		if s.inFunction && !s.inAsync && hasChildKind(node, "await") {
			return "for await is only valid in async functions and the top level of modules"
		}
	case "identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		if node.Utf8Text(c.source) == "await" {
			return `"await" is a reserved word in module code`
		}
	}
	return ""
}

// strictViolation reports syntax that strict mode rejects.
func (c *grammarChecker) strictViolation(node *ts.Node) string {
	switch node.Kind() {
	case "with_statement":
		return "with statements are not allowed in strict mode"
	case "number":
		if isLegacyOctal(node.Utf8Text(c.source)) {
			return "legacy octal literals are not allowed in strict mode"
		}
	case "escape_sequence":
		if parent := node.Parent(); parent != nil && parent.Kind() == "string" &&
			c.isOctalEscape(node) {
			return "octal escape sequences are not allowed in strict mode"
		}
	case "unary_expression":
		op := node.ChildByFieldName("operator")
		arg := unwrapParens(node.ChildByFieldName("argument"))
		if op != nil && op.Kind() == "delete" && arg != nil && arg.Kind() == "identifier" {
			return "delete of an unqualified identifier is not allowed in strict mode"
		}
	case "identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		if name := node.Utf8Text(c.source); strictReserved[name] {
			return fmt.Sprintf("%q is a reserved word in strict mode", name)
		}
	}
	return ""
}

// hasUseStrict reports whether the directive prologue of a program or
// statement block contains "use strict". Escaped forms do not count.
func hasUseStrict(body *ts.Node, source []byte) bool {
	for i := uint(0); i < body.NamedChildCount(); i++ {
		stmt := body.NamedChild(i)
		if stmt == nil {
			continue
		}
		switch stmt.Kind() {
		case "comment", "hash_bang_line", "html_comment":
			continue
		case "expression_statement":
		default:
			return false
		}
		expr := firstNonComment(stmt)
		if expr == nil || expr.Kind() != "string" {
			return false
		}
		if text := expr.Utf8Text(source); text == `"use strict"` || text == `'use strict'` {
			return true
		}
	}
	return false
}

func firstNonComment(node *ts.Node) *ts.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if child := node.NamedChild(i); child != nil && child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

// isLegacyOctal matches 0-prefixed decimal-digit literals such as 010 or 08.
func isLegacyOctal(text string) bool {
	if len(text) < 2 || text[0] != '0' {
		return false
	}
	for i := 1; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return false
		}
	}
	return true
}

// isOctalEscape matches \1-\7 and \8 \9, and \0 when a decimal digit follows.
func (c *grammarChecker) isOctalEscape(node *ts.Node) bool {
	text := node.Utf8Text(c.source)
	if len(text) < 2 {
		return false
	}
	d := text[1]
	switch {
	case d >= '1' && d <= '9':
		return true
	case d == '0':
		if len(text) > 2 {
			return true
		}
		end := node.EndByte()
		return end < uint(len(c.source)) && c.source[end] >= '0' && c.source[end] <= '9'
	}
	return false
}

func hasChildKind(node *ts.Node, kind string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.Kind() == kind {
			return true
		}
	}
	return false
}

// unwrapParens strips parenthesized_expression wrappers.
func unwrapParens(node *ts.Node) *ts.Node {
	for node != nil && node.Kind() == "parenthesized_expression" && node.NamedChildCount() == 1 {
		node = node.NamedChild(0)
	}
	return node
}
