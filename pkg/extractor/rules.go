package extractor

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// rule is the action taken for one node kind.
type rule func(node *ts.Node, source []byte, acc *accumulator)

// ruleTable dispatches on node kind. Kinds without an entry are ignored,
// including KindExportDefaultDeclaration.
type ruleTable map[Kind]rule

// defaultRules returns the rule table used by every Extractor.
func defaultRules() ruleTable {
	return ruleTable{
		KindImportDeclaration:      importDeclaration,
		KindImportExpression:       importExpression,
		KindExportNamedDeclaration: exportWithSource,
		KindExportAllDeclaration:   exportWithSource,
		KindCallExpression:         callExpression,
	}
}

// importDeclaration handles `import ... from "x"`, `import "x"` and the
// TypeScript `import x = require("x")` form.
func importDeclaration(node *ts.Node, source []byte, acc *accumulator) {
	acc.markModule()

	src := node.ChildByFieldName("source")
	if src == nil {
		if clause := childOfKind(node, "import_require_clause"); clause != nil {
			src = clause.ChildByFieldName("source")
		}
	}
	if src != nil && src.Kind() == "string" {
		acc.add(cookString(src.Utf8Text(source)))
	}
}

// importExpression handles `import(x)`. Only a string literal first
// argument is recorded.
func importExpression(node *ts.Node, source []byte, acc *accumulator) {
	acc.markModule()

	args := callArguments(node)
	if len(args) == 0 {
		return
	}
	if arg := unwrapParens(args[0]); arg.Kind() == "string" {
		acc.add(cookString(arg.Utf8Text(source)))
	}
}

// exportWithSource handles `export ... from "x"` and `export * from "x"`.
// Local exports only mark the module.
func exportWithSource(node *ts.Node, source []byte, acc *accumulator) {
	acc.markModule()

	if src := node.ChildByFieldName("source"); src != nil && src.Kind() == "string" {
		acc.add(cookString(src.Utf8Text(source)))
	}
}

// callExpression handles require(x), require.resolve(x) and the import
// callee form. It never marks the module: require is CommonJS.
func callExpression(node *ts.Node, source []byte, acc *accumulator) {
	callee := node.ChildByFieldName("function")
	if callee == nil || !isRequireCallee(unwrapParens(callee), source) {
		return
	}

	args := callArguments(node)
	if len(args) != 1 {
		return
	}

	arg := unwrapParens(args[0])
	switch arg.Kind() {
	case "string":
		acc.add(cookString(arg.Utf8Text(source)))
	case "template_string":
		if childOfKind(arg, "template_substitution") == nil {
			acc.add(rawTemplate(arg.Utf8Text(source)))
		}
	}
}

// isRequireCallee matches `require`, `import` and `require.resolve`, with
// names compared after decoding \u escapes. Computed access such as
// require["resolve"] does not match.
func isRequireCallee(callee *ts.Node, source []byte) bool {
	switch callee.Kind() {
	case "import":
		return true
	case "identifier":
		return identifierName(callee, source) == "require"
	case "member_expression":
		object := callee.ChildByFieldName("object")
		property := callee.ChildByFieldName("property")
		return object != nil && property != nil &&
			object.Kind() == "identifier" && identifierName(object, source) == "require" &&
			property.Kind() == "property_identifier" && identifierName(property, source) == "resolve"
	}
	return false
}
