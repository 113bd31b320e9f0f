package extractor

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// walk visits node and its descendants in document order (pre-order),
// applying the rule registered for each node's kind.
//
// Rules that record a specifier never have descendants that record one, so
// pre-order and post-order visits yield the same sequence.
func walk(node *ts.Node, source []byte, rules ruleTable, acc *accumulator) {
	if r, ok := rules[classify(node)]; ok {
		r(node, source, acc)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			walk(child, source, rules, acc)
		}
	}
}

// classify maps a tree-sitter node to the kind the rule table dispatches on.
func classify(node *ts.Node) Kind {
	switch node.Kind() {
	case "import_statement":
		return KindImportDeclaration

	case "export_statement":
		switch {
		case childOfKind(node, "*") != nil, childOfKind(node, "namespace_export") != nil:
			return KindExportAllDeclaration
		case childOfKind(node, "default") != nil:
			return KindExportDefaultDeclaration
		case childOfKind(node, "=") != nil, childOfKind(node, "namespace") != nil:
			// TypeScript `export = x` and `export as namespace X`.
			return KindOther
		}
		return KindExportNamedDeclaration

	case "call_expression":
		callee := node.ChildByFieldName("function")
		if callee != nil && callee.Kind() == "import" {
			return KindImportExpression
		}
		// A template in the arguments position is a tagged template.
		if args := node.ChildByFieldName("arguments"); args == nil || args.Kind() != "arguments" {
			return KindOther
		}
		return KindCallExpression
	}
	return KindOther
}

// callArguments returns the argument expressions of a call, skipping comments.
func callArguments(call *ts.Node) []*ts.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.Kind() != "arguments" {
		return nil
	}
	out := make([]*ts.Node, 0, args.NamedChildCount())
	for i := uint(0); i < args.NamedChildCount(); i++ {
		child := args.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// unwrapParens strips parenthesized_expression wrappers.
func unwrapParens(node *ts.Node) *ts.Node {
	for node.Kind() == "parenthesized_expression" {
		var inner *ts.Node
		for i := uint(0); i < node.NamedChildCount(); i++ {
			if child := node.NamedChild(i); child != nil && child.Kind() != "comment" {
				inner = child
				break
			}
		}
		if inner == nil {
			return node
		}
		node = inner
	}
	return node
}

// childOfKind returns the first direct child of the given kind, or nil.
func childOfKind(node *ts.Node, kind string) *ts.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}
