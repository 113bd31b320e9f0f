package extractor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/depscan/pkg/parser"
	"github.com/gnana997/depscan/pkg/util"
)

// newTestExtractor creates an extractor backed by its own parser manager.
func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	pm := parser.NewParserManager(util.DiscardLogger())
	t.Cleanup(func() { pm.Close() })
	return NewExtractor(pm, util.DiscardLogger())
}

func TestExtract_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		specifiers []string
		isModule   bool
	}{
		{
			name:       "import and require",
			source:     `import a from "x"; const b = require("y");`,
			specifiers: []string{"x", "y"},
			isModule:   true,
		},
		{
			name:       "conditional require",
			source:     `const x = require(cond ? "a" : "b");`,
			specifiers: []string{},
			isModule:   false,
		},
		{
			name:       "export all",
			source:     `export * from "pkg";`,
			specifiers: []string{"pkg"},
			isModule:   true,
		},
		{
			name:       "template require",
			source:     "const lp = require(`left-pad`);",
			specifiers: []string{"left-pad"},
			isModule:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Extract([]byte(tt.source))
			require.NoError(t, err)
			assert.Equal(t, tt.specifiers, result.Specifiers)
			assert.Equal(t, tt.isModule, result.IsModule)
		})
	}
}

func TestExtract_Unparsable(t *testing.T) {
	result, err := Extract([]byte(`function (`))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ErrUnparsable))

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	require.NotNil(t, perr.Script)
	require.NotNil(t, perr.Module)
	assert.Equal(t, parser.GrammarScript, perr.Script.Mode)
	assert.Equal(t, parser.GrammarModule, perr.Module.Mode)
}

func TestExtract_JavaScript(t *testing.T) {
	ex := newTestExtractor(t)

	tests := []struct {
		name       string
		source     string
		specifiers []string
		isModule   bool
		grammar    parser.GrammarMode
	}{
		{"bare import", `import "side-effect";`, []string{"side-effect"}, true, parser.GrammarModule},
		{"named and namespace imports", `import { a } from 'a'; import * as b from "b";`, []string{"a", "b"}, true, parser.GrammarModule},
		{"re-export and local export", `export { x } from "./x"; export const y = 1;`, []string{"./x"}, true, parser.GrammarModule},
		{"local export only", `const z = 1; export { z };`, []string{}, true, parser.GrammarModule},
		{"namespace re-export", `export * as ns from "ns";`, []string{"ns"}, true, parser.GrammarModule},
		{"export default", `export default function () { return 1; }`, []string{}, true, parser.GrammarModule},
		{"dynamic import in script", `const m = import("lazy");`, []string{"lazy"}, true, parser.GrammarScript},
		{"dynamic import non-literal", `import(name);`, []string{}, true, parser.GrammarScript},
		{"dynamic import template", "import(`tpl`);", []string{}, true, parser.GrammarScript},
		{"require.resolve", `const p = require.resolve("r");`, []string{"r"}, false, parser.GrammarScript},
		{"computed resolve", `require["resolve"]("r");`, []string{}, false, parser.GrammarScript},
		{"two arguments", `require("a", "b");`, []string{}, false, parser.GrammarScript},
		{"no arguments", `require();`, []string{}, false, parser.GrammarScript},
		{"parenthesized argument", `require(("p"));`, []string{"p"}, false, parser.GrammarScript},
		{"comment argument", `require(/* why */ "c");`, []string{"c"}, false, parser.GrammarScript},
		{"tagged template", "require`tag`;", []string{}, false, parser.GrammarScript},
		{"interpolated template", "require(`a${b}`);", []string{}, false, parser.GrammarScript},
		{"concatenation", `require("a" + "b");`, []string{}, false, parser.GrammarScript},
		{"identifier argument", `require(x);`, []string{}, false, parser.GrammarScript},
		{"other callee", `foo("x"); module.require("y");`, []string{}, false, parser.GrammarScript},
		{"escapes cooked", `require("\x61b\u{63}");`, []string{"abc"}, false, parser.GrammarScript},
		{"escaped quote", `require('it\'s');`, []string{"it's"}, false, parser.GrammarScript},
		{"duplicates preserved", `require("a"); require("a");`, []string{"a", "a"}, false, parser.GrammarScript},
		{
			"document order",
			`require("a"); function f() { return require("b"); } import("c");`,
			[]string{"a", "b", "c"}, true, parser.GrammarScript,
		},
		{"nested require", `require(require("inner"));`, []string{"inner"}, false, parser.GrammarScript},
		{"top-level await falls back to module", `await import("x");`, []string{"x"}, true, parser.GrammarModule},
		{"sloppy-only syntax", `with (obj) { require("w"); }`, []string{"w"}, false, parser.GrammarScript},
		{"await called in script", `function await(x) { return x; } var v = await(1);`, []string{}, false, parser.GrammarScript},
		{"undeclared await call", `const r = await(foo); require("q");`, []string{"q"}, false, parser.GrammarScript},
		{"escaped require name", `requir\u0065("x");`, []string{"x"}, false, parser.GrammarScript},
		{"escaped resolve name", `require.r\u{65}solve("r");`, []string{"r"}, false, parser.GrammarScript},
		{"shadowed require still matched", `function f(require) { require("s"); }`, []string{"s"}, false, parser.GrammarScript},
		{"empty source", ``, []string{}, false, parser.GrammarScript},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ex.Extract([]byte(tt.source), parser.LanguageJavaScript, false)
			require.NoError(t, err)
			assert.Equal(t, tt.specifiers, result.Specifiers)
			assert.Equal(t, tt.isModule, result.IsModule)
			assert.Equal(t, tt.grammar, result.Grammar)
			assert.Equal(t, parser.LanguageJavaScript, result.Language)
		})
	}
}

func TestExtract_TemplateLineTerminators(t *testing.T) {
	ex := newTestExtractor(t)

	result, err := ex.Extract([]byte("require(`a\r\nb\rc`);"), parser.LanguageJavaScript, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a\nb\nc"}, result.Specifiers)
}

func TestExtract_BothGrammarsRejected(t *testing.T) {
	ex := newTestExtractor(t)

	// import rules out script; the legacy octal literal rules out module.
	_, err := ex.Extract([]byte(`import a from "a"; var x = 010;`), parser.LanguageJavaScript, false)
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Script.Message, "import")
	assert.Contains(t, perr.Module.Message, "octal")

	var se *parser.SyntaxError
	assert.True(t, errors.As(err, &se))

	sources := []string{
		`"use strict"; with (a) { require("w"); }`,
		`"use strict"; var x = 010;`,
		`'use strict'; var interface = require("i");`,
		`function f() { "use strict"; delete x; } require("d");`,
		`class A { m() { with (a) {} } } require("c");`,
		`return require("r");`,
		`break; require("b");`,
		`continue;`,
		`switch (x) { case 1: continue; }`,
		`new.target;`,
		`const f = () => new.target;`,
		`super.x;`,
		`function f() { await g(); }`,
	}
	for _, source := range sources {
		t.Run(source, func(t *testing.T) {
			result, err := ex.Extract([]byte(source), parser.LanguageJavaScript, false)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrUnparsable)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.NotNil(t, perr.Script)
			assert.NotNil(t, perr.Module)
		})
	}
}

// Words the module goal reserves stay ordinary identifiers in scripts, so
// the same word can resolve to either grammar depending on how it is used.
func TestExtract_ModuleReservedWords(t *testing.T) {
	ex := newTestExtractor(t)

	tests := []struct {
		name       string
		source     string
		specifiers []string
		grammar    parser.GrammarMode
		isModule   bool
	}{
		{"await as variable", `var await = require("a");`, []string{"a"}, parser.GrammarScript, false},
		{"await as callee", `const r = await(foo); require("q");`, []string{"q"}, parser.GrammarScript, false},
		{"await as object", `var first = await[0]; require("i");`, []string{"i"}, parser.GrammarScript, false},
		{"await in strict script", `"use strict"; var await = require("s");`, []string{"s"}, parser.GrammarScript, false},
		{"top-level await", `await load(); require("q");`, []string{"q"}, parser.GrammarModule, true},
		{"await in async function", `async function f() { await g(require("g")); }`, []string{"g"}, parser.GrammarScript, false},
		{"yield as variable", `var yield = require("y");`, []string{"y"}, parser.GrammarScript, false},
		{"yield in generator", `export function* g() { yield require("y"); }`, []string{"y"}, parser.GrammarModule, true},
		{"let as variable", `var let = require("l");`, []string{"l"}, parser.GrammarScript, false},
		{"let declaration", `let l = require("l"); export { l };`, []string{"l"}, parser.GrammarModule, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ex.Extract([]byte(tt.source), parser.LanguageJavaScript, false)
			require.NoError(t, err)
			assert.Equal(t, tt.specifiers, result.Specifiers)
			assert.Equal(t, tt.grammar, result.Grammar)
			assert.Equal(t, tt.isModule, result.IsModule)
		})
	}
}

func TestExtract_TypeScript(t *testing.T) {
	ex := newTestExtractor(t)

	tests := []struct {
		name       string
		source     string
		specifiers []string
		isModule   bool
	}{
		{
			name:       "type import and import require",
			source:     `import type { A } from "./types"; import fs = require("fs");`,
			specifiers: []string{"./types", "fs"},
			isModule:   true,
		},
		{
			name:       "typed require",
			source:     `const n: number = require("n") as number;`,
			specifiers: []string{"n"},
			isModule:   false,
		},
		{
			name:       "type re-export",
			source:     `export type { B } from "./b"; export interface C { c: string }`,
			specifiers: []string{"./b"},
			isModule:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ex.Extract([]byte(tt.source), parser.LanguageTypeScript, false)
			require.NoError(t, err)
			assert.Equal(t, tt.specifiers, result.Specifiers)
			assert.Equal(t, tt.isModule, result.IsModule)
			assert.Equal(t, parser.LanguageTypeScript, result.Language)
		})
	}
}

func TestExtractFile(t *testing.T) {
	ex := newTestExtractor(t)

	t.Run("tsx", func(t *testing.T) {
		source := []byte(`import React from "react";
export const C = () => <div>{require("./x")}</div>;`)
		result, err := ex.ExtractFile("src/C.tsx", source)
		require.NoError(t, err)
		assert.Equal(t, []string{"react", "./x"}, result.Specifiers)
		assert.True(t, result.IsModule)
		assert.Equal(t, "src/C.tsx", result.FilePath)
	})

	t.Run("commonjs", func(t *testing.T) {
		result, err := ex.ExtractFile("lib/index.cjs", []byte(`module.exports = require("./impl");`))
		require.NoError(t, err)
		assert.Equal(t, []string{"./impl"}, result.Specifiers)
		assert.False(t, result.IsModule)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := ex.ExtractFile("README.md", []byte("# hi"))
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnparsable))
	})

	t.Run("unparsable file", func(t *testing.T) {
		_, err := ex.ExtractFile("bad.js", []byte(`let = = =`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnparsable))
		assert.Contains(t, err.Error(), "bad.js")
	})
}

func TestExtract_Deterministic(t *testing.T) {
	ex := newTestExtractor(t)
	source := []byte(`import a from "a";
export * from "b";
const c = require("c");
async function load() { return import("d"); }
require.resolve("e");`)

	first, err := ex.Extract(source, parser.LanguageJavaScript, false)
	require.NoError(t, err)
	second, err := ex.Extract(source, parser.LanguageJavaScript, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, first.Specifiers)
	assert.Equal(t, first, second)
}

func TestResult_Clone(t *testing.T) {
	r := &Result{Specifiers: []string{"a"}, IsModule: true}
	c := r.Clone()
	c.Specifiers[0] = "b"
	assert.Equal(t, "a", r.Specifiers[0])
	assert.True(t, c.IsModule)
	assert.Nil(t, (*Result)(nil).Clone())
}
