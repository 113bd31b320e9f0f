package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/depscan/pkg/cache"
	"github.com/gnana997/depscan/pkg/extractor"
	"github.com/gnana997/depscan/pkg/indexer"
	"github.com/gnana997/depscan/pkg/mcplog"
	"github.com/gnana997/depscan/pkg/parser"
	"github.com/gnana997/depscan/pkg/util"
)

// --- helpers ---

func testServer(t *testing.T, callLog *mcplog.Logger) *Server {
	t.Helper()
	logger := util.DiscardLogger()

	pm := parser.NewParserManager(logger)
	t.Cleanup(func() { pm.Close() })

	rc, err := cache.New(cache.Config{MaxEntries: 64, Logger: logger})
	require.NoError(t, err)
	ex := cache.NewExtractor(extractor.NewExtractor(pm, logger), rc)

	index := indexer.NewDependencyIndex(logger)
	scanner := indexer.NewWorkspaceScanner(ex, index, nil, logger)
	return NewServer(ex, scanner, callLog, logger)
}

func makeRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	var arguments any
	if args != nil {
		arguments = args
	}
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: arguments,
		},
	}
}

func callTool(t *testing.T, s *Server, req mcp.CallToolRequest) *mcp.CallToolResult {
	t.Helper()
	var handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

	switch req.Params.Name {
	case "extract_requires":
		handler = s.handleExtractRequires
	case "scan_workspace":
		handler = s.handleScanWorkspace
	case "get_file_dependencies":
		handler = s.handleGetFileDependencies
	case "find_dependents":
		handler = s.handleFindDependents
	case "parse_dependencies":
		handler = s.handleParseDependencies
	default:
		t.Fatalf("unknown tool: %s", req.Params.Name)
	}

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return textContent.Text
}

func writeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

// --- extract_requires ---

func TestHandleExtractRequires(t *testing.T) {
	s := testServer(t, nil)
	result := callTool(t, s, makeRequest("extract_requires", map[string]any{
		"code": `import a from "x"; const b = require("y");`,
	}))
	assert.False(t, result.IsError)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	assert.Equal(t, []any{"x", "y"}, got["specifiers"])
	assert.Equal(t, true, got["isModule"])
	assert.Equal(t, "module", got["grammar"])
	assert.Equal(t, "javascript", got["language"])
}

func TestHandleExtractRequires_TSX(t *testing.T) {
	s := testServer(t, nil)
	result := callTool(t, s, makeRequest("extract_requires", map[string]any{
		"code":     `import type { A } from "./types"; const el = <div>{require("lazy")}</div>;`,
		"language": "tsx",
	}))
	assert.False(t, result.IsError)

	var got extractor.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	assert.Equal(t, []string{"./types", "lazy"}, got.Specifiers)
	assert.True(t, got.IsModule)
}

func TestHandleExtractRequires_Errors(t *testing.T) {
	s := testServer(t, nil)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing code", nil},
		{"unsupported language", map[string]any{"code": "require('a')", "language": "python"}},
		{"unparsable", map[string]any{"code": "function ("}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := callTool(t, s, makeRequest("extract_requires", tc.args))
			assert.True(t, result.IsError)
		})
	}
}

// --- scan_workspace / index tools ---

func TestHandleScanWorkspaceAndQueries(t *testing.T) {
	root := writeWorkspace(t, map[string]string{
		"src/index.ts":      `import React from "react"; import { a } from "./a";`,
		"src/a.ts":          `export const a = require("lodash/fp");`,
		"src/broken.js":     `function (`,
		"node_modules/x.js": `require("hidden")`,
	})
	s := testServer(t, nil)

	result := callTool(t, s, makeRequest("scan_workspace", map[string]any{"root": root}))
	require.False(t, result.IsError, resultText(t, result))

	var summary struct {
		Root  string `json:"root"`
		Stats struct {
			FilesDiscovered int              `json:"filesDiscovered"`
			FilesIndexed    int              `json:"filesIndexed"`
			FilesFailed     int              `json:"filesFailed"`
			Errors          []map[string]any `json:"errors"`
		} `json:"stats"`
		Packages []indexer.PackageUsage `json:"packages"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &summary))
	assert.Equal(t, root, summary.Root)
	assert.Equal(t, 3, summary.Stats.FilesDiscovered)
	assert.Equal(t, 2, summary.Stats.FilesIndexed)
	assert.Equal(t, 1, summary.Stats.FilesFailed)
	assert.Len(t, summary.Stats.Errors, 1)
	assert.ElementsMatch(t, []string{"lodash", "react"}, packageNames(summary.Packages))

	indexPath := filepath.Join(root, "src", "index.ts")
	result = callTool(t, s, makeRequest("get_file_dependencies", map[string]any{"path": indexPath}))
	require.False(t, result.IsError)
	var entry indexer.FileDependencies
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &entry))
	assert.Equal(t, indexPath, entry.FilePath)
	assert.Equal(t, []string{"react", "./a"}, entry.Result.Specifiers)

	result = callTool(t, s, makeRequest("find_dependents", map[string]any{"specifier": "lodash/fp"}))
	require.False(t, result.IsError)
	var dependents dependentsResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &dependents))
	assert.Equal(t, []string{filepath.Join(root, "src", "a.ts")}, dependents.Files)
	assert.Equal(t, "lodash", dependents.Package)
	assert.Equal(t, "bare", string(dependents.Kind))

	result = callTool(t, s, makeRequest("find_dependents", map[string]any{"specifier": "hidden"}))
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &dependents))
	assert.Empty(t, dependents.Files)
}

func packageNames(usages []indexer.PackageUsage) []string {
	names := make([]string, len(usages))
	for i, u := range usages {
		names[i] = u.Name
	}
	return names
}

func TestHandleScanWorkspace_IncludeAndErrors(t *testing.T) {
	root := writeWorkspace(t, map[string]string{
		"a.js": `require("a")`,
		"b.ts": `import "b";`,
	})
	s := testServer(t, nil)

	result := callTool(t, s, makeRequest("scan_workspace", map[string]any{
		"root":    root,
		"include": []any{"**/*.ts"},
	}))
	require.False(t, result.IsError)
	assert.Equal(t, 1, s.scanner.Index().Stats().Files)

	result = callTool(t, s, makeRequest("scan_workspace", map[string]any{
		"root": filepath.Join(root, "missing"),
	}))
	assert.True(t, result.IsError)

	result = callTool(t, s, makeRequest("scan_workspace", nil))
	assert.True(t, result.IsError)
}

func TestHandleGetFileDependencies_NotIndexed(t *testing.T) {
	s := testServer(t, nil)
	result := callTool(t, s, makeRequest("get_file_dependencies", map[string]any{"path": "/nope.js"}))
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "file not indexed")
}

// --- parse_dependencies ---

func TestHandleParseDependencies(t *testing.T) {
	s := testServer(t, nil)

	result := callTool(t, s, makeRequest("parse_dependencies", map[string]any{
		"combination": "react@18.2.0+@babel/core@7.0.0",
	}))
	require.False(t, result.IsError)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	assert.Equal(t, map[string]string{"react": "18.2.0", "@babel/core": "7.0.0"}, got)

	result = callTool(t, s, makeRequest("parse_dependencies", map[string]any{"combination": "react"}))
	assert.True(t, result.IsError)
}

// --- middleware ---

func TestLoggingMiddleware(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.jsonl")
	callLog, err := mcplog.NewLogger(path)
	require.NoError(t, err)

	s := testServer(t, callLog)
	failing := func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, errors.New("internal")
	}

	wrapped := s.loggingMiddleware()(s.handleExtractRequires)
	_, err = wrapped(context.Background(), makeRequest("extract_requires", map[string]any{"code": "require('a')"}))
	require.NoError(t, err)

	_, err = s.loggingMiddleware()(failing)(context.Background(), makeRequest("scan_workspace", nil))
	require.Error(t, err)
	require.NoError(t, callLog.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second mcplog.LogEntry
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))

	assert.Equal(t, "extract_requires", first.Tool)
	assert.False(t, first.ToolError)
	assert.Greater(t, first.ResponseBytes, 0)
	assert.Nil(t, first.Error)

	assert.Equal(t, "scan_workspace", second.Tool)
	require.NotNil(t, second.Error)
	assert.Equal(t, "internal", *second.Error)
}
