package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/depscan/pkg/deps"
	"github.com/gnana997/depscan/pkg/extractor"
	"github.com/gnana997/depscan/pkg/indexer"
	"github.com/gnana997/depscan/pkg/parser"
)

const (
	maxReportedErrors   = 50
	maxReportedPackages = 25
)

// scanSummary is the scan_workspace response.
type scanSummary struct {
	Root            string                 `json:"root"`
	Stats           *indexer.ScanStats     `json:"stats"`
	ErrorsTruncated bool                   `json:"errorsTruncated,omitempty"`
	Packages        []indexer.PackageUsage `json:"packages"`
}

// dependentsResponse is the find_dependents response.
type dependentsResponse struct {
	Specifier string             `json:"specifier"`
	Kind      deps.SpecifierKind `json:"kind"`
	Package   string             `json:"package,omitempty"`
	Files     []string           `json:"files"`
}

func (s *Server) handleExtractRequires(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := req.GetString("language", "javascript")
	lang, isTSX := parser.ParseLanguageString(name)
	if lang == parser.LanguageUnknown {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported language: %s", name)), nil
	}

	result, err := s.extractor.Extract([]byte(code), lang, isTSX)
	if err != nil {
		if errors.Is(err, extractor.ErrUnparsable) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}
	return marshalToolResponse(result)
}

func (s *Server) handleScanWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := req.RequireString("root")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid root: %v", err)), nil
	}

	options := indexer.DefaultScanOptions()
	if include := req.GetStringSlice("include", nil); len(include) > 0 {
		options.Include = include
	}
	if exclude := req.GetStringSlice("exclude", nil); len(exclude) > 0 {
		options.Exclude = exclude
	}

	stats, err := s.scanner.ScanWorkspace(ctx, root, options, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scan failed: %v", err)), nil
	}

	summary := scanSummary{Root: root, Stats: stats}
	if len(stats.Errors) > maxReportedErrors {
		trimmed := *stats
		trimmed.Errors = stats.Errors[:maxReportedErrors]
		summary.Stats = &trimmed
		summary.ErrorsTruncated = true
	}
	summary.Packages = s.scanner.Index().Packages()
	if len(summary.Packages) > maxReportedPackages {
		summary.Packages = summary.Packages[:maxReportedPackages]
	}

	return marshalToolResponse(summary)
}

func (s *Server) handleGetFileDependencies(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	entry, ok := s.scanner.Index().Get(path)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("file not indexed: %s (run scan_workspace first)", path)), nil
	}
	return marshalToolResponse(entry)
}

func (s *Server) handleFindDependents(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	specifier, err := req.RequireString("specifier")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return marshalToolResponse(dependentsResponse{
		Specifier: specifier,
		Kind:      deps.Classify(specifier),
		Package:   deps.PackageName(specifier),
		Files:     s.scanner.Index().Dependents(specifier),
	})
}

func (s *Server) handleParseDependencies(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	combination, err := req.RequireString("combination")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	parsed, err := deps.ParseCombination(combination)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalToolResponse(parsed)
}

// marshalToolResponse marshals a response to JSON and wraps it in a text
// result.
func marshalToolResponse(response any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
