package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/depscan/pkg/extractor"
	"github.com/gnana997/depscan/pkg/parser"
	"github.com/gnana997/depscan/pkg/util"
)

func newTestExtractor(t *testing.T) *extractor.Extractor {
	t.Helper()
	pm := parser.NewParserManager(util.DiscardLogger())
	t.Cleanup(func() { pm.Close() })
	return extractor.NewExtractor(pm, util.DiscardLogger())
}

// writeWorkspace creates files (path → content) under a temp root.
func writeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func TestWorkerPool_Basic(t *testing.T) {
	ext := newTestExtractor(t)
	root := writeWorkspace(t, map[string]string{
		"ok.js": `require("a");`,
	})

	pool := NewWorkerPool(2, ext, nil, util.DiscardLogger())
	pool.Start(context.Background())

	var (
		results []FileResult
		errs    []FileError
		wg      sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, errc := pool.Results(), pool.Errors()
		for res != nil || errc != nil {
			select {
			case r, ok := <-res:
				if !ok {
					res = nil
					continue
				}
				results = append(results, r)
			case e, ok := <-errc:
				if !ok {
					errc = nil
					continue
				}
				errs = append(errs, e)
			}
		}
	}()

	ctx := context.Background()
	require.NoError(t, pool.Submit(ctx, FileJob{FilePath: filepath.Join(root, "ok.js"), JobID: 0}))
	require.NoError(t, pool.Submit(ctx, FileJob{FilePath: filepath.Join(root, "missing.js"), JobID: 1}))
	pool.Stop()
	wg.Wait()

	require.Len(t, results, 1)
	assert.Equal(t, []string{"a"}, results[0].Result.Specifiers)
	assert.Equal(t, ComputeContentHash([]byte(`require("a");`)), results[0].ContentHash)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "missing.js")

	stats := pool.GetStats()
	assert.Equal(t, int64(2), stats.JobsSubmitted)
	assert.Equal(t, int64(1), stats.JobsProcessed)
	assert.Equal(t, int64(1), stats.JobsFailed)

	assert.Error(t, pool.Submit(ctx, FileJob{FilePath: "late.js"}))
	pool.Stop()
}

func TestWorkerPool_SubmitBeforeStart(t *testing.T) {
	pool := NewWorkerPool(1, newTestExtractor(t), nil, util.DiscardLogger())
	assert.Error(t, pool.Submit(context.Background(), FileJob{FilePath: "a.js"}))
}

func TestScanWorkspace(t *testing.T) {
	root := writeWorkspace(t, map[string]string{
		"src/index.ts":                `import { a } from "./a"; import React from "react";`,
		"src/a.ts":                    `export const a = require("lodash");`,
		"src/view.tsx":                `export const V = () => <div>{import("./lazy")}</div>;`,
		"lib/legacy.cjs":              `module.exports = require("lodash/fp");`,
		"lib/broken.js":               `function (`,
		"README.md":                   `# not source`,
		"node_modules/react/index.js": `module.exports = require("./cjs/react");`,
		"dist/bundle.js":              `require("should-not-scan");`,
	})

	ext := newTestExtractor(t)
	index := NewDependencyIndex(util.DiscardLogger())
	files, err := util.NewFileCache(&util.FileCacheConfig{MaxFiles: 16, Logger: util.DiscardLogger()})
	require.NoError(t, err)
	defer files.Close()

	scanner := NewWorkspaceScanner(ext, index, files, util.DiscardLogger())

	var mu sync.Mutex
	progress := 0
	stats, err := scanner.ScanWorkspace(context.Background(), root, DefaultScanOptions(), func(done, total int, _ string) {
		mu.Lock()
		defer mu.Unlock()
		progress = done
		assert.Equal(t, 5, total)
	})
	require.NoError(t, err)

	assert.Equal(t, 5, stats.FilesDiscovered)
	assert.Equal(t, 4, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 5, progress)
	assert.Equal(t, 3, stats.ModuleFiles)
	assert.Equal(t, 5, stats.SpecifiersExtracted)
	assert.False(t, stats.Cancelled)
	assert.Greater(t, stats.BytesRead, int64(0))

	require.Len(t, stats.Errors, 1)
	assert.True(t, strings.HasSuffix(stats.Errors[0].FilePath, "broken.js"))
	assert.True(t, errors.Is(stats.Errors[0], extractor.ErrUnparsable))

	assert.Equal(t, []string{filepath.Join(root, "src", "a.ts")}, index.Dependents("lodash"))
	assert.Equal(t, []string{filepath.Join(root, "src", "view.tsx")}, index.Dependents("./lazy"))
	assert.Empty(t, index.Dependents("should-not-scan"))
	assert.Equal(t, 4, index.Stats().Files)

	entry, ok := index.Get(filepath.Join(root, "src", "index.ts"))
	require.True(t, ok)
	assert.Equal(t, []string{"./a", "react"}, entry.Result.Specifiers)
	assert.True(t, entry.Result.IsModule)
}

func TestScanWorkspace_IncludeExclude(t *testing.T) {
	root := writeWorkspace(t, map[string]string{
		"a/one.js":   `require("one");`,
		"a/two.ts":   `require("two");`,
		"b/three.js": `require("three");`,
		"b/big.js":   `require("` + strings.Repeat("x", 200) + `");`,
	})

	index := NewDependencyIndex(util.DiscardLogger())
	scanner := NewWorkspaceScanner(newTestExtractor(t), index, nil, util.DiscardLogger())

	stats, err := scanner.ScanWorkspace(context.Background(), root, ScanOptions{
		Include:     []string{"**/*.js"},
		Exclude:     []string{"a"},
		MaxFileSize: 100,
		Workers:     2,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesDiscovered)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, []string{filepath.Join(root, "b", "three.js")}, index.Files())
}

func TestScanWorkspace_InvalidPattern(t *testing.T) {
	scanner := NewWorkspaceScanner(newTestExtractor(t), NewDependencyIndex(util.DiscardLogger()), nil, util.DiscardLogger())

	_, err := scanner.ScanWorkspace(context.Background(), t.TempDir(), ScanOptions{Include: []string{"[unclosed"}}, nil)
	assert.Error(t, err)
}

func TestScanWorkspace_MissingRoot(t *testing.T) {
	scanner := NewWorkspaceScanner(newTestExtractor(t), NewDependencyIndex(util.DiscardLogger()), nil, util.DiscardLogger())

	_, err := scanner.ScanWorkspace(context.Background(), filepath.Join(t.TempDir(), "nope"), DefaultScanOptions(), nil)
	assert.Error(t, err)
}

func TestScanWorkspace_Cancelled(t *testing.T) {
	root := writeWorkspace(t, map[string]string{"a.js": `require("a");`})
	scanner := NewWorkspaceScanner(newTestExtractor(t), NewDependencyIndex(util.DiscardLogger()), nil, util.DiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := scanner.ScanWorkspace(ctx, root, DefaultScanOptions(), nil)
	require.NoError(t, err)
	assert.True(t, stats.Cancelled)
	assert.Equal(t, 0, stats.FilesIndexed)
}
