package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gnana997/depscan/pkg/cache"
	"github.com/gnana997/depscan/pkg/deps"
	"github.com/gnana997/depscan/pkg/extractor"
	"github.com/gnana997/depscan/pkg/parser"
	"github.com/gnana997/depscan/pkg/util"
)

// stdinPath selects standard input as the source.
const stdinPath = "-"

// extractReport is one file's entry in extract output.
type extractReport struct {
	File       string   `json:"file" yaml:"file"`
	Specifiers []string `json:"specifiers" yaml:"specifiers"`
	IsModule   bool     `json:"isModule" yaml:"isModule"`
	Grammar    string   `json:"grammar,omitempty" yaml:"grammar,omitempty"`
	Language   string   `json:"language,omitempty" yaml:"language,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`

	unparsable bool
}

func extractCmd(a *app) *cobra.Command {
	var (
		format   string
		language string
	)

	cmd := &cobra.Command{
		Use:   "extract <file>...",
		Short: "Print the module specifiers each file references",
		Long: `Print the module specifiers each file references, in source order.

The language is detected from the file extension. Use "-" to read from stdin,
with --language selecting the grammar. Exits with status 1 if any input cannot
be parsed as either a script or a module.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			lang, isTSX := parser.ParseLanguageString(language)
			if lang == parser.LanguageUnknown {
				return fmt.Errorf("unsupported language: %s", language)
			}

			ex, release, err := a.newExtractor()
			if err != nil {
				return err
			}
			defer release()

			reports := a.extractAll(ex, cmd.InOrStdin(), args, lang, isTSX)
			if err := renderReports(a.stdout, format, reports); err != nil {
				return err
			}
			return summarizeFailures(a.stderr, reports)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "output format: json, yaml, table")
	cmd.Flags().StringVarP(&language, "language", "l", "javascript", "grammar for stdin: javascript, typescript, tsx")
	return cmd
}

// stdinSource is standard input, read at most once however many times "-"
// is given.
type stdinSource struct {
	once sync.Once
	r    io.Reader
	data []byte
	err  error
}

func (s *stdinSource) read() ([]byte, error) {
	s.once.Do(func() {
		s.data, s.err = io.ReadAll(s.r)
	})
	return s.data, s.err
}

// extractAll extracts every path concurrently. Reports keep argument order.
func (a *app) extractAll(ex *cache.Extractor, in io.Reader, paths []string, lang parser.Language, isTSX bool) []extractReport {
	reports := make([]extractReport, len(paths))
	stdin := &stdinSource{r: in}

	var g errgroup.Group
	g.SetLimit(util.GetOptimalPoolSizeWithOverride(a.cfg.Workers))
	for i, path := range paths {
		g.Go(func() error {
			reports[i] = a.extractOne(ex, stdin, path, lang, isTSX)
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

func (a *app) extractOne(ex *cache.Extractor, stdin *stdinSource, path string, lang parser.Language, isTSX bool) extractReport {
	report := extractReport{File: path, Specifiers: []string{}}

	var (
		result *extractor.Result
		err    error
	)
	if path == stdinPath {
		var source []byte
		source, err = stdin.read()
		if err == nil {
			result, err = ex.Extract(source, lang, isTSX)
		}
	} else {
		var source []byte
		source, err = os.ReadFile(path)
		if err == nil {
			result, err = ex.ExtractFile(path, source)
		}
	}

	if err != nil {
		a.logger.Debug("Extraction failed", "file", path, "error", err)
		report.Error = err.Error()
		report.unparsable = errors.Is(err, extractor.ErrUnparsable)
		return report
	}

	report.Specifiers = result.Specifiers
	report.IsModule = result.IsModule
	report.Grammar = result.Grammar.String()
	report.Language = result.Language.String()
	return report
}

func renderReports(w io.Writer, format string, reports []extractReport) error {
	switch format {
	case formatYAML:
		return writeYAML(w, reports)
	case formatTable:
		tbl := newTable(w, table.Row{"File", "Grammar", "Module", "Specifiers"})
		for _, r := range reports {
			if r.Error != "" {
				tbl.AppendRow(table.Row{r.File, "error", "-", r.Error})
				continue
			}
			tbl.AppendRow(table.Row{r.File, r.Grammar, yesNo(r.IsModule), joinLines(specifierLines(r.Specifiers))})
		}
		tbl.Render()
		return nil
	default:
		return writeJSON(w, reports)
	}
}

// specifierLines collapses duplicates for display: "react (bare) x2".
func specifierLines(specs []string) []string {
	counted := deps.Count(specs)
	lines := make([]string, len(counted))
	for i, c := range counted {
		lines[i] = fmt.Sprintf("%s (%s)", c.Specifier, c.Kind)
		if c.Count > 1 {
			lines[i] += fmt.Sprintf(" x%d", c.Count)
		}
	}
	return lines
}

// summarizeFailures prints one line per failed file and returns the error
// that sets the exit status.
func summarizeFailures(w io.Writer, reports []extractReport) error {
	failed, unparsable := 0, 0
	for _, r := range reports {
		if r.Error == "" {
			continue
		}
		failed++
		if r.unparsable {
			unparsable++
		}
		fmt.Fprintf(w, "depscan: %s\n", r.Error)
	}

	switch {
	case failed == 0:
		return nil
	case unparsable == failed:
		return errUnparsable
	default:
		return fmt.Errorf("%d of %d inputs failed", failed, len(reports))
	}
}
