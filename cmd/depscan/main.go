// Package main provides the depscan CLI entry point.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gnana997/depscan/pkg/cache"
	"github.com/gnana997/depscan/pkg/extractor"
	"github.com/gnana997/depscan/pkg/parser"
	"github.com/gnana997/depscan/pkg/util"
)

const version = "0.1.0"

// errUnparsable is returned by commands that processed input rejected by
// both grammars. The message has already been printed per file.
var errUnparsable = errors.New("some inputs could not be parsed")

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		if !errors.Is(err, errUnparsable) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// app carries state shared by all subcommands. cfg and logger are set in
// the root PersistentPreRunE.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *Config
	logger  *slog.Logger
	stdout  io.Writer
	stderr  io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "depscan",
		Short: "Extract module specifiers from JavaScript and TypeScript sources",
		Long: `depscan lists the module specifiers a JavaScript or TypeScript file references
through import and export-from declarations, dynamic import() and require() calls,
and indexes them across a workspace.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./.depscan.yaml or $HOME/.depscan.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.Int("workers", 0, "parser and scan worker count (0 = auto)")

	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log_format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("workers", flags.Lookup("workers"))

	rootCmd.AddCommand(
		extractCmd(a),
		scanCmd(a),
		watchCmd(a),
		serveCmd(a),
		depsCmd(a),
		versionCmd(a),
	)

	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	config := cfg.LoggerConfig()
	config.Output = a.stderr
	a.logger = util.NewLogger(config)

	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("Using config file", "path", used, "command", cmd.Name())
	}
	return nil
}

// newExtractor builds the parser pool, the extractor and its result cache.
// The returned function releases the parsers.
func (a *app) newExtractor() (*cache.Extractor, func(), error) {
	pm := parser.NewParserManager(a.logger, parser.WithPoolSize(a.cfg.Workers))

	rc, err := cache.New(cache.Config{MaxEntries: a.cfg.CacheEntries, Logger: a.logger})
	if err != nil {
		pm.Close()
		return nil, nil, err
	}

	ex := cache.NewExtractor(extractor.NewExtractor(pm, a.logger), rc)
	return ex, func() { pm.Close() }, nil
}

func versionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "depscan %s\n", version)
		},
	}
}
