package main

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/gnana997/depscan/pkg/deps"
)

func depsCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "deps <combination>",
		Short: "Parse a name@version+name@version dependency combination",
		Example: `  depscan deps react@18.2.0+react-dom@18.2.0
  depscan deps @babel/core@7.24.0 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			parsed, err := deps.ParseCombination(args[0])
			if err != nil {
				return err
			}

			switch format {
			case formatJSON:
				return writeJSON(a.stdout, parsed)
			case formatYAML:
				return writeYAML(a.stdout, parsed)
			}

			names := make([]string, 0, len(parsed))
			for name := range parsed {
				names = append(names, name)
			}
			sort.Strings(names)

			tbl := newTable(a.stdout, table.Row{"Package", "Version"})
			for _, name := range names {
				tbl.AppendRow(table.Row{name, parsed[name]})
			}
			tbl.Render()

			fmt.Fprintf(a.stdout, "canonical: %s\n", deps.FormatCombination(parsed))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: json, yaml, table")
	return cmd
}
