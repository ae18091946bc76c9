package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coregx/rse/internal/dialects"
	"github.com/coregx/rse/internal/extract"
)

func newDialectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List the registered dialect names",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range dialects.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

type queriesOptions struct {
	schemas []string
	tables  []string
}

func newQueriesCommand() *cobra.Command {
	opts := &queriesOptions{}

	cmd := &cobra.Command{
		Use:   "queries <dialect>",
		Short: "Print the metadata queries extraction runs for a dialect",
		Long: `Queries prints every extraction stage query of a dialect with the schema
and table filters filled in. Stages the database has no objects for are
skipped. Nothing is executed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dialects.Lookup(args[0])
			if err != nil {
				return err
			}
			var extractOpts []extract.Option
			if len(opts.tables) > 0 {
				extractOpts = append(extractOpts, extract.WithTables(opts.tables...))
			}
			ex := extract.New(nil, d, extractOpts...)
			for _, stage := range extract.Stages {
				query, ok := ex.Render(stage, opts.schemas)
				if !ok {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "-- %s\n%s;\n\n", stage, query)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&opts.schemas, "schema", nil, "schemas to filter on (default: all user schemas)")
	cmd.Flags().StringSliceVar(&opts.tables, "table", nil, "tables to filter on")

	return cmd
}
