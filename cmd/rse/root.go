package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/coregx/rse/internal/config"
	"github.com/coregx/rse/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var validFormats = []string{"yaml", "json"}

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
	format     string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "rse",
		Short: "Relational storage engine tooling",
		Long: `rse extracts database catalogs into a portable YAML or JSON document
and shows the metadata queries run against MySQL, PostgreSQL and SQLite.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.format, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "yaml", "output format (yaml|json)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides the config (debug|info|warn|error)")

	cmd.AddCommand(newExtractCommand(opts))
	cmd.AddCommand(newQueriesCommand())
	cmd.AddCommand(newDialectsCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// loadConfig reads and validates the configuration, applying flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to w, never to the document
// output.
func newLogger(cfg *config.Config, w io.Writer) (logger.Logger, error) {
	return logger.New(w, cfg.Log.Level, cfg.Log.JSON)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "rse", version)
		},
	}
}
