package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/coregx/rse/internal/config"
	"github.com/coregx/rse/internal/core"
	"github.com/coregx/rse/internal/extract"
	"github.com/coregx/rse/internal/logger"
	"github.com/coregx/rse/internal/schema"
)

type extractOptions struct {
	*rootOptions
	caseSensitive bool
}

func newExtractCommand(root *rootOptions) *cobra.Command {
	opts := &extractOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the catalogs of the configured sources",
		Long: `Extract reads the schemas, tables, views, columns, indexes and
constraints of every configured source and prints one catalog document per
source. Sources are read concurrently, one connection each.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtract(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&opts.caseSensitive, "case-sensitive", false, "compare object names case-sensitively")

	return cmd
}

func runExtract(ctx context.Context, opts *extractOptions, out, errOut io.Writer) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, errOut)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	catalogs := make([]*schema.Catalog, len(cfg.Sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, src := range cfg.Sources {
		i, src := i, src
		g.Go(func() error {
			cat, err := extractSource(ctx, cfg, src, opts.caseSensitive, log)
			if err != nil {
				return fmt.Errorf("catalog %q: %w", src.Catalog, err)
			}
			catalogs[i] = cat
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return writeCatalogs(out, opts.format, catalogs)
}

func extractSource(ctx context.Context, cfg *config.Config, src config.Source, caseSensitive bool, log logger.Logger) (*schema.Catalog, error) {
	engine, err := core.New(src.Dialect,
		core.WithLogger(log),
		core.WithCommandCacheCapacity(cfg.CacheCapacity),
		core.WithExtractRetries(cfg.Retries, cfg.Backoff))
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(src.DriverName(), src.DSN)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var opts []extract.Option
	if len(src.Tables) > 0 {
		opts = append(opts, extract.WithTables(src.Tables...))
	}
	if caseSensitive {
		opts = append(opts, extract.WithSchemaOptions(schema.CaseSensitive()))
	}
	return engine.Extract(ctx, conn, src.Catalog, src.Schemas, opts...)
}

func writeCatalogs(w io.Writer, format string, catalogs []*schema.Catalog) error {
	if format == "json" {
		if len(catalogs) == 1 {
			return catalogs[0].WriteJSON(w)
		}
		docs := make([]schema.Document, len(catalogs))
		for i, c := range catalogs {
			docs[i] = c.Export()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, c := range catalogs {
		if err := enc.Encode(c.Export()); err != nil {
			return err
		}
	}
	return enc.Close()
}
