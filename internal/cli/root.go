package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rapidmeta/internal/app"
	"rapidmeta/internal/config"
)

type globalFlags struct {
	config string
	db     string
	dsl    string
	dicts  string
}

func (g globalFlags) args() []string {
	var out []string
	for _, kv := range [][2]string{{"-config", g.config}, {"-db", g.db}, {"-dsl", g.dsl}, {"-dictionaries", g.dicts}} {
		if kv[1] != "" {
			out = append(out, kv[0], kv[1])
		}
	}
	return out
}

// RootCmd returns the metactl root command.
func RootCmd() *cobra.Command {
	var g globalFlags
	cmd := &cobra.Command{
		Use:   "metactl",
		Short: "Inspect and synchronize the database schema of meta models",
		Long: `metactl compares the declared models (built-in, DSL and meta records)
with the live Postgres catalog and shows or applies the difference.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&g.config, "config", "", "path to config.yaml")
	cmd.PersistentFlags().StringVar(&g.db, "db", "", "Postgres URL (overrides config)")
	cmd.PersistentFlags().StringVar(&g.dsl, "dsl", "", "DSL directory (overrides config)")
	cmd.PersistentFlags().StringVar(&g.dicts, "dictionaries", "", "dictionaries directory (overrides config)")

	cmd.AddCommand(planCmd(&g))
	cmd.AddCommand(syncCmd(&g))
	cmd.AddCommand(lintCmd(&g))
	return cmd
}

// boot собирает приложение и подгружает динамические модели.
func boot(ctx context.Context, g *globalFlags, verbose bool) (*app.App, error) {
	cfg, err := config.Load(g.args())
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	if verbose {
		if logger, err = cfg.NewLogger(); err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
	}
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Manager.ConfigureModels(ctx)
	return a, nil
}
