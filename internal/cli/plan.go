package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"rapidmeta/internal/meta"
	"rapidmeta/internal/pg"
)

func planCmd(g *globalFlags) *cobra.Command {
	var showSQL, verbose bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the DDL a sync would run",
		Long: `Take one catalog snapshot and print the planned actions without applying them:
  CREATE - table, column or link table will be created
  ALTER  - type, default or nullability of an existing column will change

Examples:
  metactl plan --db postgres://localhost/rapid
  metactl plan --sql`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			a, err := boot(ctx, g, verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			plan, err := a.Manager.Plan(ctx)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan, showSQL)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSQL, "sql", false, "print DDL statements")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	return cmd
}

func syncCmd(g *globalFlags) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one full reconciliation pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			a, err := boot(ctx, g, verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Manager.Resync(ctx)
			if rep != nil {
				printReport(cmd.OutOrStdout(), rep)
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	return cmd
}

func lintCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Check model definitions for contradictions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			a, err := boot(ctx, g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			issues := meta.Lint(a.Registry, a.Dictionaries)
			printIssues(cmd.OutOrStdout(), issues)
			if len(issues) > 0 {
				return fmt.Errorf("%d issue(s) found", len(issues))
			}
			return nil
		},
	}
}

func label(kind pg.ActionKind) string {
	switch kind {
	case pg.ActionCreateTable, pg.ActionCreateColumn, pg.ActionCreateLinkTable:
		return color.New(color.FgGreen).Sprint("CREATE")
	case pg.ActionDropTable, pg.ActionDropColumn:
		return color.New(color.FgRed).Sprint("DROP  ")
	default:
		return color.New(color.FgYellow).Sprint("ALTER ")
	}
}

func printActions(w io.Writer, title string, actions []pg.Action, showSQL bool) {
	fmt.Fprintf(w, "%s (%d):\n", title, len(actions))
	for _, a := range actions {
		fmt.Fprintf(w, "  %s %s\n", label(a.Kind), a)
		if !showSQL {
			continue
		}
		if ddl, err := a.SQL(pg.PostgresQuoter{}); err == nil {
			fmt.Fprintf(w, "         %s\n", color.New(color.Faint).Sprint(ddl))
		}
	}
}

func printPlan(w io.Writer, plan meta.Plan, showSQL bool) {
	if plan.Empty() && len(plan.Warnings) == 0 {
		fmt.Fprintln(w, color.New(color.FgGreen).Sprint("✓"), "Schema is up to date")
		return
	}
	printActions(w, "Tables", plan.Tables, showSQL)
	printActions(w, "Columns", plan.Columns, showSQL)
	if len(plan.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings (%d):\n", len(plan.Warnings))
		for _, wr := range plan.Warnings {
			fmt.Fprintf(w, "  %s %s.%s: %s\n", color.New(color.FgYellow).Sprint("!"), wr.Model, wr.Property, wr.Message)
		}
	}
}

func printReport(w io.Writer, rep *meta.SyncReport) {
	applied := len(rep.Tables.Applied) + len(rep.Columns.Applied)
	skipped := len(rep.Tables.Skipped) + len(rep.Columns.Skipped)
	fmt.Fprintf(w, "Pass %s: %d applied, %d already present (%s)\n", rep.PassID, applied, skipped, rep.Duration.Round(1e6))
	for _, f := range append(append([]pg.Failure(nil), rep.Tables.Failed...), rep.Columns.Failed...) {
		fmt.Fprintf(w, "  %s %s: %v\n", color.New(color.FgRed).Sprint("FAILED"), f.Action, f.Err)
	}
	if rep.ColumnsSkipped {
		fmt.Fprintln(w, color.New(color.FgYellow).Sprint("Column changes skipped: table creation failed"))
	}
}

func printIssues(w io.Writer, issues []meta.Issue) {
	if len(issues) == 0 {
		fmt.Fprintln(w, color.New(color.FgGreen).Sprint("✓"), "No issues")
		return
	}
	for _, is := range issues {
		target := is.Model
		if is.Property != "" {
			target += "." + is.Property
		}
		fmt.Fprintf(w, "  %s %s [%s] %s\n", color.New(color.FgRed).Sprint("✗"), target, is.Code, is.Message)
	}
}
