package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"rapidmeta/internal/meta"
	"rapidmeta/internal/pg"
)

func init() { color.NoColor = true }

func TestPrintPlan(t *testing.T) {
	var buf bytes.Buffer
	printPlan(&buf, meta.Plan{
		Tables:   []pg.Action{pg.CreateTable("public", "widgets")},
		Columns:  []pg.Action{pg.SetNotNull("public", "widgets", "name")},
		Warnings: []meta.Warning{{Model: "app.widget", Property: "owner", Message: "Cannot find target model"}},
	}, true)

	out := buf.String()
	assert.Contains(t, out, "Tables (1):\n  CREATE create_table public.widgets\n")
	assert.Contains(t, out, `CREATE TABLE IF NOT EXISTS "public"."widgets" ()`)
	assert.Contains(t, out, "ALTER  set_not_null public.widgets.name")
	assert.Contains(t, out, "! app.widget.owner: Cannot find target model")
}

func TestPrintPlan_UpToDate(t *testing.T) {
	var buf bytes.Buffer
	printPlan(&buf, meta.Plan{}, false)
	assert.Equal(t, "✓ Schema is up to date\n", buf.String())
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &meta.SyncReport{
		PassID:   "01J0000000000000000000000",
		Duration: 1500 * time.Millisecond,
		Tables:   pg.Report{Applied: []pg.Action{pg.CreateTable("public", "a")}},
		Columns: pg.Report{
			Skipped: []pg.Action{pg.CreateColumn("public", "a", "x", "text", false, false, "")},
			Failed:  []pg.Failure{{Action: pg.DropDefault("public", "a", "y"), Err: errors.New("boom")}},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "1 applied, 1 already present (1.5s)")
	assert.Contains(t, out, "FAILED drop_default public.a.y: boom")
}

func TestGlobalFlagsArgs(t *testing.T) {
	g := globalFlags{config: "c.yaml", db: "postgres://x"}
	assert.Equal(t, []string{"-config", "c.yaml", "-db", "postgres://x"}, g.args())
}

func TestRootCmd(t *testing.T) {
	cmd := RootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"plan", "sync", "lint"}, names)
}
