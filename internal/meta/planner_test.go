package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"rapidmeta/internal/dsl"
	"rapidmeta/internal/pg"
)

func scalar(code string, typ dsl.PropertyType, required bool) dsl.Property {
	return dsl.Property{Code: code, Required: required, Spec: dsl.Scalar{Type: typ}}
}

func widgetModel(props ...dsl.Property) *dsl.Model {
	return &dsl.Model{Namespace: "app", SingularCode: "widget", Schema: "public", TableName: "widgets", Properties: props}
}

func newTestPlanner(t *testing.T, models ...*dsl.Model) (*Planner, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)
	reg := NewRegistry("public", logger)
	require.NoError(t, reg.SetStatic(models))
	return NewPlanner(reg, logger), logs
}

func strPtr(s string) *string { return &s }

// afterApply строит снимок, каким его увидит следующий проход после применения плана.
func afterApply(t *testing.T, base []pg.Column, tables []pg.Table, plan Plan) *pg.Snapshot {
	t.Helper()
	columns := append([]pg.Column(nil), base...)
	tables = append([]pg.Table(nil), tables...)
	for _, a := range plan.Actions() {
		switch a.Kind {
		case pg.ActionCreateTable:
			tables = append(tables, pg.Table{Schema: a.Schema, Name: a.Table})
		case pg.ActionCreateLinkTable:
			tables = append(tables, pg.Table{Schema: a.Schema, Name: a.Table})
			for _, c := range []string{"id", a.SelfColumn, a.TargetColumn} {
				columns = append(columns, pg.Column{Schema: a.Schema, Table: a.Table, Name: c, UDTName: "int4"})
			}
		case pg.ActionCreateColumn:
			c := pg.Column{Schema: a.Schema, Table: a.Table, Name: a.Column, Nullable: !a.NotNull}
			if a.AutoIncrement && a.Type == dsl.TypeInteger {
				c.Nullable = false // serial всегда NOT NULL
				c.UDTName = "int4"
				c.Default = strPtr("nextval('seq'::regclass)")
			} else {
				typ, err := pg.ColumnType(a.Type)
				require.NoError(t, err)
				c.UDTName = typ
				if typ == "decimal" {
					c.UDTName = "numeric"
				}
				if a.Default != "" {
					c.Default = strPtr(a.Default)
				}
			}
			columns = append(columns, c)
		default:
			t.Fatalf("unexpected action on empty database: %s", a)
		}
	}
	return pg.NewSnapshot(tables, columns)
}

func kinds(actions []pg.Action) []pg.ActionKind {
	out := make([]pg.ActionKind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}

func TestPlan_AutoIncrementIDOnEmptyDatabase(t *testing.T) {
	id := dsl.Property{Code: "id", Required: true, Spec: dsl.Scalar{Type: dsl.TypeInteger, AutoIncrement: true}}
	p, _ := newTestPlanner(t, widgetModel(id))

	plan := p.Plan(pg.NewSnapshot(nil, nil))

	require.Len(t, plan.Tables, 1)
	assert.Equal(t, pg.ActionCreateTable, plan.Tables[0].Kind)
	assert.Equal(t, "widgets", plan.Tables[0].Table)
	require.Len(t, plan.Columns, 1)
	col := plan.Columns[0]
	assert.Equal(t, pg.ActionCreateColumn, col.Kind)
	assert.Equal(t, "id", col.Column)
	assert.True(t, col.AutoIncrement)
	assert.True(t, col.NotNull)

	ddl, err := col.SQL(pg.PostgresQuoter{})
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "public"."widgets" ADD "id" serial NOT NULL`, ddl)
}

func TestPlan_RequiredOnNullableColumn(t *testing.T) {
	p, _ := newTestPlanner(t, widgetModel(scalar("name", dsl.TypeText, true)))
	snap := pg.NewSnapshot(
		[]pg.Table{{Schema: "public", Name: "widgets"}},
		[]pg.Column{{Schema: "public", Table: "widgets", Name: "name", UDTName: "text", Nullable: true}},
	)

	plan := p.Plan(snap)

	assert.Empty(t, plan.Tables)
	assert.Equal(t, []pg.ActionKind{pg.ActionSetNotNull}, kinds(plan.Columns))
	assert.Equal(t, "name", plan.Columns[0].Column)
}

func TestPlan_OptionalOnNotNullColumn(t *testing.T) {
	p, _ := newTestPlanner(t, widgetModel(scalar("name", dsl.TypeText, false)))
	snap := pg.NewSnapshot(
		[]pg.Table{{Schema: "public", Name: "widgets"}},
		[]pg.Column{{Schema: "public", Table: "widgets", Name: "name", UDTName: "text", Nullable: false}},
	)

	assert.Equal(t, []pg.ActionKind{pg.ActionDropNotNull}, kinds(p.Plan(snap).Columns))
}

func TestPlan_LinkTableAbsent(t *testing.T) {
	tags := dsl.Property{Code: "tags", Spec: dsl.RelationMany{
		TargetSingularCode: "tag",
		SelfIDColumnName:   "self_id",
		TargetIDColumnName: "target_id",
		LinkTableName:      "widget_tags",
	}}
	p, _ := newTestPlanner(t, widgetModel(tags))
	snap := pg.NewSnapshot([]pg.Table{{Schema: "public", Name: "widgets"}}, nil)

	plan := p.Plan(snap)

	require.Len(t, plan.Columns, 1)
	a := plan.Columns[0]
	assert.Equal(t, pg.ActionCreateLinkTable, a.Kind)
	assert.Equal(t, "public", a.Schema)
	assert.Equal(t, "widget_tags", a.Table)
	assert.Equal(t, "self_id", a.SelfColumn)
	assert.Equal(t, "target_id", a.TargetColumn)
}

func TestPlan_LinkTablePresentIsLeftAlone(t *testing.T) {
	tags := dsl.Property{Code: "tags", Spec: dsl.RelationMany{
		SelfIDColumnName: "self_id", TargetIDColumnName: "target_id", LinkTableName: "widget_tags", LinkSchema: "links",
	}}
	p, _ := newTestPlanner(t, widgetModel(tags))
	snap := pg.NewSnapshot([]pg.Table{{Schema: "public", Name: "widgets"}, {Schema: "links", Name: "widget_tags"}}, nil)

	assert.True(t, p.Plan(snap).Empty())
}

func TestPlan_UnresolvedOneTarget(t *testing.T) {
	owner := dsl.Property{Code: "owner", Spec: dsl.RelationOne{TargetSingularCode: "ghost", TargetIDColumnName: "owner_id"}}
	p, logs := newTestPlanner(t, widgetModel(owner))
	snap := pg.NewSnapshot([]pg.Table{{Schema: "public", Name: "widgets"}}, nil)

	plan := p.Plan(snap)

	assert.True(t, plan.Empty())
	require.Len(t, plan.Warnings, 1)
	assert.Equal(t, "owner", plan.Warnings[0].Property)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "ghost", logs.All()[0].ContextMap()["target"])
}

func TestPlan_RelationOneColumn(t *testing.T) {
	user := &dsl.Model{Namespace: "app", SingularCode: "user", TableName: "users"}
	owner := dsl.Property{Code: "owner", Required: true, Spec: dsl.RelationOne{TargetSingularCode: "user", TargetIDColumnName: "owner_id"}}
	p, _ := newTestPlanner(t, widgetModel(owner), user)
	snap := pg.NewSnapshot([]pg.Table{{Schema: "public", Name: "widgets"}, {Schema: "public", Name: "users"}}, nil)

	plan := p.Plan(snap)

	require.Len(t, plan.Columns, 1)
	a := plan.Columns[0]
	assert.Equal(t, pg.ActionCreateColumn, a.Kind)
	assert.Equal(t, "owner_id", a.Column)
	assert.Equal(t, dsl.TypeInteger, a.Type)
	assert.True(t, a.NotNull)
	assert.Equal(t, "app.widget", a.Model)
}

func TestPlan_ManyWithoutLinkTableLivesOnTarget(t *testing.T) {
	part := &dsl.Model{Namespace: "app", SingularCode: "part", Schema: "inv", TableName: "parts"}
	parts := dsl.Property{Code: "parts", Spec: dsl.RelationMany{TargetSingularCode: "part", SelfIDColumnName: "widget_id"}}
	p, _ := newTestPlanner(t, widgetModel(parts), part)
	snap := pg.NewSnapshot([]pg.Table{{Schema: "public", Name: "widgets"}, {Schema: "inv", Name: "parts"}}, nil)

	plan := p.Plan(snap)

	require.Len(t, plan.Columns, 1)
	assert.Equal(t, "inv", plan.Columns[0].Schema)
	assert.Equal(t, "parts", plan.Columns[0].Table)
	assert.Equal(t, "widget_id", plan.Columns[0].Column)
	assert.False(t, plan.Columns[0].NotNull)
}

func TestPlan_ManyUnsupportedShapeIsSilent(t *testing.T) {
	bare := dsl.Property{Code: "bare", Spec: dsl.RelationMany{SelfIDColumnName: "x"}}
	p, logs := newTestPlanner(t, widgetModel(bare))

	plan := p.Plan(pg.NewSnapshot([]pg.Table{{Schema: "public", Name: "widgets"}}, nil))

	assert.True(t, plan.Empty())
	assert.Empty(t, plan.Warnings)
	assert.Zero(t, logs.Len())
}

func TestPlan_UnsupportedTypeSkipsOnlyThatProperty(t *testing.T) {
	p, logs := newTestPlanner(t, widgetModel(
		scalar("geo", dsl.PropertyType("geometry"), false),
		scalar("title", dsl.TypeText, false),
	))

	plan := p.Plan(pg.NewSnapshot([]pg.Table{{Schema: "public", Name: "widgets"}}, nil))

	require.Len(t, plan.Columns, 1)
	assert.Equal(t, "title", plan.Columns[0].Column)
	require.Len(t, plan.Warnings, 1)
	assert.Equal(t, "geo", plan.Warnings[0].Property)
	assert.Equal(t, 1, logs.FilterMessage(`property type "geometry" is not supported`).Len())
}

func TestPlan_AutoIncrementNeverAltersType(t *testing.T) {
	id := dsl.Property{Code: "id", Required: true, Spec: dsl.Scalar{Type: dsl.TypeInteger, AutoIncrement: true}}
	p, _ := newTestPlanner(t, widgetModel(id))
	snap := pg.NewSnapshot(
		[]pg.Table{{Schema: "public", Name: "widgets"}},
		[]pg.Column{{
			Schema: "public", Table: "widgets", Name: "id",
			UDTName: "int8", Default: strPtr("nextval('widgets_id_seq'::regclass)"),
		}},
	)

	assert.True(t, p.Plan(snap).Empty())
}

func TestPlan_ChecksAreIndependent(t *testing.T) {
	price := dsl.Property{Code: "price", Required: true, Spec: dsl.Scalar{Type: dsl.TypeDouble, DefaultValue: "0"}}
	note := scalar("note", dsl.TypeText, false)
	p, _ := newTestPlanner(t, widgetModel(price, note))
	snap := pg.NewSnapshot(
		[]pg.Table{{Schema: "public", Name: "widgets"}},
		[]pg.Column{
			{Schema: "public", Table: "widgets", Name: "price", UDTName: "int4", Nullable: true},
			{Schema: "public", Table: "widgets", Name: "note", UDTName: "text", Nullable: true, Default: strPtr("'n/a'::text")},
		},
	)

	plan := p.Plan(snap)

	assert.Equal(t, []pg.ActionKind{
		pg.ActionAlterColumnType, pg.ActionSetDefault, pg.ActionSetNotNull,
		pg.ActionDropDefault,
	}, kinds(plan.Columns))
}

func TestPlan_DecimalMatchesNumeric(t *testing.T) {
	p, _ := newTestPlanner(t, widgetModel(scalar("amount", dsl.TypeDecimal, false)))
	snap := pg.NewSnapshot(
		[]pg.Table{{Schema: "public", Name: "widgets"}},
		[]pg.Column{{Schema: "public", Table: "widgets", Name: "amount", UDTName: "numeric", Nullable: true}},
	)

	assert.True(t, p.Plan(snap).Empty())
}

func TestPlan_TablesPrecedeTheirColumns(t *testing.T) {
	p, _ := newTestPlanner(t, BuiltinModels()...)

	plan := p.Plan(pg.NewSnapshot(nil, nil))

	actions := plan.Actions()
	created := map[string]int{}
	for i, a := range actions {
		if a.Kind == pg.ActionCreateTable {
			created[a.Schema+"."+a.Table] = i
		}
	}
	for i, a := range actions {
		if a.Kind != pg.ActionCreateColumn {
			continue
		}
		at, ok := created[a.Schema+"."+a.Table]
		require.True(t, ok, "table of %s is not created", a)
		assert.Less(t, at, i, "%s comes before its table", a)
	}
}

func TestPlan_SharedColumnPlannedOnce(t *testing.T) {
	p, _ := newTestPlanner(t, BuiltinModels()...)

	plan := p.Plan(pg.NewSnapshot(nil, nil))

	count := 0
	for _, a := range plan.Columns {
		if a.Table == "meta_properties" && a.Column == "model_id" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPlan_Idempotent(t *testing.T) {
	models := append(BuiltinModels(),
		widgetModel(
			dsl.Property{Code: "id", Required: true, Spec: dsl.Scalar{Type: dsl.TypeInteger, AutoIncrement: true}},
			dsl.Property{Code: "amount", Spec: dsl.Scalar{Type: dsl.TypeDecimal, DefaultValue: "0"}},
			dsl.Property{Code: "seq", Spec: dsl.Scalar{Type: dsl.TypeInteger, AutoIncrement: true}},
			dsl.Property{Code: "tags", Spec: dsl.RelationMany{
				SelfIDColumnName: "widget_id", TargetIDColumnName: "tag_id", LinkTableName: "widget_tags",
			}},
		),
	)
	p, _ := newTestPlanner(t, models...)
	empty := pg.NewSnapshot(nil, nil)

	first := p.Plan(empty)
	second := p.Plan(empty)
	assert.Equal(t, first, second)
	require.False(t, first.Empty())

	converged := afterApply(t, nil, nil, first)
	again := p.Plan(converged)
	assert.True(t, again.Empty(), "unexpected actions: %v", again.Actions())
}

func TestPlan_OptionalSerialKeepsNotNull(t *testing.T) {
	p, _ := newTestPlanner(t, widgetModel(
		dsl.Property{Code: "seq", Spec: dsl.Scalar{Type: dsl.TypeInteger, AutoIncrement: true}},
	))
	snap := pg.NewSnapshot(
		[]pg.Table{{Schema: "public", Name: "widgets"}},
		[]pg.Column{{Schema: "public", Table: "widgets", Name: "seq", UDTName: "int4", Default: strPtr("nextval('widgets_seq_seq'::regclass)")}},
	)

	assert.True(t, p.Plan(snap).Empty())
}
