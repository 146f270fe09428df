package pg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rapidmeta/internal/dsl"
)

func TestColumnType_Catalog(t *testing.T) {
	expected := map[dsl.PropertyType]string{
		dsl.TypeInteger:  "int4",
		dsl.TypeLong:     "int8",
		dsl.TypeFloat:    "float4",
		dsl.TypeDouble:   "float8",
		dsl.TypeDecimal:  "decimal",
		dsl.TypeText:     "text",
		dsl.TypeBoolean:  "bool",
		dsl.TypeDate:     "date",
		dsl.TypeDateTime: "timestamptz",
		dsl.TypeJSON:     "jsonb",
		dsl.TypeOption:   "text",
	}
	assert.Len(t, SupportedTypes(), len(expected))

	for _, typ := range SupportedTypes() {
		ct, err := ColumnType(typ)
		require.NoError(t, err, typ)
		assert.NotEmpty(t, ct)
		assert.Equal(t, expected[typ], ct)

		ddl, err := CreateColumn("public", "t", "c", typ, false, false, "").SQL(PostgresQuoter{})
		require.NoError(t, err)
		assert.Equal(t, `ALTER TABLE "public"."t" ADD "c" `+ct, ddl)
	}
}

func TestColumnType_Unsupported(t *testing.T) {
	_, err := ColumnType("geometry")
	var ute *UnsupportedTypeError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, dsl.PropertyType("geometry"), ute.Type)
	assert.Equal(t, `property type "geometry" is not supported`, err.Error())

	for _, a := range []Action{
		CreateColumn("public", "t", "c", "geometry", true, false, "x"),
		AlterColumnType("public", "t", "c", "geometry"),
	} {
		ddl, err := a.SQL(PostgresQuoter{})
		require.True(t, errors.As(err, &ute), a.Kind)
		assert.Empty(t, ddl, "no partial DDL")
	}
}

func TestSameColumnType(t *testing.T) {
	assert.True(t, SameColumnType("int4", "int4"))
	assert.True(t, SameColumnType("decimal", "numeric"))
	assert.False(t, SameColumnType("int4", "int8"))
	assert.False(t, SameColumnType("text", "varchar"))
}

func TestActionSQL(t *testing.T) {
	q := PostgresQuoter{}
	tests := []struct {
		name   string
		action Action
		want   string
	}{
		{"create table", CreateTable("public", "widgets"), `CREATE TABLE IF NOT EXISTS "public"."widgets" ()`},
		{"create table without schema", CreateTable("", "widgets"), `CREATE TABLE IF NOT EXISTS "widgets" ()`},
		{"create serial column", CreateColumn("public", "widgets", "id", dsl.TypeInteger, true, true, ""),
			`ALTER TABLE "public"."widgets" ADD "id" serial NOT NULL`},
		{"auto increment ignored for non integer", CreateColumn("public", "widgets", "n", dsl.TypeLong, false, true, ""),
			`ALTER TABLE "public"."widgets" ADD "n" int8`},
		{"create column with default", CreateColumn("public", "widgets", "title", dsl.TypeText, true, false, "'x'"),
			`ALTER TABLE "public"."widgets" ADD "title" text NOT NULL DEFAULT 'x'`},
		{"alter type", AlterColumnType("public", "widgets", "n", dsl.TypeLong),
			`ALTER TABLE "public"."widgets" ALTER COLUMN "n" TYPE int8`},
		{"set default", SetDefault("public", "widgets", "at", "now()"),
			`ALTER TABLE "public"."widgets" ALTER COLUMN "at" SET DEFAULT now()`},
		{"drop default", DropDefault("public", "widgets", "at"),
			`ALTER TABLE "public"."widgets" ALTER COLUMN "at" DROP DEFAULT`},
		{"set not null", SetNotNull("public", "widgets", "name"),
			`ALTER TABLE "public"."widgets" ALTER COLUMN "name" SET NOT NULL`},
		{"drop not null", DropNotNull("public", "widgets", "name"),
			`ALTER TABLE "public"."widgets" ALTER COLUMN "name" DROP NOT NULL`},
		{"link table", CreateLinkTable("public", "widget_tags", "self_id", "target_id"),
			`CREATE TABLE "public"."widget_tags" (id serial NOT NULL, "self_id" integer NOT NULL, "target_id" integer NOT NULL)`},
		{"drop table", DropTable("crm", "user"), `DROP TABLE "crm"."user"`},
		{"drop column", DropColumn("crm", "orders", "owner_id"), `ALTER TABLE "crm"."orders" DROP COLUMN "owner_id"`},
		{"quotes are escaped", CreateTable("public", `we"ird`), `CREATE TABLE IF NOT EXISTS "public"."we""ird" ()`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.action.SQL(q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActionSQL_UnknownKind(t *testing.T) {
	_, err := Action{Kind: "rename_table"}.SQL(PostgresQuoter{})
	assert.Error(t, err)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "create_table public.widgets", CreateTable("public", "widgets").String())
	assert.Equal(t, "set_not_null public.widgets.name", SetNotNull("public", "widgets", "name").String())
}
