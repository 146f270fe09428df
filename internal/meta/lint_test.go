package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rapidmeta/internal/dsl"
)

type dictSet map[string]bool

func (d dictSet) Has(code string) bool { return d[code] }

func issueCodes(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Property+":"+i.Code)
	}
	return out
}

func TestLint_BuiltinModelsAreClean(t *testing.T) {
	reg := NewRegistry("public", nil)
	require.NoError(t, reg.SetStatic(BuiltinModels()))

	assert.Empty(t, Lint(reg, dictSet{}))
}

func TestLint_FindsProblems(t *testing.T) {
	reg := NewRegistry("public", nil)
	require.NoError(t, reg.SetStatic([]*dsl.Model{
		{Namespace: "crm", SingularCode: "lead", TableName: "leads", Properties: []dsl.Property{
			{Code: "n", Spec: dsl.Scalar{Type: dsl.TypeText, AutoIncrement: true}},
			{Code: "geo", Spec: dsl.Scalar{Type: "geometry"}},
			{Code: "stage", Spec: dsl.Scalar{Type: dsl.TypeOption, Dictionary: "stages"}},
			{Code: "kind", Spec: dsl.Scalar{Type: dsl.TypeOption}},
			{Code: "owner", Spec: dsl.RelationOne{TargetSingularCode: "ghost", TargetIDColumnName: "owner_id"}},
			{Code: "bare", Spec: dsl.RelationMany{}},
			{Code: "notes", Spec: dsl.RelationMany{TargetSingularCode: "lead"}},
			{Code: "tags", Spec: dsl.RelationMany{LinkTableName: "lead_tags", SelfIDColumnName: "lead_id"}},
		}},
		{Namespace: "crm", SingularCode: "prospect", TableName: "leads"},
	}))

	issues := Lint(reg, dictSet{"sources": true})

	assert.Equal(t, []string{
		"n:auto_increment_type",
		"geo:type_unsupported",
		"stage:dictionary_unknown",
		"kind:dictionary_empty",
		"owner:target_unresolved",
		"bare:many_unplanned",
		"notes:self_column_empty",
		"tags:link_columns_empty",
		":table_shared",
	}, issueCodes(issues))
}
