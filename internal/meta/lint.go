package meta

import (
	"fmt"
	"strings"

	"rapidmeta/internal/dsl"
	"rapidmeta/internal/pg"
)

// Issue — найденное противоречие в описании моделей.
type Issue struct {
	Model    string `json:"model"` // FQN: namespace.code
	Property string `json:"property,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// DictionaryLookup проверяет наличие справочника для option-свойств.
type DictionaryLookup interface {
	Has(code string) bool
}

// Lint проверяет базовые противоречия в реестре. База не нужна.
func Lint(r *Registry, dicts DictionaryLookup) []Issue {
	var issues []Issue
	tables := map[string]string{}

	for _, m := range r.Models() {
		fqn := m.FQN()

		key := r.SchemaOf(m) + "." + m.TableName
		if strings.TrimSpace(m.TableName) == "" {
			issues = append(issues, Issue{Model: fqn, Code: "table_empty", Message: "model has no table name"})
		} else if other, dup := tables[key]; dup {
			issues = append(issues, Issue{
				Model:   fqn,
				Code:    "table_shared",
				Message: fmt.Sprintf("table %s is also mapped by %s", key, other),
			})
		} else {
			tables[key] = fqn
		}

		for _, p := range m.Properties {
			issues = append(issues, lintProperty(r, dicts, fqn, p)...)
		}
	}
	return issues
}

func lintProperty(r *Registry, dicts DictionaryLookup, fqn string, p dsl.Property) []Issue {
	var issues []Issue
	add := func(code, msg string) {
		issues = append(issues, Issue{Model: fqn, Property: p.Code, Code: code, Message: msg})
	}

	switch spec := p.Spec.(type) {
	case dsl.Scalar:
		if spec.AutoIncrement && spec.Type != dsl.TypeInteger {
			add("auto_increment_type", fmt.Sprintf("auto_increment is ignored for type %q", spec.Type))
		}
		if !pg.IsAutoIncrement(spec) {
			if _, err := pg.ColumnType(spec.Type); err != nil {
				add("type_unsupported", err.Error())
			}
		}
		if spec.Type == dsl.TypeOption {
			switch {
			case spec.Dictionary == "":
				add("dictionary_empty", "option property has no dictionary")
			case dicts != nil && !dicts.Has(spec.Dictionary):
				add("dictionary_unknown", fmt.Sprintf("dictionary %q not found", spec.Dictionary))
			}
		}
	case dsl.RelationOne:
		if _, ok := r.FindBySingularCode(spec.TargetSingularCode); !ok {
			add("target_unresolved", fmt.Sprintf("target model %q not found", spec.TargetSingularCode))
		}
	case dsl.RelationMany:
		if spec.HasLinkTable() {
			if spec.SelfIDColumnName == "" || spec.TargetIDColumnName == "" {
				add("link_columns_empty", "link table needs both self and target columns")
			}
			break
		}
		if spec.TargetSingularCode == "" {
			add("many_unplanned", "many relation has neither target nor link table")
			break
		}
		if _, ok := r.FindBySingularCode(spec.TargetSingularCode); !ok {
			add("target_unresolved", fmt.Sprintf("target model %q not found", spec.TargetSingularCode))
		}
		if spec.SelfIDColumnName == "" {
			add("self_column_empty", "many relation without link table has no self id column")
		}
	case nil:
		add("spec_empty", "property has no type")
	}
	return issues
}
