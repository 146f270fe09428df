package api

import (
	"rapidmeta/internal/meta"
)

func modelField(m meta.ModelRecord, field string) (any, bool) {
	switch field {
	case "id":
		return m.ID, true
	case "namespace":
		return m.Namespace, true
	case "singularCode":
		return m.SingularCode, true
	case "pluralCode":
		return m.PluralCode, true
	case "name":
		return m.Name, true
	case "schema":
		return m.Schema, true
	case "tableName":
		return m.TableName, true
	}
	return nil, false
}

func propertyField(p meta.PropertyRecord, field string) (any, bool) {
	switch field {
	case "id":
		return p.ID, true
	case "modelId":
		return p.ModelID, true
	case "code":
		return p.Code, true
	case "name":
		return p.Name, true
	case "type":
		return p.Type, true
	case "relation":
		return p.Relation, true
	case "required":
		return p.Required, true
	case "dictionary":
		return p.Dictionary, true
	case "targetSingularCode":
		return p.TargetSingularCode, true
	}
	return nil, false
}

// changedFields — изменённые поля для Event.Changes (по JSON-именам).
func changedFields[T any](before, after T, field func(T, string) (any, bool), names ...string) map[string]any {
	out := map[string]any{}
	for _, n := range names {
		b, _ := field(before, n)
		a, _ := field(after, n)
		if b != a {
			out[n] = a
		}
	}
	return out
}

var modelFieldNames = []string{"namespace", "singularCode", "pluralCode", "name", "schema", "tableName"}

var propertyFieldNames = []string{"modelId", "code", "name", "type", "relation", "required", "dictionary", "targetSingularCode"}
