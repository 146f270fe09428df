package api

import (
	"net/http"
	"regexp"
	"strings"

	"rapidmeta/internal/dsl"
	"rapidmeta/internal/meta"
	"rapidmeta/internal/pg"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок валидации
const (
	ErrRequired      = "required"
	ErrInvalid       = "invalid"
	ErrTypeMismatch  = "type_mismatch"
	ErrNotFound      = "not_found"
	ErrDuplicate     = "duplicate"
	ErrDictionary    = "dictionary_unknown"
	ErrReservedSpace = "reserved_namespace"
)

// идентификаторы кодов, таблиц и колонок
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

func statusForErrors(errs []FieldError) int {
	// 409 для конфликтов, остальное 400
	for _, e := range errs {
		if e.Code == ErrDuplicate {
			return http.StatusConflict
		}
	}
	return http.StatusBadRequest
}

func checkIdent(errs []FieldError, field, v string, required bool) []FieldError {
	if strings.TrimSpace(v) == "" {
		if required {
			errs = append(errs, ferr(ErrRequired, field, "Field '"+field+"' is required"))
		}
		return errs
	}
	if !identRe.MatchString(v) {
		errs = append(errs, ferr(ErrInvalid, field, "Field '"+field+"' must be an identifier"))
	}
	return errs
}

// validateModelRecord проверяет запись модели. Встроенное пространство имён закрыто.
func validateModelRecord(reg *meta.Registry, m meta.ModelRecord, selfID int64, existing []meta.ModelRecord) []FieldError {
	var errs []FieldError
	errs = checkIdent(errs, "namespace", m.Namespace, true)
	errs = checkIdent(errs, "singularCode", m.SingularCode, true)
	errs = checkIdent(errs, "pluralCode", m.PluralCode, false)
	errs = checkIdent(errs, "schema", m.Schema, false)
	errs = checkIdent(errs, "tableName", m.TableName, true)
	if len(errs) > 0 {
		return errs
	}

	if strings.EqualFold(m.Namespace, meta.Namespace) {
		errs = append(errs, ferr(ErrReservedSpace, "namespace", "Namespace '"+meta.Namespace+"' is reserved"))
	}
	fqn := strings.ToLower(m.Namespace + "." + m.SingularCode)
	for _, other := range existing {
		if other.ID == selfID {
			continue
		}
		if strings.ToLower(other.Namespace+"."+other.SingularCode) == fqn {
			errs = append(errs, ferr(ErrDuplicate, "singularCode", "Model '"+fqn+"' already exists"))
			break
		}
	}
	// статическая модель с тем же FQN затенит запись
	if reg != nil && reg.IsStatic(m.Namespace, m.SingularCode) {
		errs = append(errs, ferr(ErrDuplicate, "singularCode", "Model '"+fqn+"' is defined statically"))
	}

	// таблица не должна совпадать с таблицей другой модели
	if reg != nil {
		schema := m.Schema
		if schema == "" {
			schema = reg.DefaultSchema()
		}
		table := schema + "." + m.TableName
		taken := false
		for _, owner := range reg.TableOwners(schema, m.TableName) {
			if reg.IsStatic(owner.Namespace, owner.SingularCode) {
				taken = true
				break
			}
		}
		for _, other := range existing {
			if taken {
				break
			}
			if other.ID == selfID {
				continue
			}
			otherSchema := other.Schema
			if otherSchema == "" {
				otherSchema = reg.DefaultSchema()
			}
			taken = strings.EqualFold(otherSchema, schema) && strings.EqualFold(other.TableName, m.TableName)
		}
		if taken {
			errs = append(errs, ferr(ErrDuplicate, "tableName", "Table '"+table+"' is used by another model"))
		}
	}
	return errs
}

// validatePropertyRecord проверяет свойство против его формы (scalar / one / many).
func validatePropertyRecord(p meta.PropertyRecord, siblings []meta.PropertyRecord, dicts meta.DictionaryLookup) []FieldError {
	var errs []FieldError
	if p.ModelID == 0 {
		errs = append(errs, ferr(ErrRequired, "modelId", "Field 'modelId' is required"))
	}
	errs = checkIdent(errs, "code", p.Code, true)
	errs = checkIdent(errs, "columnName", p.ColumnName, false)

	switch p.Relation {
	case "":
		typ := dsl.PropertyType(p.Type)
		if p.Type == "" {
			errs = append(errs, ferr(ErrRequired, "type", "Field 'type' is required"))
		} else if _, err := pg.ColumnType(typ); err != nil {
			errs = append(errs, ferr(ErrTypeMismatch, "type", err.Error()))
		}
		if typ == dsl.TypeOption && p.Dictionary != "" && dicts != nil && !dicts.Has(p.Dictionary) {
			errs = append(errs, ferr(ErrDictionary, "dictionary", "Dictionary '"+p.Dictionary+"' not found"))
		}
	case "one":
		errs = checkIdent(errs, "targetSingularCode", p.TargetSingularCode, true)
		errs = checkIdent(errs, "targetIdColumnName", p.TargetIDColumnName, true)
	case "many":
		errs = checkIdent(errs, "targetSingularCode", p.TargetSingularCode, p.LinkTableName == "")
		errs = checkIdent(errs, "selfIdColumnName", p.SelfIDColumnName, true)
		errs = checkIdent(errs, "targetIdColumnName", p.TargetIDColumnName, p.LinkTableName != "")
		errs = checkIdent(errs, "linkSchema", p.LinkSchema, false)
		errs = checkIdent(errs, "linkTableName", p.LinkTableName, false)
	default:
		errs = append(errs, ferr(ErrInvalid, "relation", "Field 'relation' must be one of: '', one, many"))
	}

	for _, s := range siblings {
		if s.ID != p.ID && strings.EqualFold(s.Code, p.Code) {
			errs = append(errs, ferr(ErrDuplicate, "code", "Property '"+p.Code+"' already exists"))
			break
		}
	}
	return errs
}
