package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rapidmeta/internal/dsl"
	"rapidmeta/internal/pg"
)

// ===== META HANDLERS =====

type metaModelListItem struct {
	Namespace    string `json:"namespace"`
	SingularCode string `json:"singularCode"`
	PluralCode   string `json:"pluralCode,omitempty"`
	Name         string `json:"name,omitempty"`
	Schema       string `json:"schema"`
	TableName    string `json:"tableName"`
}

type metaProperty struct {
	Code          string `json:"code"`
	Name          string `json:"name,omitempty"`
	Required      bool   `json:"required"`
	Relation      string `json:"relation,omitempty"`
	Type          string `json:"type,omitempty"`
	ColumnName    string `json:"columnName,omitempty"`
	ColumnType    string `json:"columnType,omitempty"`
	AutoIncrement bool   `json:"autoIncrement,omitempty"`
	DefaultValue  string `json:"defaultValue,omitempty"`
	Dictionary    string `json:"dictionary,omitempty"`
	Target        string `json:"target,omitempty"`
	TargetFQN     string `json:"targetFQN,omitempty"`
	SelfColumn    string `json:"selfIdColumnName,omitempty"`
	TargetColumn  string `json:"targetIdColumnName,omitempty"`
	LinkTable     string `json:"linkTable,omitempty"` // schema.table
}

type metaModel struct {
	metaModelListItem
	Properties []metaProperty `json:"properties"`
}

func (s *Server) listItem(m *dsl.Model) metaModelListItem {
	return metaModelListItem{
		Namespace:    m.Namespace,
		SingularCode: m.SingularCode,
		PluralCode:   m.PluralCode,
		Name:         m.Name,
		Schema:       s.registry.SchemaOf(m),
		TableName:    m.TableName,
	}
}

// GET /api/meta/models
func (s *Server) MetaListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		models := s.registry.Models()
		out := make([]metaModelListItem, 0, len(models))
		for _, m := range models {
			out = append(out, s.listItem(m))
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/meta/models/:model  (":model" = "namespace.code" или уникальный code)
func (s *Server) MetaModelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		m, ok := resolveModel(s.registry, c.Param("model"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
			return
		}

		props := make([]metaProperty, 0, len(m.Properties))
		for _, p := range m.Properties {
			mp := metaProperty{Code: p.Code, Name: p.Name, Required: p.Required, Relation: p.Relation()}
			switch spec := p.Spec.(type) {
			case dsl.Scalar:
				mp.Type = string(spec.Type)
				mp.ColumnName = p.ColumnName()
				mp.AutoIncrement = spec.AutoIncrement
				mp.DefaultValue = spec.DefaultValue
				mp.Dictionary = spec.Dictionary
				if pg.IsAutoIncrement(spec) {
					mp.ColumnType = pg.AutoIncrementColumnType
				} else if ct, err := pg.ColumnType(spec.Type); err == nil {
					mp.ColumnType = ct
				}
			case dsl.RelationOne:
				mp.Target = spec.TargetSingularCode
				mp.ColumnName = spec.TargetIDColumnName
			case dsl.RelationMany:
				mp.Target = spec.TargetSingularCode
				mp.SelfColumn = spec.SelfIDColumnName
				mp.TargetColumn = spec.TargetIDColumnName
				if spec.HasLinkTable() {
					schema := spec.LinkSchema
					if schema == "" {
						schema = s.registry.DefaultSchema()
					}
					mp.LinkTable = schema + "." + spec.LinkTableName
				}
			}
			if mp.Target != "" {
				if t, ok := s.registry.FindBySingularCode(mp.Target); ok {
					mp.TargetFQN = t.FQN()
				}
			}
			props = append(props, mp)
		}

		c.JSON(http.StatusOK, metaModel{metaModelListItem: s.listItem(m), Properties: props})
	}
}

// GET /api/meta/dictionaries
func (s *Server) DictionaryListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"codes": s.dictionaries().Codes()})
	}
}

// GET /api/meta/dictionaries/:code
func (s *Server) DictionaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		d, ok := s.dictionaries()[c.Param("code")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dictionary not found"})
			return
		}
		c.JSON(http.StatusOK, d)
	}
}
