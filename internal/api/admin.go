package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rapidmeta/internal/dsl"
	"rapidmeta/internal/meta"
	"rapidmeta/internal/pg"
	"rapidmeta/internal/reference"
)

type actionView struct {
	Kind  string `json:"kind"`
	Model string `json:"model,omitempty"`
	On    string `json:"on"` // schema.table[.column]
	SQL   string `json:"sql,omitempty"`
	Error string `json:"error,omitempty"`
}

func viewActions(actions []pg.Action) []actionView {
	out := make([]actionView, 0, len(actions))
	for _, a := range actions {
		v := actionView{Kind: string(a.Kind), Model: a.Model, On: strings.TrimPrefix(a.String(), string(a.Kind)+" ")}
		if sqlText, err := a.SQL(pg.PostgresQuoter{}); err != nil {
			v.Error = err.Error()
		} else {
			v.SQL = sqlText
		}
		out = append(out, v)
	}
	return out
}

func viewFailures(fs []pg.Failure) []actionView {
	out := make([]actionView, 0, len(fs))
	for _, f := range fs {
		out = append(out, actionView{
			Kind:  string(f.Action.Kind),
			Model: f.Action.Model,
			On:    strings.TrimPrefix(f.Action.String(), string(f.Action.Kind)+" "),
			SQL:   f.SQL,
			Error: f.Err.Error(),
		})
	}
	return out
}

// GET /api/admin/schema/plan — сухой прогон против живой базы.
func (s *Server) AdminPlanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		plan, err := s.manager.Plan(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Introspection failed", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"tables":   viewActions(plan.Tables),
			"columns":  viewActions(plan.Columns),
			"warnings": nonNil(plan.Warnings),
		})
	}
}

// POST /api/admin/schema/sync — полный проход. Частичный успех — тоже 200.
func (s *Server) AdminSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rep, err := s.manager.Resync(c.Request.Context())
		status := http.StatusOK
		body := gin.H{}
		if rep != nil {
			body["pass"] = rep.PassID
			body["durationMs"] = rep.Duration.Milliseconds()
			body["applied"] = len(rep.Tables.Applied) + len(rep.Columns.Applied)
			body["skipped"] = len(rep.Tables.Skipped) + len(rep.Columns.Skipped)
			body["failed"] = viewFailures(append(append([]pg.Failure(nil), rep.Tables.Failed...), rep.Columns.Failed...))
			body["columnsSkipped"] = rep.ColumnsSkipped
			body["warnings"] = nonNil(rep.Plan.Warnings)
		}
		if err != nil {
			status = http.StatusBadGateway
			body["error"] = err.Error()
		}
		c.JSON(status, body)
	}
}

type reloadReq struct {
	DSLRoot   string `json:"dsl_root"`   // директория с *.dsl
	DictsRoot string `json:"dicts_root"` // директория со справочниками
}

// POST /api/admin/reload — перечитать DSL и справочники; линтер блокирует замену.
func (s *Server) AdminReloadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reloadReq
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
				return
			}
		}

		dslRoot := strings.TrimSpace(req.DSLRoot)
		if dslRoot == "" {
			dslRoot = s.dslDir
		}
		dictsRoot := strings.TrimSpace(req.DictsRoot)
		if dictsRoot == "" {
			dictsRoot = s.dictsDir
		}

		// 1) читаем новые модели и справочники
		models, err := meta.StaticModels(dslRoot)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "DSL load error", "details": err.Error()})
			return
		}
		dicts, err := reference.LoadCatalog(dictsRoot)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Dictionary load error", "details": err.Error()})
			return
		}

		// 2) линтер на временном реестре
		tmp := meta.NewRegistry(s.registry.DefaultSchema(), nil)
		if err := tmp.SetStatic(models); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "DSL load error", "details": err.Error()})
			return
		}
		tmp.SetDynamic(s.dynamicModels())
		if issues := meta.Lint(tmp, dicts); len(issues) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "schema has blocking issues",
				"issues": issues,
				"hint":   "fix DSL and retry",
			})
			return
		}

		// 3) замена
		if err := s.registry.SetStatic(models); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "DSL load error", "details": err.Error()})
			return
		}
		s.mu.Lock()
		s.dicts = dicts
		s.mu.Unlock()
		s.manager.ConfigureModels(c.Request.Context())

		s.logger.Info("Models reloaded", zap.String("dsl", dslRoot), zap.Int("models", len(models)))
		c.JSON(http.StatusOK, gin.H{
			"ok":           true,
			"dslRoot":      dslRoot,
			"dictsRoot":    dictsRoot,
			"models":       len(s.registry.Models()),
			"dictionaries": len(dicts),
		})
	}
}

// dynamicModels — модели реестра, не описанные статически.
func (s *Server) dynamicModels() []*dsl.Model {
	var out []*dsl.Model
	for _, m := range s.registry.Models() {
		if !s.registry.IsStatic(m.Namespace, m.SingularCode) {
			out = append(out, m)
		}
	}
	return out
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
