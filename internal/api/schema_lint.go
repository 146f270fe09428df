package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rapidmeta/internal/meta"
)

// GET /api/admin/schema/lint — противоречия в текущем реестре, без базы.
func (s *Server) AdminLintHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		issues := meta.Lint(s.registry, s.dictionaries())
		c.JSON(http.StatusOK, gin.H{
			"ok":     len(issues) == 0,
			"issues": nonNil(issues),
		})
	}
}
