package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestLogger пишет одну строку на запрос через zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	metaGroup := r.Group("/api/meta")
	{
		metaGroup.GET("/models", s.MetaListHandler())
		metaGroup.GET("/models/:model", s.MetaModelHandler())
		metaGroup.GET("/dictionaries", s.DictionaryListHandler())
		metaGroup.GET("/dictionaries/:code", s.DictionaryHandler())

		// meta-записи: мутации порождают события для плагина
		metaGroup.GET("/records/models", s.ListModelsHandler())
		metaGroup.POST("/records/models", s.CreateModelHandler())
		metaGroup.GET("/records/models/:id", s.GetModelHandler())
		metaGroup.PUT("/records/models/:id", s.UpdateModelHandler())
		metaGroup.DELETE("/records/models/:id", s.DeleteModelHandler())
		metaGroup.GET("/records/models/:id/properties", s.ListPropertiesHandler())

		metaGroup.GET("/records/properties", s.ListPropertiesHandler())
		metaGroup.POST("/records/properties", s.CreatePropertyHandler())
		metaGroup.GET("/records/properties/:id", s.GetPropertyHandler())
		metaGroup.PUT("/records/properties/:id", s.UpdatePropertyHandler())
		metaGroup.DELETE("/records/properties/:id", s.DeletePropertyHandler())
	}

	admin := r.Group("/api/admin")
	{
		admin.GET("/schema/plan", s.AdminPlanHandler())
		admin.POST("/schema/sync", s.AdminSyncHandler())
		admin.GET("/schema/lint", s.AdminLintHandler())
		admin.POST("/reload", s.AdminReloadHandler())
	}
	return r
}

func RunServer(addr string, s *Server) error {
	return NewRouter(s).Run(addr)
}
