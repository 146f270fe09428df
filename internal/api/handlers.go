package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rapidmeta/internal/events"
	"rapidmeta/internal/meta"
)

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

// storeError отвечает 404 на "не найдено" и 500 на остальное.
func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, meta.ErrModelNotFound) || errors.Is(err, meta.ErrPropertyNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	s.logger.Error("Meta store failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage error", "details": err.Error()})
}

// afterMutation: событие для плагина, затем перечитать динамические модели,
// чтобы следующий проход видел актуальный реестр.
func (s *Server) afterMutation(ctx context.Context, kind events.Kind, code string, before, after any, changes map[string]any) {
	s.publish(ctx, kind, code, before, after, changes)
	if s.manager != nil {
		s.manager.ConfigureModels(ctx)
	}
}

// ===== MODELS =====

// GET /api/meta/records/models
func (s *Server) ListModelsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := s.store.ListModels(c.Request.Context())
		if err != nil {
			s.storeError(c, err)
			return
		}
		page, total := applyListParams(all, parseListParams(c.Request.URL.Query()), modelField)
		c.Header("X-Total-Count", strconv.Itoa(total))
		c.JSON(http.StatusOK, page)
	}
}

// GET /api/meta/records/models/:id
func (s *Server) GetModelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		m, err := s.store.FindModelByID(c.Request.Context(), id)
		if err != nil {
			s.storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// POST /api/meta/records/models
func (s *Server) CreateModelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var in meta.ModelRecord
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		in.ID = 0

		existing, err := s.store.ListModels(ctx)
		if err != nil {
			s.storeError(c, err)
			return
		}
		if errs := validateModelRecord(s.registry, in, 0, existing); len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}

		created, err := s.store.CreateModel(ctx, in)
		if err != nil {
			s.storeError(c, err)
			return
		}
		s.afterMutation(ctx, events.EntityCreate, meta.ModelSingularCode, nil, created, nil)
		c.JSON(http.StatusCreated, created)
	}
}

// PUT /api/meta/records/models/:id
func (s *Server) UpdateModelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := parseID(c)
		if !ok {
			return
		}
		var in meta.ModelRecord
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		in.ID = id

		existing, err := s.store.ListModels(ctx)
		if err != nil {
			s.storeError(c, err)
			return
		}
		if errs := validateModelRecord(s.registry, in, id, existing); len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}

		before, after, err := s.store.UpdateModel(ctx, in)
		if err != nil {
			s.storeError(c, err)
			return
		}
		s.afterMutation(ctx, events.EntityUpdate, meta.ModelSingularCode, before, after,
			changedFields(before, after, modelField, modelFieldNames...))
		c.JSON(http.StatusOK, after)
	}
}

// DELETE /api/meta/records/models/:id
func (s *Server) DeleteModelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := parseID(c)
		if !ok {
			return
		}
		deleted, err := s.store.DeleteModel(ctx, id)
		if err != nil {
			s.storeError(c, err)
			return
		}
		s.afterMutation(ctx, events.EntityDelete, meta.ModelSingularCode, deleted, nil, nil)
		c.Status(http.StatusNoContent)
	}
}

// ===== PROPERTIES =====

// GET /api/meta/records/properties?modelId=1
// GET /api/meta/records/models/:id/properties
func (s *Server) ListPropertiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var modelID int64
		if c.Param("id") != "" {
			id, ok := parseID(c)
			if !ok {
				return
			}
			modelID = id
		}
		all, err := s.store.ListProperties(c.Request.Context(), modelID)
		if err != nil {
			s.storeError(c, err)
			return
		}
		page, total := applyListParams(all, parseListParams(c.Request.URL.Query()), propertyField)
		c.Header("X-Total-Count", strconv.Itoa(total))
		c.JSON(http.StatusOK, page)
	}
}

// GET /api/meta/records/properties/:id
func (s *Server) GetPropertyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		p, err := s.store.FindPropertyByID(c.Request.Context(), id)
		if err != nil {
			s.storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func (s *Server) checkProperty(ctx context.Context, p meta.PropertyRecord) ([]FieldError, error) {
	if _, err := s.store.FindModelByID(ctx, p.ModelID); err != nil {
		if errors.Is(err, meta.ErrModelNotFound) {
			return []FieldError{ferr(ErrNotFound, "modelId", "Model not found")}, nil
		}
		return nil, err
	}
	siblings, err := s.store.ListProperties(ctx, p.ModelID)
	if err != nil {
		return nil, err
	}
	return validatePropertyRecord(p, siblings, s.dictionaries()), nil
}

// POST /api/meta/records/properties
func (s *Server) CreatePropertyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var in meta.PropertyRecord
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		in.ID = 0

		errs, err := s.checkProperty(ctx, in)
		if err != nil {
			s.storeError(c, err)
			return
		}
		if len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}

		created, err := s.store.CreateProperty(ctx, in)
		if err != nil {
			s.storeError(c, err)
			return
		}
		s.afterMutation(ctx, events.EntityCreate, meta.PropertySingularCode, nil, created, nil)
		c.JSON(http.StatusCreated, created)
	}
}

// PUT /api/meta/records/properties/:id
func (s *Server) UpdatePropertyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := parseID(c)
		if !ok {
			return
		}
		var in meta.PropertyRecord
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		in.ID = id

		errs, err := s.checkProperty(ctx, in)
		if err != nil {
			s.storeError(c, err)
			return
		}
		if len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}

		before, after, err := s.store.UpdateProperty(ctx, in)
		if err != nil {
			s.storeError(c, err)
			return
		}
		s.afterMutation(ctx, events.EntityUpdate, meta.PropertySingularCode, before, after,
			changedFields(before, after, propertyField, propertyFieldNames...))
		c.JSON(http.StatusOK, after)
	}
}

// DELETE /api/meta/records/properties/:id
func (s *Server) DeletePropertyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := parseID(c)
		if !ok {
			return
		}
		deleted, err := s.store.DeleteProperty(ctx, id)
		if err != nil {
			s.storeError(c, err)
			return
		}
		s.afterMutation(ctx, events.EntityDelete, meta.PropertySingularCode, deleted, nil, nil)
		c.Status(http.StatusNoContent)
	}
}
