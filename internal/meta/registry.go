package meta

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"rapidmeta/internal/dsl"
)

var (
	ErrModelNotFound    = errors.New("model not found")
	ErrPropertyNotFound = errors.New("property not found")
)

// Registry — упорядоченный набор моделей приложения.
// Статические модели (встроенные + DSL) идут первыми, затем динамические из meta-записей.
// После загрузки в основном читается.
type Registry struct {
	mu            sync.RWMutex
	defaultSchema string
	static        []*dsl.Model
	dynamic       []*dsl.Model
	logger        *zap.Logger
}

func NewRegistry(defaultSchema string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultSchema == "" {
		defaultSchema = "public"
	}
	return &Registry{defaultSchema: defaultSchema, logger: logger}
}

func (r *Registry) DefaultSchema() string { return r.defaultSchema }

// SchemaOf возвращает схему модели с учётом схемы по умолчанию.
func (r *Registry) SchemaOf(m *dsl.Model) string {
	return r.schemaOr(m.Schema)
}

func (r *Registry) schemaOr(schema string) string {
	if schema == "" {
		return r.defaultSchema
	}
	return schema
}

// SetStatic заменяет статические модели. Дубликаты FQN — ошибка.
func (r *Registry) SetStatic(models []*dsl.Model) error {
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		if m == nil || m.SingularCode == "" {
			return errors.New("model without singular code")
		}
		if _, dup := seen[m.FQN()]; dup {
			return fmt.Errorf("duplicate model %q", m.FQN())
		}
		seen[m.FQN()] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.static = append([]*dsl.Model(nil), models...)
	return nil
}

// SetDynamic заменяет модели, загруженные из meta-записей.
// Модели, чей FQN уже занят статической, отбрасываются с предупреждением.
func (r *Registry) SetDynamic(models []*dsl.Model) (dropped []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	taken := make(map[string]struct{}, len(r.static)+len(models))
	for _, m := range r.static {
		taken[m.FQN()] = struct{}{}
	}
	kept := make([]*dsl.Model, 0, len(models))
	for _, m := range models {
		if _, dup := taken[m.FQN()]; dup {
			r.logger.Warn("Dynamic model shadows an existing one, ignored", zap.String("model", m.FQN()))
			dropped = append(dropped, m.FQN())
			continue
		}
		taken[m.FQN()] = struct{}{}
		kept = append(kept, m)
	}
	r.dynamic = kept
	return dropped
}

// Models returns static models followed by dynamic ones.
func (r *Registry) Models() []*dsl.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*dsl.Model, 0, len(r.static)+len(r.dynamic))
	out = append(out, r.static...)
	return append(out, r.dynamic...)
}

// FindBySingularCode ищет первую модель с таким singular code (как цель связи).
func (r *Registry) FindBySingularCode(code string) (*dsl.Model, bool) {
	if code == "" {
		return nil, false
	}
	for _, m := range r.Models() {
		if m.SingularCode == code {
			return m, true
		}
	}
	return nil, false
}

// Find ищет модель по namespace и singular code, регистронезависимо.
// Пустой namespace — допустим, если singular code уникален.
func (r *Registry) Find(namespace, singularCode string) (*dsl.Model, bool) {
	ns := strings.ToLower(strings.TrimSpace(namespace))
	code := strings.ToLower(strings.TrimSpace(singularCode))
	if code == "" {
		return nil, false
	}

	var found *dsl.Model
	for _, m := range r.Models() {
		if strings.ToLower(m.SingularCode) != code {
			continue
		}
		if ns != "" {
			if strings.ToLower(m.Namespace) == ns {
				return m, true
			}
			continue
		}
		if found != nil { // неуникально
			return nil, false
		}
		found = m
	}
	return found, found != nil
}

// IsStatic сообщает, описана ли модель встроенно или в DSL (регистронезависимо).
func (r *Registry) IsStatic(namespace, singularCode string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.static {
		if strings.EqualFold(m.Namespace, namespace) && strings.EqualFold(m.SingularCode, singularCode) {
			return true
		}
	}
	return false
}

// TableOwners возвращает модели, отображённые на schema.table (регистронезависимо).
func (r *Registry) TableOwners(schema, table string) []*dsl.Model {
	var out []*dsl.Model
	for _, m := range r.Models() {
		if strings.EqualFold(r.SchemaOf(m), r.schemaOr(schema)) && strings.EqualFold(m.TableName, table) {
			out = append(out, m)
		}
	}
	return out
}
