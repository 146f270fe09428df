package api

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"rapidmeta/internal/events"
	"rapidmeta/internal/meta"
	"rapidmeta/internal/reference"
)

// MetaStore — хранилище meta-записей (meta.Store в проде, фейк в тестах).
type MetaStore interface {
	ListModels(ctx context.Context) ([]meta.ModelRecord, error)
	FindModelByID(ctx context.Context, id int64) (*meta.ModelRecord, error)
	CreateModel(ctx context.Context, m meta.ModelRecord) (meta.ModelRecord, error)
	UpdateModel(ctx context.Context, m meta.ModelRecord) (before, after meta.ModelRecord, err error)
	DeleteModel(ctx context.Context, id int64) (meta.ModelRecord, error)

	ListProperties(ctx context.Context, modelID int64) ([]meta.PropertyRecord, error)
	FindPropertyByID(ctx context.Context, id int64) (*meta.PropertyRecord, error)
	CreateProperty(ctx context.Context, p meta.PropertyRecord) (meta.PropertyRecord, error)
	UpdateProperty(ctx context.Context, p meta.PropertyRecord) (before, after meta.PropertyRecord, err error)
	DeleteProperty(ctx context.Context, id int64) (meta.PropertyRecord, error)
}

// SchemaManager — то, что admin-эндпоинтам нужно от meta.Manager.
type SchemaManager interface {
	Plan(ctx context.Context) (meta.Plan, error)
	Resync(ctx context.Context) (*meta.SyncReport, error)
	ConfigureModels(ctx context.Context)
}

// Deps собирает зависимости сервера.
type Deps struct {
	Registry        *meta.Registry
	Store           MetaStore
	Manager         SchemaManager
	Bus             *events.Bus
	Dictionaries    reference.Catalog
	DSLDir          string
	DictionariesDir string
	Logger          *zap.Logger
}

// Server держит состояние HTTP-слоя. Справочники подменяются через reload.
type Server struct {
	registry *meta.Registry
	store    MetaStore
	manager  SchemaManager
	bus      *events.Bus
	sender   events.Sender // события API не должны совпадать с отправителем плагина
	logger   *zap.Logger

	dslDir   string
	dictsDir string

	mu    sync.RWMutex
	dicts reference.Catalog
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dicts := d.Dictionaries
	if dicts == nil {
		dicts = reference.Catalog{}
	}
	return &Server{
		registry: d.Registry,
		store:    d.Store,
		manager:  d.Manager,
		bus:      d.Bus,
		sender:   events.NewSender(),
		logger:   logger,
		dslDir:   d.DSLDir,
		dictsDir: d.DictionariesDir,
		dicts:    dicts,
	}
}

func (s *Server) dictionaries() reference.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dicts
}

// publish отправляет событие meta-записи. Ошибки подписчиков не влияют на ответ.
func (s *Server) publish(ctx context.Context, kind events.Kind, code string, before, after any, changes map[string]any) {
	if s.bus == nil {
		return
	}
	err := s.bus.Publish(ctx, events.Event{
		Kind:              kind,
		Sender:            s.sender,
		Namespace:         meta.Namespace,
		ModelSingularCode: code,
		Before:            before,
		After:             after,
		Changes:           changes,
	})
	if err != nil {
		s.logger.Warn("Event subscribers failed", zap.String("event", string(kind)), zap.Error(err))
	}
}
