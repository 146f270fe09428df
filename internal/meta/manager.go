package meta

import (
	"context"

	"go.uber.org/zap"

	"rapidmeta/internal/dsl"
	"rapidmeta/internal/events"
)

// ModelLoader отдаёт модели, описанные meta-записями в базе.
type ModelLoader interface {
	LoadModels(ctx context.Context) ([]*dsl.Model, error)
}

// Manager — точка входа плагина: загрузка моделей, проход при старте, обработчики событий.
type Manager struct {
	registry   *Registry
	loader     ModelLoader
	reconciler *Reconciler
	updater    *Updater
	logger     *zap.Logger
}

func NewManager(registry *Registry, loader ModelLoader, reconciler *Reconciler, updater *Updater, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{registry: registry, loader: loader, reconciler: reconciler, updater: updater, logger: logger}
}

func (m *Manager) Registry() *Registry { return m.registry }

// ConfigureModels подгружает динамические модели из meta-записей.
// На пустой базе таблиц ещё нет: это не ошибка, реестр остаётся статическим.
func (m *Manager) ConfigureModels(ctx context.Context) {
	if m.loader == nil {
		return
	}
	models, err := m.loader.LoadModels(ctx)
	if err != nil {
		m.logger.Warn("Failed to load meta models, using static models only", zap.Error(err))
		return
	}
	dropped := m.registry.SetDynamic(models)
	m.logger.Info("Meta models loaded",
		zap.Int("loaded", len(models)-len(dropped)),
		zap.Int("ignored", len(dropped)))
}

// OnApplicationLoaded запускает полный проход. Ошибка не мешает старту сервера.
func (m *Manager) OnApplicationLoaded(ctx context.Context) *SyncReport {
	rep, err := m.reconciler.Sync(ctx)
	if err != nil {
		m.logger.Error("Schema synchronization incomplete, will retry on next boot", zap.Error(err))
	}
	return rep
}

// Resync перечитывает meta-записи и делает полный проход.
func (m *Manager) Resync(ctx context.Context) (*SyncReport, error) {
	m.ConfigureModels(ctx)
	return m.reconciler.Sync(ctx)
}

// Plan — сухой прогон по текущему реестру.
func (m *Manager) Plan(ctx context.Context) (Plan, error) {
	return m.reconciler.Plan(ctx)
}

func (m *Manager) RegisterEventHandlers(bus *events.Bus) {
	if m.updater != nil {
		m.updater.Register(bus)
	}
}
