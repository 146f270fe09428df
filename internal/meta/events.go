package meta

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"rapidmeta/internal/events"
	"rapidmeta/internal/pg"
)

// ModelFinder достаёт запись модели-владельца по id (для удаления свойства).
type ModelFinder interface {
	FindModelByID(ctx context.Context, id int64) (*ModelRecord, error)
}

// ActionApplier выполняет одно действие без интроспекции.
type ActionApplier interface {
	Apply(ctx context.Context, a pg.Action) (string, error)
}

// Updater реагирует на мутации meta-записей одиночным DDL.
// Ошибки только логируются: вызывающий запрос не блокируется.
type Updater struct {
	self     events.Sender // на случай записи в meta-таблицы из собственных обработчиков
	applier  ActionApplier
	finder   ModelFinder
	registry *Registry
	logger   *zap.Logger
}

func NewUpdater(self events.Sender, applier ActionApplier, finder ModelFinder, registry *Registry, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{self: self, applier: applier, finder: finder, registry: registry, logger: logger}
}

// Register подписывает обработчики на create/update/delete.
func (u *Updater) Register(bus *events.Bus) {
	bus.Subscribe(events.EntityCreate, u.HandleCreate)
	bus.Subscribe(events.EntityUpdate, u.HandleUpdate)
	bus.Subscribe(events.EntityDelete, u.HandleDelete)
}

// relevant отсекает свои события и всё, что не про meta-модели.
func (u *Updater) relevant(ev events.Event) bool {
	if ev.Sender != "" && ev.Sender == u.self {
		u.logger.Debug("Self-originated event ignored", zap.String("kind", string(ev.Kind)))
		return false
	}
	if ev.Namespace != Namespace {
		return false
	}
	return ev.ModelSingularCode == ModelSingularCode || ev.ModelSingularCode == PropertySingularCode
}

// HandleCreate ничего не делает: таблицы и колонки появятся при следующем проходе.
func (u *Updater) HandleCreate(ctx context.Context, ev events.Event) error {
	if !u.relevant(ev) {
		return nil
	}
	u.logger.Debug("Meta record created, schema change deferred to next sync",
		zap.String("model", ev.ModelSingularCode))
	return nil
}

// HandleUpdate ничего не делает: переименование таблиц через события отключено.
func (u *Updater) HandleUpdate(ctx context.Context, ev events.Event) error {
	if !u.relevant(ev) {
		return nil
	}
	u.logger.Debug("Meta record updated, schema change deferred to next sync",
		zap.String("model", ev.ModelSingularCode))
	return nil
}

func (u *Updater) HandleDelete(ctx context.Context, ev events.Event) error {
	if !u.relevant(ev) {
		return nil
	}
	switch ev.ModelSingularCode {
	case ModelSingularCode:
		u.modelDeleted(ctx, ev)
	case PropertySingularCode:
		u.propertyDeleted(ctx, ev)
	}
	return nil
}

func (u *Updater) modelDeleted(ctx context.Context, ev events.Event) {
	rec, ok := modelPayload(ev.Before)
	if !ok {
		u.logger.Warn("Meta model delete event without model payload")
		return
	}
	fqn := rec.Namespace + "." + rec.SingularCode
	for _, other := range u.registry.TableOwners(rec.Schema, rec.TableName) {
		if !strings.EqualFold(other.FQN(), fqn) {
			u.logger.Warn("Table of deleted model is still used, not dropped",
				zap.String("model", fqn), zap.String("table", rec.TableName), zap.String("used_by", other.FQN()))
			return
		}
	}
	a := pg.DropTable(u.registry.schemaOr(rec.Schema), rec.TableName)
	a.Model = fqn
	u.apply(ctx, a)
}

func (u *Updater) propertyDeleted(ctx context.Context, ev events.Event) {
	rec, ok := propertyPayload(ev.Before)
	if !ok {
		u.logger.Warn("Meta property delete event without property payload")
		return
	}
	prop, err := rec.ToProperty()
	if err != nil {
		u.logger.Warn("Deleted meta property is invalid", zap.Int64("id", rec.ID), zap.Error(err))
		return
	}
	column := prop.ColumnName()
	if column == "" {
		// many-связь не владеет колонкой на этой стороне
		return
	}

	owner, err := u.finder.FindModelByID(ctx, rec.ModelID)
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			u.logger.Warn("Owning model of deleted property not found",
				zap.Int64("model_id", rec.ModelID), zap.String("property", rec.Code))
		} else {
			u.logger.Error("Failed to resolve owning model", zap.Int64("model_id", rec.ModelID), zap.Error(err))
		}
		return
	}
	a := pg.DropColumn(u.registry.schemaOr(owner.Schema), owner.TableName, column)
	a.Model = owner.Namespace + "." + owner.SingularCode
	u.apply(ctx, a)
}

func (u *Updater) apply(ctx context.Context, a pg.Action) {
	ddl, err := u.applier.Apply(ctx, a)
	if err != nil {
		u.logger.Error("Incremental DDL failed", zap.Stringer("action", a), zap.String("ddl", ddl), zap.Error(err))
		return
	}
	u.logger.Info("Incremental DDL applied", zap.Stringer("action", a))
}

func modelPayload(v any) (ModelRecord, bool) {
	switch r := v.(type) {
	case ModelRecord:
		return r, true
	case *ModelRecord:
		if r != nil {
			return *r, true
		}
	}
	return ModelRecord{}, false
}

func propertyPayload(v any) (PropertyRecord, bool) {
	switch r := v.(type) {
	case PropertyRecord:
		return r, true
	case *PropertyRecord:
		if r != nil {
			return *r, true
		}
	}
	return PropertyRecord{}, false
}
