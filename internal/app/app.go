// Package app собирает зависимости сервера и CLI из конфигурации.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"rapidmeta/internal/config"
	"rapidmeta/internal/events"
	"rapidmeta/internal/meta"
	"rapidmeta/internal/pg"
	"rapidmeta/internal/reference"
)

type App struct {
	Config       *config.Config
	DB           *sql.DB
	Registry     *meta.Registry
	Store        *meta.Store
	Manager      *meta.Manager
	Bus          *events.Bus
	Dictionaries reference.Catalog
	Logger       *zap.Logger
}

// Build загружает модели и справочники и связывает плагин с базой.
// Недоступная база — не ошибка: проход просто не состоится, сервер поднимется.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	models, err := meta.StaticModels(cfg.DSLDir)
	if err != nil {
		return nil, fmt.Errorf("load DSL: %w", err)
	}
	dicts, err := reference.LoadCatalog(cfg.DictionariesDir)
	if err != nil {
		return nil, fmt.Errorf("load dictionaries: %w", err)
	}
	logger.Info("Models loaded", zap.Int("static", len(models)), zap.Int("dictionaries", len(dicts)))

	registry := meta.NewRegistry(cfg.Database.DefaultSchema, logger.Named("registry"))
	if err := registry.SetStatic(models); err != nil {
		return nil, err
	}

	db, err := pg.Connect(cfg.Database.URL, pg.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := pg.Ping(ctx, db); err != nil {
		var connErr *pg.ConnectivityError
		if !errors.As(err, &connErr) {
			return nil, err
		}
		logger.Error("Database is unreachable, schema sync will fail until it is back",
			zap.String("db", cfg.RedactedDatabaseURL()), zap.Error(err))
	}

	metaLogger := logger.Named("meta")
	applier := pg.NewApplier(db, pg.PostgresQuoter{}, logger.Named("ddl"))
	store := meta.NewStore(db, registry.DefaultSchema(), metaLogger)
	reconciler := meta.NewReconciler(pg.NewCatalogIntrospector(db), meta.NewPlanner(registry, metaLogger), applier, metaLogger)
	// собственный токен плагина: свои события он не обрабатывает
	updater := meta.NewUpdater(events.NewSender(), applier, store, registry, metaLogger)
	manager := meta.NewManager(registry, store, reconciler, updater, metaLogger)

	bus := events.NewBus(logger.Named("events"))
	manager.RegisterEventHandlers(bus)

	return &App{
		Config:       cfg,
		DB:           db,
		Registry:     registry,
		Store:        store,
		Manager:      manager,
		Bus:          bus,
		Dictionaries: dicts,
		Logger:       logger,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
