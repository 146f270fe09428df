package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rapidmeta/internal/api"
	"rapidmeta/internal/app"
	"rapidmeta/internal/config"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// 1. Модели, справочники, плагин
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	// 2. Динамические модели из meta-записей и полный проход до приёма запросов
	a.Manager.ConfigureModels(ctx)
	if cfg.AutoSync {
		a.Manager.OnApplicationLoaded(ctx)
	} else {
		logger.Info("Schema sync on boot disabled")
	}

	// 3. REST API
	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := api.NewServer(api.Deps{
		Registry:        a.Registry,
		Store:           a.Store,
		Manager:         a.Manager,
		Bus:             a.Bus,
		Dictionaries:    a.Dictionaries,
		DSLDir:          cfg.DSLDir,
		DictionariesDir: cfg.DictionariesDir,
		Logger:          logger.Named("api"),
	})
	logger.Info("Starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := api.RunServer(":"+cfg.Port, srv); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}
