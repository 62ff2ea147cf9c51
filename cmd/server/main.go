package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/mammo-screening-server/internal/api"
	"github.com/mammo-screening-server/internal/config"
	"github.com/mammo-screening-server/internal/history"
	"github.com/mammo-screening-server/internal/inference"
	"github.com/mammo-screening-server/internal/modelfetch"
	"github.com/mammo-screening-server/internal/service"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting mammogram screening server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	fetcher := modelfetch.NewFetcher(cfg.Model, logger)
	if err := fetcher.Ensure(ctx); err != nil {
		logger.Fatalf("Failed to prepare model weights: %v", err)
	}

	model, err := inference.Load(cfg.Model.Path)
	if err != nil {
		logger.Fatalf("Failed to load classifier: %v", err)
	}

	pool := inference.NewPool(model, cfg.Model.Workers, logger)
	defer pool.Close()

	cacheSize := 0
	if cfg.Cache.Enabled {
		cacheSize = cfg.Cache.Size
	}
	analyzer, err := service.NewAnalyzer(pool, cfg.Pipeline, cacheSize, logger)
	if err != nil {
		logger.Fatalf("Failed to create analyzer: %v", err)
	}

	var store api.HistoryStore
	if cfg.History.Enabled {
		sqliteStore, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			logger.Fatalf("Failed to open history store: %v", err)
		}
		defer sqliteStore.Close()
		store = sqliteStore
	}

	server := api.NewServer(cfg, analyzer, store, logger)
	if err := server.Start(ctx); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}

func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
