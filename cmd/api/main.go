package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirhzn/mida-tracker-backend/internal/api"
	"github.com/amirhzn/mida-tracker-backend/internal/application/service"
	"github.com/amirhzn/mida-tracker-backend/internal/domain/matcher"
	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/config"
	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/logging"
	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configPath)
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "path", cfg.Storage.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	imports := service.NewImportService(store, logger)
	matching := service.NewMatchService(store, matcher.Config{
		Mode:      matcher.Mode(cfg.Matching.Mode),
		Threshold: cfg.Matching.Threshold,
	}, logger)

	server := api.NewServer(api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowOverdraw:  cfg.Imports.AllowOverdraw,
	}, store, imports, matching, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
	}
}
