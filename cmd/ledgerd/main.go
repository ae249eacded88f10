package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ledgersync/internal/app"
	"ledgersync/internal/config"
	"ledgersync/internal/log"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     logLevel(),
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)

	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to assemble engine", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Cleanup error", "error", err)
		}
	}()

	logger.Info("Starting ledgerd",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"path", cfg.CollectionPath())

	if err := a.Run(ctx); err != nil {
		logger.Error("Engine stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Engine stopped gracefully")
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
