package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/zaver-checkout/internal/app"
	"github.com/utafrali/zaver-checkout/internal/config"
	"github.com/utafrali/zaver-checkout/pkg/logger"
)

func main() {
	// Load configuration from .env (if present) and the environment.
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("zaver-checkout", cfg.LogLevel)
	log.Info("starting zaver checkout service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.Bool("mock_provider", cfg.UseMockProvider()),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create a context that is canceled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("zaver checkout service stopped")
}
