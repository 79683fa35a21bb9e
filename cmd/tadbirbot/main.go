package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"log/slog"

	"tadbirbot/config"
	"tadbirbot/internal/app"
	"tadbirbot/internal/logger"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	// .env is optional; real deployments set environment variables.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config %s: %v", cfgPath, err)
	}

	logger.Init(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.APP.Info("starting",
		slog.String("event", "startup"),
		slog.String("config", cfgPath),
		slog.String("run_mode", cfg.Telegram.RunMode),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, cfg); err != nil {
		logger.APP.Error("stopped with error",
			slog.String("event", "shutdown"),
			slog.String("err", err.Error()),
		)
		os.Exit(1)
	}
	logger.APP.Info("stopped",
		slog.String("event", "shutdown"),
	)
}
