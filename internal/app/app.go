// Package app composes the storage, engine, transport and sweeper into
// a runnable bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"tadbirbot/config"
	"tadbirbot/internal/bot"
	"tadbirbot/internal/broadcast"
	"tadbirbot/internal/database"
	"tadbirbot/internal/logger"
	"tadbirbot/internal/outbound"
	"tadbirbot/internal/storage"
	"tadbirbot/internal/sweeper"
	tgtransport "tadbirbot/internal/telegram"
)

// Run starts the bot and blocks until ctx is done or the update loop
// stops on its own.
func Run(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("app: nil config")
	}

	if err := database.RunMigrations(cfg.Database); err != nil {
		return fmt.Errorf("app: migrations: %w", err)
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("app: database: %w", err)
	}
	defer func() { _ = db.Close() }()

	start := time.Now()
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: tgtransport.BuildPoller(cfg),
		Client: tgtransport.BuildHTTPClient(),
	})
	if err != nil {
		return fmt.Errorf("app: bot initialization failed: %w", err)
	}
	logger.TG.Info("bot ready",
		slog.String("event", "init"),
		slog.String("mode", cfg.Telegram.RunMode),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)

	store := storage.Store{
		Users:       storage.NewPGUsers(db),
		Settings:    storage.NewPGSettings(db),
		Admins:      storage.NewPGAdmins(db),
		Events:      storage.NewPGEvents(db),
		Enrollments: storage.NewPGEnrollments(db),
	}

	sender := outbound.NewTelebotSender(tb)
	pool := broadcast.NewPool(cfg.Broadcast.Workers)
	engine := bot.New(store, sender, pool, cfg.Telegram.AdminID)
	bot.RegisterRoutes(tb, engine)

	if cfg.Sweeper.Enabled {
		sw := sweeper.New(store.Events, store.Enrollments, sender, nil)
		sw.Start(ctx, time.Duration(cfg.Sweeper.IntervalSeconds)*time.Second)
	}

	runDone := make(chan struct{})
	go func() {
		tb.Start()
		close(runDone)
	}()

	select {
	case <-ctx.Done():
		tb.Stop()
		<-runDone
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	case <-runDone:
		return nil
	}
}
