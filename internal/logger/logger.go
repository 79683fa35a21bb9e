// Package logger configures structured slog logging and carries
// per-update correlation metadata through context.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	initOnce sync.Once
	levelVar slog.LevelVar

	// L is the base logger.
	L = slog.Default()

	// APP logs application lifecycle events.
	APP *slog.Logger
	// DB logs database events.
	DB *slog.Logger
	// MIG logs database migration events.
	MIG *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// BOT logs update dispatch and conversation events.
	BOT *slog.Logger
	// BCAST logs broadcast fan-out events.
	BCAST *slog.Logger
	// SWEEP logs reminder sweep events.
	SWEEP *slog.Logger
)

func init() {
	wireComponents()
}

// Options selects the log level and output format.
type Options struct {
	Level  string
	Format string
}

// Init configures the global structured logger. It may be called only once.
func Init(opts Options) {
	initOnce.Do(func() {
		levelVar.Set(parseLevel(opts.Level))

		hopts := &slog.HandlerOptions{Level: &levelVar}
		var handler slog.Handler
		switch strings.ToLower(strings.TrimSpace(opts.Format)) {
		case "text", "kv", "pretty":
			handler = slog.NewTextHandler(os.Stdout, hopts)
		default:
			handler = slog.NewJSONHandler(os.Stdout, hopts)
		}

		L = slog.New(handler)
		slog.SetDefault(L)
		wireComponents()
	})
}

func wireComponents() {
	APP = Component("app")
	DB = Component("db")
	MIG = Component("db.migrate")
	TG = Component("tg")
	BOT = Component("bot")
	BCAST = Component("broadcast")
	SWEEP = Component("sweeper")
}

// Component returns a child logger tagged with a component name.
func Component(name string) *slog.Logger {
	return L.With(slog.String("component", name))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogEvent emits an event on log, enriched with correlation metadata
// found in ctx (rid, update/chat/user ids).
func LogEvent(ctx context.Context, log *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if log == nil {
		log = L
	}
	all := make([]slog.Attr, 0, len(attrs)+4)
	all = append(all, attrs...)
	if rid := RIDFrom(ctx); rid != "" {
		all = append(all, slog.String("rid", rid))
	}
	if id := UpdateIDFrom(ctx); id != 0 {
		all = append(all, slog.Int("update_id", id))
	}
	if id := ChatIDFrom(ctx); id != 0 {
		all = append(all, slog.Int64("chat_id", id))
	}
	if id := UserIDFrom(ctx); id != 0 {
		all = append(all, slog.Int64("user_id", id))
	}
	log.LogAttrs(ctx, level, event, all...)
}

// Debug logs a debug event with context metadata.
func Debug(ctx context.Context, log *slog.Logger, event string, attrs ...slog.Attr) {
	LogEvent(ctx, log, slog.LevelDebug, event, attrs...)
}

// Info logs an info event with context metadata.
func Info(ctx context.Context, log *slog.Logger, event string, attrs ...slog.Attr) {
	LogEvent(ctx, log, slog.LevelInfo, event, attrs...)
}

// Warn logs a warning event with context metadata.
func Warn(ctx context.Context, log *slog.Logger, event string, attrs ...slog.Attr) {
	LogEvent(ctx, log, slog.LevelWarn, event, attrs...)
}

// Error logs an error event with context metadata.
func Error(ctx context.Context, log *slog.Logger, event string, attrs ...slog.Attr) {
	LogEvent(ctx, log, slog.LevelError, event, attrs...)
}
