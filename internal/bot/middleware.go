package bot

import (
	"context"
	"runtime/debug"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"tadbirbot/internal/logger"
)

// RecoverMiddleware catches panics in handlers so one bad update cannot
// crash the bot.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.BOT.Error("panic recovered",
					slog.String("event", "panic"),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		return next(c)
	}
}

// LoggerMiddleware logs one receipt line per update at debug level.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := updateContext(c)
		attrs := []slog.Attr{
			slog.String("status", "ok"),
		}
		if user := c.Sender(); user != nil && user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		} else if cb := c.Callback(); cb != nil {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(cb.Data, 256)))
		}
		logger.Debug(ctx, logger.TG, "update.received", attrs...)
		return next(c)
	}
}

// updateContext builds a context carrying the update correlation
// metadata for downstream logging.
func updateContext(c tele.Context) context.Context {
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	upd := c.Update()

	ctx := context.Background()
	ctx = logger.WithRID(ctx, logger.BuildRID(upd.ID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	return ctx
}
