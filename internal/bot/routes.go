package bot

import (
	"strings"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"tadbirbot/internal/logger"
)

// RegisterRoutes wires the engine into the telebot update loop. Handlers
// always return nil so the transport acknowledges every well-formed
// update: the platform must never retry a delivery, because retries
// would duplicate side effects. Internal failures surface only through
// logs and an apologetic reply.
func RegisterRoutes(b *tele.Bot, e *Engine) {
	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return RecoverMiddleware(LoggerMiddleware(h))
	}

	message := wrap(e.messageRoute)
	for _, endpoint := range []string{
		tele.OnText,
		tele.OnEdited,
		tele.OnMedia,
		tele.OnContact,
		tele.OnLocation,
	} {
		b.Handle(endpoint, message)
	}

	b.Handle(tele.OnCallback, wrap(e.callbackRoute))
}

// messageText extracts the trimmed text of a message, falling back to
// the media caption so captioned photos still count as text.
func messageText(msg *tele.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Text != "" {
		return strings.TrimSpace(msg.Text)
	}
	return strings.TrimSpace(msg.Caption)
}

func (e *Engine) messageRoute(c tele.Context) error {
	msg := c.Message()
	chat := c.Chat()
	sender := c.Sender()
	if msg == nil || chat == nil || sender == nil {
		// Malformed update; ack and drop.
		return nil
	}

	ctx := updateContext(c)
	in := Inbound{
		UpdateID:  c.Update().ID,
		ChatID:    chat.ID,
		MessageID: msg.ID,
		UserID:    sender.ID,
		Username:  sender.Username,
		Text:      messageText(msg),
	}

	if err := e.HandleMessage(ctx, in); err != nil {
		logger.Error(ctx, logger.BOT, "handler.fail",
			slog.String("handler", "message"),
			slog.String("err", logger.ErrText(err)),
		)
		e.sendText(ctx, in.ChatID, apologyText(err))
	}
	return nil
}

func (e *Engine) callbackRoute(c tele.Context) error {
	cb := c.Callback()
	sender := c.Sender()
	if cb == nil || sender == nil {
		return nil
	}

	// Answer the query immediately so the client stops its spinner.
	_ = c.Respond()

	var chatID int64
	if cb.Message != nil && cb.Message.Chat != nil {
		chatID = cb.Message.Chat.ID
	} else if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}

	ctx := updateContext(c)
	in := InboundCallback{
		UpdateID: c.Update().ID,
		ChatID:   chatID,
		UserID:   sender.ID,
		Username: sender.Username,
		Data:     cb.Data,
	}

	if err := e.HandleCallback(ctx, in); err != nil {
		logger.Error(ctx, logger.BOT, "handler.fail",
			slog.String("handler", "callback"),
			slog.String("err", logger.ErrText(err)),
		)
		if chatID != 0 {
			e.sendText(ctx, chatID, apologyText(err))
		}
	}
	return nil
}
