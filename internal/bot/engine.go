// Package bot implements the conversation and broadcast state engine:
// update classification, the registration state machine, the two-phase
// admin broadcast and the RSVP callbacks.
package bot

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"tadbirbot/internal/broadcast"
	"tadbirbot/internal/logger"
	"tadbirbot/internal/models"
	"tadbirbot/internal/outbound"
	"tadbirbot/internal/qr"
	"tadbirbot/internal/storage"
)

// Inbound is one classified-ready message update.
type Inbound struct {
	UpdateID  int
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	// Text is the trimmed message text; empty for bare media.
	Text string
}

// InboundCallback is one inline button press.
type InboundCallback struct {
	UpdateID int
	ChatID   int64
	UserID   int64
	Username string
	Data     string
}

// Engine advances per-user registration state, mediates the broadcast
// confirmation and answers RSVP callbacks. Storage errors are returned
// to the transport layer (which apologizes to the user and still acks
// the webhook); outbound send failures are logged and never propagated.
type Engine struct {
	store          storage.Store
	out            outbound.Sender
	pool           *broadcast.Pool
	bootstrapAdmin int64
}

// New assembles the engine.
func New(store storage.Store, out outbound.Sender, pool *broadcast.Pool, bootstrapAdmin int64) *Engine {
	return &Engine{
		store:          store,
		out:            out,
		pool:           pool,
		bootstrapAdmin: bootstrapAdmin,
	}
}

// isAdmin reports whether the identity is the bootstrap admin or a
// member of the dynamic admin set.
func (e *Engine) isAdmin(ctx context.Context, telegramID int64) (bool, error) {
	if telegramID == e.bootstrapAdmin {
		return true, nil
	}
	return e.store.Admins.IsAdmin(ctx, telegramID)
}

// sendText delivers best-effort, logging failures instead of returning them.
func (e *Engine) sendText(ctx context.Context, chatID int64, text string) {
	if err := e.out.SendText(ctx, chatID, text); err != nil {
		logger.Warn(ctx, logger.BOT, "send.fail",
			slog.Int64("to", chatID),
			slog.String("err", logger.ErrText(err)),
		)
	}
}

// HandleMessage classifies one message update and routes it.
//
// Priority: reset command, admin (slash commands inline, anything else
// becomes the pending broadcast), registration flow, and a static
// instruction for non-admin messages without text.
func (e *Engine) HandleMessage(ctx context.Context, in Inbound) error {
	settings, err := e.store.Settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if in.Text == ResetCommand {
		if _, err := e.store.Users.Reset(ctx, in.UserID, in.Username); err != nil {
			return fmt.Errorf("reset user: %w", err)
		}
		logger.Info(ctx, logger.BOT, "conversation.reset")
		e.sendText(ctx, in.ChatID, settings.GreetingText)
		return nil
	}

	user, err := e.store.Users.GetOrCreate(ctx, in.UserID, in.Username)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}
	if user.Username != in.Username {
		if err := e.store.Users.RefreshUsername(ctx, user.ID, in.Username); err != nil {
			logger.Warn(ctx, logger.BOT, "username.refresh.fail",
				slog.String("err", logger.ErrText(err)),
			)
		}
	}

	admin, err := e.isAdmin(ctx, in.UserID)
	if err != nil {
		return fmt.Errorf("admin lookup: %w", err)
	}
	if admin {
		return e.handleAdminMessage(ctx, in)
	}

	if in.Text == "" {
		e.sendText(ctx, in.ChatID, textOnlyText)
		return nil
	}

	return e.advanceRegistration(ctx, in, user, settings)
}

// advanceRegistration runs one step of the registration state machine.
// Each transition is a conditional update keyed on the expected step, so
// two near-simultaneous messages cannot double-advance or double-prompt:
// the loser of the race is dropped silently.
func (e *Engine) advanceRegistration(ctx context.Context, in Inbound, user *models.User, settings *models.Settings) error {
	switch user.Step {
	case models.StepAskName:
		ok, err := e.store.Users.StoreName(ctx, user.ID, in.Text)
		if err != nil {
			return fmt.Errorf("store name: %w", err)
		}
		if !ok {
			e.logLostStep(ctx, user.Step)
			return nil
		}
		e.sendText(ctx, in.ChatID, settings.AskPhoneText)

	case models.StepAskPhone:
		ok, err := e.store.Users.StorePhone(ctx, user.ID, in.Text)
		if err != nil {
			return fmt.Errorf("store phone: %w", err)
		}
		if !ok {
			e.logLostStep(ctx, user.Step)
			return nil
		}
		e.sendText(ctx, in.ChatID, settings.AskJobText)

	case models.StepAskJob:
		ok, err := e.store.Users.StoreJob(ctx, user.ID, in.Text)
		if err != nil {
			return fmt.Errorf("store job: %w", err)
		}
		if !ok {
			e.logLostStep(ctx, user.Step)
			return nil
		}
		if err := e.enrollIntoActiveEvent(ctx, user.ID); err != nil {
			return err
		}
		e.sendText(ctx, in.ChatID, settings.DoneText)
		payload := qr.Payload(user.Name, user.Phone)
		if err := e.out.SendPhoto(ctx, in.ChatID, qr.URL(payload), qrCaptionPrefix+payload); err != nil {
			logger.Warn(ctx, logger.BOT, "qr.send.fail",
				slog.String("err", logger.ErrText(err)),
			)
		}
		logger.Info(ctx, logger.BOT, "registration.done")

	case models.StepDone:
		e.sendText(ctx, in.ChatID, alreadyRegisteredText)

	default:
		// Unknown step in storage; nudge the user to restart.
		logger.Warn(ctx, logger.BOT, "step.unknown",
			slog.String("step", string(user.Step)),
		)
		e.sendText(ctx, in.ChatID, unknownStepText)
	}
	return nil
}

func (e *Engine) logLostStep(ctx context.Context, step models.Step) {
	logger.Debug(ctx, logger.BOT, "step.race.lost",
		slog.String("step", string(step)),
	)
}

// enrollIntoActiveEvent links the user to the currently active event.
// With no active event this is a no-op; re-running never duplicates the
// enrollment.
func (e *Engine) enrollIntoActiveEvent(ctx context.Context, userID int64) error {
	event, err := e.store.Events.Active(ctx)
	if err != nil {
		return fmt.Errorf("active event: %w", err)
	}
	if event == nil {
		return nil
	}
	if err := e.store.Enrollments.Ensure(ctx, userID, event.ID); err != nil {
		return fmt.Errorf("ensure enrollment: %w", err)
	}
	return nil
}

// handleAdminMessage treats recognized slash commands inline; everything
// else, including media, becomes the pending broadcast awaiting
// confirmation, so rich broadcasts replay verbatim.
func (e *Engine) handleAdminMessage(ctx context.Context, in Inbound) error {
	if cmd, args, ok := parseAdminCommand(in.Text); ok {
		return e.runAdminCommand(ctx, in, cmd, args)
	}

	if err := e.store.Settings.SetPending(ctx, in.ChatID, in.MessageID); err != nil {
		return fmt.Errorf("set pending broadcast: %w", err)
	}
	logger.Info(ctx, logger.BOT, "broadcast.captured",
		slog.Int("message_id", in.MessageID),
	)

	rows := [][]outbound.Button{
		{{Label: broadcastYesLabel, Data: cbBroadcastYes}},
		{{Label: broadcastNoLabel, Data: cbBroadcastNo}},
	}
	if err := e.out.SendButtons(ctx, in.ChatID, broadcastConfirmText, rows); err != nil {
		logger.Warn(ctx, logger.BOT, "confirm.send.fail",
			slog.String("err", logger.ErrText(err)),
		)
	}
	return nil
}

// HandleCallback routes one inline button press by its data prefix.
func (e *Engine) HandleCallback(ctx context.Context, cb InboundCallback) error {
	key, payload := parseCallbackData(cb.Data)
	switch key {
	case cbBroadcastYes:
		return e.confirmBroadcast(ctx, cb)
	case cbBroadcastNo:
		return e.cancelBroadcast(ctx, cb)
	case cbEventYes:
		return e.answerRSVP(ctx, cb, payload, true)
	case cbEventNo:
		return e.answerRSVP(ctx, cb, payload, false)
	default:
		logger.Debug(ctx, logger.BOT, "callback.unknown",
			slog.String("key", logger.SanitizeLimit(key, 64)),
		)
		return nil
	}
}

// confirmBroadcast claims the pending slot and fans the captured message
// out to every recipient. The slot is cleared by the claim itself, so a
// double press cannot re-send.
func (e *Engine) confirmBroadcast(ctx context.Context, cb InboundCallback) error {
	admin, err := e.isAdmin(ctx, cb.UserID)
	if err != nil {
		return fmt.Errorf("admin lookup: %w", err)
	}
	if !admin {
		e.sendText(ctx, cb.ChatID, notAdminText)
		return nil
	}

	pending, ok, err := e.store.Settings.TakePending(ctx)
	if err != nil {
		return fmt.Errorf("take pending broadcast: %w", err)
	}
	if !ok {
		e.sendText(ctx, cb.ChatID, broadcastEmptyText)
		return nil
	}

	ids, err := e.store.Users.TelegramIDs(ctx)
	if err != nil {
		return fmt.Errorf("list recipients: %w", err)
	}

	report := e.pool.Run(ctx, ids, func(ctx context.Context, chatID int64) error {
		return e.out.CopyMessage(ctx, chatID, pending.ChatID, pending.MessageID)
	})

	e.sendText(ctx, cb.ChatID, fmt.Sprintf(broadcastDoneTextFmt, report.Succeeded))
	return nil
}

// cancelBroadcast drops the pending slot without sending anything.
func (e *Engine) cancelBroadcast(ctx context.Context, cb InboundCallback) error {
	admin, err := e.isAdmin(ctx, cb.UserID)
	if err != nil {
		return fmt.Errorf("admin lookup: %w", err)
	}
	if !admin {
		e.sendText(ctx, cb.ChatID, notAdminText)
		return nil
	}

	if _, _, err := e.store.Settings.TakePending(ctx); err != nil {
		return fmt.Errorf("clear pending broadcast: %w", err)
	}
	logger.Info(ctx, logger.BOT, "broadcast.cancelled")
	e.sendText(ctx, cb.ChatID, broadcastCancelText)
	return nil
}

// answerRSVP records the attendance answer for the enrollment referenced
// by the callback payload. Unknown or malformed ids mutate nothing.
func (e *Engine) answerRSVP(ctx context.Context, cb InboundCallback, payload string, coming bool) error {
	id, ok := parseEnrollmentID(payload)
	if !ok {
		e.sendText(ctx, cb.ChatID, rsvpNotFoundText)
		return nil
	}

	updated, err := e.store.Enrollments.SetComing(ctx, id, coming)
	if err != nil {
		return fmt.Errorf("set coming: %w", err)
	}
	if !updated {
		e.sendText(ctx, cb.ChatID, rsvpNotFoundText)
		return nil
	}

	logger.Info(ctx, logger.BOT, "rsvp.answered",
		slog.Int64("enrollment_id", id),
		slog.Bool("coming", coming),
	)
	if coming {
		e.sendText(ctx, cb.ChatID, rsvpYesText)
	} else {
		e.sendText(ctx, cb.ChatID, rsvpNoText)
	}
	return nil
}

// RSVPKeyboard builds the tier-1 reminder keyboard for an enrollment.
func RSVPKeyboard(enrollmentID int64) [][]outbound.Button {
	return [][]outbound.Button{
		{{Label: rsvpYesButtonLabel, Data: rsvpCallbackData(cbEventYes, enrollmentID)}},
		{{Label: rsvpNoButtonLabel, Data: rsvpCallbackData(cbEventNo, enrollmentID)}},
	}
}

// parseAdminCommand recognizes the admin-only slash commands. Any other
// text (slash-prefixed or not) is broadcast content.
func parseAdminCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", "", false
	}
	switch fields[0] {
	case cmdMyID, cmdAdmins, cmdAddAdmin, cmdRemoveAdmin:
		return fields[0], strings.TrimSpace(strings.TrimPrefix(text, fields[0])), true
	}
	return "", "", false
}
