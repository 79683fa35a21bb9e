package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"tadbirbot/internal/logger"
)

// Admin-only slash commands, handled inline and never captured as
// broadcast content.
const (
	cmdMyID        = "/myid"
	cmdAdmins      = "/admins"
	cmdAddAdmin    = "/addadmin"
	cmdRemoveAdmin = "/removeadmin"
)

func (e *Engine) runAdminCommand(ctx context.Context, in Inbound, cmd, args string) error {
	switch cmd {
	case cmdMyID:
		if in.Username != "" {
			e.sendText(ctx, in.ChatID, fmt.Sprintf(myIDUsernameTextFmt, in.UserID, in.Username))
		} else {
			e.sendText(ctx, in.ChatID, fmt.Sprintf(myIDTextFmt, in.UserID))
		}
		return nil

	case cmdAdmins:
		return e.listAdmins(ctx, in)

	case cmdAddAdmin:
		return e.addAdmin(ctx, in, args)

	case cmdRemoveAdmin:
		return e.removeAdmin(ctx, in, args)
	}
	return nil
}

func (e *Engine) listAdmins(ctx context.Context, in Inbound) error {
	admins, err := e.store.Admins.List(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	lines := []string{adminListHeader, fmt.Sprintf(adminListBootstrapFmt, e.bootstrapAdmin)}
	for _, a := range admins {
		if a.TelegramID == e.bootstrapAdmin {
			continue
		}
		line := strconv.FormatInt(a.TelegramID, 10)
		if a.Username != "" {
			line += " (@" + a.Username + ")"
		}
		lines = append(lines, line)
	}
	e.sendText(ctx, in.ChatID, strings.Join(lines, "\n"))
	return nil
}

func (e *Engine) addAdmin(ctx context.Context, in Inbound, args string) error {
	if args == "" {
		e.sendText(ctx, in.ChatID, adminUsageAddText)
		return nil
	}
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		e.sendText(ctx, in.ChatID, adminNotNumericText)
		return nil
	}

	added, err := e.store.Admins.Add(ctx, id, "")
	if err != nil {
		return fmt.Errorf("add admin: %w", err)
	}
	if !added {
		e.sendText(ctx, in.ChatID, fmt.Sprintf(adminExistsTextFmt, id))
		return nil
	}
	logger.Info(ctx, logger.BOT, "admin.added",
		slog.Int64("admin_id", id),
	)
	e.sendText(ctx, in.ChatID, fmt.Sprintf(adminAddedTextFmt, id))
	return nil
}

func (e *Engine) removeAdmin(ctx context.Context, in Inbound, args string) error {
	if args == "" {
		e.sendText(ctx, in.ChatID, adminUsageRemoveText)
		return nil
	}
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		e.sendText(ctx, in.ChatID, adminNotNumericText)
		return nil
	}
	if id == in.UserID {
		e.sendText(ctx, in.ChatID, adminSelfRemoveText)
		return nil
	}

	removed, err := e.store.Admins.Remove(ctx, id)
	if err != nil {
		return fmt.Errorf("remove admin: %w", err)
	}
	if !removed {
		e.sendText(ctx, in.ChatID, fmt.Sprintf(adminAbsentTextFmt, id))
		return nil
	}
	logger.Info(ctx, logger.BOT, "admin.removed",
		slog.Int64("admin_id", id),
	)
	e.sendText(ctx, in.ChatID, fmt.Sprintf(adminRemovedTextFmt, id))
	return nil
}
