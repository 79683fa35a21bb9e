package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"tadbirbot/internal/models"
)

// settingsRowID is the fixed primary key of the singleton settings row.
const settingsRowID = 1

// PGSettings is the PostgreSQL implementation of SettingsStore.
type PGSettings struct {
	db *sqlx.DB
}

// NewPGSettings wraps db into a SettingsStore.
func NewPGSettings(db *sqlx.DB) *PGSettings {
	return &PGSettings{db: db}
}

const settingsColumns = `id, greeting_text, ask_phone_text, ask_job_text, done_text,
	pending_chat_id, pending_message_id`

// Get returns the settings row, inserting it with column defaults when
// it does not exist yet.
func (s *PGSettings) Get(ctx context.Context) (*models.Settings, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_settings (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
		settingsRowID)
	if err != nil {
		return nil, fmt.Errorf("settings: ensure row: %w", err)
	}

	var st models.Settings
	err = s.db.GetContext(ctx, &st,
		`SELECT `+settingsColumns+` FROM bot_settings WHERE id = $1`, settingsRowID)
	if err != nil {
		return nil, fmt.Errorf("settings: get: %w", err)
	}
	return &st, nil
}

// SetPending records the pending broadcast reference, overwriting any
// previous unconfirmed one.
func (s *PGSettings) SetPending(ctx context.Context, chatID int64, messageID int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bot_settings SET pending_chat_id = $2, pending_message_id = $3 WHERE id = $1`,
		settingsRowID, chatID, messageID)
	if err != nil {
		return fmt.Errorf("settings: set pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("settings: set pending rows: %w", err)
	}
	if n == 0 {
		// Row not created yet; Get lazily inserts it, then retry once.
		if _, err := s.Get(ctx); err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE bot_settings SET pending_chat_id = $2, pending_message_id = $3 WHERE id = $1`,
			settingsRowID, chatID, messageID)
		if err != nil {
			return fmt.Errorf("settings: set pending retry: %w", err)
		}
	}
	return nil
}

// TakePending claims and clears the pending broadcast in one statement,
// so two concurrent confirmations cannot both win the slot.
func (s *PGSettings) TakePending(ctx context.Context) (models.PendingBroadcast, bool, error) {
	var pb models.PendingBroadcast
	err := s.db.QueryRowxContext(ctx,
		`WITH claimed AS (
			SELECT pending_chat_id, pending_message_id
			FROM bot_settings
			WHERE id = $1 AND pending_chat_id IS NOT NULL AND pending_message_id IS NOT NULL
			FOR UPDATE
		)
		UPDATE bot_settings s
		SET pending_chat_id = NULL, pending_message_id = NULL
		FROM claimed
		WHERE s.id = $1
		RETURNING claimed.pending_chat_id, claimed.pending_message_id`,
		settingsRowID).Scan(&pb.ChatID, &pb.MessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PendingBroadcast{}, false, nil
	}
	if err != nil {
		return models.PendingBroadcast{}, false, fmt.Errorf("settings: take pending: %w", err)
	}
	return pb, true, nil
}
