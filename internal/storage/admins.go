package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"tadbirbot/internal/models"
)

// PGAdmins is the PostgreSQL implementation of Admins.
type PGAdmins struct {
	db *sqlx.DB
}

// NewPGAdmins wraps db into an Admins store.
func NewPGAdmins(db *sqlx.DB) *PGAdmins {
	return &PGAdmins{db: db}
}

// IsAdmin reports whether telegramID has an admin row.
func (s *PGAdmins) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM admins WHERE telegram_id = $1)`, telegramID)
	if err != nil {
		return false, fmt.Errorf("admins: is admin: %w", err)
	}
	return exists, nil
}

// List returns all dynamic admins ordered by when they were added.
func (s *PGAdmins) List(ctx context.Context) ([]models.Admin, error) {
	var admins []models.Admin
	err := s.db.SelectContext(ctx, &admins,
		`SELECT telegram_id, username, added_at FROM admins ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("admins: list: %w", err)
	}
	return admins, nil
}

// Add inserts a new admin identity; adding an existing one is a no-op.
func (s *PGAdmins) Add(ctx context.Context, telegramID int64, username string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (telegram_id, username) VALUES ($1, $2)
		 ON CONFLICT (telegram_id) DO NOTHING`,
		telegramID, username)
	if err != nil {
		return false, fmt.Errorf("admins: add: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("admins: add rows: %w", err)
	}
	return n == 1, nil
}

// Remove deletes an admin identity; removing an absent one is a no-op.
func (s *PGAdmins) Remove(ctx context.Context, telegramID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM admins WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return false, fmt.Errorf("admins: remove: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("admins: remove rows: %w", err)
	}
	return n == 1, nil
}
