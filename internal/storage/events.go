package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"tadbirbot/internal/models"
)

// PGEvents is the PostgreSQL implementation of Events.
type PGEvents struct {
	db *sqlx.DB
}

// NewPGEvents wraps db into an Events store.
func NewPGEvents(db *sqlx.DB) *PGEvents {
	return &PGEvents{db: db}
}

const eventColumns = `id, title, starts_at, is_active`

// Create inserts a new inactive event.
func (s *PGEvents) Create(ctx context.Context, title string, startsAt time.Time) (*models.Event, error) {
	var e models.Event
	err := s.db.GetContext(ctx, &e,
		`INSERT INTO events (title, starts_at) VALUES ($1, $2) RETURNING `+eventColumns,
		title, startsAt)
	if err != nil {
		return nil, fmt.Errorf("events: create: %w", err)
	}
	return &e, nil
}

// Active returns the active event, or nil when no event is active.
func (s *PGEvents) Active(ctx context.Context) (*models.Event, error) {
	var e models.Event
	err := s.db.GetContext(ctx, &e,
		`SELECT `+eventColumns+` FROM events WHERE is_active ORDER BY starts_at LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("events: active: %w", err)
	}
	return &e, nil
}

// SetCurrent activates one event and deactivates all others within a
// single transaction, keeping the single-active invariant.
func (s *PGEvents) SetCurrent(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("events: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE events SET is_active = false WHERE is_active`); err != nil {
		return fmt.Errorf("events: deactivate all: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET is_active = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("events: activate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("events: activate rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("events: event %d not found", id)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("events: commit: %w", err)
	}
	return nil
}
