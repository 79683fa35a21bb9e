package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tadbirbot/internal/models"
)

// pqUniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// PGUsers is the PostgreSQL implementation of Users.
type PGUsers struct {
	db *sqlx.DB
}

// NewPGUsers wraps db into a Users store.
func NewPGUsers(db *sqlx.DB) *PGUsers {
	return &PGUsers{db: db}
}

const userColumns = `id, telegram_id, username, name, phone, job, step, created_at`

func (s *PGUsers) byTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrCreate returns the user for telegramID, creating one lazily.
// A unique violation on the identity key means a parallel request created
// the row first; it is resolved by re-reading, never surfaced.
func (s *PGUsers) GetOrCreate(ctx context.Context, telegramID int64, username string) (*models.User, error) {
	u, err := s.byTelegramID(ctx, telegramID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("users: get by telegram id: %w", err)
	}

	var created models.User
	err = s.db.GetContext(ctx, &created,
		`INSERT INTO users (telegram_id, username, name, phone, job, step)
		 VALUES ($1, $2, '', '', '', $3)
		 RETURNING `+userColumns,
		telegramID, username, models.StepAskName)
	if err == nil {
		return &created, nil
	}
	if isUniqueViolation(err) {
		again, readErr := s.byTelegramID(ctx, telegramID)
		if readErr != nil {
			return nil, fmt.Errorf("users: re-read after conflict: %w", readErr)
		}
		return again, nil
	}
	return nil, fmt.Errorf("users: create: %w", err)
}

// RefreshUsername stores the current username for the user.
func (s *PGUsers) RefreshUsername(ctx context.Context, id int64, username string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = $2 WHERE id = $1`, id, username)
	if err != nil {
		return fmt.Errorf("users: refresh username: %w", err)
	}
	return nil
}

// Reset clears the registration fields and returns the user to ASK_NAME,
// creating the record when absent.
func (s *PGUsers) Reset(ctx context.Context, telegramID int64, username string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u,
		`INSERT INTO users (telegram_id, username, name, phone, job, step)
		 VALUES ($1, $2, '', '', '', $3)
		 ON CONFLICT (telegram_id) DO UPDATE
		 SET username = EXCLUDED.username, name = '', phone = '', job = '', step = $3
		 RETURNING `+userColumns,
		telegramID, username, models.StepAskName)
	if err != nil {
		return nil, fmt.Errorf("users: reset: %w", err)
	}
	return &u, nil
}

func (s *PGUsers) advance(ctx context.Context, id int64, column, value string, from, to models.Step) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET `+column+` = $2, step = $3 WHERE id = $1 AND step = $4`,
		id, value, to, from)
	if err != nil {
		return false, fmt.Errorf("users: advance %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("users: advance %s rows: %w", column, err)
	}
	return n == 1, nil
}

// StoreName records the display name and advances to ASK_PHONE.
func (s *PGUsers) StoreName(ctx context.Context, id int64, name string) (bool, error) {
	return s.advance(ctx, id, "name", name, models.StepAskName, models.StepAskPhone)
}

// StorePhone records the phone and advances to ASK_JOB.
func (s *PGUsers) StorePhone(ctx context.Context, id int64, phone string) (bool, error) {
	return s.advance(ctx, id, "phone", phone, models.StepAskPhone, models.StepAskJob)
}

// StoreJob records the occupation and advances to DONE.
func (s *PGUsers) StoreJob(ctx context.Context, id int64, job string) (bool, error) {
	return s.advance(ctx, id, "job", job, models.StepAskJob, models.StepDone)
}

// TelegramIDs lists every known chat identity for broadcast fan-out.
func (s *PGUsers) TelegramIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		`SELECT telegram_id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("users: list telegram ids: %w", err)
	}
	return ids, nil
}
