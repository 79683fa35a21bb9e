package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"tadbirbot/internal/models"
)

// PGEnrollments is the PostgreSQL implementation of Enrollments.
type PGEnrollments struct {
	db *sqlx.DB
}

// NewPGEnrollments wraps db into an Enrollments store.
func NewPGEnrollments(db *sqlx.DB) *PGEnrollments {
	return &PGEnrollments{db: db}
}

const enrollmentColumns = `id, user_id, event_id, reminded1, reminded2, reminded3, coming, created_at`

// Ensure creates the (user, event) enrollment once; re-running is a no-op.
func (s *PGEnrollments) Ensure(ctx context.Context, userID, eventID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_events (user_id, event_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, event_id) DO NOTHING`,
		userID, eventID)
	if err != nil {
		return fmt.Errorf("enrollments: ensure: %w", err)
	}
	return nil
}

// Get returns the enrollment by id, or nil when it does not exist.
func (s *PGEnrollments) Get(ctx context.Context, id int64) (*models.Enrollment, error) {
	var e models.Enrollment
	err := s.db.GetContext(ctx, &e,
		`SELECT `+enrollmentColumns+` FROM user_events WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enrollments: get: %w", err)
	}
	return &e, nil
}

func tierColumn(tier Tier) (string, error) {
	switch tier {
	case Tier1:
		return "reminded1", nil
	case Tier2:
		return "reminded2", nil
	case Tier3:
		return "reminded3", nil
	}
	return "", fmt.Errorf("enrollments: unknown tier %d", tier)
}

// Due lists enrollments of the event still owed a reminder of the tier,
// joined with the recipient chat identity. Tiers 2 and 3 only consider
// confirmed attendees.
func (s *PGEnrollments) Due(ctx context.Context, eventID int64, tier Tier) ([]DueEnrollment, error) {
	col, err := tierColumn(tier)
	if err != nil {
		return nil, err
	}
	query := `SELECT ue.id, ue.user_id, ue.event_id, ue.reminded1, ue.reminded2, ue.reminded3,
			ue.coming, ue.created_at, u.telegram_id
		FROM user_events ue
		JOIN users u ON u.id = ue.user_id
		WHERE ue.event_id = $1 AND NOT ue.` + col
	if tier != Tier1 {
		query += ` AND ue.coming`
	}
	query += ` ORDER BY ue.id`

	var due []DueEnrollment
	if err := s.db.SelectContext(ctx, &due, query, eventID); err != nil {
		return nil, fmt.Errorf("enrollments: due tier %d: %w", tier, err)
	}
	return due, nil
}

// MarkReminded sets the tier flag to true. Flags never go back to false.
func (s *PGEnrollments) MarkReminded(ctx context.Context, id int64, tier Tier) error {
	col, err := tierColumn(tier)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE user_events SET `+col+` = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("enrollments: mark tier %d: %w", tier, err)
	}
	return nil
}

// SetComing records the RSVP answer for the enrollment.
func (s *PGEnrollments) SetComing(ctx context.Context, id int64, coming bool) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_events SET coming = $2 WHERE id = $1`, id, coming)
	if err != nil {
		return false, fmt.Errorf("enrollments: set coming: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enrollments: set coming rows: %w", err)
	}
	return n == 1, nil
}
