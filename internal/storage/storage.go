// Package storage defines the persistence contracts of the bot and
// their PostgreSQL implementations.
package storage

import (
	"context"
	"time"

	"tadbirbot/internal/models"
)

// Tier identifies one of the three reminder windows.
type Tier int

const (
	// Tier1 is the ~24h reminder carrying the RSVP keyboard.
	Tier1 Tier = 1
	// Tier2 is the ~1h reminder for confirmed attendees.
	Tier2 Tier = 2
	// Tier3 is the ~30min reminder for confirmed attendees.
	Tier3 Tier = 3
)

// DueEnrollment is an enrollment eligible for a reminder, joined with
// the recipient's chat identity.
type DueEnrollment struct {
	models.Enrollment
	TelegramID int64 `db:"telegram_id"`
}

// Users stores registration records keyed by Telegram identity.
//
// The Store* methods advance the conversation with a conditional update
// keyed on the expected current step: they report false when the row was
// not in that step, which makes concurrent duplicate messages lose the
// race instead of producing duplicate prompts.
type Users interface {
	// GetOrCreate returns the user for telegramID, creating one in step
	// ASK_NAME if absent. A concurrent create for the same identity must
	// not surface a uniqueness error.
	GetOrCreate(ctx context.Context, telegramID int64, username string) (*models.User, error)
	// RefreshUsername updates the stored username. Failures are non-fatal
	// for callers and only logged.
	RefreshUsername(ctx context.Context, id int64, username string) error
	// Reset clears name/phone/job and returns the user to ASK_NAME,
	// creating the record if absent.
	Reset(ctx context.Context, telegramID int64, username string) (*models.User, error)
	// StoreName advances ASK_NAME -> ASK_PHONE.
	StoreName(ctx context.Context, id int64, name string) (bool, error)
	// StorePhone advances ASK_PHONE -> ASK_JOB.
	StorePhone(ctx context.Context, id int64, phone string) (bool, error)
	// StoreJob advances ASK_JOB -> DONE.
	StoreJob(ctx context.Context, id int64, job string) (bool, error)
	// TelegramIDs lists the chat identities of every known user.
	TelegramIDs(ctx context.Context) ([]int64, error)
}

// SettingsStore holds the singleton settings row, lazily created with
// defaults.
type SettingsStore interface {
	Get(ctx context.Context) (*models.Settings, error)
	// SetPending records the pending broadcast reference. A newer admin
	// message overwrites a previous unconfirmed one.
	SetPending(ctx context.Context, chatID int64, messageID int) error
	// TakePending atomically claims and clears the pending broadcast.
	// It reports false when the slot was empty.
	TakePending(ctx context.Context) (models.PendingBroadcast, bool, error)
}

// Admins is the dynamic set of privileged identities. The bootstrap
// admin from configuration is enforced by callers, not stored here.
type Admins interface {
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
	List(ctx context.Context) ([]models.Admin, error)
	// Add inserts a new admin; it reports false when already present.
	Add(ctx context.Context, telegramID int64, username string) (bool, error)
	// Remove deletes an admin; it reports false when absent.
	Remove(ctx context.Context, telegramID int64) (bool, error)
}

// Events is the event catalog with a single active event at a time.
type Events interface {
	Create(ctx context.Context, title string, startsAt time.Time) (*models.Event, error)
	// Active returns the active event, or nil when none is active.
	Active(ctx context.Context) (*models.Event, error)
	// SetCurrent activates one event and deactivates all others in the
	// same transaction.
	SetCurrent(ctx context.Context, id int64) error
}

// Enrollments links users to events and tracks reminder/attendance state.
type Enrollments interface {
	// Ensure creates the (user, event) enrollment if it does not exist.
	Ensure(ctx context.Context, userID, eventID int64) error
	Get(ctx context.Context, id int64) (*models.Enrollment, error)
	// Due lists enrollments of the event still owed a reminder of the
	// given tier. Tiers 2 and 3 additionally require coming = true.
	Due(ctx context.Context, eventID int64, tier Tier) ([]DueEnrollment, error)
	// MarkReminded sets the tier flag. Flags are monotone.
	MarkReminded(ctx context.Context, id int64, tier Tier) error
	// SetComing records the RSVP answer; it reports false when the
	// enrollment does not exist.
	SetComing(ctx context.Context, id int64, coming bool) (bool, error)
}

// Store bundles every persistence contract for wiring convenience.
type Store struct {
	Users       Users
	Settings    SettingsStore
	Admins      Admins
	Events      Events
	Enrollments Enrollments
}
