// Package models defines the persistent domain types of the bot.
package models

import "time"

// Step identifies the stage of a user's registration conversation.
type Step string

const (
	// StepAskName means the bot is waiting for the user's display name.
	StepAskName Step = "ASK_NAME"
	// StepAskPhone means the bot is waiting for the user's phone number.
	StepAskPhone Step = "ASK_PHONE"
	// StepAskJob means the bot is waiting for the user's occupation.
	StepAskJob Step = "ASK_JOB"
	// StepDone means registration is complete.
	StepDone Step = "DONE"
)

// Valid reports whether s is one of the known registration steps.
func (s Step) Valid() bool {
	switch s {
	case StepAskName, StepAskPhone, StepAskJob, StepDone:
		return true
	}
	return false
}

// User is an end user known by a stable Telegram identity.
// TelegramID is unique and immutable; Username is refreshed on every contact.
type User struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	Name       string    `db:"name"`
	Phone      string    `db:"phone"`
	Job        string    `db:"job"`
	Step       Step      `db:"step"`
	CreatedAt  time.Time `db:"created_at"`
}

// PendingBroadcast references an admin message awaiting yes/no confirmation.
// The message is stored by location, not by content, so rich media is
// replayed verbatim on fan-out.
type PendingBroadcast struct {
	ChatID    int64
	MessageID int
}

// Settings is the singleton configuration row (id = 1), lazily created
// with defaults. It holds the conversation prompt texts and at most one
// pending broadcast.
type Settings struct {
	ID           int    `db:"id"`
	GreetingText string `db:"greeting_text"`
	AskPhoneText string `db:"ask_phone_text"`
	AskJobText   string `db:"ask_job_text"`
	DoneText     string `db:"done_text"`

	PendingChatID    *int64 `db:"pending_chat_id"`
	PendingMessageID *int   `db:"pending_message_id"`
}

// Pending returns the pending broadcast reference if one is set.
func (s *Settings) Pending() (PendingBroadcast, bool) {
	if s.PendingChatID == nil || s.PendingMessageID == nil {
		return PendingBroadcast{}, false
	}
	return PendingBroadcast{ChatID: *s.PendingChatID, MessageID: *s.PendingMessageID}, true
}

// Admin is a privileged Telegram identity. The bootstrap admin from
// configuration is treated as admin even without a row.
type Admin struct {
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	AddedAt    time.Time `db:"added_at"`
}

// Event is a scheduled happening users can be enrolled into.
// At most one event is active at any time.
type Event struct {
	ID       int64     `db:"id"`
	Title    string    `db:"title"`
	StartsAt time.Time `db:"starts_at"`
	IsActive bool      `db:"is_active"`
}

// Enrollment links one user to one event (unique pair) and carries the
// per-tier reminder flags and the attendance answer. Reminder flags are
// monotone: once true they are never reset.
type Enrollment struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	EventID   int64     `db:"event_id"`
	Reminded1 bool      `db:"reminded1"`
	Reminded2 bool      `db:"reminded2"`
	Reminded3 bool      `db:"reminded3"`
	Coming    *bool     `db:"coming"`
	CreatedAt time.Time `db:"created_at"`
}
