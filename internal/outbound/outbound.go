// Package outbound abstracts the send capabilities of the chat platform
// used by the dispatcher, the broadcast fan-out and the reminder sweeps.
package outbound

import "context"

// Button is one inline keyboard button carrying an opaque callback payload.
type Button struct {
	Label string
	Data  string
}

// Sender is the outbound message capability. All sends are best-effort:
// callers log failures and move on, they never roll back state.
type Sender interface {
	// SendText delivers a plain text message to the chat.
	SendText(ctx context.Context, chatID int64, text string) error
	// SendButtons delivers a text message with inline button rows.
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]Button) error
	// SendPhoto delivers a photo by URL with an optional caption.
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
	// CopyMessage replicates a source message verbatim into the
	// destination chat, preserving rich content.
	CopyMessage(ctx context.Context, dstChatID, srcChatID int64, messageID int) error
}
