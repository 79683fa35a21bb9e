package bot

import (
	"strconv"
	"strings"
)

// Callback-data grammar:
//
//	broadcast_yes | broadcast_no | event_yes:<enrollmentId> | event_no:<enrollmentId>
const (
	cbBroadcastYes = "broadcast_yes"
	cbBroadcastNo  = "broadcast_no"
	cbEventYes     = "event_yes"
	cbEventNo      = "event_no"
)

// parseCallbackData splits raw callback data into its key and payload.
// Telebot prefixes unique-style callbacks with "\f"; raw data buttons
// arrive unprefixed, both forms are accepted.
func parseCallbackData(raw string) (key, payload string) {
	raw = strings.TrimPrefix(raw, "\f")
	raw = strings.TrimPrefix(raw, "\\f")
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		return raw[:i], raw[i+1:]
	}
	return raw, ""
}

// parseEnrollmentID parses the RSVP payload; malformed values report false.
func parseEnrollmentID(payload string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// rsvpCallbackData builds the callback payload for the tier-1 keyboard.
func rsvpCallbackData(key string, enrollmentID int64) string {
	return key + ":" + strconv.FormatInt(enrollmentID, 10)
}
