package memory

import "fmt"

func errEventNotFound(id int64) error {
	return fmt.Errorf("events: event %d not found", id)
}

func errUnknownTier(tier int) error {
	return fmt.Errorf("enrollments: unknown tier %d", tier)
}
