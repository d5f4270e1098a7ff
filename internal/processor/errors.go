package processor

import "fmt"

// ValidationError means the input was malformed. The call is rejected
// before any store write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// RateLimitError means the recipient tripped the burst guard. The call
// is rejected whole; the caller should back off.
type RateLimitError struct {
	RecipientUserID string
	Count           int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for recipient %s: %d match events in the last minute", e.RecipientUserID, e.Count)
}
