package ledger

import "time"

// LedgerStore defines the durable operations on match events.
type LedgerStore interface {
	// InsertCapped appends a pending match event, re-validating the weekly
	// cap for the rule in the same statement. Returns ErrCapExceeded when
	// the insert would push the rule past capCentsWeekly for the week
	// starting at weekStart, and ErrDuplicateEvent when the save event was
	// already matched against this rule.
	InsertCapped(event *MatchEvent, weekStart time.Time, capCentsWeekly int64) error

	// WeeklyMatchedCents sums match amounts recorded for a rule since weekStart.
	WeeklyMatchedCents(ruleID string, weekStart time.Time) (int64, error)

	// CountRecentForRecipient counts match events created for a recipient
	// since the given instant. Backs the abuse guard.
	CountRecentForRecipient(recipientUserID string, since time.Time) (int, error)

	// SetChargeStatus transitions a pending event to succeeded or failed.
	SetChargeStatus(eventID string, status ChargeStatus, paymentReference string) error

	GetEvent(eventID string) (*MatchEvent, error)
	ListForRecipient(recipientUserID string) ([]MatchEvent, error)
	ListPending() ([]MatchEvent, error)
	Clear()
}
