package ledger

import (
	"errors"
	"time"
)

// ChargeStatus tracks the single status transition a match event makes
// after its payment attempt. Events are never updated again afterwards;
// corrections are new events.
type ChargeStatus string

const (
	ChargePending   ChargeStatus = "pending"
	ChargeSucceeded ChargeStatus = "succeeded"
	ChargeFailed    ChargeStatus = "failed"
)

var (
	// ErrCapExceeded is returned when a conditional insert would push a
	// rule past its weekly cap.
	ErrCapExceeded = errors.New("ledger: weekly cap exceeded")

	// ErrDuplicateEvent is returned when a (save_event_id, match_rule_id)
	// pair already has a match event. Redelivered save events hit this.
	ErrDuplicateEvent = errors.New("ledger: match event already exists for save event and rule")

	// ErrAlreadyFinalized is returned when a charge status update targets
	// an event that is no longer pending.
	ErrAlreadyFinalized = errors.New("ledger: match event charge status already finalized")
)

// MatchEvent is one recorded attempt (and outcome) to match a single save.
type MatchEvent struct {
	ID                  string       `json:"id"`
	MatchRuleID         string       `json:"match_rule_id"`
	SaveEventID         string       `json:"save_event_id"`
	SponsorID           string       `json:"sponsor_id"`
	RecipientUserID     string       `json:"recipient_user_id"`
	OriginalAmountCents int64        `json:"original_amount_cents"`
	MatchAmountCents    int64        `json:"match_amount_cents"`
	ChargeStatus        ChargeStatus `json:"charge_status"`
	PaymentReference    string       `json:"payment_reference,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
}
