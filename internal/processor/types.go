package processor

import (
	"time"

	"github.com/sproutfin/matchback/internal/audit"
	"github.com/sproutfin/matchback/internal/ledger"
	"github.com/sproutfin/matchback/internal/metrics"
	"github.com/sproutfin/matchback/internal/notifier"
	"github.com/sproutfin/matchback/internal/payments"
	"github.com/sproutfin/matchback/internal/pubsub"
	"github.com/sproutfin/matchback/internal/rules"
)

// rateLimitThreshold is the number of match events a single recipient
// may accumulate in the trailing minute before further calls are
// rejected. Protects the payment gateway from runaway upstream retries.
const rateLimitThreshold = 10

// rateLimitWindow is the trailing wall-clock window for the abuse guard.
const rateLimitWindow = 60 * time.Second

// SaveEvent is the input to a single processing call: user X saved N
// cents. Supplied by the upstream event source, immutable.
type SaveEvent struct {
	SaveEventID     string `json:"save_event_id"`
	RecipientUserID string `json:"user_id"`
	AmountCents     int64  `json:"amount_cents"`
}

// OutcomeStatus is the per-rule result of a processing call.
type OutcomeStatus string

const (
	// OutcomeSkippedNoCap means the rule's weekly cap is exhausted, so
	// no ledger entry was made and no charge attempted.
	OutcomeSkippedNoCap OutcomeStatus = "skipped_no_cap"
	// OutcomeDuplicate means this save event was already matched against
	// this rule by an earlier delivery.
	OutcomeDuplicate OutcomeStatus = "duplicate"
	// OutcomeCreatedPending means a match event was recorded but no
	// charge was attempted because the sponsor has no payment method.
	OutcomeCreatedPending OutcomeStatus = "created_pending"
	// OutcomeSucceeded means the sponsor was charged.
	OutcomeSucceeded OutcomeStatus = "succeeded"
	// OutcomeFailed means the charge was attempted and declined or errored.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeError means processing this rule failed before a charge
	// could be decided. Other rules are unaffected.
	OutcomeError OutcomeStatus = "error"
)

// RuleOutcome reports what happened for one rule.
type RuleOutcome struct {
	RuleID           string        `json:"rule_id"`
	Status           OutcomeStatus `json:"status"`
	MatchEventID     string        `json:"match_event_id,omitempty"`
	MatchAmountCents int64         `json:"match_amount_cents,omitempty"`
	Reason           string        `json:"reason,omitempty"`
}

// Result summarizes a full processing call. Per-rule failures live in
// Outcomes; they never fail the call itself.
type Result struct {
	SaveEventID     string        `json:"save_event_id"`
	RecipientUserID string        `json:"recipient_user_id"`
	Outcomes        []RuleOutcome `json:"outcomes"`
}

// RetryResult summarizes one sweep over pending match events.
type RetryResult struct {
	Attempted       int `json:"attempted"`
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
	NoPaymentMethod int `json:"no_payment_method"`
}

// Processor handles the business logic of matching save events.
type Processor struct {
	rules    rules.RuleStore
	ledger   ledger.LedgerStore
	gateway  payments.Gateway
	notifier notifier.Notifier
	audit    audit.Sink
	pubsub   pubsub.PubSubClient
	metrics  metrics.Metrics

	// now is swapped out in tests to pin the clock.
	now func() time.Time
}
