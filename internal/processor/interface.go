package processor

import "context"

// MatchProcessor defines the operations exposed to the HTTP layer and
// the scheduled retry function.
type MatchProcessor interface {
	// ProcessSave matches one save event against the recipient's active
	// rules. Returns *ValidationError or *RateLimitError for call-level
	// rejections; per-rule failures are reported inside the Result.
	ProcessSave(ctx context.Context, save SaveEvent, dryRun bool) (*Result, error)

	// RetryPending re-attempts charges for match events still pending,
	// typically because the sponsor had no payment method at match time.
	RetryPending(ctx context.Context, dryRun bool) (*RetryResult, error)

	// RetryCharge re-attempts the charge for a single pending match
	// event. Used by the pub/sub retry subscription.
	RetryCharge(ctx context.Context, matchEventID string, dryRun bool) (*RuleOutcome, error)
}
