package notifier

import (
	"github.com/sproutfin/matchback/internal/ledger"
)

// Notifier defines a high-level interface for sending operational alerts.
// This decouples the rest of the application from the specific notification provider (e.g., Slack).
type Notifier interface {
	// NotifyChargeFailed alerts the ops channel that a sponsor charge was declined.
	NotifyChargeFailed(event *ledger.MatchEvent, reason string, dryRun bool) error
	// NotifyRateLimited alerts the ops channel that a recipient tripped the burst limit.
	NotifyRateLimited(recipientUserID string, count int, dryRun bool) error
}
