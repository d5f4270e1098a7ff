package notifier

import (
	"sync"

	"github.com/sproutfin/matchback/internal/ledger"
)

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	NotifyChargeFailedFunc func(event *ledger.MatchEvent, reason string, dryRun bool) error
	NotifyRateLimitedFunc  func(recipientUserID string, count int, dryRun bool) error

	// Call records
	ChargeFailedCalls []struct {
		Event  *ledger.MatchEvent
		Reason string
	}
	RateLimitedCalls []struct {
		RecipientUserID string
		Count           int
	}
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChargeFailedCalls = nil
	m.RateLimitedCalls = nil
}

func (m *Mock) NotifyChargeFailed(event *ledger.MatchEvent, reason string, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChargeFailedCalls = append(m.ChargeFailedCalls, struct {
		Event  *ledger.MatchEvent
		Reason string
	}{event, reason})
	if m.NotifyChargeFailedFunc != nil {
		return m.NotifyChargeFailedFunc(event, reason, dryRun)
	}
	return nil
}

func (m *Mock) NotifyRateLimited(recipientUserID string, count int, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RateLimitedCalls = append(m.RateLimitedCalls, struct {
		RecipientUserID string
		Count           int
	}{recipientUserID, count})
	if m.NotifyRateLimitedFunc != nil {
		return m.NotifyRateLimitedFunc(recipientUserID, count, dryRun)
	}
	return nil
}
