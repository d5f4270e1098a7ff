package ledger

import (
	"sync"
	"time"
)

// MockStore is a mock implementation of the LedgerStore interface for
// testing. It is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	// Spies for method calls
	InsertCappedFunc            func(event *MatchEvent, weekStart time.Time, capCentsWeekly int64) error
	WeeklyMatchedCentsFunc      func(ruleID string, weekStart time.Time) (int64, error)
	CountRecentForRecipientFunc func(recipientUserID string, since time.Time) (int, error)
	SetChargeStatusFunc         func(eventID string, status ChargeStatus, paymentReference string) error
	GetEventFunc                func(eventID string) (*MatchEvent, error)
	ListForRecipientFunc        func(recipientUserID string) ([]MatchEvent, error)
	ListPendingFunc             func() ([]MatchEvent, error)

	// Call records
	InsertCappedCalls []struct {
		Event          *MatchEvent
		WeekStart      time.Time
		CapCentsWeekly int64
	}
	WeeklyMatchedCentsCalls      []string
	CountRecentForRecipientCalls []struct {
		RecipientUserID string
		Since           time.Time
	}
	SetChargeStatusCalls []struct {
		EventID          string
		Status           ChargeStatus
		PaymentReference string
	}
	ListForRecipientCalls []string
	ListPendingCalls      int
	ClearCalls            int
}

// NewMock creates a new mock LedgerStore.
func NewMock() *MockStore {
	return &MockStore{}
}

// Reset clears all call records.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCappedCalls = nil
	m.WeeklyMatchedCentsCalls = nil
	m.CountRecentForRecipientCalls = nil
	m.SetChargeStatusCalls = nil
	m.ListForRecipientCalls = nil
	m.ListPendingCalls = 0
	m.ClearCalls = 0
}

func (m *MockStore) InsertCapped(event *MatchEvent, weekStart time.Time, capCentsWeekly int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCappedCalls = append(m.InsertCappedCalls, struct {
		Event          *MatchEvent
		WeekStart      time.Time
		CapCentsWeekly int64
	}{event, weekStart, capCentsWeekly})
	if m.InsertCappedFunc != nil {
		return m.InsertCappedFunc(event, weekStart, capCentsWeekly)
	}
	event.ChargeStatus = ChargePending
	return nil
}

func (m *MockStore) WeeklyMatchedCents(ruleID string, weekStart time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WeeklyMatchedCentsCalls = append(m.WeeklyMatchedCentsCalls, ruleID)
	if m.WeeklyMatchedCentsFunc != nil {
		return m.WeeklyMatchedCentsFunc(ruleID, weekStart)
	}
	return 0, nil
}

func (m *MockStore) CountRecentForRecipient(recipientUserID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CountRecentForRecipientCalls = append(m.CountRecentForRecipientCalls, struct {
		RecipientUserID string
		Since           time.Time
	}{recipientUserID, since})
	if m.CountRecentForRecipientFunc != nil {
		return m.CountRecentForRecipientFunc(recipientUserID, since)
	}
	return 0, nil
}

func (m *MockStore) SetChargeStatus(eventID string, status ChargeStatus, paymentReference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetChargeStatusCalls = append(m.SetChargeStatusCalls, struct {
		EventID          string
		Status           ChargeStatus
		PaymentReference string
	}{eventID, status, paymentReference})
	if m.SetChargeStatusFunc != nil {
		return m.SetChargeStatusFunc(eventID, status, paymentReference)
	}
	return nil
}

func (m *MockStore) GetEvent(eventID string) (*MatchEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetEventFunc != nil {
		return m.GetEventFunc(eventID)
	}
	return nil, nil
}

func (m *MockStore) ListForRecipient(recipientUserID string) ([]MatchEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListForRecipientCalls = append(m.ListForRecipientCalls, recipientUserID)
	if m.ListForRecipientFunc != nil {
		return m.ListForRecipientFunc(recipientUserID)
	}
	return nil, nil
}

func (m *MockStore) ListPending() ([]MatchEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListPendingCalls++
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc()
	}
	return nil, nil
}

func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
}
