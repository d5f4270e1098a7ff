package rules

import (
	"sync"
)

// MockStore is a mock implementation of the RuleStore interface for testing.
// It is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	// Spies for method calls
	CreateRuleFunc     func(rule *MatchRule) error
	GetRuleFunc        func(ruleID string) (*MatchRule, error)
	GetActiveRulesFunc func(recipientUserID string) ([]MatchRule, error)
	ListRulesFunc      func(recipientUserID string) ([]MatchRule, error)
	SetRuleStatusFunc  func(ruleID string, status RuleStatus) error
	UpsertSponsorFunc  func(sponsor Sponsor) error
	GetSponsorFunc     func(sponsorID string) (*Sponsor, error)

	// Call records
	CreateRuleCalls     []*MatchRule
	GetActiveRulesCalls []string
	ListRulesCalls      []string
	SetRuleStatusCalls  []struct {
		RuleID string
		Status RuleStatus
	}
	UpsertSponsorCalls []Sponsor
	GetSponsorCalls    []string
	ClearCalls         int
}

// NewMock creates a new mock RuleStore.
func NewMock() *MockStore {
	return &MockStore{}
}

// Reset clears all call records.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateRuleCalls = nil
	m.GetActiveRulesCalls = nil
	m.ListRulesCalls = nil
	m.SetRuleStatusCalls = nil
	m.UpsertSponsorCalls = nil
	m.GetSponsorCalls = nil
	m.ClearCalls = 0
}

func (m *MockStore) CreateRule(rule *MatchRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateRuleCalls = append(m.CreateRuleCalls, rule)
	if m.CreateRuleFunc != nil {
		return m.CreateRuleFunc(rule)
	}
	return nil
}

func (m *MockStore) GetRule(ruleID string) (*MatchRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetRuleFunc != nil {
		return m.GetRuleFunc(ruleID)
	}
	return nil, nil
}

func (m *MockStore) GetActiveRules(recipientUserID string) ([]MatchRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetActiveRulesCalls = append(m.GetActiveRulesCalls, recipientUserID)
	if m.GetActiveRulesFunc != nil {
		return m.GetActiveRulesFunc(recipientUserID)
	}
	return nil, nil
}

func (m *MockStore) ListRules(recipientUserID string) ([]MatchRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListRulesCalls = append(m.ListRulesCalls, recipientUserID)
	if m.ListRulesFunc != nil {
		return m.ListRulesFunc(recipientUserID)
	}
	return nil, nil
}

func (m *MockStore) SetRuleStatus(ruleID string, status RuleStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetRuleStatusCalls = append(m.SetRuleStatusCalls, struct {
		RuleID string
		Status RuleStatus
	}{ruleID, status})
	if m.SetRuleStatusFunc != nil {
		return m.SetRuleStatusFunc(ruleID, status)
	}
	return nil
}

func (m *MockStore) UpsertSponsor(sponsor Sponsor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertSponsorCalls = append(m.UpsertSponsorCalls, sponsor)
	if m.UpsertSponsorFunc != nil {
		return m.UpsertSponsorFunc(sponsor)
	}
	return nil
}

func (m *MockStore) GetSponsor(sponsorID string) (*Sponsor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetSponsorCalls = append(m.GetSponsorCalls, sponsorID)
	if m.GetSponsorFunc != nil {
		return m.GetSponsorFunc(sponsorID)
	}
	return &Sponsor{ID: sponsorID}, nil
}

func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
}
