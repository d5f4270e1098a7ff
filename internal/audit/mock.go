package audit

import "sync"

// MockSink records audit events for assertions in tests. It is safe for
// concurrent use.
type MockSink struct {
	mu sync.Mutex

	// Call records
	RecordChargeSucceededCalls []ChargeEvent
}

// NewMock creates a new mock Sink.
func NewMock() *MockSink {
	return &MockSink{}
}

// Reset clears all call records.
func (m *MockSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordChargeSucceededCalls = nil
}

func (m *MockSink) RecordChargeSucceeded(event ChargeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordChargeSucceededCalls = append(m.RecordChargeSucceededCalls, event)
}
