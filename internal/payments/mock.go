package payments

import (
	"context"
	"sync"
)

// MockGateway is a mock implementation of the Gateway interface for
// testing. It is safe for concurrent use.
type MockGateway struct {
	mu sync.Mutex

	// Spy for method calls
	ChargeOffSessionFunc func(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)

	// Call records
	ChargeOffSessionCalls []ChargeRequest
}

// NewMock creates a new mock Gateway.
func NewMock() *MockGateway {
	return &MockGateway{}
}

// Reset clears all call records.
func (m *MockGateway) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChargeOffSessionCalls = nil
}

func (m *MockGateway) ChargeOffSession(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChargeOffSessionCalls = append(m.ChargeOffSessionCalls, req)
	if m.ChargeOffSessionFunc != nil {
		return m.ChargeOffSessionFunc(ctx, req)
	}
	return &ChargeResponse{Reference: "ch_mock", Status: "succeeded"}, nil
}
