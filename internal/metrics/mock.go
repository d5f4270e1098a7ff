package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                  sync.Mutex
	savesProcessed      int
	matchEventsCreated  int
	chargesSucceeded    int
	chargesFailed       int
	rateLimited         int
	opsNotifSent        int
	opsNotifFailed      int
	processingDurations []float64
	startupTime         float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		processingDurations: make([]float64, 0),
	}
}

func (m *Mock) IncSavesProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savesProcessed++
}

func (m *Mock) IncMatchEventsCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchEventsCreated++
}

func (m *Mock) IncChargesSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chargesSucceeded++
}

func (m *Mock) IncChargesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chargesFailed++
}

func (m *Mock) IncRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited++
}

func (m *Mock) IncOpsNotifSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opsNotifSent++
}

func (m *Mock) IncOpsNotifFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opsNotifFailed++
}

func (m *Mock) ObserveProcessingDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processingDurations = append(m.processingDurations, seconds)
}

func (m *Mock) SetStartupTime(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = seconds
}

// SavesProcessed returns the number of times IncSavesProcessed was called.
func (m *Mock) SavesProcessed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savesProcessed
}

// MatchEventsCreated returns the number of times IncMatchEventsCreated was called.
func (m *Mock) MatchEventsCreated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchEventsCreated
}

// ChargesSucceeded returns the number of times IncChargesSucceeded was called.
func (m *Mock) ChargesSucceeded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chargesSucceeded
}

// ChargesFailed returns the number of times IncChargesFailed was called.
func (m *Mock) ChargesFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chargesFailed
}

// RateLimited returns the number of times IncRateLimited was called.
func (m *Mock) RateLimited() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rateLimited
}

// OpsNotifSent returns the number of times IncOpsNotifSent was called.
func (m *Mock) OpsNotifSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opsNotifSent
}

// OpsNotifFailed returns the number of times IncOpsNotifFailed was called.
func (m *Mock) OpsNotifFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opsNotifFailed
}
