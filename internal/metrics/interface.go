package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncSavesProcessed()
	IncMatchEventsCreated()
	IncChargesSucceeded()
	IncChargesFailed()
	IncRateLimited()
	IncOpsNotifSent()
	IncOpsNotifFailed()
	ObserveProcessingDuration(seconds float64)
	SetStartupTime(seconds float64)
}

// MetricsStore persists lifetime counters in the database, surviving
// restarts where the in-process Prometheus counters do not.
type MetricsStore interface {
	Increment(key string)
	GetAll() (map[string]int, error)
}
