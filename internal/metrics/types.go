package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service holds all the Prometheus metrics for the application.
// By defining them all in one place, we ensure consistency in naming and labeling.
type Service struct {
	SavesProcessed     prometheus.Counter
	MatchEventsCreated prometheus.Counter
	ChargesSucceeded   prometheus.Counter
	ChargesFailed      prometheus.Counter
	RateLimited        prometheus.Counter
	OpsNotifSent       prometheus.Counter
	OpsNotifFailed     prometheus.Counter
	ProcessingDuration prometheus.Histogram
	StartupTimeSeconds prometheus.Gauge
}
