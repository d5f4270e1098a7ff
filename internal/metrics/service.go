package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		SavesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchback_saves_processed_total",
			Help: "The total number of save events processed.",
		}),
		MatchEventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchback_match_events_created_total",
			Help: "The total number of match events written to the ledger.",
		}),
		ChargesSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchback_charges_succeeded_total",
			Help: "The total number of off-session charges that succeeded.",
		}),
		ChargesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchback_charges_failed_total",
			Help: "The total number of off-session charges that were declined or errored.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchback_rate_limited_total",
			Help: "The total number of save events rejected by the abuse guard.",
		}),
		OpsNotifSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchback_ops_notifications_sent_total",
			Help: "The total number of ops notifications successfully sent.",
		}),
		OpsNotifFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchback_ops_notifications_failed_total",
			Help: "The total number of ops notifications that failed to send.",
		}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchback_save_processing_duration_seconds",
			Help:    "The duration of individual save event processing.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchback_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.SavesProcessed,
		s.MatchEventsCreated,
		s.ChargesSucceeded,
		s.ChargesFailed,
		s.RateLimited,
		s.OpsNotifSent,
		s.OpsNotifFailed,
		s.ProcessingDuration,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncSavesProcessed() {
	s.SavesProcessed.Inc()
}

func (s *Service) IncMatchEventsCreated() {
	s.MatchEventsCreated.Inc()
}

func (s *Service) IncChargesSucceeded() {
	s.ChargesSucceeded.Inc()
}

func (s *Service) IncChargesFailed() {
	s.ChargesFailed.Inc()
}

func (s *Service) IncRateLimited() {
	s.RateLimited.Inc()
}

func (s *Service) IncOpsNotifSent() {
	s.OpsNotifSent.Inc()
}

func (s *Service) IncOpsNotifFailed() {
	s.OpsNotifFailed.Inc()
}

func (s *Service) ObserveProcessingDuration(seconds float64) {
	s.ProcessingDuration.Observe(seconds)
}

func (s *Service) SetStartupTime(seconds float64) {
	s.StartupTimeSeconds.Set(seconds)
}
