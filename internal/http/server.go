package http

import (
	"net/http"

	"github.com/sproutfin/matchback/internal/config"
	"github.com/sproutfin/matchback/internal/ledger"
	"github.com/sproutfin/matchback/internal/metrics"
	"github.com/sproutfin/matchback/internal/processor"
	"github.com/sproutfin/matchback/internal/pubsub"
	"github.com/sproutfin/matchback/internal/rules"
)

func NewServer(ruleStore rules.RuleStore, ledgerStore ledger.LedgerStore, metricsSvc metrics.Metrics, metricsStore metrics.MetricsStore, metricsHandler http.Handler, cfg config.Config, proc processor.MatchProcessor, ps pubsub.PubSubClient) *Server {
	server := &Server{
		Rules:          ruleStore,
		Ledger:         ledgerStore,
		Metrics:        metricsSvc,
		MetricsStore:   metricsStore,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Processor:      proc,
		Router:         http.NewServeMux(),
		pubsub:         ps,
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// This makes it easy to add more middlewares in the future, like an authentication middleware.
	// e.g. Chain(s.MyHandler(), paramsMiddleware, authMiddleware)
	s.Router.Handle("/metrics", s.MetricsHandler)
	s.Router.Handle("/health", Chain(s.HealthCheckHandler(), paramsMiddleware))
	s.Router.Handle("/clear", Chain(s.ClearStoreHandler(), paramsMiddleware))
	s.Router.Handle("/process", Chain(s.ProcessSaveHandler(), paramsMiddleware, tracingMiddleware))
	s.Router.Handle("/rules", Chain(s.RulesHandler(), paramsMiddleware))
	s.Router.Handle("/rules/status", Chain(s.RuleStatusHandler(), paramsMiddleware))
	s.Router.Handle("/sponsors", Chain(s.UpsertSponsorHandler(), paramsMiddleware))
	s.Router.Handle("/events", Chain(s.ListEventsHandler(), paramsMiddleware))
	s.Router.Handle("/stats", Chain(s.StatsHandler(), paramsMiddleware))
	s.Router.Handle("/retry-pending", Chain(s.RetryPendingHandler(), paramsMiddleware, tracingMiddleware))
	s.Router.Handle("/pubsub/retry-charge", Chain(s.RetryChargeHandler(), paramsMiddleware))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
