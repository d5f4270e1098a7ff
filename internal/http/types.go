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

type Server struct {
	Rules          rules.RuleStore
	Ledger         ledger.LedgerStore
	Metrics        metrics.Metrics
	MetricsStore   metrics.MetricsStore
	MetricsHandler http.Handler
	Cfg            config.Config
	Processor      processor.MatchProcessor
	Router         *http.ServeMux
	pubsub         pubsub.PubSubClient
}
