package audit

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/sproutfin/matchback/internal/pubsub"
)

// ChargeEvent is the structured audit record emitted for every
// successful off-session charge.
type ChargeEvent struct {
	MatchEventID     string    `json:"match_event_id" msgpack:"match_event_id"`
	RuleID           string    `json:"rule_id" msgpack:"rule_id"`
	UserID           string    `json:"user_id" msgpack:"user_id"`
	AmountCents      int64     `json:"amount_cents" msgpack:"amount_cents"`
	PaymentReference string    `json:"payment_reference" msgpack:"payment_reference"`
	OccurredAt       time.Time `json:"occurred_at" msgpack:"occurred_at"`
}

// Sink receives audit events. Delivery is best effort: a sink failure is
// logged but never fails the charge that triggered it.
type Sink interface {
	RecordChargeSucceeded(event ChargeEvent)
}

type sink struct {
	pubsub pubsub.PubSubClient
}

// New creates a Sink that publishes audit events to the audit topic.
func New(ps pubsub.PubSubClient) Sink {
	return &sink{pubsub: ps}
}

func (s *sink) RecordChargeSucceeded(event ChargeEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := s.pubsub.SendMessage(pubsub.TopicAuditEvents, event); err != nil {
		log.Error("Failed to publish audit event", "error", err, "matchEventID", event.MatchEventID)
	}
}
