package pubsub

import "cloud.google.com/go/pubsub"

type client struct {
	client   *pubsub.Client
	teardown func()
}

// Topic names the destinations messages are published to.
type Topic string

const (
	// TopicAuditEvents receives structured audit records, one per
	// successful charge.
	TopicAuditEvents Topic = "audit-events"

	// TopicConvertBTC receives succeeded BTC-rule match events for the
	// downstream conversion pipeline.
	TopicConvertBTC Topic = "convert-btc"

	// TopicRetryCharge carries pending match events back to the service
	// for a scheduled charge retry.
	TopicRetryCharge Topic = "retry-charge"
)
