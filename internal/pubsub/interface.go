package pubsub

// PubSubClient publishes and decodes msgpack-encoded messages.
type PubSubClient interface {
	SendMessage(topic Topic, data any) error
	ProcessMessage(data []byte, returnValue any) error
}
