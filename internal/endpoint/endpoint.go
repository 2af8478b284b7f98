// Package endpoint defines the transport surface the bridge engine consumes.
// Each messaging domain (MQTT, NATS) provides an implementation.
package endpoint

// Message is one unit of traffic received from a domain
type Message struct {
	Topic   string
	Payload []byte
}

// Handler consumes messages delivered by a subscription
type Handler func(msg Message)

// Subscription is a live topic subscription on a domain
type Subscription interface {
	// Topic returns the subscribed topic
	Topic() string

	// Unsubscribe releases the subscription handle
	Unsubscribe() error
}

// Domain is one side of the bridge: a connected pub/sub transport
type Domain interface {
	// Name returns a short identifier for the domain (e.g. "mqtt")
	Name() string

	// Subscribe registers a handler for a topic. Handlers for a single
	// subscription are invoked sequentially in arrival order.
	Subscribe(topic string, qos byte, handler Handler) (Subscription, error)

	// Publish sends a payload to a topic. QoS applies where the
	// transport supports it.
	Publish(topic string, payload []byte, qos byte) error

	// ValidateTopic checks a concrete topic name against the domain's
	// naming rules. Wildcards are rejected.
	ValidateTopic(topic string) error

	// IsConnected returns the current connection status
	IsConnected() bool

	// Close releases the underlying connection
	Close()
}
