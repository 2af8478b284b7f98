package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"mqtt-nats-bridge/internal/endpoint"
)

const tokenTimeout = 5 * time.Second

// subscription is one holder of a live MQTT topic subscription. Holders
// sharing a topic share a single broker-level subscription.
type subscription struct {
	domain *Domain
	topic  string
	id     uint64
}

// Topic implements endpoint.Subscription
func (s *subscription) Topic() string {
	return s.topic
}

// Unsubscribe implements endpoint.Subscription
func (s *subscription) Unsubscribe() error {
	return s.domain.unsubscribe(s.topic, s.id)
}

// Subscribe implements endpoint.Domain. Repeated subscriptions to one topic
// share the broker-level subscription; received messages fan out to every
// registered handler.
func (d *Domain) Subscribe(topic string, qos byte, handler endpoint.Handler) (endpoint.Subscription, error) {
	if !d.conn.IsConnected() {
		return nil, fmt.Errorf("not connected to broker")
	}

	d.mu.RLock()
	state, exists := d.subs[topic]
	needsBroker := !exists || qos > state.qos
	d.mu.RUnlock()

	if needsBroker {
		// First holder for the topic, or a later holder raising the qos
		token := d.conn.GetClient().Subscribe(topic, qos, d.fanOut(topic))
		if !token.WaitTimeout(tokenTimeout) {
			return nil, fmt.Errorf("subscription timeout for topic %s", topic)
		}
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
		}
	}

	d.mu.Lock()
	state, exists = d.subs[topic]
	if !exists {
		state = &subscriptionState{qos: qos, handlers: make(map[uint64]endpoint.Handler)}
		d.subs[topic] = state
	} else if qos > state.qos {
		state.qos = qos
	}
	d.nextSubID++
	id := d.nextSubID
	state.handlers[id] = handler
	holders := len(state.handlers)
	d.mu.Unlock()

	d.logger.Debug("subscribed to topic",
		"topic", topic,
		"qos", qos,
		"holders", holders)

	return &subscription{domain: d, topic: topic, id: id}, nil
}

// fanOut returns the broker callback delivering a received message to every
// handler registered for the topic
func (d *Domain) fanOut(topic string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		d.mu.RLock()
		var handlers []endpoint.Handler
		if state, ok := d.subs[topic]; ok {
			handlers = make([]endpoint.Handler, 0, len(state.handlers))
			for _, h := range state.handlers {
				handlers = append(handlers, h)
			}
		}
		d.mu.RUnlock()

		m := endpoint.Message{
			Topic:   msg.Topic(),
			Payload: msg.Payload(),
		}
		for _, h := range handlers {
			h(m)
		}
	}
}

// unsubscribe releases one holder; the broker-level subscription is removed
// with the last one
func (d *Domain) unsubscribe(topic string, id uint64) error {
	d.mu.Lock()
	state, exists := d.subs[topic]
	if !exists {
		d.mu.Unlock()
		return nil
	}
	delete(state.handlers, id)
	last := len(state.handlers) == 0
	if last {
		delete(d.subs, topic)
	}
	d.mu.Unlock()

	if !last {
		d.logger.Debug("released subscription holder", "topic", topic)
		return nil
	}

	if !d.conn.IsConnected() {
		// Connection already gone; local state is dropped so a reconnect
		// does not restore the subscription.
		return nil
	}

	token := d.conn.GetClient().Unsubscribe(topic)
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("unsubscribe timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to unsubscribe from topic %s: %w", topic, err)
	}

	d.logger.Debug("unsubscribed from topic", "topic", topic)
	return nil
}

// resubscribeAll restores every tracked subscription after a reconnect
func (d *Domain) resubscribeAll() error {
	d.mu.RLock()
	topics := make(map[string]byte, len(d.subs))
	for topic, state := range d.subs {
		topics[topic] = state.qos
	}
	d.mu.RUnlock()

	for topic, qos := range topics {
		token := d.conn.GetClient().Subscribe(topic, qos, d.fanOut(topic))
		if !token.WaitTimeout(tokenTimeout) {
			return fmt.Errorf("resubscribe timeout for topic %s", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to resubscribe to topic %s: %w", topic, err)
		}
		d.logger.Debug("resubscribed to topic", "topic", topic)
	}

	if len(topics) > 0 {
		d.logger.Info("restored mqtt subscriptions", "count", len(topics))
	}
	return nil
}
