package nats

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"mqtt-nats-bridge/internal/endpoint"
)

// subscription is one holder of a live NATS subject subscription. Holders
// sharing a topic share a single server-level subscription.
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

// Subscribe implements endpoint.Domain. QoS has no meaning for NATS and is
// ignored. Repeated subscriptions to one topic share the server-level
// subscription; received messages fan out to every registered handler.
func (d *Domain) Subscribe(topic string, qos byte, handler endpoint.Handler) (endpoint.Subscription, error) {
	if !d.conn.IsConnected() {
		return nil, fmt.Errorf("not connected to NATS server")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	state, exists := d.subs[topic]
	if !exists {
		subject := ToNATSSubject(topic)
		sub, err := d.conn.GetConnection().Subscribe(subject, d.fanOut(topic))
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
		}
		state = &subscriptionState{
			sub:      sub,
			handlers: make(map[uint64]endpoint.Handler),
		}
		d.subs[topic] = state

		d.logger.Debug("subscribed to topic",
			"topic", topic,
			"subject", subject)
	}

	d.nextSubID++
	id := d.nextSubID
	state.handlers[id] = handler

	return &subscription{domain: d, topic: topic, id: id}, nil
}

// fanOut returns the delivery callback handing a received message to every
// handler registered for the topic
func (d *Domain) fanOut(topic string) nats.MsgHandler {
	return func(msg *nats.Msg) {
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
			Topic:   ToMQTTTopic(msg.Subject),
			Payload: msg.Data,
		}
		for _, h := range handlers {
			h(m)
		}
	}
}

// unsubscribe releases one holder; the server-level subscription is removed
// with the last one
func (d *Domain) unsubscribe(topic string, id uint64) error {
	d.mu.Lock()
	state, exists := d.subs[topic]
	if !exists {
		d.mu.Unlock()
		return nil
	}
	delete(state.handlers, id)
	if len(state.handlers) > 0 {
		d.mu.Unlock()
		d.logger.Debug("released subscription holder", "topic", topic)
		return nil
	}
	delete(d.subs, topic)
	d.mu.Unlock()

	if err := state.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from topic %s: %w", topic, err)
	}

	d.logger.Debug("unsubscribed from topic", "topic", topic)
	return nil
}
