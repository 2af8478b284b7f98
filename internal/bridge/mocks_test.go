package bridge

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"mqtt-nats-bridge/config"
	"mqtt-nats-bridge/internal/endpoint"
	"mqtt-nats-bridge/internal/logger"
)

// memDomain is an in-memory pub/sub transport for testing. Delivery is
// synchronous, so arrival order matches send order.
type memDomain struct {
	name         string
	handlers     map[string][]endpoint.Handler
	published    map[string][][]byte
	subscribeErr error
	publishErr   error
	// subscribeGate, when set, blocks Subscribe until closed
	subscribeGate chan struct{}
	mu            sync.Mutex
}

func newMemDomain(name string) *memDomain {
	return &memDomain{
		name:      name,
		handlers:  make(map[string][]endpoint.Handler),
		published: make(map[string][][]byte),
	}
}

func (d *memDomain) Name() string { return d.name }

func (d *memDomain) Subscribe(topic string, qos byte, handler endpoint.Handler) (endpoint.Subscription, error) {
	d.mu.Lock()
	gate := d.subscribeGate
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.subscribeErr != nil {
		return nil, d.subscribeErr
	}

	d.handlers[topic] = append(d.handlers[topic], handler)
	return &memSubscription{domain: d, topic: topic}, nil
}

func (d *memDomain) Publish(topic string, payload []byte, qos byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.publishErr != nil {
		return d.publishErr
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	d.published[topic] = append(d.published[topic], buf)
	return nil
}

func (d *memDomain) ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if strings.ContainsAny(topic, "+#*>") {
		return fmt.Errorf("wildcards not allowed")
	}
	return nil
}

func (d *memDomain) IsConnected() bool { return true }

func (d *memDomain) Close() {}

// Send injects a message as if it arrived from the transport
func (d *memDomain) Send(topic string, payload []byte) {
	d.mu.Lock()
	handlers := append([]endpoint.Handler(nil), d.handlers[topic]...)
	d.mu.Unlock()

	for _, h := range handlers {
		h(endpoint.Message{Topic: topic, Payload: payload})
	}
}

// Published returns a copy of everything published to a topic
func (d *memDomain) Published(topic string) [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.published[topic]...)
}

// SubscriberCount returns the number of live handlers for a topic
func (d *memDomain) SubscriberCount(topic string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers[topic])
}

type memSubscription struct {
	domain *memDomain
	topic  string
}

func (s *memSubscription) Topic() string { return s.topic }

func (s *memSubscription) Unsubscribe() error {
	s.domain.mu.Lock()
	defer s.domain.mu.Unlock()
	delete(s.domain.handlers, s.topic)
	return nil
}

func setupTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.NewLogger(&config.LogConfig{
		Level:      "error",
		OutputPath: "stdout",
		Encoding:   "console",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func setupTestConverters(t *testing.T) *ConverterRegistry {
	t.Helper()

	converters := NewConverterRegistry(setupTestLogger(t))
	if err := converters.RegisterDefaults(); err != nil {
		t.Fatalf("Failed to register default converters: %v", err)
	}
	return converters
}

// waitFor polls a condition until it holds or the timeout elapses
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
