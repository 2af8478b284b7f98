package mqtt

import (
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"mqtt-nats-bridge/config"
	"mqtt-nats-bridge/internal/logger"
)

// MockToken implements mqtt.Token for testing
type MockToken struct {
	err  error
	done chan struct{}
}

func NewMockToken() *MockToken {
	return &MockToken{
		done: make(chan struct{}),
	}
}

func NewMockTokenWithError(err error) *MockToken {
	return &MockToken{
		err:  err,
		done: make(chan struct{}),
	}
}

func (t *MockToken) Wait() bool                       { return true }
func (t *MockToken) WaitTimeout(d time.Duration) bool { return true }
func (t *MockToken) Error() error                     { return t.err }
func (t *MockToken) Done() <-chan struct{}            { return t.done }

// MockClient implements mqtt.Client for testing
type MockClient struct {
	connected       atomic.Bool
	publishFunc     func(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	subscribeFunc   func(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	unsubscribeFunc func(topics ...string) mqtt.Token
	mu              sync.RWMutex
}

func NewMockClient() *MockClient {
	m := &MockClient{
		publishFunc: func(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
			return NewMockToken()
		},
		subscribeFunc: func(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
			return NewMockToken()
		},
		unsubscribeFunc: func(topics ...string) mqtt.Token {
			return NewMockToken()
		},
	}
	m.connected.Store(true)
	return m
}

func (m *MockClient) Connect() mqtt.Token      { return NewMockToken() }
func (m *MockClient) Disconnect(quiesce uint)  {}
func (m *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return m.publishFunc(topic, qos, retained, payload)
}
func (m *MockClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return m.subscribeFunc(topic, qos, callback)
}
func (m *MockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return NewMockToken()
}
func (m *MockClient) Unsubscribe(topics ...string) mqtt.Token {
	return m.unsubscribeFunc(topics...)
}
func (m *MockClient) AddRoute(topic string, callback mqtt.MessageHandler) {}
func (m *MockClient) IsConnected() bool                                   { return m.connected.Load() }
func (m *MockClient) IsConnectionOpen() bool                              { return true }
func (m *MockClient) OptionsReader() mqtt.ClientOptionsReader             { return mqtt.ClientOptionsReader{} }

// MockMessage implements mqtt.Message for testing
type MockMessage struct {
	topic   string
	payload []byte
}

func (m *MockMessage) Duplicate() bool   { return false }
func (m *MockMessage) Qos() byte         { return 0 }
func (m *MockMessage) Retained() bool    { return false }
func (m *MockMessage) Topic() string     { return m.topic }
func (m *MockMessage) MessageID() uint16 { return 0 }
func (m *MockMessage) Payload() []byte   { return m.payload }
func (m *MockMessage) Ack()              {}

func newTestLogger() *logger.Logger {
	log, _ := logger.NewLogger(&config.LogConfig{
		Level:      "error",
		OutputPath: "stdout",
		Encoding:   "json",
	})
	return log
}

func newTestDomain(client mqtt.Client) *Domain {
	cfg := &config.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "test-client",
	}
	d := NewDomainWithConnection(cfg, newTestLogger(), nil, nil)
	d.conn = NewConnectionManagerWithClient(d, client)
	return d
}
