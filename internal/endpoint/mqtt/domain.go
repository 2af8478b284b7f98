// Package mqtt implements the MQTT side of the bridge on top of the
// eclipse paho client.
package mqtt

import (
	"fmt"
	"sync"

	"mqtt-nats-bridge/config"
	"mqtt-nats-bridge/internal/endpoint"
	"mqtt-nats-bridge/internal/logger"
	"mqtt-nats-bridge/internal/metrics"
)

const domainName = "mqtt"

// Domain implements endpoint.Domain for MQTT
type Domain struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
	cfg     *config.MQTTConfig

	conn ConnectionManager

	// live subscriptions by topic, kept for resubscription after
	// reconnect. Several mappings may share a source topic; the topic
	// carries a handler set and the broker-level subscription is held
	// until the last holder releases it.
	subs      map[string]*subscriptionState
	nextSubID uint64
	mu        sync.RWMutex
}

type subscriptionState struct {
	qos      byte
	handlers map[uint64]endpoint.Handler
}

// Connect creates the MQTT domain and establishes the initial connection
func Connect(cfg *config.MQTTConfig, log *logger.Logger, metricsService *metrics.Metrics) (*Domain, error) {
	d := &Domain{
		logger:  log,
		metrics: metricsService,
		cfg:     cfg,
		subs:    make(map[string]*subscriptionState),
	}

	var err error
	d.conn, err = NewConnectionManager(d)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}

	return d, nil
}

// NewDomainWithConnection creates a domain around an existing connection manager (for testing)
func NewDomainWithConnection(cfg *config.MQTTConfig, log *logger.Logger, metricsService *metrics.Metrics, conn ConnectionManager) *Domain {
	return &Domain{
		logger:  log,
		metrics: metricsService,
		cfg:     cfg,
		subs:    make(map[string]*subscriptionState),
		conn:    conn,
	}
}

// Name implements endpoint.Domain
func (d *Domain) Name() string {
	return domainName
}

// IsConnected implements endpoint.Domain
func (d *Domain) IsConnected() bool {
	return d.conn.IsConnected()
}

// Close implements endpoint.Domain
func (d *Domain) Close() {
	d.conn.Disconnect()
}

// ValidateTopic implements endpoint.Domain. Mapping entries name concrete
// topics, so wildcards are rejected alongside malformed names.
func (d *Domain) ValidateTopic(topic string) error {
	return validateTopicName(topic)
}

// safeMetricsUpdate safely updates metrics if they are enabled
func (d *Domain) safeMetricsUpdate(fn func(*metrics.Metrics)) {
	if d.metrics != nil {
		fn(d.metrics)
	}
}
