// Package nats implements the NATS side of the bridge. Mapping entries use
// MQTT-style topic names throughout; this package converts them to NATS
// subjects at the wire boundary.
package nats

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"mqtt-nats-bridge/config"
	"mqtt-nats-bridge/internal/endpoint"
	"mqtt-nats-bridge/internal/logger"
	"mqtt-nats-bridge/internal/metrics"
)

const domainName = "nats"

// Domain implements endpoint.Domain for NATS
type Domain struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
	cfg     *config.NATSConfig

	conn ConnectionManager

	// live subscriptions by topic. Several mappings may share a source
	// topic; the topic carries a handler set and the server-level
	// subscription is held until the last holder releases it.
	subs      map[string]*subscriptionState
	nextSubID uint64
	mu        sync.RWMutex
}

type subscriptionState struct {
	sub      *nats.Subscription
	handlers map[uint64]endpoint.Handler
}

// Connect creates the NATS domain and establishes the initial connection
func Connect(cfg *config.NATSConfig, log *logger.Logger, metricsService *metrics.Metrics) (*Domain, error) {
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
	d.mu.Lock()
	for topic, state := range d.subs {
		if err := state.sub.Unsubscribe(); err != nil {
			d.logger.Error("failed to unsubscribe from topic",
				"topic", topic,
				"error", err)
		}
	}
	d.subs = make(map[string]*subscriptionState)
	d.mu.Unlock()

	d.conn.Disconnect()
}

// ValidateTopic implements endpoint.Domain. The topic is given in MQTT
// format and must convert to a valid concrete NATS subject.
func (d *Domain) ValidateTopic(topic string) error {
	return validateSubject(ToNATSSubject(topic))
}

// safeMetricsUpdate safely updates metrics if they are enabled
func (d *Domain) safeMetricsUpdate(fn func(*metrics.Metrics)) {
	if d.metrics != nil {
		fn(d.metrics)
	}
}
