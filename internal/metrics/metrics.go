// Package metrics exposes prometheus instrumentation for the bridge.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all prometheus collectors for the bridge
type Metrics struct {
	messagesTotal         *prometheus.CounterVec
	conversionErrorsTotal prometheus.Counter
	publishErrorsTotal    prometheus.Counter
	channelsActive        prometheus.Gauge
	channelsFailed        prometheus.Gauge
	connectionStatus      *prometheus.GaugeVec
	reconnectsTotal       *prometheus.CounterVec
	queueDepth            prometheus.Gauge
}

// NewMetrics creates and registers all bridge metrics
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_messages_total",
				Help: "Total number of messages handled by the bridge, by result",
			},
			[]string{"result"},
		),
		conversionErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_conversion_errors_total",
				Help: "Total number of payload conversion failures",
			},
		),
		publishErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_publish_errors_total",
				Help: "Total number of publish failures on the destination domain",
			},
		),
		channelsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_channels_active",
				Help: "Number of bridge channels currently running",
			},
		),
		channelsFailed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_channels_failed",
				Help: "Number of bridge channels in failed state",
			},
		),
		connectionStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bridge_connection_status",
				Help: "Connection status per messaging domain (1 connected, 0 disconnected)",
			},
			[]string{"domain"},
		),
		reconnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_reconnects_total",
				Help: "Total number of reconnection attempts per messaging domain",
			},
			[]string{"domain"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_queue_depth",
				Help: "Buffered messages waiting in channel queues",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.messagesTotal,
		m.conversionErrorsTotal,
		m.publishErrorsTotal,
		m.channelsActive,
		m.channelsFailed,
		m.connectionStatus,
		m.reconnectsTotal,
		m.queueDepth,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// IncMessagesTotal increments the message counter for a result
// (received, relayed, dropped, error)
func (m *Metrics) IncMessagesTotal(result string) {
	m.messagesTotal.WithLabelValues(result).Inc()
}

// IncConversionErrors increments the conversion failure counter
func (m *Metrics) IncConversionErrors() {
	m.conversionErrorsTotal.Inc()
}

// IncPublishErrors increments the publish failure counter
func (m *Metrics) IncPublishErrors() {
	m.publishErrorsTotal.Inc()
}

// SetChannelsActive sets the number of running channels
func (m *Metrics) SetChannelsActive(n float64) {
	m.channelsActive.Set(n)
}

// SetChannelsFailed sets the number of failed channels
func (m *Metrics) SetChannelsFailed(n float64) {
	m.channelsFailed.Set(n)
}

// SetConnectionStatus records the connection state of a messaging domain
func (m *Metrics) SetConnectionStatus(domain string, connected bool) {
	if connected {
		m.connectionStatus.WithLabelValues(domain).Set(1)
	} else {
		m.connectionStatus.WithLabelValues(domain).Set(0)
	}
}

// IncReconnects increments the reconnect counter for a messaging domain
func (m *Metrics) IncReconnects(domain string) {
	m.reconnectsTotal.WithLabelValues(domain).Inc()
}

// SetMessageQueueDepth sets the buffered queue depth gauge
func (m *Metrics) SetMessageQueueDepth(v float64) {
	m.queueDepth.Set(v)
}

// Snapshot carries gauge values sampled from the engine by the Collector.
type Snapshot struct {
	ChannelsActive float64
	ChannelsFailed float64
	QueueDepth     float64
}

// Collector periodically refreshes engine-level gauges
type Collector struct {
	metrics  *Metrics
	interval time.Duration
	source   func() Snapshot
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a collector that samples the given source on each tick
func NewCollector(m *Metrics, interval time.Duration, source func() Snapshot) *Collector {
	return &Collector{
		metrics:  m,
		interval: interval,
		source:   source,
		done:     make(chan struct{}),
	}
}

// Start begins periodic collection
func (c *Collector) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				c.collect()
			}
		}
	}()
}

// Stop halts periodic collection
func (c *Collector) Stop() {
	close(c.done)
	c.wg.Wait()
}

func (c *Collector) collect() {
	snap := c.source()
	c.metrics.SetChannelsActive(snap.ChannelsActive)
	c.metrics.SetChannelsFailed(snap.ChannelsFailed)
	c.metrics.SetMessageQueueDepth(snap.QueueDepth)
}
