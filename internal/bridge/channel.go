package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"

	"mqtt-nats-bridge/internal/endpoint"
	"mqtt-nats-bridge/internal/logger"
	"mqtt-nats-bridge/internal/metrics"
)

// Channel is the runtime instance of one mapping entry. It owns the live
// subscription and publisher handles for that mapping and is exclusively
// managed by the engine.
type Channel struct {
	entry      MappingEntry
	a          endpoint.Domain
	b          endpoint.Domain
	converters *ConverterRegistry
	queueSize  int
	logger     *logger.Logger
	metrics    *metrics.Metrics

	flows []*flow
	stats ChannelStats

	state   ChannelState
	lastErr error
	mu      sync.RWMutex
}

// flow relays one direction of a mapping: messages received on sourceTopic
// are converted and published to destTopic. Each flow has its own queue and
// pump worker, so delivery within a flow is FIFO while flows interleave
// freely.
type flow struct {
	channel     *Channel
	source      endpoint.Domain
	dest        endpoint.Domain
	sourceTopic string
	destTopic   string
	convert     Converter
	sub         endpoint.Subscription
	queue       chan endpoint.Message
}

func newChannel(entry MappingEntry, a, b endpoint.Domain, converters *ConverterRegistry, queueSize int, log *logger.Logger, metricsService *metrics.Metrics) *Channel {
	return &Channel{
		entry:      entry,
		a:          a,
		b:          b,
		converters: converters,
		queueSize:  queueSize,
		logger:     log,
		metrics:    metricsService,
		state:      ChannelStateIdle,
	}
}

// Start acquires transport handles and begins relaying. A missing converter
// or subscription failure leaves the channel Failed without affecting other
// channels.
func (c *Channel) Start(driver *Driver) error {
	c.setState(ChannelStateStarting)

	flows, err := c.buildFlows()
	if err != nil {
		c.fail(err)
		return err
	}

	for _, f := range flows {
		sub, err := f.source.Subscribe(f.sourceTopic, c.entry.QoS, c.enqueue(f, driver.Done()))
		if err != nil {
			c.releaseFlows(flows)
			failErr := fmt.Errorf("failed to subscribe on %s: %w", f.source.Name(), err)
			c.fail(failErr)
			return failErr
		}
		f.sub = sub
	}

	c.mu.Lock()
	c.flows = flows
	c.mu.Unlock()

	for _, f := range flows {
		driver.Go(f.pump)
	}

	c.setState(ChannelStateRunning)

	c.logger.Info("bridge channel started",
		"mapping", c.entry.Key(),
		"flows", len(flows))

	return nil
}

// buildFlows resolves the converter for each relay direction. Every active
// channel is guaranteed a registered converter for its type pair; the
// channel cannot start otherwise.
func (c *Channel) buildFlows() ([]*flow, error) {
	var flows []*flow

	if c.entry.Direction == DirectionForward || c.entry.Direction == DirectionBoth {
		conv, ok := c.converters.Lookup(c.entry.SourceType, c.entry.DestType)
		if !ok {
			return nil, fmt.Errorf("%w: (%s, %s)", ErrUnsupportedType, c.entry.SourceType, c.entry.DestType)
		}
		flows = append(flows, &flow{
			channel:     c,
			source:      c.a,
			dest:        c.b,
			sourceTopic: c.entry.SourceTopic,
			destTopic:   c.entry.DestTopic,
			convert:     conv,
			queue:       make(chan endpoint.Message, c.queueSize),
		})
	}

	if c.entry.Direction == DirectionReverse || c.entry.Direction == DirectionBoth {
		conv, ok := c.converters.Lookup(c.entry.DestType, c.entry.SourceType)
		if !ok {
			return nil, fmt.Errorf("%w: (%s, %s)", ErrUnsupportedType, c.entry.DestType, c.entry.SourceType)
		}
		flows = append(flows, &flow{
			channel:     c,
			source:      c.b,
			dest:        c.a,
			sourceTopic: c.entry.DestTopic,
			destTopic:   c.entry.SourceTopic,
			convert:     conv,
			queue:       make(chan endpoint.Message, c.queueSize),
		})
	}

	return flows, nil
}

// enqueue returns the subscription handler feeding a flow's queue. A full
// queue applies backpressure to the transport callback; cancellation
// unblocks it.
func (c *Channel) enqueue(f *flow, done <-chan struct{}) endpoint.Handler {
	return func(msg endpoint.Message) {
		atomic.AddUint64(&c.stats.Received, 1)
		c.safeMetricsUpdate(func(m *metrics.Metrics) {
			m.IncMessagesTotal("received")
		})

		select {
		case f.queue <- msg:
		case <-done:
		}
	}
}

// pump is the flow's worker loop. It suspends only on the queue receive and
// returns at the next wait boundary after cancellation.
func (f *flow) pump(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-f.queue:
			f.relay(msg)
		}
	}
}

// relay converts one message and publishes it to the destination domain.
// Failures drop the message and bump counters; they never terminate the
// channel.
func (f *flow) relay(msg endpoint.Message) {
	c := f.channel

	converted, err := f.convert(msg.Payload)
	if err != nil {
		atomic.AddUint64(&c.stats.ConversionErrors, 1)
		c.safeMetricsUpdate(func(m *metrics.Metrics) {
			m.IncConversionErrors()
			m.IncMessagesTotal("dropped")
		})
		c.logger.Error("conversion failed, dropping message",
			"mapping", c.entry.Key(),
			"topic", msg.Topic,
			"error", err)
		return
	}

	if err := f.dest.Publish(f.destTopic, converted, c.entry.QoS); err != nil {
		atomic.AddUint64(&c.stats.PublishErrors, 1)
		c.safeMetricsUpdate(func(m *metrics.Metrics) {
			m.IncMessagesTotal("error")
		})
		c.logger.Error("publish failed, dropping message",
			"mapping", c.entry.Key(),
			"topic", f.destTopic,
			"error", err)
		return
	}

	atomic.AddUint64(&c.stats.Relayed, 1)
	c.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.IncMessagesTotal("relayed")
	})
}

// beginStop releases the channel's subscription handles so no further
// messages arrive. Pump workers are joined by the driver afterwards.
func (c *Channel) beginStop() {
	c.mu.Lock()
	if c.state != ChannelStateRunning && c.state != ChannelStateStarting {
		c.mu.Unlock()
		return
	}
	c.state = ChannelStateStopping
	flows := c.flows
	c.mu.Unlock()

	c.releaseFlows(flows)
}

// finishStop marks the channel stopped once its workers have exited
func (c *Channel) finishStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ChannelStateStopping {
		c.state = ChannelStateStopped
	}
}

func (c *Channel) releaseFlows(flows []*flow) {
	for _, f := range flows {
		if f.sub == nil {
			continue
		}
		if err := f.sub.Unsubscribe(); err != nil {
			c.logger.Error("failed to unsubscribe",
				"mapping", c.entry.Key(),
				"topic", f.sourceTopic,
				"error", err)
		}
		f.sub = nil
	}
}

func (c *Channel) fail(err error) {
	c.mu.Lock()
	c.state = ChannelStateFailed
	c.lastErr = err
	c.mu.Unlock()

	c.logger.Error("bridge channel failed to start",
		"mapping", c.entry.Key(),
		"error", err)
}

func (c *Channel) setState(state ChannelState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// State returns the channel's current lifecycle state
func (c *Channel) State() ChannelState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Health returns a read-only snapshot of the channel's condition
func (c *Channel) Health() ChannelHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return ChannelHealth{
		Entry:     c.entry,
		State:     c.state,
		LastError: c.lastErr,
		Stats: ChannelStats{
			Received:         atomic.LoadUint64(&c.stats.Received),
			Relayed:          atomic.LoadUint64(&c.stats.Relayed),
			ConversionErrors: atomic.LoadUint64(&c.stats.ConversionErrors),
			PublishErrors:    atomic.LoadUint64(&c.stats.PublishErrors),
		},
	}
}

// queueDepth reports messages buffered across the channel's flows
func (c *Channel) queueDepth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	depth := 0
	for _, f := range c.flows {
		depth += len(f.queue)
	}
	return depth
}

func (c *Channel) safeMetricsUpdate(fn func(*metrics.Metrics)) {
	if c.metrics != nil {
		fn(c.metrics)
	}
}
