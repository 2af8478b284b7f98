package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"mqtt-nats-bridge/internal/endpoint"
	"mqtt-nats-bridge/internal/logger"
	"mqtt-nats-bridge/internal/metrics"
)

// EngineConfig holds engine tuning parameters
type EngineConfig struct {
	QueueSize           int
	ShutdownGracePeriod time.Duration
}

// Engine owns the set of bridge channels. Start and Stop may be called from
// any goroutine; the channel set is guarded by a single mutex held only for
// metadata updates, never across blocking transport calls.
type Engine struct {
	a          endpoint.Domain
	b          endpoint.Domain
	converters *ConverterRegistry
	cfg        EngineConfig
	logger     *logger.Logger
	metrics    *metrics.Metrics

	channels map[string]*Channel
	driver   *Driver
	running  bool
	mu       sync.Mutex

	// lifecycle serializes Start and Stop so channel startup can happen
	// outside e.mu without racing a concurrent Stop
	lifecycle sync.Mutex
}

// NewEngine creates an engine bridging domains a and b
func NewEngine(a, b endpoint.Domain, converters *ConverterRegistry, cfg EngineConfig, log *logger.Logger, metricsService *metrics.Metrics) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.ShutdownGracePeriod <= 0 {
		cfg.ShutdownGracePeriod = 5 * time.Second
	}

	return &Engine{
		a:          a,
		b:          b,
		converters: converters,
		cfg:        cfg,
		logger:     log,
		metrics:    metricsService,
		channels:   make(map[string]*Channel),
	}
}

// Start creates and starts one channel per mapping entry. Channel startup
// is partial-failure: a channel that cannot start is left Failed while the
// others run. The returned error aggregates the failed mappings and is
// non-nil even when the engine keeps running; callers inspect Health for
// the authoritative per-channel view.
func (e *Engine) Start(entries []MappingEntry) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.running = true

	driver := NewDriver(e.logger)
	channels := make([]*Channel, 0, len(entries))
	e.driver = driver
	e.channels = make(map[string]*Channel, len(entries))
	for _, entry := range entries {
		ch := newChannel(entry, e.a, e.b, e.converters, e.cfg.QueueSize, e.logger, e.metrics)
		e.channels[entry.Key()] = ch
		channels = append(channels, ch)
	}
	e.mu.Unlock()

	// channel startup issues broker subscribes that can block; it runs
	// outside e.mu so Health and Snapshot stay responsive
	var startErrs []error
	for _, ch := range channels {
		if err := ch.Start(driver); err != nil {
			startErrs = append(startErrs, fmt.Errorf("%s: %w", ch.entry.Key(), err))
		}
	}

	e.mu.Lock()
	e.updateChannelGauges()
	e.mu.Unlock()

	e.logger.Info("bridge engine started",
		"channels", len(entries),
		"failed", len(startErrs))

	return errors.Join(startErrs...)
}

// Stop transitions every channel to Stopped and joins the workers within
// the grace period. Idempotent; a second call is a no-op. After Stop
// returns no message callback fires, or ErrShutdownTimeout reports the
// workers that were abandoned.
func (e *Engine) Stop() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	driver := e.driver
	channels := make([]*Channel, 0, len(e.channels))
	for _, ch := range e.channels {
		channels = append(channels, ch)
	}
	e.mu.Unlock()

	for _, ch := range channels {
		ch.beginStop()
	}

	err := driver.Stop(e.cfg.ShutdownGracePeriod)

	for _, ch := range channels {
		ch.finishStop()
	}

	e.mu.Lock()
	e.updateChannelGauges()
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("bridge engine stopped with timeout", "error", err)
		return err
	}

	e.logger.Info("bridge engine stopped")
	return nil
}

// Health returns a read-only snapshot of every channel keyed by mapping
func (e *Engine) Health() map[string]ChannelHealth {
	e.mu.Lock()
	channels := make(map[string]*Channel, len(e.channels))
	for key, ch := range e.channels {
		channels[key] = ch
	}
	e.mu.Unlock()

	health := make(map[string]ChannelHealth, len(channels))
	for key, ch := range channels {
		health[key] = ch.Health()
	}
	return health
}

// Snapshot samples engine gauges for the metrics collector
func (e *Engine) Snapshot() metrics.Snapshot {
	var snap metrics.Snapshot
	for _, h := range e.Health() {
		switch h.State {
		case ChannelStateRunning:
			snap.ChannelsActive++
		case ChannelStateFailed:
			snap.ChannelsFailed++
		}
	}

	e.mu.Lock()
	for _, ch := range e.channels {
		snap.QueueDepth += float64(ch.queueDepth())
	}
	e.mu.Unlock()

	return snap
}

// TotalStats aggregates relay counters across all channels
func (e *Engine) TotalStats() ChannelStats {
	var total ChannelStats
	for _, h := range e.Health() {
		total.Received += h.Stats.Received
		total.Relayed += h.Stats.Relayed
		total.ConversionErrors += h.Stats.ConversionErrors
		total.PublishErrors += h.Stats.PublishErrors
	}
	return total
}

// updateChannelGauges refreshes the channel gauges; callers hold e.mu
func (e *Engine) updateChannelGauges() {
	if e.metrics == nil {
		return
	}

	var active, failed float64
	for _, ch := range e.channels {
		switch ch.State() {
		case ChannelStateRunning:
			active++
		case ChannelStateFailed:
			failed++
		}
	}
	e.metrics.SetChannelsActive(active)
	e.metrics.SetChannelsFailed(failed)
}
