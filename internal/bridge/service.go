package bridge

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"mqtt-nats-bridge/config"
	"mqtt-nats-bridge/internal/endpoint"
	mqttdomain "mqtt-nats-bridge/internal/endpoint/mqtt"
	natsdomain "mqtt-nats-bridge/internal/endpoint/nats"
	"mqtt-nats-bridge/internal/logger"
	"mqtt-nats-bridge/internal/metrics"
	"mqtt-nats-bridge/internal/stats"
)

// Handle is a running bridge returned to the embedding host. The host
// owns calling Close at its own lifecycle boundary.
type Handle struct {
	engine *Engine
	a      endpoint.Domain
	b      endpoint.Domain
	stats  *stats.StatsCollector
	logger *logger.Logger

	closed bool
	mu     sync.Mutex
}

var runtimeOnce sync.Once

// openMu guards the single-instance slot. One live handle per process; a
// second Open is rejected until the first handle is closed.
var (
	openMu     sync.Mutex
	openActive bool
)

func acquireOpen() error {
	openMu.Lock()
	defer openMu.Unlock()
	if openActive {
		return ErrAlreadyOpen
	}
	openActive = true
	return nil
}

func releaseOpen() {
	openMu.Lock()
	openActive = false
	openMu.Unlock()
}

// pahoLogAdapter routes the paho client's package-level logging through the
// bridge logger
type pahoLogAdapter struct {
	logger *logger.Logger
	level  string
}

func (a *pahoLogAdapter) Println(v ...interface{}) {
	a.log(fmt.Sprintln(v...))
}

func (a *pahoLogAdapter) Printf(format string, v ...interface{}) {
	a.log(fmt.Sprintf(format, v...))
}

func (a *pahoLogAdapter) log(msg string) {
	if a.level == "error" {
		a.logger.Error("mqtt client", "msg", msg)
	} else {
		a.logger.Debug("mqtt client", "msg", msg)
	}
}

// ensureRuntime performs process-wide messaging runtime setup exactly once.
// Repeated Open calls check but never reinitialize it.
func ensureRuntime(log *logger.Logger) {
	runtimeOnce.Do(func() {
		pahomqtt.ERROR = &pahoLogAdapter{logger: log, level: "error"}
		pahomqtt.CRITICAL = &pahoLogAdapter{logger: log, level: "error"}
		pahomqtt.WARN = &pahoLogAdapter{logger: log, level: "debug"}
	})
}

// Open loads the mapping document, connects both domains and starts the
// engine. Configuration problems (missing document, parse failure, invalid
// mappings) fail Open synchronously; individual channel failures do not,
// and are observable through Health. A process hosts at most one live
// bridge: Open fails with ErrAlreadyOpen until the handle is closed.
func Open(cfg *config.Config, log *logger.Logger, metricsService *metrics.Metrics) (*Handle, error) {
	if err := acquireOpen(); err != nil {
		return nil, err
	}
	opened := false
	defer func() {
		if !opened {
			releaseOpen()
		}
	}()

	ensureRuntime(log)

	registry := NewRegistry(log)
	doc, err := registry.LoadFile(cfg.Bridge.MappingsFile)
	if err != nil {
		return nil, err
	}

	converters := NewConverterRegistry(log)
	if err := converters.RegisterDefaults(); err != nil {
		return nil, fmt.Errorf("failed to register default converters: %w", err)
	}
	for _, conv := range doc.Conversions {
		if err := converters.RegisterFieldMap(conv); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
	}

	a, err := mqttdomain.Connect(&cfg.MQTT, log, metricsService)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mqtt domain: %w", err)
	}

	b, err := natsdomain.Connect(&cfg.NATS, log, metricsService)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect nats domain: %w", err)
	}

	entries, err := registry.Validate(doc.Mappings, a, b)
	if err != nil {
		a.Close()
		b.Close()
		return nil, err
	}

	engine := NewEngine(a, b, converters, EngineConfig{
		QueueSize:           cfg.Bridge.QueueSize,
		ShutdownGracePeriod: cfg.Bridge.GracePeriod(),
	}, log, metricsService)

	if err := engine.Start(entries); err != nil {
		// Partial failure: healthy channels keep running.
		log.Error("some bridge channels failed to start", "error", err)
	}

	opened = true
	return &Handle{
		engine: engine,
		a:      a,
		b:      b,
		stats:  stats.NewStatsCollector(),
		logger: log,
	}, nil
}

// Health returns the engine's per-channel health snapshot
func (h *Handle) Health() map[string]ChannelHealth {
	return h.engine.Health()
}

// Snapshot samples engine gauges and refreshes the stats collector
func (h *Handle) Snapshot() metrics.Snapshot {
	total := h.engine.TotalStats()
	h.stats.Update(total.Received, total.Relayed, total.ConversionErrors, total.PublishErrors)
	return h.engine.Snapshot()
}

// Stats returns the bridge-wide stats collector
func (h *Handle) Stats() *stats.StatsCollector {
	return h.stats
}

// Close stops the engine and releases both domain connections. Idempotent;
// ErrShutdownTimeout is reported when workers had to be abandoned, with
// best-effort cleanup still performed.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	err := h.engine.Stop()

	h.a.Close()
	h.b.Close()

	releaseOpen()

	return err
}
