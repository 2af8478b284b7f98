package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mqtt-nats-bridge/config"
	"mqtt-nats-bridge/internal/bridge"
	"mqtt-nats-bridge/internal/logger"
	"mqtt-nats-bridge/internal/metrics"
)

func main() {
	// Command line flags for config and mappings
	configPath := flag.String("config", "config/config.json", "path to config file")
	mappingsPath := flag.String("mappings", "", "override path to mapping document (empty = use config)")

	// Optional override flags
	queueSizeOverride := flag.Int("queue-size", 0, "override channel queue size (0 = use config)")
	gracePeriodOverride := flag.Duration("grace-period", 0, "override shutdown grace period (0 = use config)")
	metricsAddrOverride := flag.String("metrics-addr", "", "override metrics server address (empty = use config)")
	metricsPathOverride := flag.String("metrics-path", "", "override metrics endpoint path (empty = use config)")
	metricsIntervalOverride := flag.Duration("metrics-interval", 0, "override metrics collection interval (0 = use config)")

	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Apply any command line overrides
	cfg.ApplyOverrides(
		*mappingsPath,
		*queueSizeOverride,
		*gracePeriodOverride,
		*metricsAddrOverride,
		*metricsPathOverride,
		*metricsIntervalOverride,
	)

	// Initialize logger
	logger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Setup metrics if enabled
	var metricsService *metrics.Metrics
	var metricsServer *http.Server

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metricsService, err = metrics.NewMetrics(reg)
		if err != nil {
			logger.Fatal("failed to create metrics service", "error", err)
		}

		// Setup metrics HTTP server
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry:          reg,
			EnableOpenMetrics: true,
		}))

		metricsServer = &http.Server{
			Addr:    cfg.Metrics.Address,
			Handler: mux,
		}

		go func() {
			logger.Info("starting metrics server",
				"address", cfg.Metrics.Address,
				"path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Setup signal handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Start the bridge
	handle, err := bridge.Open(cfg, logger, metricsService)
	if err != nil {
		logger.Fatal("failed to start bridge", "error", err)
	}

	// Periodically refresh engine gauges
	var metricsCollector *metrics.Collector
	if metricsService != nil {
		metricsCollector = metrics.NewCollector(
			metricsService,
			cfg.Metrics.UpdateIntervalDuration(),
			handle.Snapshot,
		)
		metricsCollector.Start()
		defer metricsCollector.Stop()
	}

	logger.Info("mqtt-nats-bridge started",
		"mappingsFile", cfg.Bridge.MappingsFile,
		"queueSize", cfg.Bridge.QueueSize,
		"gracePeriod", cfg.Bridge.ShutdownGracePeriod,
		"metricsEnabled", cfg.Metrics.Enabled)

	// Handle signals
	for {
		sig := <-sigChan
		switch sig {
		case syscall.SIGHUP:
			logger.Sync()
			if data, err := handle.Stats().GetStatsJSON(); err == nil {
				logger.Info("bridge stats", "stats", string(data))
			}
		case syscall.SIGINT, syscall.SIGTERM:
			logger.Info("shutting down...")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			// Shutdown metrics server if enabled
			if metricsServer != nil {
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					logger.Error("failed to shutdown metrics server", "error", err)
				}
			}

			if err := handle.Close(); err != nil {
				logger.Error("bridge shutdown incomplete", "error", err)
			}
			return
		}
	}
}
