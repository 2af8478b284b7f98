package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	MQTT    MQTTConfig    `json:"mqtt"`
	NATS    NATSConfig    `json:"nats"`
	Logging LogConfig     `json:"logging"`
	Metrics MetricsConfig `json:"metrics"`
	Bridge  BridgeConfig  `json:"bridge"`
}

type TLSConfig struct {
	Enable   bool   `json:"enable"`
	CertFile string `json:"certFile"`
	KeyFile  string `json:"keyFile"`
	CAFile   string `json:"caFile"`
}

type MQTTConfig struct {
	Broker   string    `json:"broker"`
	ClientID string    `json:"clientId"`
	Username string    `json:"username"`
	Password string    `json:"password"`
	TLS      TLSConfig `json:"tls"`
}

type NATSConfig struct {
	URLs     []string  `json:"urls"`
	ClientID string    `json:"clientId"`
	Username string    `json:"username"`
	Password string    `json:"password"`
	TLS      TLSConfig `json:"tls"`
}

type LogConfig struct {
	Level      string `json:"level"`      // debug, info, warn, error
	OutputPath string `json:"outputPath"` // file path or "stdout"
	Encoding   string `json:"encoding"`   // json or console
	MaxSize    int    `json:"maxSize"`    // megabytes before rotation
	MaxAge     int    `json:"maxAge"`     // days to retain rotated files
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled        bool   `json:"enabled"`
	Address        string `json:"address"`
	Path           string `json:"path"`
	UpdateInterval string `json:"updateInterval"` // Duration string
}

type BridgeConfig struct {
	MappingsFile        string `json:"mappingsFile"`
	QueueSize           int    `json:"queueSize"`
	ShutdownGracePeriod string `json:"shutdownGracePeriod"` // Duration string
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults for logging
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.OutputPath == "" {
		config.Logging.OutputPath = "stdout"
	}
	if config.Logging.Encoding == "" {
		config.Logging.Encoding = "json"
	}
	if config.Logging.MaxSize <= 0 {
		config.Logging.MaxSize = 100
	}

	// Set defaults for metrics
	if config.Metrics.Address == "" {
		config.Metrics.Address = ":2112"
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	if config.Metrics.UpdateInterval == "" {
		config.Metrics.UpdateInterval = "15s"
	}

	// Set defaults for the bridge
	if config.Bridge.MappingsFile == "" {
		config.Bridge.MappingsFile = "mappings.yaml"
	}
	if config.Bridge.QueueSize <= 0 {
		config.Bridge.QueueSize = 1000
	}
	if config.Bridge.ShutdownGracePeriod == "" {
		config.Bridge.ShutdownGracePeriod = "5s"
	}

	// Validate the configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config) error {
	// Validate MQTT config
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker address is required")
	}
	if err := validateTLS("mqtt", &cfg.MQTT.TLS); err != nil {
		return err
	}

	// Validate NATS config
	if len(cfg.NATS.URLs) == 0 {
		return fmt.Errorf("at least one nats server url is required")
	}
	if err := validateTLS("nats", &cfg.NATS.TLS); err != nil {
		return err
	}

	// Validate logging config
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	// Validate metrics config
	if cfg.Metrics.Enabled {
		if _, err := time.ParseDuration(cfg.Metrics.UpdateInterval); err != nil {
			return fmt.Errorf("invalid metrics update interval: %w", err)
		}
	}

	// Validate bridge config
	if cfg.Bridge.QueueSize < 1 {
		return fmt.Errorf("queue size must be greater than 0")
	}
	grace, err := time.ParseDuration(cfg.Bridge.ShutdownGracePeriod)
	if err != nil {
		return fmt.Errorf("invalid shutdown grace period: %w", err)
	}
	if grace <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}

	return nil
}

func validateTLS(name string, tls *TLSConfig) error {
	if !tls.Enable {
		return nil
	}
	if tls.CertFile == "" {
		return fmt.Errorf("%s tls cert file is required when tls is enabled", name)
	}
	if tls.KeyFile == "" {
		return fmt.Errorf("%s tls key file is required when tls is enabled", name)
	}
	if tls.CAFile == "" {
		return fmt.Errorf("%s tls ca file is required when tls is enabled", name)
	}
	return nil
}

// GracePeriod returns the parsed shutdown grace period. Call after Load has
// validated the configuration.
func (b *BridgeConfig) GracePeriod() time.Duration {
	grace, err := time.ParseDuration(b.ShutdownGracePeriod)
	if err != nil {
		return 5 * time.Second
	}
	return grace
}

// UpdateIntervalDuration returns the parsed metrics update interval.
func (m *MetricsConfig) UpdateIntervalDuration() time.Duration {
	interval, err := time.ParseDuration(m.UpdateInterval)
	if err != nil {
		return 15 * time.Second
	}
	return interval
}

// ApplyOverrides applies command line flag overrides to the configuration
func (c *Config) ApplyOverrides(mappingsFile string, queueSize int, gracePeriod time.Duration, metricsAddr, metricsPath string, metricsInterval time.Duration) {
	if mappingsFile != "" {
		c.Bridge.MappingsFile = mappingsFile
	}
	if queueSize > 0 {
		c.Bridge.QueueSize = queueSize
	}
	if gracePeriod > 0 {
		c.Bridge.ShutdownGracePeriod = gracePeriod.String()
	}
	if metricsAddr != "" {
		c.Metrics.Address = metricsAddr
	}
	if metricsPath != "" {
		c.Metrics.Path = metricsPath
	}
	if metricsInterval > 0 {
		c.Metrics.UpdateInterval = metricsInterval.String()
	}
}
