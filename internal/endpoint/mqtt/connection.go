package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"mqtt-nats-bridge/internal/metrics"
)

// ConnectionManagerImpl handles MQTT connection lifecycle
type ConnectionManagerImpl struct {
	domain    *Domain
	client    mqtt.Client
	connected atomic.Bool
}

// NewConnectionManager creates a new MQTT connection manager
func NewConnectionManager(domain *Domain) (ConnectionManager, error) {
	cm := &ConnectionManagerImpl{
		domain: domain,
	}

	clientID := domain.cfg.ClientID
	if clientID == "" {
		clientID = "mqtt-nats-bridge-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(domain.cfg.Broker).
		SetClientID(clientID).
		SetUsername(domain.cfg.Username).
		SetPassword(domain.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute) // Prevent exponential backoff from growing too large

	// Set up connection handlers
	opts.OnConnect = cm.handleConnect
	opts.OnConnectionLost = cm.handleDisconnect
	opts.OnReconnecting = cm.handleReconnecting

	// Configure TLS if enabled
	if domain.cfg.TLS.Enable {
		tlsConfig, err := cm.newTLSConfig(
			domain.cfg.TLS.CertFile,
			domain.cfg.TLS.KeyFile,
			domain.cfg.TLS.CAFile,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	cm.client = mqtt.NewClient(opts)

	// Establish initial connection
	if token := cm.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", token.Error())
	}

	return cm, nil
}

// NewConnectionManagerWithClient creates a connection manager with a provided client (for testing)
func NewConnectionManagerWithClient(domain *Domain, client mqtt.Client) ConnectionManager {
	cm := &ConnectionManagerImpl{
		domain: domain,
		client: client,
	}
	cm.connected.Store(true)
	return cm
}

// Connect establishes connection to the MQTT broker
func (cm *ConnectionManagerImpl) Connect() error {
	if token := cm.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to broker: %w", token.Error())
	}
	return nil
}

// Disconnect cleanly disconnects from the MQTT broker
func (cm *ConnectionManagerImpl) Disconnect() {
	cm.domain.logger.Info("disconnecting from mqtt broker")
	cm.client.Disconnect(250)
	cm.connected.Store(false)
}

// IsConnected returns current connection status
func (cm *ConnectionManagerImpl) IsConnected() bool {
	return cm.connected.Load()
}

// GetClient returns the MQTT client instance
func (cm *ConnectionManagerImpl) GetClient() mqtt.Client {
	return cm.client
}

// handleConnect processes successful connections and restores subscriptions
func (cm *ConnectionManagerImpl) handleConnect(client mqtt.Client) {
	cm.domain.logger.Info("mqtt client connected", "broker", cm.domain.cfg.Broker)
	cm.connected.Store(true)

	cm.domain.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetConnectionStatus(domainName, true)
	})

	if err := cm.domain.resubscribeAll(); err != nil {
		cm.domain.logger.Error("failed to resubscribe after reconnect",
			"error", err)
	}
}

// handleDisconnect processes connection loss
func (cm *ConnectionManagerImpl) handleDisconnect(client mqtt.Client, err error) {
	cm.domain.logger.Error("mqtt connection lost", "error", err)
	cm.connected.Store(false)

	cm.domain.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetConnectionStatus(domainName, false)
	})
}

// handleReconnecting processes reconnection attempts
func (cm *ConnectionManagerImpl) handleReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	cm.domain.logger.Info("mqtt client reconnecting",
		"broker", opts.Servers[0])

	cm.domain.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.IncReconnects(domainName)
	})
}

// newTLSConfig creates a new TLS configuration
func (cm *ConnectionManagerImpl) newTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caCertPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
