package nats

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"mqtt-nats-bridge/internal/metrics"
)

// ConnectionManagerImpl implements ConnectionManager for NATS
type ConnectionManagerImpl struct {
	domain    *Domain
	conn      *nats.Conn
	connected atomic.Bool
}

// NewConnectionManager creates a new NATS connection manager
func NewConnectionManager(domain *Domain) (ConnectionManager, error) {
	cm := &ConnectionManagerImpl{
		domain: domain,
	}

	if err := cm.Connect(); err != nil {
		return nil, err
	}

	return cm, nil
}

// Connect establishes connection to the NATS server
func (cm *ConnectionManagerImpl) Connect() error {
	if len(cm.domain.cfg.URLs) == 0 {
		return fmt.Errorf("no NATS server URLs provided")
	}

	clientID := cm.domain.cfg.ClientID
	if clientID == "" {
		clientID = "mqtt-nats-bridge-" + uuid.NewString()[:8]
	}

	opts := []nats.Option{
		nats.Name(clientID),
		nats.ReconnectWait(time.Second * 2),
		nats.MaxReconnects(-1), // Unlimited reconnects
		nats.DisconnectErrHandler(cm.handleDisconnect),
		nats.ReconnectHandler(cm.handleReconnect),
		nats.ClosedHandler(cm.handleClosed),
	}

	// Add authentication if configured
	if cm.domain.cfg.Username != "" {
		opts = append(opts, nats.UserInfo(
			cm.domain.cfg.Username,
			cm.domain.cfg.Password))
	}

	// Configure TLS if enabled
	if cm.domain.cfg.TLS.Enable {
		opts = append(opts, nats.ClientCert(
			cm.domain.cfg.TLS.CertFile,
			cm.domain.cfg.TLS.KeyFile,
		))

		if cm.domain.cfg.TLS.CAFile != "" {
			opts = append(opts, nats.RootCAs(cm.domain.cfg.TLS.CAFile))
		}
	}

	cm.domain.logger.Info("connecting to NATS server", "urls", cm.domain.cfg.URLs)

	var err error
	cm.conn, err = nats.Connect(cm.domain.cfg.URLs[0], opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS server: %w", err)
	}

	cm.connected.Store(true)

	cm.domain.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetConnectionStatus(domainName, true)
	})

	cm.domain.logger.Info("connected to NATS server", "url", cm.conn.ConnectedUrl())

	return nil
}

// Disconnect cleanly disconnects from the NATS server
func (cm *ConnectionManagerImpl) Disconnect() {
	if cm.conn != nil {
		cm.domain.logger.Info("disconnecting from NATS server")
		cm.conn.Close()
		cm.connected.Store(false)
	}
}

// IsConnected returns the current connection status
func (cm *ConnectionManagerImpl) IsConnected() bool {
	return cm.conn != nil && cm.conn.IsConnected() && cm.connected.Load()
}

// GetConnection returns the NATS connection
func (cm *ConnectionManagerImpl) GetConnection() *nats.Conn {
	return cm.conn
}

// NATS connection event handlers

func (cm *ConnectionManagerImpl) handleDisconnect(conn *nats.Conn, err error) {
	cm.domain.logger.Error("disconnected from NATS server", "error", err)
	cm.connected.Store(false)

	cm.domain.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetConnectionStatus(domainName, false)
	})
}

func (cm *ConnectionManagerImpl) handleReconnect(conn *nats.Conn) {
	// The client library restores subscriptions itself after a reconnect.
	cm.domain.logger.Info("reconnected to NATS server", "url", conn.ConnectedUrl())
	cm.connected.Store(true)

	cm.domain.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetConnectionStatus(domainName, true)
		m.IncReconnects(domainName)
	})
}

func (cm *ConnectionManagerImpl) handleClosed(conn *nats.Conn) {
	cm.domain.logger.Warn("NATS connection closed")
	cm.connected.Store(false)

	cm.domain.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetConnectionStatus(domainName, false)
	})
}
