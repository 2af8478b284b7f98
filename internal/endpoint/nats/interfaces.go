package nats

import (
	"github.com/nats-io/nats.go"
)

// ConnectionManager handles NATS connection lifecycle
type ConnectionManager interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	GetConnection() *nats.Conn
}
