// Package bridge implements the engine relaying messages between two
// pub/sub domains according to a declarative mapping document.
package bridge

import (
	"fmt"
)

// Direction indicates which way a mapping relays messages. Domain A is the
// MQTT side, domain B the NATS side in the shipped configuration.
type Direction string

const (
	// DirectionForward relays messages from domain A to domain B
	DirectionForward Direction = "forward"
	// DirectionReverse relays messages from domain B to domain A
	DirectionReverse Direction = "reverse"
	// DirectionBoth relays messages in both directions
	DirectionBoth Direction = "both"
)

// Valid reports whether the direction is one of the known values
func (d Direction) Valid() bool {
	switch d {
	case DirectionForward, DirectionReverse, DirectionBoth:
		return true
	}
	return false
}

// MappingEntry is one declarative topic relay rule. Entries are immutable
// once loaded.
type MappingEntry struct {
	SourceTopic string    `yaml:"sourceTopic" json:"sourceTopic"`
	DestTopic   string    `yaml:"destTopic" json:"destTopic"`
	SourceType  string    `yaml:"sourceType" json:"sourceType"`
	DestType    string    `yaml:"destType" json:"destType"`
	Direction   Direction `yaml:"direction" json:"direction"`
	QoS         byte      `yaml:"qos" json:"qos"`
}

// Key uniquely identifies a mapping by (source, dest, direction)
func (m MappingEntry) Key() string {
	return fmt.Sprintf("%s->%s[%s]", m.SourceTopic, m.DestTopic, m.Direction)
}

// ChannelState represents the lifecycle state of a bridge channel
type ChannelState string

const (
	// ChannelStateIdle indicates the channel has not been started
	ChannelStateIdle ChannelState = "idle"
	// ChannelStateStarting indicates transport handles are being acquired
	ChannelStateStarting ChannelState = "starting"
	// ChannelStateRunning indicates messages are flowing
	ChannelStateRunning ChannelState = "running"
	// ChannelStateStopping indicates handles are being released
	ChannelStateStopping ChannelState = "stopping"
	// ChannelStateStopped indicates the channel has shut down
	ChannelStateStopped ChannelState = "stopped"
	// ChannelStateFailed indicates the channel could not be started
	ChannelStateFailed ChannelState = "failed"
)

// ChannelStats holds per-channel relay counters
type ChannelStats struct {
	Received         uint64
	Relayed          uint64
	ConversionErrors uint64
	PublishErrors    uint64
}

// ChannelHealth is a read-only snapshot of one channel's condition
type ChannelHealth struct {
	Entry     MappingEntry
	State     ChannelState
	LastError error
	Stats     ChannelStats
}
