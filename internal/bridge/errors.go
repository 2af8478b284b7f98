package bridge

import (
	"errors"
	"fmt"
)

// Configuration-time errors, surfaced synchronously to the caller.
var (
	// ErrDuplicateMapping reports a repeated (source, dest, direction) triple
	ErrDuplicateMapping = errors.New("duplicate mapping")
	// ErrInvalidTopicName reports a topic that violates a domain's naming rules
	ErrInvalidTopicName = errors.New("invalid topic name")
	// ErrResourceNotFound reports a missing or irregular mapping document
	ErrResourceNotFound = errors.New("mapping document not found")
	// ErrParse reports an unreadable mapping document
	ErrParse = errors.New("failed to parse mapping document")
)

// Channel-level and shutdown errors.
var (
	// ErrUnsupportedType reports a type pair with no registered converter
	ErrUnsupportedType = errors.New("no converter registered for type pair")
	// ErrShutdownTimeout reports workers that did not exit within the grace period
	ErrShutdownTimeout = errors.New("shutdown grace period exceeded")
	// ErrAlreadyStarted reports a second Start without an intervening Stop
	ErrAlreadyStarted = errors.New("engine already started")
	// ErrAlreadyOpen reports a second Open while a handle is still live
	ErrAlreadyOpen = errors.New("bridge already open")
)

// MappingError describes why a single mapping entry was rejected
type MappingError struct {
	Index int
	Entry MappingEntry
	Err   error
}

// Error implements the error interface
func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %d (%s): %v", e.Index, e.Entry.Key(), e.Err)
}

// Unwrap exposes the underlying sentinel for errors.Is checks
func (e *MappingError) Unwrap() error {
	return e.Err
}
