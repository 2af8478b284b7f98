package bridge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mqtt-nats-bridge/config"
)

func serviceTestConfig(mappingsFile string) *config.Config {
	return &config.Config{
		MQTT: config.MQTTConfig{Broker: "tcp://localhost:1883"},
		NATS: config.NATSConfig{URLs: []string{"nats://localhost:4222"}},
		Bridge: config.BridgeConfig{
			MappingsFile:        mappingsFile,
			QueueSize:           100,
			ShutdownGracePeriod: "1s",
		},
	}
}

func TestOpenSingleInstance(t *testing.T) {
	if err := acquireOpen(); err != nil {
		t.Fatalf("acquireOpen() error = %v", err)
	}
	if err := acquireOpen(); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("second acquireOpen() error = %v, want ErrAlreadyOpen", err)
	}

	// Open rejects outright while the slot is held, before any connection
	// attempt.
	_, err := Open(serviceTestConfig("unused.yaml"), setupTestLogger(t), nil)
	if !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("Open() error = %v, want ErrAlreadyOpen", err)
	}

	releaseOpen()
	if err := acquireOpen(); err != nil {
		t.Errorf("acquireOpen() after release error = %v", err)
	}
	releaseOpen()
}

func TestOpenFailureReleasesSlot(t *testing.T) {
	cfg := serviceTestConfig(filepath.Join(t.TempDir(), "nope.yaml"))

	// A failed Open must not leave the slot held.
	if _, err := Open(cfg, setupTestLogger(t), nil); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("Open() error = %v, want ErrResourceNotFound", err)
	}
	if _, err := Open(cfg, setupTestLogger(t), nil); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("second Open() error = %v, want ErrResourceNotFound", err)
	}
}

func TestOpenMissingMappings(t *testing.T) {
	cfg := serviceTestConfig(filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Open(cfg, setupTestLogger(t), nil)
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("Open() error = %v, want ErrResourceNotFound", err)
	}
}

func TestOpenMalformedMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	if err := os.WriteFile(path, []byte("mappings: [broken"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(serviceTestConfig(path), setupTestLogger(t), nil)
	if !errors.Is(err, ErrParse) {
		t.Errorf("Open() error = %v, want ErrParse", err)
	}
}

func TestOpenInvalidConversion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	doc := `
conversions:
  - from: Temperature
    to: Reading
    fields:
      value: reading
      also: reading
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(serviceTestConfig(path), setupTestLogger(t), nil)
	if !errors.Is(err, ErrParse) {
		t.Errorf("Open() error = %v, want ErrParse", err)
	}
}
