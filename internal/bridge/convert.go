package bridge

import (
	"encoding/json"
	"fmt"
	"sync"

	"mqtt-nats-bridge/internal/logger"
)

// Converter transforms a payload from one domain's wire representation to
// the other's. Converters must be reentrant; the same function is invoked
// concurrently from multiple channels.
type Converter func(payload []byte) ([]byte, error)

// Descriptor pairs the two conversion directions for a type pair
type Descriptor struct {
	TypeA string
	TypeB string
	AToB  Converter
	BToA  Converter
}

type typePair struct {
	from string
	to   string
}

// ConverterRegistry maps type pairs to converter functions. Registration
// happens once at startup; lookups afterwards are read-only and lock-free
// beyond the shared RWMutex.
type ConverterRegistry struct {
	converters map[typePair]Converter
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewConverterRegistry creates an empty converter registry
func NewConverterRegistry(log *logger.Logger) *ConverterRegistry {
	return &ConverterRegistry{
		converters: make(map[typePair]Converter),
		logger:     log,
	}
}

// Register adds a descriptor for a type pair in both directions
func (r *ConverterRegistry) Register(d Descriptor) error {
	if d.AToB == nil || d.BToA == nil {
		return fmt.Errorf("descriptor for (%s, %s) requires both directions", d.TypeA, d.TypeB)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	forward := typePair{from: d.TypeA, to: d.TypeB}
	if _, exists := r.converters[forward]; exists {
		return fmt.Errorf("converter already registered for (%s, %s)", d.TypeA, d.TypeB)
	}

	r.converters[forward] = d.AToB
	r.converters[typePair{from: d.TypeB, to: d.TypeA}] = d.BToA

	r.logger.Debug("registered converter",
		"typeA", d.TypeA,
		"typeB", d.TypeB)

	return nil
}

// Lookup returns the converter translating from one type to another
func (r *ConverterRegistry) Lookup(from, to string) (Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.converters[typePair{from: from, to: to}]
	return conv, ok
}

// Convert translates a payload between two registered types
func (r *ConverterRegistry) Convert(from, to string, payload []byte) ([]byte, error) {
	conv, ok := r.Lookup(from, to)
	if !ok {
		return nil, fmt.Errorf("%w: (%s, %s)", ErrUnsupportedType, from, to)
	}
	return conv(payload)
}

// Identity returns a converter that passes the payload through untouched
func Identity() Converter {
	return func(payload []byte) ([]byte, error) {
		return payload, nil
	}
}

// RegisterIdentity registers a pass-through descriptor for a type bridged
// under the same name on both domains
func (r *ConverterRegistry) RegisterIdentity(name string) error {
	return r.Register(Descriptor{
		TypeA: name,
		TypeB: name,
		AToB:  Identity(),
		BToA:  Identity(),
	})
}

// defaultTypes are the primitive payload types bridged verbatim
var defaultTypes = []string{
	"bool",
	"int32",
	"int64",
	"float32",
	"float64",
	"string",
	"bytes",
	"json",
}

// RegisterDefaults registers identity converters for the primitive types
func (r *ConverterRegistry) RegisterDefaults() error {
	for _, name := range defaultTypes {
		if err := r.RegisterIdentity(name); err != nil {
			return err
		}
	}
	return nil
}

// NewFieldMapConverter builds a best-effort JSON converter renaming fields
// per the supplied mapping. Fields without a mapping are dropped and logged,
// never fatal; a payload that is not a JSON object fails the conversion.
func NewFieldMapConverter(fields map[string]string, log *logger.Logger) Converter {
	return func(payload []byte) ([]byte, error) {
		var in map[string]interface{}
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}

		out := make(map[string]interface{}, len(in))
		for field, value := range in {
			mapped, ok := fields[field]
			if !ok {
				log.Debug("dropping unmapped field", "field", field)
				continue
			}
			out[mapped] = value
		}

		converted, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		return converted, nil
	}
}

// RegisterFieldMap registers a field-map descriptor from a conversion
// declaration. The reverse direction uses the inverted field mapping.
func (r *ConverterRegistry) RegisterFieldMap(cfg ConversionConfig) error {
	if cfg.From == "" || cfg.To == "" {
		return fmt.Errorf("conversion requires both from and to types")
	}

	inverted := make(map[string]string, len(cfg.Fields))
	for from, to := range cfg.Fields {
		if _, exists := inverted[to]; exists {
			return fmt.Errorf("conversion (%s, %s): field %q mapped more than once", cfg.From, cfg.To, to)
		}
		inverted[to] = from
	}

	return r.Register(Descriptor{
		TypeA: cfg.From,
		TypeB: cfg.To,
		AToB:  NewFieldMapConverter(cfg.Fields, r.logger),
		BToA:  NewFieldMapConverter(inverted, r.logger),
	})
}
