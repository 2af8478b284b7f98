package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mqtt-nats-bridge/internal/endpoint"
	"mqtt-nats-bridge/internal/logger"
)

// MappingDocument is the parsed mapping configuration file
type MappingDocument struct {
	Mappings    []MappingEntry     `yaml:"mappings" json:"mappings"`
	Conversions []ConversionConfig `yaml:"conversions" json:"conversions"`
}

// ConversionConfig declares a field-map converter for a type pair
type ConversionConfig struct {
	From   string            `yaml:"from" json:"from"`
	To     string            `yaml:"to" json:"to"`
	Fields map[string]string `yaml:"fields" json:"fields"`
}

// Registry loads and validates mapping documents
type Registry struct {
	logger *logger.Logger
}

// NewRegistry creates a new mapping registry
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		logger: log,
	}
}

// LoadFile reads and parses a mapping document. The file must exist and be
// a regular file; a missing document is an error, not a silent no-op.
func (r *Registry) LoadFile(path string) (*MappingDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, path)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrResourceNotFound, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, path)
	}

	var doc MappingDocument
	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
	}

	r.logger.Debug("loaded mapping document",
		"path", path,
		"mappings", len(doc.Mappings),
		"conversions", len(doc.Conversions))

	return &doc, nil
}

// Validate checks the mapping entries against both domains and returns a
// validated copy in document order. Source topics live on domain a, dest
// topics on domain b regardless of relay direction.
func (r *Registry) Validate(entries []MappingEntry, a, b endpoint.Domain) ([]MappingEntry, error) {
	seen := make(map[string]struct{}, len(entries))
	validated := make([]MappingEntry, 0, len(entries))

	for i, entry := range entries {
		if !entry.Direction.Valid() {
			return nil, &MappingError{
				Index: i,
				Entry: entry,
				Err:   fmt.Errorf("unknown direction %q", entry.Direction),
			}
		}

		if entry.SourceType == "" || entry.DestType == "" {
			return nil, &MappingError{
				Index: i,
				Entry: entry,
				Err:   fmt.Errorf("source and destination types are required"),
			}
		}

		if entry.QoS > 2 {
			return nil, &MappingError{
				Index: i,
				Entry: entry,
				Err:   fmt.Errorf("qos must be 0, 1 or 2"),
			}
		}

		if err := a.ValidateTopic(entry.SourceTopic); err != nil {
			return nil, &MappingError{
				Index: i,
				Entry: entry,
				Err:   fmt.Errorf("%w: %s (%s): %v", ErrInvalidTopicName, entry.SourceTopic, a.Name(), err),
			}
		}
		if err := b.ValidateTopic(entry.DestTopic); err != nil {
			return nil, &MappingError{
				Index: i,
				Entry: entry,
				Err:   fmt.Errorf("%w: %s (%s): %v", ErrInvalidTopicName, entry.DestTopic, b.Name(), err),
			}
		}

		key := entry.Key()
		if _, exists := seen[key]; exists {
			return nil, &MappingError{
				Index: i,
				Entry: entry,
				Err:   ErrDuplicateMapping,
			}
		}
		seen[key] = struct{}{}

		validated = append(validated, entry)
	}

	r.logger.Info("mapping entries validated", "count", len(validated))

	return validated, nil
}
