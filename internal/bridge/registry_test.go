package bridge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	registry := NewRegistry(setupTestLogger(t))
	dir := t.TempDir()

	yamlDoc := `
mappings:
  - sourceTopic: sensors/temperature
    destTopic: telemetry/temperature
    sourceType: float64
    destType: float64
    direction: forward
conversions:
  - from: Temperature
    to: Reading
    fields:
      value: reading
`
	yamlPath := filepath.Join(dir, "mappings.yaml")
	if err := os.WriteFile(yamlPath, []byte(yamlDoc), 0644); err != nil {
		t.Fatalf("Failed to write mapping document: %v", err)
	}

	doc, err := registry.LoadFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(doc.Mappings) != 1 {
		t.Errorf("LoadFile() mappings = %d, want 1", len(doc.Mappings))
	}
	if doc.Mappings[0].Direction != DirectionForward {
		t.Errorf("LoadFile() direction = %v, want %v", doc.Mappings[0].Direction, DirectionForward)
	}
	if len(doc.Conversions) != 1 {
		t.Errorf("LoadFile() conversions = %d, want 1", len(doc.Conversions))
	}
	if doc.Conversions[0].Fields["value"] != "reading" {
		t.Errorf("LoadFile() field map not parsed: %v", doc.Conversions[0].Fields)
	}
}

func TestLoadFileJSON(t *testing.T) {
	registry := NewRegistry(setupTestLogger(t))
	dir := t.TempDir()

	jsonDoc := `{
		"mappings": [
			{
				"sourceTopic": "a/b",
				"destTopic": "c/d",
				"sourceType": "string",
				"destType": "string",
				"direction": "both"
			}
		]
	}`
	jsonPath := filepath.Join(dir, "mappings.json")
	if err := os.WriteFile(jsonPath, []byte(jsonDoc), 0644); err != nil {
		t.Fatalf("Failed to write mapping document: %v", err)
	}

	doc, err := registry.LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(doc.Mappings) != 1 {
		t.Errorf("LoadFile() mappings = %d, want 1", len(doc.Mappings))
	}
	if doc.Mappings[0].Direction != DirectionBoth {
		t.Errorf("LoadFile() direction = %v, want %v", doc.Mappings[0].Direction, DirectionBoth)
	}
}

func TestLoadFileMissing(t *testing.T) {
	registry := NewRegistry(setupTestLogger(t))

	_, err := registry.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("LoadFile() error = %v, want ErrResourceNotFound", err)
	}
}

func TestLoadFileNotRegular(t *testing.T) {
	registry := NewRegistry(setupTestLogger(t))

	_, err := registry.LoadFile(t.TempDir())
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("LoadFile() error = %v, want ErrResourceNotFound", err)
	}
}

func TestLoadFileParseError(t *testing.T) {
	registry := NewRegistry(setupTestLogger(t))
	dir := t.TempDir()

	badPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badPath, []byte("mappings: [unbalanced"), 0644); err != nil {
		t.Fatalf("Failed to write mapping document: %v", err)
	}

	_, err := registry.LoadFile(badPath)
	if !errors.Is(err, ErrParse) {
		t.Errorf("LoadFile() error = %v, want ErrParse", err)
	}
}

func TestValidate(t *testing.T) {
	registry := NewRegistry(setupTestLogger(t))
	a := newMemDomain("a")
	b := newMemDomain("b")

	valid := MappingEntry{
		SourceTopic: "sensors/temperature",
		DestTopic:   "telemetry/temperature",
		SourceType:  "float64",
		DestType:    "float64",
		Direction:   DirectionForward,
	}

	tests := []struct {
		name    string
		entries []MappingEntry
		wantErr error
	}{
		{
			name:    "Valid single mapping",
			entries: []MappingEntry{valid},
			wantErr: nil,
		},
		{
			name: "Valid distinct mappings",
			entries: []MappingEntry{
				valid,
				{
					SourceTopic: "sensors/humidity",
					DestTopic:   "telemetry/humidity",
					SourceType:  "float64",
					DestType:    "float64",
					Direction:   DirectionBoth,
				},
			},
			wantErr: nil,
		},
		{
			name:    "Duplicate triple",
			entries: []MappingEntry{valid, valid},
			wantErr: ErrDuplicateMapping,
		},
		{
			name: "Same topics different direction allowed",
			entries: []MappingEntry{
				valid,
				{
					SourceTopic: valid.SourceTopic,
					DestTopic:   valid.DestTopic,
					SourceType:  "float64",
					DestType:    "float64",
					Direction:   DirectionReverse,
				},
			},
			wantErr: nil,
		},
		{
			name: "Invalid source topic",
			entries: []MappingEntry{
				{
					SourceTopic: "sensors/+/temperature",
					DestTopic:   "telemetry/temperature",
					SourceType:  "float64",
					DestType:    "float64",
					Direction:   DirectionForward,
				},
			},
			wantErr: ErrInvalidTopicName,
		},
		{
			name: "Invalid dest topic",
			entries: []MappingEntry{
				{
					SourceTopic: "sensors/temperature",
					DestTopic:   "",
					SourceType:  "float64",
					DestType:    "float64",
					Direction:   DirectionForward,
				},
			},
			wantErr: ErrInvalidTopicName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validated, err := registry.Validate(tt.entries, a, b)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				if len(validated) != len(tt.entries) {
					t.Errorf("Validate() returned %d entries, want %d", len(validated), len(tt.entries))
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRejectsBadEntries(t *testing.T) {
	registry := NewRegistry(setupTestLogger(t))
	a := newMemDomain("a")
	b := newMemDomain("b")

	tests := []struct {
		name  string
		entry MappingEntry
	}{
		{
			name: "Unknown direction",
			entry: MappingEntry{
				SourceTopic: "a/b",
				DestTopic:   "c/d",
				SourceType:  "string",
				DestType:    "string",
				Direction:   Direction("sideways"),
			},
		},
		{
			name: "Missing types",
			entry: MappingEntry{
				SourceTopic: "a/b",
				DestTopic:   "c/d",
				Direction:   DirectionForward,
			},
		},
		{
			name: "QoS out of range",
			entry: MappingEntry{
				SourceTopic: "a/b",
				DestTopic:   "c/d",
				SourceType:  "string",
				DestType:    "string",
				Direction:   DirectionForward,
				QoS:         3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Validate([]MappingEntry{tt.entry}, a, b)
			if err == nil {
				t.Error("Validate() expected error, got nil")
			}
			var mappingErr *MappingError
			if !errors.As(err, &mappingErr) {
				t.Errorf("Validate() error type = %T, want *MappingError", err)
			}
		})
	}
}
