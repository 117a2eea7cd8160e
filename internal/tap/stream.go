package tap

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"slices"

	"tap_talos/internal/domain"
	"tap_talos/internal/infra/talos"
)

// Replication methods
const (
	ReplicationIncremental = "INCREMENTAL"
	ReplicationFullTable   = "FULL_TABLE"
)

// BalancesStreamName is the tap_stream_id of the balances stream.
const BalancesStreamName = "balances"

//go:embed schemas/balances.json
var balancesSchema []byte

// DefaultBalancesSchema returns the bundled balances JSON schema.
func DefaultBalancesSchema() json.RawMessage {
	return slices.Clone(balancesSchema)
}

// LoadSchema reads a schema file, falling back to the bundled one for an empty path.
func LoadSchema(path string) (json.RawMessage, error) {
	if path == "" {
		return DefaultBalancesSchema(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := parseSchema(data); err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return data, nil
}

// FetchFunc produces a stream's records lazily.
type FetchFunc func(ctx context.Context) iter.Seq2[domain.Record, error]

// Stream is one Singer stream bound to its fetcher.
type Stream struct {
	Name              string
	Path              string
	PrimaryKeys       []string
	ReplicationKey    string
	ReplicationMethod string
	Schema            json.RawMessage
	Fetch             FetchFunc
}

// NewBalancesStream builds the balances stream over schema.
func NewBalancesStream(schema json.RawMessage, fetch FetchFunc) (*Stream, error) {
	if _, err := parseSchema(schema); err != nil {
		return nil, fmt.Errorf("balances schema: %w", err)
	}
	return &Stream{
		Name:              BalancesStreamName,
		Path:              talos.BalancesPath,
		PrimaryKeys:       []string{domain.FieldMarket, domain.FieldCurrency, domain.FieldAccount},
		ReplicationKey:    domain.FieldLastUpdateTime,
		ReplicationMethod: ReplicationIncremental,
		Schema:            schema,
		Fetch:             fetch,
	}, nil
}

// Properties returns the schema's top-level property names, sorted.
func (s *Stream) Properties() []string {
	doc, err := parseSchema(s.Schema)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(doc.Properties))
	for name := range doc.Properties {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// isAutomatic reports whether field must always be emitted.
func (s *Stream) isAutomatic(field string) bool {
	return field == s.ReplicationKey || slices.Contains(s.PrimaryKeys, field)
}

// schemaWithout returns the schema minus the named top-level properties.
func (s *Stream) schemaWithout(drop []string) (json.RawMessage, error) {
	if len(drop) == 0 {
		return s.Schema, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(s.Schema, &doc); err != nil {
		return nil, err
	}
	if props, ok := doc["properties"].(map[string]any); ok {
		for _, name := range drop {
			delete(props, name)
		}
	}
	return json.Marshal(doc)
}

// NumericFields returns the top-level properties whose type includes "number".
func NumericFields(schema json.RawMessage) ([]string, error) {
	doc, err := parseSchema(schema)
	if err != nil {
		return nil, err
	}

	var fields []string
	for name, prop := range doc.Properties {
		if prop.hasType("number") {
			fields = append(fields, name)
		}
	}
	slices.Sort(fields)
	return fields, nil
}

type schemaDoc struct {
	Properties map[string]schemaProperty `json:"properties"`
}

type schemaProperty struct {
	Type any `json:"type"`
}

func (p schemaProperty) hasType(name string) bool {
	switch t := p.Type.(type) {
	case string:
		return t == name
	case []any:
		for _, v := range t {
			if v == name {
				return true
			}
		}
	}
	return false
}

func parseSchema(data []byte) (*schemaDoc, error) {
	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if doc.Properties == nil {
		return nil, fmt.Errorf("parse schema: no properties")
	}
	return &doc, nil
}
