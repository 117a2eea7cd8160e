// Package singer implements the Singer message, catalog and state formats.
package singer

import (
	"encoding/json"
	"time"

	"tap_talos/internal/domain"
)

// Message types
const (
	TypeSchema = "SCHEMA"
	TypeRecord = "RECORD"
	TypeState  = "STATE"
)

// SchemaMessage describes a stream before any of its records.
type SchemaMessage struct {
	Type               string          `json:"type"`
	Stream             string          `json:"stream"`
	Schema             json.RawMessage `json:"schema"`
	KeyProperties      []string        `json:"key_properties"`
	BookmarkProperties []string        `json:"bookmark_properties,omitempty"`
}

// RecordMessage carries one record.
type RecordMessage struct {
	Type          string        `json:"type"`
	Stream        string        `json:"stream"`
	Record        domain.Record `json:"record"`
	TimeExtracted time.Time     `json:"time_extracted"`
}

// StateMessage carries the bookmarks a later run resumes from.
type StateMessage struct {
	Type  string `json:"type"`
	Value State  `json:"value"`
}
