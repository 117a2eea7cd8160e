package singer

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

// Inclusion values
const (
	InclusionAutomatic   = "automatic"
	InclusionAvailable   = "available"
	InclusionUnsupported = "unsupported"
)

// Catalog lists the streams a tap offers and which of them to sync.
type Catalog struct {
	Streams []CatalogEntry `json:"streams"`
}

// CatalogEntry describes one stream.
type CatalogEntry struct {
	TapStreamID       string          `json:"tap_stream_id"`
	Stream            string          `json:"stream"`
	Schema            json.RawMessage `json:"schema"`
	KeyProperties     []string        `json:"key_properties"`
	ReplicationKey    string          `json:"replication_key,omitempty"`
	ReplicationMethod string          `json:"replication_method,omitempty"`
	Metadata          []MetadataEntry `json:"metadata"`
}

// MetadataEntry attaches metadata to the stream (empty breadcrumb) or a property.
type MetadataEntry struct {
	Breadcrumb []string `json:"breadcrumb"`
	Metadata   Metadata `json:"metadata"`
}

// Metadata is the standard Singer metadata set.
type Metadata struct {
	Inclusion               string   `json:"inclusion,omitempty"`
	Selected                *bool    `json:"selected,omitempty"`
	SelectedByDefault       *bool    `json:"selected-by-default,omitempty"`
	TableKeyProperties      []string `json:"table-key-properties,omitempty"`
	ValidReplicationKeys    []string `json:"valid-replication-keys,omitempty"`
	ForcedReplicationMethod string   `json:"forced-replication-method,omitempty"`
}

// LoadCatalog reads a catalog file. An empty path yields nil, which selects everything.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &catalog, nil
}

// Entry finds the entry for stream by tap_stream_id.
func (c *Catalog) Entry(stream string) (*CatalogEntry, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Streams {
		if c.Streams[i].TapStreamID == stream {
			return &c.Streams[i], true
		}
	}
	return nil, false
}

// Selected reports whether stream should be synced.
func (c *Catalog) Selected(stream string) bool {
	if c == nil {
		return true
	}
	entry, ok := c.Entry(stream)
	if !ok {
		return false
	}
	md, ok := entry.metadata(nil)
	if !ok {
		return false
	}
	return md.isSelected(false)
}

// FieldSelected reports whether property field of stream should be emitted.
func (c *Catalog) FieldSelected(stream, field string) bool {
	if c == nil {
		return true
	}
	entry, ok := c.Entry(stream)
	if !ok {
		return false
	}
	md, ok := entry.metadata([]string{"properties", field})
	if !ok {
		return true
	}
	switch md.Inclusion {
	case InclusionAutomatic:
		return true
	case InclusionUnsupported:
		return false
	}
	return md.isSelected(true)
}

func (e *CatalogEntry) metadata(breadcrumb []string) (Metadata, bool) {
	if breadcrumb == nil {
		breadcrumb = []string{}
	}
	for _, m := range e.Metadata {
		crumb := m.Breadcrumb
		if crumb == nil {
			crumb = []string{}
		}
		if slices.Equal(crumb, breadcrumb) {
			return m.Metadata, true
		}
	}
	return Metadata{}, false
}

func (m Metadata) isSelected(fallback bool) bool {
	if m.Selected != nil {
		return *m.Selected
	}
	if m.SelectedByDefault != nil {
		return *m.SelectedByDefault
	}
	return fallback
}

// Bool returns a pointer to v, for metadata flags.
func Bool(v bool) *bool {
	return &v
}
