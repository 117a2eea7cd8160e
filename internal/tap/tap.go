// Package tap hosts the Singer streams: discovery, sync and tap metadata.
package tap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tap_talos/internal/domain"
	"tap_talos/internal/infra"
	"tap_talos/internal/singer"
)

// Name is the tap's executable name.
const Name = "tap-talos"

// Output receives a sync's messages. *singer.Writer writes them to stdout.
type Output interface {
	domain.RecordSink
	domain.Checkpointer
	WriteSchema(stream string, schema json.RawMessage, keyProperties, bookmarkProperties []string) error
	ResumeFrom(state singer.State)
}

var _ Output = (*singer.Writer)(nil)

// Tap syncs its streams to an Output.
type Tap struct {
	streams     []*Stream
	writer      Output
	sinks       []domain.RecordSink
	postProcess domain.PostProcessor
	metrics     *infra.Metrics
	logger      *slog.Logger
}

// Option customizes a Tap.
type Option func(*Tap)

// WithSinks adds sinks that receive every emitted record after stdout.
func WithSinks(sinks ...domain.RecordSink) Option {
	return func(t *Tap) { t.sinks = append(t.sinks, sinks...) }
}

// WithPostProcess sets the per-record hook.
func WithPostProcess(fn domain.PostProcessor) Option {
	return func(t *Tap) { t.postProcess = fn }
}

// WithMetrics records emitted records into m instead of infra.GlobalMetrics.
func WithMetrics(m *infra.Metrics) Option {
	return func(t *Tap) { t.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tap) { t.logger = logger.With("module", "tap") }
}

// New creates a Tap over streams writing Singer messages to writer.
func New(writer Output, streams []*Stream, opts ...Option) *Tap {
	t := &Tap{
		streams:     streams,
		writer:      writer,
		postProcess: domain.IdentityPostProcess,
		metrics:     infra.GlobalMetrics,
		logger:      slog.Default().With("module", "tap"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Discover returns the catalog of every stream with standard metadata.
func (t *Tap) Discover() singer.Catalog {
	catalog := singer.Catalog{Streams: make([]singer.CatalogEntry, 0, len(t.streams))}
	for _, s := range t.streams {
		catalog.Streams = append(catalog.Streams, discoverStream(s))
	}
	return catalog
}

func discoverStream(s *Stream) singer.CatalogEntry {
	metadata := []singer.MetadataEntry{{
		Breadcrumb: []string{},
		Metadata: singer.Metadata{
			Inclusion:               singer.InclusionAvailable,
			SelectedByDefault:       singer.Bool(true),
			TableKeyProperties:      s.PrimaryKeys,
			ValidReplicationKeys:    []string{s.ReplicationKey},
			ForcedReplicationMethod: s.ReplicationMethod,
		},
	}}
	for _, prop := range s.Properties() {
		inclusion := singer.InclusionAvailable
		if s.isAutomatic(prop) {
			inclusion = singer.InclusionAutomatic
		}
		metadata = append(metadata, singer.MetadataEntry{
			Breadcrumb: []string{"properties", prop},
			Metadata: singer.Metadata{
				Inclusion:         inclusion,
				SelectedByDefault: singer.Bool(true),
			},
		})
	}

	return singer.CatalogEntry{
		TapStreamID:       s.Name,
		Stream:            s.Name,
		Schema:            s.Schema,
		KeyProperties:     s.PrimaryKeys,
		ReplicationKey:    s.ReplicationKey,
		ReplicationMethod: s.ReplicationMethod,
		Metadata:          metadata,
	}
}

// Sync runs every selected stream. A nil catalog selects everything.
// The first stream error aborts the sync.
func (t *Tap) Sync(ctx context.Context, catalog *singer.Catalog, state singer.State) error {
	if catalog != nil {
		for _, entry := range catalog.Streams {
			if catalog.Selected(entry.TapStreamID) && !t.hasStream(entry.TapStreamID) {
				return fmt.Errorf("%w: %s", domain.ErrStreamNotFound, entry.TapStreamID)
			}
		}
	}

	t.writer.ResumeFrom(state)

	for _, s := range t.streams {
		if !catalog.Selected(s.Name) {
			t.logger.Info("Stream skipped", "stream", s.Name)
			continue
		}
		if err := t.syncStream(ctx, s, catalog, state); err != nil {
			return fmt.Errorf("sync %s: %w", s.Name, err)
		}
	}
	return nil
}

func (t *Tap) hasStream(name string) bool {
	for _, s := range t.streams {
		if s.Name == name {
			return true
		}
	}
	return false
}

func (t *Tap) syncStream(ctx context.Context, s *Stream, catalog *singer.Catalog, state singer.State) error {
	var dropped []string
	for _, prop := range s.Properties() {
		if !s.isAutomatic(prop) && !catalog.FieldSelected(s.Name, prop) {
			dropped = append(dropped, prop)
		}
	}

	schema, err := s.schemaWithout(dropped)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if err := t.writer.WriteSchema(s.Name, schema, s.PrimaryKeys, []string{s.ReplicationKey}); err != nil {
		return err
	}

	var cursor string
	if b, ok := state.Bookmark(s.Name); ok {
		cursor = b.ReplicationKeyValue
	}

	t.logger.Info("Stream sync started", "stream", s.Name, "bookmark", cursor)

	count := 0
	for rec, err := range s.Fetch(ctx) {
		if err != nil {
			return err
		}

		var keep bool
		if rec, keep = t.postProcess(rec); !keep {
			continue
		}
		if len(dropped) > 0 {
			rec = rec.Clone()
			for _, name := range dropped {
				delete(rec, name)
			}
		}

		if v := rec.String(s.ReplicationKey); v != "" && cursorAfter(v, cursor) {
			cursor = v
		}

		if err := t.writer.Emit(s.Name, rec); err != nil {
			return err
		}
		for _, sink := range t.sinks {
			if err := sink.Emit(s.Name, rec); err != nil {
				return err
			}
		}
		t.metrics.RecordEmitted()
		count++
	}

	if err := t.writer.Checkpoint(s.Name, cursor); err != nil {
		return err
	}

	t.logger.Info("Stream sync finished", "stream", s.Name, "records", count, "bookmark", cursor)
	return nil
}

// cursorAfter reports whether candidate is later than current.
// RFC 3339 values compare as times; anything else compares as strings.
func cursorAfter(candidate, current string) bool {
	if current == "" {
		return true
	}
	c, errC := time.Parse(time.RFC3339Nano, candidate)
	k, errK := time.Parse(time.RFC3339Nano, current)
	if errC == nil && errK == nil {
		return c.After(k)
	}
	return candidate > current
}
