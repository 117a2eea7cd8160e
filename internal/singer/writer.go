package singer

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"tap_talos/internal/domain"
)

// Writer emits Singer messages as JSON lines.
// It is safe for concurrent use; each message is written whole.
type Writer struct {
	mu    sync.Mutex
	enc   *json.Encoder
	now   func() time.Time
	state State
	keys  map[string]string // stream -> replication key
}

// NewWriter creates a Writer on out (normally stdout).
func NewWriter(out io.Writer) *Writer {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return &Writer{
		enc:   enc,
		now:   time.Now,
		state: NewState(),
		keys:  make(map[string]string),
	}
}

// WithClock pins the time_extracted clock.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// ResumeFrom seeds the state that Checkpoint extends.
func (w *Writer) ResumeFrom(state State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state.Clone()
}

// State returns a copy of the current state.
func (w *Writer) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Clone()
}

// WriteSchema emits a SCHEMA message. The first bookmark property becomes
// the replication key Checkpoint records for stream.
func (w *Writer) WriteSchema(stream string, schema json.RawMessage, keyProperties, bookmarkProperties []string) error {
	if keyProperties == nil {
		keyProperties = []string{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(bookmarkProperties) > 0 {
		w.keys[stream] = bookmarkProperties[0]
	}
	return w.write(SchemaMessage{
		Type:               TypeSchema,
		Stream:             stream,
		Schema:             schema,
		KeyProperties:      keyProperties,
		BookmarkProperties: bookmarkProperties,
	})
}

// Emit implements domain.RecordSink by writing a RECORD message.
func (w *Writer) Emit(stream string, rec domain.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.write(RecordMessage{
		Type:          TypeRecord,
		Stream:        stream,
		Record:        rec,
		TimeExtracted: w.now().UTC(),
	})
}

// Checkpoint implements domain.Checkpointer: it bookmarks cursor for stream
// and writes the full state. An empty cursor leaves the bookmark untouched.
func (w *Writer) Checkpoint(stream, cursor string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cursor != "" {
		w.state.SetBookmark(stream, w.keys[stream], cursor)
	}
	return w.write(StateMessage{Type: TypeState, Value: w.state})
}

func (w *Writer) write(msg any) error {
	if err := w.enc.Encode(msg); err != nil {
		return fmt.Errorf("write singer message: %w", err)
	}
	return nil
}
