package singer

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
)

// Bookmark is the per-stream replication position.
type Bookmark struct {
	ReplicationKey      string `json:"replication_key,omitempty"`
	ReplicationKeyValue string `json:"replication_key_value,omitempty"`
}

// State is the Singer state document.
type State struct {
	Bookmarks map[string]Bookmark `json:"bookmarks"`
}

// NewState returns an empty state.
func NewState() State {
	return State{Bookmarks: make(map[string]Bookmark)}
}

// LoadState reads a state file. An empty path yields an empty state.
func LoadState(path string) (State, error) {
	if path == "" {
		return NewState(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("read state: %w", err)
	}

	state := NewState()
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse state %s: %w", path, err)
	}
	if state.Bookmarks == nil {
		state.Bookmarks = make(map[string]Bookmark)
	}
	return state, nil
}

// Bookmark returns the bookmark for stream.
func (s State) Bookmark(stream string) (Bookmark, bool) {
	b, ok := s.Bookmarks[stream]
	return b, ok
}

// SetBookmark records the replication position for stream.
func (s *State) SetBookmark(stream, key, value string) {
	if s.Bookmarks == nil {
		s.Bookmarks = make(map[string]Bookmark)
	}
	s.Bookmarks[stream] = Bookmark{ReplicationKey: key, ReplicationKeyValue: value}
}

// Clone returns a copy that can be modified independently.
func (s State) Clone() State {
	out := NewState()
	maps.Copy(out.Bookmarks, s.Bookmarks)
	return out
}
