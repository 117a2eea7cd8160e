package domain

import (
	"net/http"
)

// HTTPDoer is the fetch seam. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RecordSink receives every record a stream produces.
type RecordSink interface {
	Emit(stream string, rec Record) error
}

// Checkpointer receives the replication cursor once a stream completes.
type Checkpointer interface {
	Checkpoint(stream string, cursor string) error
}

// PostProcessor may rename or drop fields; returning false drops the record.
type PostProcessor func(rec Record) (Record, bool)

// IdentityPostProcess is the default PostProcessor.
func IdentityPostProcess(rec Record) (Record, bool) {
	return rec, true
}
