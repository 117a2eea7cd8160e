package singer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"tap_talos/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var extracted = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var msg map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &msg), sc.Text())
		out = append(out, msg)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestWriter_Messages(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf).WithClock(func() time.Time { return extracted })

	schema := json.RawMessage(`{"type":"object","properties":{"Amount":{"type":"number"}}}`)
	require.NoError(t, w.WriteSchema("balances", schema, []string{"Market"}, []string{"LastUpdateTime"}))
	require.NoError(t, w.Emit("balances", domain.Record{"Market": "BTC-USD"}))
	require.NoError(t, w.Checkpoint("balances", "2024-01-01T00:00:00Z"))

	msgs := lines(t, &buf)
	require.Len(t, msgs, 3)

	assert.Equal(t, TypeSchema, msgs[0]["type"])
	assert.Equal(t, []any{"Market"}, msgs[0]["key_properties"])
	assert.Equal(t, []any{"LastUpdateTime"}, msgs[0]["bookmark_properties"])

	assert.Equal(t, TypeRecord, msgs[1]["type"])
	assert.Equal(t, "balances", msgs[1]["stream"])
	assert.Equal(t, "2024-01-02T03:04:05Z", msgs[1]["time_extracted"])

	assert.Equal(t, TypeState, msgs[2]["type"])
	bookmark := msgs[2]["value"].(map[string]any)["bookmarks"].(map[string]any)["balances"].(map[string]any)
	assert.Equal(t, "LastUpdateTime", bookmark["replication_key"])
	assert.Equal(t, "2024-01-01T00:00:00Z", bookmark["replication_key_value"])
}

func TestWriter_DecimalAsNumber(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	rec := domain.Record{"Amount": decimal.RequireFromString("1.10000000001")}
	require.NoError(t, w.Emit("balances", rec))

	assert.Contains(t, buf.String(), `"record":{"Amount":1.10000000001}`)

	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	var msg struct {
		Record map[string]json.Number `json:"record"`
	}
	require.NoError(t, dec.Decode(&msg))
	assert.Equal(t, json.Number("1.10000000001"), msg.Record["Amount"])
}

func TestWriter_CheckpointKeepsOtherBookmarks(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	prior := NewState()
	prior.SetBookmark("other", "updated_at", "2023-01-01")
	w.ResumeFrom(prior)

	require.NoError(t, w.WriteSchema("balances", json.RawMessage(`{}`), nil, []string{"LastUpdateTime"}))
	require.NoError(t, w.Checkpoint("balances", ""))
	require.NoError(t, w.Checkpoint("balances", "2024-05-01T00:00:00Z"))

	state := w.State()
	assert.Equal(t, "2023-01-01", state.Bookmarks["other"].ReplicationKeyValue)
	assert.Equal(t, "2024-05-01T00:00:00Z", state.Bookmarks["balances"].ReplicationKeyValue)

	// The caller's state is not modified.
	_, ok := prior.Bookmark("balances")
	assert.False(t, ok)

	msgs := lines(t, &buf)
	require.Len(t, msgs, 3)
	assert.Equal(t, []any{}, msgs[0]["key_properties"])
	first := msgs[1]["value"].(map[string]any)["bookmarks"].(map[string]any)
	assert.NotContains(t, first, "balances")
}

func TestWriter_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			w.Emit("balances", domain.Record{"Index": decimal.NewFromInt(int64(n))})
		}(i)
	}
	wg.Wait()

	assert.Len(t, lines(t, &buf), 20)
}
