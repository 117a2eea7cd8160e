package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"tap_talos/internal/domain"
	"tap_talos/internal/infra/storage"
	"tap_talos/internal/infra/talos"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestBootstrap_SyncWithMirror(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "mirror.db")
	configPath := writeFile(t, dir, "config.json",
		`{"api_key":"K","api_secret":"S","api_host":"h.example.com","sqlite_path":"`+dbPath+`"}`)

	server := newServer(t, http.StatusOK,
		`{"data":[{"Market":"BTC-USD","Currency":"BTC","Account":"A1","Amount":"1.10000000001","LastUpdateTime":"2024-01-01T00:00:00Z"}]}`)

	var out bytes.Buffer
	b := NewBootstrap(&out, talos.WithBaseURL(server.URL), talos.WithHTTPClient(server.Client()))
	require.NoError(t, b.Initialize(configPath, ""))
	require.NoError(t, b.Sync(context.Background(), "", ""))
	require.NoError(t, b.Close())

	assert.Contains(t, out.String(), `"type":"SCHEMA"`)
	assert.Contains(t, out.String(), `"Amount":1.10000000001`)
	assert.Contains(t, out.String(), `"replication_key_value":"2024-01-01T00:00:00Z"`)

	store, err := storage.NewStorage(dbPath)
	require.NoError(t, err)
	defer store.Close()

	row, err := store.GetBalance("BTC-USD|BTC|A1")
	require.NoError(t, err)
	require.NotNil(t, row)

	require.NotNil(t, b.LastRun)
	assert.Equal(t, b.LastRun.ID, row.SyncRunID)

	run, err := store.GetRun(row.SyncRunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.SyncStatusSuccess, run.Status)
	assert.Equal(t, 1, run.Records)
}

func TestBootstrap_SyncFailureRecordsRun(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "mirror.db")
	configPath := writeFile(t, dir, "config.json",
		`{"api_key":"K","api_secret":"S","api_host":"h.example.com","sqlite_path":"`+dbPath+`"}`)

	server := newServer(t, http.StatusUnauthorized, `{"error":"bad signature"}`)

	b := NewBootstrap(&bytes.Buffer{}, talos.WithBaseURL(server.URL), talos.WithHTTPClient(server.Client()))
	require.NoError(t, b.Initialize(configPath, ""))

	err := b.Sync(context.Background(), "", "")
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode)

	require.NotNil(t, b.LastRun)
	run, err := b.Storage.GetRun(b.LastRun.ID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.SyncStatusFailed, run.Status)
	assert.Equal(t, 0, run.Records)
	assert.Contains(t, run.Error, "status=401")
	require.NoError(t, b.Close())
}

func TestBootstrap_SyncResumesState(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.json", `{"api_key":"K","api_secret":"S","api_host":"h.example.com"}`)
	statePath := writeFile(t, dir, "state.json",
		`{"bookmarks":{"balances":{"replication_key":"LastUpdateTime","replication_key_value":"2030-01-01T00:00:00Z"}}}`)

	server := newServer(t, http.StatusOK, `{"data":[{"Market":"BTC-USD","LastUpdateTime":"2024-01-01T00:00:00Z"}]}`)

	var out bytes.Buffer
	b := NewBootstrap(&out, talos.WithBaseURL(server.URL), talos.WithHTTPClient(server.Client()))
	require.NoError(t, b.Initialize(configPath, ""))
	require.NoError(t, b.Sync(context.Background(), "", statePath))

	assert.Nil(t, b.Storage)
	assert.Contains(t, out.String(), `"replication_key_value":"2030-01-01T00:00:00Z"`)
}

func TestBootstrap_Discover(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.json", `{"api_key":"K","api_secret":"S","api_host":"h.example.com"}`)

	b := NewBootstrap(&bytes.Buffer{})
	require.NoError(t, b.Initialize(configPath, ""))

	var out bytes.Buffer
	require.NoError(t, b.Discover(&out))
	assert.Contains(t, out.String(), `"tap_stream_id": "balances"`)
	assert.Contains(t, out.String(), `"forced-replication-method": "INCREMENTAL"`)
}

func TestBootstrap_MissingConfig(t *testing.T) {
	b := NewBootstrap(&bytes.Buffer{})
	err := b.Initialize(filepath.Join(t.TempDir(), "missing.json"), "")
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
}
