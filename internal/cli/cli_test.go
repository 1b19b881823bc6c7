package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/asungur/beacon"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type collector struct {
	mu     sync.Mutex
	paths  []string
	bodies []map[string]any
}

func newCollector(t *testing.T) (*collector, *httptest.Server) {
	t.Helper()
	c := &collector{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		_ = json.Unmarshal(body, &decoded)
		c.mu.Lock()
		c.paths = append(c.paths, r.URL.Path)
		c.bodies = append(c.bodies, decoded)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return c, srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beacon.yaml")
	content := "api_key: test-key\norg_name: acme\nbase_url: " + baseURL + "\n" +
		"storage:\n  backend: memory\nauto_events:\n  disabled: true\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	root := NewRootCommand(io.Discard, io.Discard)
	expected := []string{"event", "economy", "message", "log", "flush", "status", "seed", "export"}
	for _, name := range expected {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestEventCommandDelivers(t *testing.T) {
	col, srv := newCollector(t)
	cfg := writeConfig(t, srv.URL)

	out, err := run(t, "--config", cfg, "--wait", "5s", "event", "--kingdom", "ui", "--phylum", "click", "--float1", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Event 0 enqueued")

	col.mu.Lock()
	defer col.mu.Unlock()
	require.Len(t, col.paths, 1)
	assert.Equal(t, "/acme/1/track", col.paths[0])
	assert.Equal(t, "test-key", col.bodies[0]["api_key"])

	events := col.bodies[0]["events"].([]any)
	require.Len(t, events, 1)
	ev := events[0].(map[string]any)
	assert.Equal(t, "ui", ev["kingdom"])
	assert.Equal(t, "click", ev["phylum"])
	assert.Equal(t, float64(3), ev["float1"])
}

func TestLogCommandDelivers(t *testing.T) {
	col, srv := newCollector(t)
	cfg := writeConfig(t, srv.URL)

	_, err := run(t, "--config", cfg, "--wait", "5s", "log", "--level", "error", "payment", "failed")
	require.NoError(t, err)

	col.mu.Lock()
	defer col.mu.Unlock()
	require.Len(t, col.paths, 1)
	assert.Equal(t, "/acme/1/app_log", col.paths[0])
	logs := col.bodies[0]["events"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, "payment failed", logs[0].(map[string]any)["log_line"])
}

func TestEconomyCommandValidates(t *testing.T) {
	_, srv := newCollector(t)
	cfg := writeConfig(t, srv.URL)

	_, err := run(t, "--config", cfg, "economy", "--amount", "4.99")
	require.Error(t, err)
	assert.ErrorIs(t, err, beacon.ErrInvalidInput)
}

func TestStatusOutputFormats(t *testing.T) {
	_, srv := newCollector(t)
	cfg := writeConfig(t, srv.URL)

	out, err := run(t, "--config", cfg, "--output", "json", "status")
	require.NoError(t, err)
	var st beacon.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Ready)
	assert.Len(t, st.DeviceTag, 32)
	assert.Equal(t, strings.TrimRight(srv.URL, "/"), st.BaseURL)

	out, err = run(t, "--config", cfg, "--output", "yaml", "status")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, true, decoded["ready"])

	out, err = run(t, "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "QUEUE")
	assert.Contains(t, out, "events")

	_, err = run(t, "--config", cfg, "--output", "xml", "status")
	assert.Error(t, err)
}

func TestSampleInputs(t *testing.T) {
	inputs := sampleInputs(gofakeit.New(42), 8)
	require.Len(t, inputs, 8)

	counts := map[string]int{}
	for _, in := range inputs {
		switch v := in.(type) {
		case beacon.EventInput:
			counts["event"]++
			assert.NotEmpty(t, v.Kingdom)
		case beacon.EconomyInput:
			counts["economy"]++
			assert.NotEmpty(t, v.Currency)
		case beacon.MessageSendInput:
			counts["message"]++
			assert.NotEmpty(t, v.SenderTag)
			assert.NotEmpty(t, v.RecipientTags)
		case beacon.LogInput:
			counts["log"]++
			assert.NotEmpty(t, v.Line)
		}
	}
	assert.Equal(t, map[string]int{"event": 2, "economy": 2, "message": 2, "log": 2}, counts)
}

func TestSeedCommand(t *testing.T) {
	col, srv := newCollector(t)
	cfg := writeConfig(t, srv.URL)

	out, err := run(t, "--config", cfg, "--wait", "5s", "seed", "--count", "8", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 8 records")

	col.mu.Lock()
	defer col.mu.Unlock()
	var events, logs int
	for i, path := range col.paths {
		n := len(col.bodies[i]["events"].([]any))
		if strings.HasSuffix(path, "/app_log") {
			logs += n
		} else {
			events += n
		}
	}
	assert.Equal(t, 6, events)
	assert.Equal(t, 2, logs)
}

func TestExportCommand(t *testing.T) {
	_, srv := newCollector(t)
	cfg := writeConfig(t, srv.URL)

	out, err := run(t, "--config", cfg, "export", "events", "--format", "csv")
	require.NoError(t, err)
	assert.Empty(t, out, "a fresh memory store has nothing pending")

	_, err = run(t, "--config", cfg, "export", "events", "--format", "xml")
	assert.Error(t, err)
}

func TestStatusAndExportLeaveQueuesAlone(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	cfg := filepath.Join(t.TempDir(), "beacon.yaml")
	content := "api_key: test-key\norg_name: acme\nbase_url: " + srv.URL + "\n" +
		"storage:\n  backend: sqlite\n  path: " + filepath.Join(t.TempDir(), "beacon.db") + "\n" +
		"logging:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o600))

	// install, dau and the event itself stay queued behind the 503.
	_, err := run(t, "--config", cfg, "event", "--kingdom", "ui")
	require.NoError(t, err)
	sent := calls.Load()

	out, err := run(t, "--config", cfg, "export", "events")
	require.NoError(t, err)
	var records []beacon.EventRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	assert.Len(t, records, 3)

	out, err = run(t, "--config", cfg, "--output", "json", "status")
	require.NoError(t, err)
	var st beacon.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 3, st.Events.Pending)

	assert.Equal(t, sent, calls.Load(), "read-only commands never contact the collector")
}
