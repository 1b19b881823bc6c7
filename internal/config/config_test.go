package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/asungur/beacon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		// An explicit path that does not exist is an error, not a fallback.
		t.Fatalf("expected error for missing explicit config file, got %+v", cfg)
	}

	empty := filepath.Join(t.TempDir(), "beacon.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("org_name: acme\n"), 0o600))
	cfg, err = Load(empty)
	require.NoError(t, err)

	assert.Equal(t, beacon.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, beacon.DefaultNamespace, cfg.Namespace)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, beacon.DefaultBatchSize, cfg.Delivery.BatchSize)
	assert.Equal(t, time.Second, cfg.Delivery.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Delivery.HTTPTimeout)
	assert.Equal(t, 12*time.Hour, cfg.AutoEvents.DAUCheckInterval)
	assert.Equal(t, 24*time.Hour, cfg.AutoEvents.DAUWindow)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.yaml")
	err := os.WriteFile(path, []byte(`
api_key: file-key
org_name: acme
storage:
  backend: sqlite
  path: /tmp/beacon.db
delivery:
  batch_size: 25
  retry_base_delay: 250ms
`), 0o600)
	require.NoError(t, err)

	t.Setenv("BEACON_API_KEY", "env-key")
	t.Setenv("BEACON_DELIVERY_MAX_RETRY_DELAY", "1m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "acme", cfg.OrgName)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/beacon.db", cfg.Storage.Path)
	assert.Equal(t, 25, cfg.Delivery.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Delivery.RetryBaseDelay)
	assert.Equal(t, time.Minute, cfg.Delivery.MaxRetryDelay)

	client := cfg.Client()
	assert.Equal(t, "env-key", client.APIKey)
	assert.Equal(t, 25, client.BatchSize)
	assert.Equal(t, time.Minute, client.MaxRetryDelay)
}
