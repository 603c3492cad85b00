package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	content := `
server:
  port: 9000
  timezone: UTC
database:
  tx_timeout_ms: 1500
webhook:
  providers:
    - name: OpenPix
      secret: s3cret
feature_flags:
  auto_settle: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := loadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.TxTimeout())
	assert.Equal(t, "s3cret", cfg.WebhookSecret("openpix"))
	assert.Equal(t, "", cfg.WebhookSecret("other"))
	assert.Equal(t, time.UTC, cfg.Location())

	SetCurrent(cfg)
	t.Cleanup(func() { SetCurrent(nil) })
	assert.True(t, GetFeatureFlag("auto_settle"))
	assert.False(t, GetFeatureFlag("missing"))
	assert.Equal(t, int64(7), GetThreshold("missing", 7))
}

func TestLoadFromFileRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.toml")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o600))

	_, err := loadFromFile(path)
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	var cfg *Config
	assert.Equal(t, 3*time.Second, cfg.TxTimeout())
	assert.Equal(t, "", cfg.WebhookSecret("openpix"))
}
