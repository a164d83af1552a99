package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors t.Chdir (Go 1.24+): change into dir and restore the
// original working directory on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_ENV", "dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, int64(32768), cfg.ReadLimit)
	assert.Equal(t, 30*time.Second, cfg.PingPeriod)
	assert.Equal(t, "turn:turn.example.com:443", cfg.Turn.URL)
	assert.Equal(t, 86400, cfg.Turn.TTL)
	// No configured secret: an ephemeral one is generated so the cookie
	// store never runs on an empty key.
	assert.NotEmpty(t, cfg.Secret)
}

func TestGeneratedSecretsAreUnique(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_ENV", "dev")

	a, err := Load()
	require.NoError(t, err)
	b, err := Load()
	require.NoError(t, err)
	assert.NotEqual(t, a.Secret, b.Secret)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := `mode: debug
port: 9090
ping_period: 15s
secret: filesecret
turn:
  url: turn:turn.local:3478
  secret: turnsecret
  ttl: 600
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644))
	chdir(t, dir)
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.PingPeriod)
	assert.Equal(t, "filesecret", cfg.Secret)
	assert.Equal(t, "turn:turn.local:3478", cfg.Turn.URL)
	assert.Equal(t, "turnsecret", cfg.Turn.Secret)
	assert.Equal(t, 600, cfg.Turn.TTL)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"),
		[]byte("port: [not a number\n"), 0o644))
	chdir(t, dir)
	t.Setenv("CONFIG_ENV", "test")

	_, err := Load()
	require.Error(t, err)
}
