package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[node]
host = "127.0.0.1:8332"
user = "bitcoinrpc"
pass = "hunter2"
disable_tls = true
block_cache_size = 8

[db]
uri = "mongodb://localhost:27017"
database = "btcprover"

[logger]
level = "debug"

[prover]
commitment_policy = "degrade"
fallback_quota = 3
fallback_window = "90m"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8332", cfg.Node.Host)
	require.True(t, cfg.Node.DisableTLS)
	require.Equal(t, 8, cfg.Node.BlockCacheSize)
	require.Equal(t, "btcprover", cfg.DB.Database)
	require.Equal(t, "debug", cfg.Logger.Level)
	require.Equal(t, "degrade", cfg.Prover.CommitmentPolicy)
	require.Equal(t, 3, cfg.Prover.FallbackQuota)
	require.Equal(t, 90*time.Minute, cfg.Prover.FallbackWindow.Duration)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
[node]
host = "127.0.0.1:8332"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Logger.Level)
	require.Equal(t, "strict", cfg.Prover.CommitmentPolicy)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[node]
host = "127.0.0.1:8332"
hots = "typo"
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "undecoded")
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeConfig(t, `
[prover]
fallback_window = "soon"
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
