package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":4096", cfg.ListenAddr)
	require.Equal(t, "HYP_KEY", cfg.Signer.KeyEnv)
	require.Equal(t, 120*time.Second, cfg.Transfer.HopTimeout.Std())
	require.Equal(t, uint(60), cfg.Transfer.MaxPolls)
	require.NotEmpty(t, cfg.Registry.StoragePath)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr = ":9999"
log_file = "/var/log/hypermcp.log"

[registry]
storage_path = "/data/registry"
remote_url = "https://registry.example.com"

[transfer]
hop_timeout = "30s"
poll_interval = "2s"
max_polls = 10
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.ListenAddr)
	require.Equal(t, "/data/registry", cfg.Registry.StoragePath)
	require.Equal(t, "https://registry.example.com", cfg.Registry.RemoteURL)
	require.Equal(t, 30*time.Second, cfg.Transfer.HopTimeout.Std())
	require.Equal(t, uint(10), cfg.Transfer.MaxPolls)
	// Untouched sections keep their defaults.
	require.Equal(t, "HYP_KEY", cfg.Signer.KeyEnv)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`listen_addr = ""`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestSignerKeyFromEnv(t *testing.T) {
	t.Setenv("HYP_KEY", "0xabc123")
	cfg := Default()
	require.Equal(t, "0xabc123", cfg.SignerKey())
}
