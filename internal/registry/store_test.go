package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestNewStore_BootstrapIsIdempotent(t *testing.T) {
	root := t.TempDir()
	logger := zaptest.NewLogger(t)

	_, err := NewStore(root, logger)
	require.NoError(t, err)

	// constructing again over the same directories must not fail
	_, err = NewStore(root, logger)
	require.NoError(t, err)

	for _, dir := range []string{"chains", "routes", "agents"} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestStore_ReadAfterWriteServedFromCache(t *testing.T) {
	s := newTestStore(t)

	meta := ChainMetadata{Name: "anvil1", ChainID: 31337, DomainID: 31337, Protocol: "ethereum"}
	require.NoError(t, s.PutChainMetadata(meta))

	// remove the file; cache must still answer
	require.NoError(t, os.Remove(filepath.Join(s.Root(), "chains", "anvil1.yaml")))

	got, ok := s.ChainMetadata("anvil1")
	require.True(t, ok)
	require.Equal(t, meta, got)
}

func TestStore_StartupScanPopulatesAllFamilies(t *testing.T) {
	root := t.TempDir()
	logger := zaptest.NewLogger(t)

	first, err := NewStore(root, logger)
	require.NoError(t, err)

	require.NoError(t, first.PutChainMetadata(ChainMetadata{Name: "anvil1", ChainID: 31337, DomainID: 31337, Protocol: "ethereum"}))
	require.NoError(t, first.PutDeployAddresses("anvil1", ChainAddresses{"mailbox": "0xMB"}))
	require.NoError(t, first.PutWarpRoute("USDC-deadbeef", twoChainRoute()))

	second, err := NewStore(root, logger)
	require.NoError(t, err)

	_, ok := second.ChainMetadata("anvil1")
	require.True(t, ok)
	addrs, ok := second.DeployAddresses("anvil1")
	require.True(t, ok)
	require.Equal(t, "0xMB", addrs["mailbox"])
	_, ok = second.WarpRoute("USDC-deadbeef")
	require.True(t, ok)
}

func TestStore_CorruptFileIsSkippedNotFatal(t *testing.T) {
	root := t.TempDir()
	logger := zaptest.NewLogger(t)

	first, err := NewStore(root, logger)
	require.NoError(t, err)
	require.NoError(t, first.PutChainMetadata(ChainMetadata{Name: "good", ChainID: 1, DomainID: 1, Protocol: "ethereum"}))

	require.NoError(t, os.WriteFile(filepath.Join(root, "chains", "bad.yaml"), []byte("{not: [valid"), 0o644))

	second, err := NewStore(root, logger)
	require.NoError(t, err)

	_, ok := second.ChainMetadata("good")
	require.True(t, ok)
	_, ok = second.ChainMetadata("bad")
	require.False(t, ok)
}

func TestStore_FileSeparation(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.PutChainMetadata(ChainMetadata{
		Name:     "anvil1",
		ChainID:  31337,
		DomainID: 31337,
		Protocol: "ethereum",
		RpcURLs:  []Endpoint{{HTTP: "http://localhost:8545"}},
	}))
	require.NoError(t, s.PutDeployAddresses("anvil1", ChainAddresses{
		"mailbox":                  "0xMB",
		"interchainSecurityModule": "0xISM",
	}))

	metaRaw, err := os.ReadFile(filepath.Join(s.Root(), "chains", "anvil1.yaml"))
	require.NoError(t, err)
	var metaDoc map[string]any
	require.NoError(t, yaml.Unmarshal(metaRaw, &metaDoc))
	require.NotContains(t, metaDoc, "mailbox")
	require.NotContains(t, metaDoc, "interchainSecurityModule")

	deployRaw, err := os.ReadFile(filepath.Join(s.Root(), "chains", "anvil1.deploy.yaml"))
	require.NoError(t, err)
	var deployDoc map[string]any
	require.NoError(t, yaml.Unmarshal(deployRaw, &deployDoc))
	require.NotContains(t, deployDoc, "name")
	require.NotContains(t, deployDoc, "rpcUrls")
	require.Equal(t, "0xMB", deployDoc["mailbox"])
}

func TestStore_StartupScanHandlesYmlDeployFiles(t *testing.T) {
	root := t.TempDir()
	logger := zaptest.NewLogger(t)

	b, err := yaml.Marshal(ChainAddresses{"mailbox": "0xMB"})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "chains"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "chains", "anvil1.deploy.yml"), b, 0o644))

	s, err := NewStore(root, logger)
	require.NoError(t, err)

	addrs, ok := s.DeployAddresses("anvil1")
	require.True(t, ok)
	require.Equal(t, "0xMB", addrs["mailbox"])

	// the deploy file must not masquerade as metadata for "anvil1.deploy"
	_, ok = s.ChainMetadata("anvil1.deploy")
	require.False(t, ok)
}

func TestStore_LoadDeployAddressFile_TriesYamlThenYml(t *testing.T) {
	s := newTestStore(t)

	b, err := yaml.Marshal(ChainAddresses{"mailbox": "0xYML"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "chains", "late.deploy.yml"), b, 0o644))

	addrs, ok := s.LoadDeployAddressFile("late")
	require.True(t, ok)
	require.Equal(t, "0xYML", addrs["mailbox"])

	// cached now
	cached, ok := s.DeployAddresses("late")
	require.True(t, ok)
	require.Equal(t, addrs, cached)
}

func TestStore_RouteFileExists(t *testing.T) {
	s := newTestStore(t)
	require.False(t, s.RouteFileExists("USDC-deadbeef"))
	require.NoError(t, s.PutWarpRoute("USDC-deadbeef", twoChainRoute()))
	require.True(t, s.RouteFileExists("USDC-deadbeef"))
}
