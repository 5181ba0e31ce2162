package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the server configuration, loaded from a TOML file with optional
// environment overrides for secrets.
type Config struct {
	// ListenAddr is the MCP streamable HTTP listen address.
	ListenAddr string `toml:"listen_addr"`
	// LogFile receives a copy of the structured log stream. Empty defaults
	// to run.log under the registry storage path.
	LogFile string `toml:"log_file"`

	Registry RegistryConfig `toml:"registry"`
	Signer   SignerConfig   `toml:"signer"`
	Agents   AgentsConfig   `toml:"agents"`
	Transfer TransferConfig `toml:"transfer"`
}

// RegistryConfig locates the layered registry storage.
type RegistryConfig struct {
	// StoragePath is the local registry root directory.
	StoragePath string `toml:"storage_path"`
	// RemoteURL is the base URL of a remote registry source. Empty runs
	// local-only.
	RemoteURL string `toml:"remote_url"`
}

// SignerConfig holds the transaction signing key.
type SignerConfig struct {
	// KeyEnv names the environment variable carrying the hex private key.
	KeyEnv string `toml:"key_env"`
}

// AgentsConfig controls validator, relayer and deployer containers.
type AgentsConfig struct {
	// Image is the hyperlane agent image ref used for both agent types.
	Image string `toml:"image"`
	// CLIImage is the hyperlane CLI image used for contract deployments.
	CLIImage string `toml:"cli_image"`
	// DockerNetworkID attaches agent containers to an existing network.
	// Empty uses the default bridge.
	DockerNetworkID string `toml:"docker_network_id"`
}

// TransferConfig tunes the transfer engine timing.
type TransferConfig struct {
	HopTimeout   duration `toml:"hop_timeout"`
	PollInterval duration `toml:"poll_interval"`
	MaxPolls     uint     `toml:"max_polls"`
}

// duration is a time.Duration that decodes from TOML strings like "120s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func (d duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is given.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		ListenAddr: ":4096",
		Registry: RegistryConfig{
			StoragePath: filepath.Join(home, ".hypermcp", "registry"),
		},
		Signer: SignerConfig{
			KeyEnv: "HYP_KEY",
		},
		Agents: AgentsConfig{
			Image:    "gcr.io/abacus-labs-dev/hyperlane-agent:agents-v1.4.0",
			CLIImage: "gcr.io/abacus-labs-dev/hyperlane-cli:latest",
		},
		Transfer: TransferConfig{
			HopTimeout:   duration(120 * time.Second),
			PollInterval: duration(10 * time.Second),
			MaxPolls:     60,
		},
	}
}

// Load reads the config file and layers it over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.Registry.StoragePath == "" {
		return fmt.Errorf("registry.storage_path is required")
	}
	if c.Transfer.MaxPolls == 0 {
		return fmt.Errorf("transfer.max_polls must be positive")
	}
	return nil
}

// SignerKey resolves the signing key from the configured environment
// variable. A missing key is allowed: read-only operations still work.
func (c Config) SignerKey() string {
	return os.Getenv(c.Signer.KeyEnv)
}
