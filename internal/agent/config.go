package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/interchainlabs/hypermcp/internal/registry"
)

// Config is the JSON configuration consumed by hyperlane agent binaries via
// the CONFIG_FILES environment variable.
type Config struct {
	Chains                  map[string]ChainConfig `json:"chains"`
	DefaultRpcConsensusType string                 `json:"defaultRpcConsensusType"`

	// Relayer-only.
	RelayChains    string         `json:"relayChains,omitempty"`
	AllowLocalCSRs bool           `json:"allowLocalCheckpointSyncers,omitempty"`
	GasPaymentPol  *GasPaymentPol `json:"gasPaymentEnforcement,omitempty"`

	// Validator-only.
	OriginChainName  string            `json:"originChainName,omitempty"`
	Validator        *SignerConfig     `json:"validator,omitempty"`
	CheckpointSyncer *CheckpointSyncer `json:"checkpointSyncer,omitempty"`
	Interval         int               `json:"interval,omitempty"`
}

// ChainConfig is the per-chain section of an agent config.
type ChainConfig struct {
	Name        string                `json:"name"`
	DisplayName string                `json:"displayName,omitempty"`
	ChainID     uint64                `json:"chainId"`
	DomainID    uint32                `json:"domainId"`
	Protocol    string                `json:"protocol"`
	IsTestnet   bool                  `json:"isTestnet,omitempty"`
	NativeToken *registry.NativeToken `json:"nativeToken,omitempty"`
	Blocks      *registry.BlockConfig `json:"blocks,omitempty"`
	RpcURLs     []registry.Endpoint   `json:"rpcUrls,omitempty"`
	Signer      *SignerConfig         `json:"signer,omitempty"`

	Mailbox                  string `json:"mailbox,omitempty"`
	InterchainGasPaymaster   string `json:"interchainGasPaymaster,omitempty"`
	InterchainSecurityModule string `json:"interchainSecurityModule,omitempty"`
	MerkleTreeHook           string `json:"merkleTreeHook,omitempty"`
	ValidatorAnnounce        string `json:"validatorAnnounce,omitempty"`
}

// SignerConfig identifies a signing key for an agent.
type SignerConfig struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// CheckpointSyncer tells a validator where to publish signed checkpoints.
type CheckpointSyncer struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// GasPaymentPol relaxes gas payment enforcement for local relaying.
type GasPaymentPol struct {
	Type string `json:"type"`
}

// Builder assembles agent configs from registry state.
type Builder struct {
	reg *registry.LocalRegistry
	// signerKey is the hex private key shared by locally launched agents.
	signerKey string
}

func NewBuilder(reg *registry.LocalRegistry, signerKey string) *Builder {
	return &Builder{reg: reg, signerKey: signerKey}
}

// chainConfig resolves one chain's metadata and deployed addresses into the
// agent config shape.
func (b *Builder) chainConfig(ctx context.Context, name string) (ChainConfig, error) {
	meta, err := b.reg.RequireChainMetadata(ctx, name)
	if err != nil {
		return ChainConfig{}, err
	}
	addrs, err := b.reg.ChainAddresses(ctx, name)
	if err != nil {
		return ChainConfig{}, fmt.Errorf("resolve %s addresses: %w", name, err)
	}
	if addrs["mailbox"] == "" {
		return ChainConfig{}, fmt.Errorf("chain %s has no mailbox deployed", name)
	}

	return ChainConfig{
		Name:        meta.Name,
		DisplayName: meta.DisplayName,
		ChainID:     meta.ChainID,
		DomainID:    meta.DomainID,
		Protocol:    meta.Protocol,
		IsTestnet:   meta.IsTestnet,
		NativeToken: meta.NativeToken,
		Blocks:      meta.Blocks,
		RpcURLs:     meta.RpcURLs,
		Signer:      &SignerConfig{Type: "hexKey", Key: b.signerKey},

		Mailbox:                  addrs["mailbox"],
		InterchainGasPaymaster:   addrs["interchainGasPaymaster"],
		InterchainSecurityModule: addrs["interchainSecurityModule"],
		MerkleTreeHook:           addrs["merkleTreeHook"],
		ValidatorAnnounce:        addrs["validatorAnnounce"],
	}, nil
}

// BuildValidatorConfig produces the config for a validator watching one chain.
func (b *Builder) BuildValidatorConfig(ctx context.Context, chainName, checkpointPath string) (*Config, error) {
	cc, err := b.chainConfig(ctx, chainName)
	if err != nil {
		return nil, err
	}
	return &Config{
		Chains:                  map[string]ChainConfig{chainName: cc},
		DefaultRpcConsensusType: "fallback",
		OriginChainName:         chainName,
		Validator:               &SignerConfig{Type: "hexKey", Key: b.signerKey},
		CheckpointSyncer:        &CheckpointSyncer{Type: "localStorage", Path: checkpointPath},
		Interval:                5,
	}, nil
}

// BuildRelayerConfig produces the config for a relayer moving messages
// between the given chains.
func (b *Builder) BuildRelayerConfig(ctx context.Context, chainNames []string) (*Config, error) {
	if len(chainNames) < 2 {
		return nil, fmt.Errorf("relayer needs at least two chains, got %d", len(chainNames))
	}
	cfg := &Config{
		Chains:                  make(map[string]ChainConfig, len(chainNames)),
		DefaultRpcConsensusType: "fallback",
		RelayChains:             strings.Join(chainNames, ","),
		AllowLocalCSRs:          true,
		GasPaymentPol:           &GasPaymentPol{Type: "none"},
	}
	for _, name := range chainNames {
		cc, err := b.chainConfig(ctx, name)
		if err != nil {
			return nil, err
		}
		cfg.Chains[name] = cc
	}
	return cfg, nil
}

// WriteConfig serializes the config to the registry's agents directory under
// the chain's name and returns the written path.
func (b *Builder) WriteConfig(chainName string, cfg *Config) (string, error) {
	path := b.reg.Store().AgentConfigPath(chainName)
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return "", fmt.Errorf("serialize agent config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return path, nil
}
