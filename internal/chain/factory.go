package chain

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/interchainlabs/hypermcp/internal/registry"
)

// RegistryFactory builds providers from registry chain metadata and caches
// them per chain. Only ethereum-protocol chains are supported.
type RegistryFactory struct {
	reg    *registry.LocalRegistry
	hexKey string
	logger *zap.Logger

	mu        sync.Mutex
	providers map[string]Provider
}

func NewRegistryFactory(reg *registry.LocalRegistry, hexKey string, logger *zap.Logger) *RegistryFactory {
	return &RegistryFactory{
		reg:       reg,
		hexKey:    hexKey,
		logger:    logger,
		providers: make(map[string]Provider),
	}
}

// Provider returns a cached provider for the chain, dialing it on first use.
func (f *RegistryFactory) Provider(ctx context.Context, chainName string) (Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.providers[chainName]; ok {
		return p, nil
	}

	meta, err := f.reg.RequireChainMetadata(ctx, chainName)
	if err != nil {
		return nil, err
	}
	if meta.Protocol != "" && meta.Protocol != "ethereum" {
		return nil, fmt.Errorf("chain %s: unsupported protocol %q", chainName, meta.Protocol)
	}
	if len(meta.RpcURLs) == 0 {
		return nil, fmt.Errorf("chain %s: no rpc urls in metadata", chainName)
	}

	p, err := NewEVMProvider(ctx, chainName, meta.RpcURLs[0].HTTP, f.hexKey, f.logger)
	if err != nil {
		return nil, err
	}
	f.providers[chainName] = p
	return p, nil
}

// Close releases every cached provider connection.
func (f *RegistryFactory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, p := range f.providers {
		p.Close()
		delete(f.providers, name)
	}
}
