package registry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrRemoveChainUnsupported is returned by RemoveChain unconditionally.
	ErrRemoveChainUnsupported = errors.New("removing chains is not supported")
	// ErrChainMetadataNotFound is returned by RequireChainMetadata when
	// neither the local store nor the remote source knows the chain.
	ErrChainMetadataNotFound = errors.New("chain metadata not found")
)

// LocalRegistry composes the on-disk store with a remote source. Reads merge
// local-first with remote fallback; writes go to the local store only and
// never mutate the remote.
type LocalRegistry struct {
	store  *Store
	source Source
	logger *zap.Logger
}

// New returns a registry over the given store and remote source.
func New(store *Store, source Source, logger *zap.Logger) *LocalRegistry {
	return &LocalRegistry{store: store, source: source, logger: logger}
}

// Store exposes the underlying local store.
func (r *LocalRegistry) Store() *Store { return r.store }

// ChainMetadata returns metadata for a single chain: local cache first, then
// the remote source. A nil result with nil error means neither layer has it.
func (r *LocalRegistry) ChainMetadata(ctx context.Context, name string) (*ChainMetadata, error) {
	if meta, ok := r.store.ChainMetadata(name); ok {
		return &meta, nil
	}
	return r.source.ChainMetadata(ctx, name)
}

// RequireChainMetadata is ChainMetadata with absence promoted to
// ErrChainMetadataNotFound, for callers that cannot proceed without it.
func (r *LocalRegistry) RequireChainMetadata(ctx context.Context, name string) (*ChainMetadata, error) {
	meta, err := r.ChainMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrChainMetadataNotFound, name)
	}
	return meta, nil
}

// Metadata returns the union of remote and local metadata, local entries
// overriding remote on key collision.
func (r *LocalRegistry) Metadata(ctx context.Context) (map[string]ChainMetadata, error) {
	merged, err := r.source.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("remote metadata: %w", err)
	}
	if merged == nil {
		merged = make(map[string]ChainMetadata)
	}
	for name, meta := range r.store.Metadata() {
		merged[name] = meta
	}
	return merged, nil
}

// ChainAddresses resolves contract addresses for a chain with a fixed
// precedence: addresses embedded in local metadata, then the local deploy
// cache, then the on-disk deploy file, then the remote source. The first
// layer that yields data wins.
func (r *LocalRegistry) ChainAddresses(ctx context.Context, name string) (ChainAddresses, error) {
	if meta, ok := r.store.ChainMetadata(name); ok && len(meta.Addresses) > 0 {
		return meta.Addresses, nil
	}
	if addrs, ok := r.store.DeployAddresses(name); ok && len(addrs) > 0 {
		return addrs, nil
	}
	if addrs, ok := r.store.LoadDeployAddressFile(name); ok && len(addrs) > 0 {
		return addrs, nil
	}
	return r.source.ChainAddresses(ctx, name)
}

// Addresses returns the union of remote addresses, embedded metadata
// addresses and local deploy addresses, merged per chain with local deploy
// addresses taking final precedence.
func (r *LocalRegistry) Addresses(ctx context.Context) (map[string]ChainAddresses, error) {
	merged, err := r.source.Addresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("remote addresses: %w", err)
	}
	if merged == nil {
		merged = make(map[string]ChainAddresses)
	}
	for name, meta := range r.store.Metadata() {
		if len(meta.Addresses) > 0 {
			merged[name] = overlay(merged[name], meta.Addresses)
		}
	}
	for name, addrs := range r.store.AllDeployAddresses() {
		merged[name] = overlay(merged[name], addrs)
	}
	return merged, nil
}

func overlay(base ChainAddresses, over ChainAddresses) ChainAddresses {
	out := make(ChainAddresses, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// AddChainParams carries a new chain's metadata and, optionally, its deploy
// addresses.
type AddChainParams struct {
	Metadata        *ChainMetadata
	DeployAddresses ChainAddresses
}

// AddChain writes metadata to its dedicated file and, when deploy addresses
// are supplied and non-empty, writes those to the separate deploy file. The
// two entity families are never cross-written into each other's file.
func (r *LocalRegistry) AddChain(_ context.Context, params AddChainParams) error {
	if params.Metadata == nil {
		return fmt.Errorf("add chain: metadata is required")
	}
	if params.Metadata.Name == "" {
		return fmt.Errorf("add chain: metadata has no chain name")
	}
	if err := r.store.PutChainMetadata(*params.Metadata); err != nil {
		return fmt.Errorf("add chain %s: %w", params.Metadata.Name, err)
	}
	if len(params.DeployAddresses) > 0 {
		if err := r.store.PutDeployAddresses(params.Metadata.Name, params.DeployAddresses); err != nil {
			return fmt.Errorf("add chain %s: %w", params.Metadata.Name, err)
		}
	}
	r.logger.Info("chain added to local registry",
		zap.String("chain", params.Metadata.Name),
		zap.Int("deployAddresses", len(params.DeployAddresses)))
	return nil
}

// UpdateChainParams carries the two independent address update paths.
type UpdateChainParams struct {
	Name string
	// MetadataAddresses replaces the addresses field embedded in the chain
	// metadata file.
	MetadataAddresses map[string]string
	// DeployAddresses is shallow-merged into the deploy address file: new
	// keys overwrite same-named existing keys, other keys are preserved.
	DeployAddresses ChainAddresses
}

// UpdateChain updates the embedded metadata addresses and/or the deploy
// address file. Supplying only one kind leaves the other file untouched.
func (r *LocalRegistry) UpdateChain(_ context.Context, params UpdateChainParams) error {
	if params.Name == "" {
		return fmt.Errorf("update chain: chain name is required")
	}

	if params.MetadataAddresses != nil {
		meta, ok := r.store.ChainMetadata(params.Name)
		if !ok {
			meta = ChainMetadata{Name: params.Name}
		}
		meta.Addresses = params.MetadataAddresses
		if err := r.store.PutChainMetadata(meta); err != nil {
			return fmt.Errorf("update chain %s metadata: %w", params.Name, err)
		}
	}

	if len(params.DeployAddresses) > 0 {
		existing, _ := r.store.DeployAddresses(params.Name)
		if err := r.store.PutDeployAddresses(params.Name, overlay(existing, params.DeployAddresses)); err != nil {
			return fmt.Errorf("update chain %s deploy addresses: %w", params.Name, err)
		}
	}

	return nil
}

// RemoveChain fails unconditionally; chain removal is explicitly unsupported.
func (r *LocalRegistry) RemoveChain(string) error {
	return ErrRemoveChainUnsupported
}

// AddWarpRoute derives the route ID, persists the config and returns the ID.
func (r *LocalRegistry) AddWarpRoute(cfg WarpRouteConfig, symbol string) (string, error) {
	id := RouteID(cfg, symbol)
	if err := r.store.PutWarpRoute(id, cfg); err != nil {
		return "", err
	}
	r.logger.Info("warp route added", zap.String("routeId", id), zap.Int("tokens", len(cfg.Tokens)))
	return id, nil
}

// WarpRoutes merges remote and local routes. The filter is applied to local
// routes only; the remote source is trusted to have filtered its own results.
func (r *LocalRegistry) WarpRoutes(ctx context.Context, filter *RouteFilter) (map[string]WarpRouteConfig, error) {
	merged, err := r.source.WarpRoutes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("remote warp routes: %w", err)
	}
	if merged == nil {
		merged = make(map[string]WarpRouteConfig)
	}
	for id, cfg := range r.store.WarpRoutes() {
		if filter.Matches(cfg) {
			merged[id] = cfg
		}
	}
	return merged, nil
}

// RouteMatch pairs a route ID with its config.
type RouteMatch struct {
	ID     string
	Config WarpRouteConfig
}

// WarpRoutesBySymbolAndChains returns routes matching the symbol (all routes
// when empty) whose chain set covers every requested chain. Routes spanning
// only a subset of the requested chains are excluded. Any internal failure
// degrades to an empty result; this path never returns an error.
func (r *LocalRegistry) WarpRoutesBySymbolAndChains(ctx context.Context, symbol string, chainNames []string) []RouteMatch {
	var filter *RouteFilter
	if symbol != "" {
		filter = &RouteFilter{Symbol: symbol}
	}
	routes, err := r.WarpRoutes(ctx, filter)
	if err != nil {
		r.logger.Warn("warp route lookup degraded to empty",
			zap.String("symbol", symbol), zap.Error(err))
		return []RouteMatch{}
	}

	matches := make([]RouteMatch, 0, len(routes))
	for id, cfg := range routes {
		if !routeCoversChains(cfg, chainNames) {
			continue
		}
		matches = append(matches, RouteMatch{ID: id, Config: cfg})
	}
	return matches
}

// WarpDeployConfigsBySymbolAndChains returns the deploy configs of routes
// matched by WarpRoutesBySymbolAndChains, keyed by the recomputed route ID.
// Same never-error policy as the route lookup.
func (r *LocalRegistry) WarpDeployConfigsBySymbolAndChains(ctx context.Context, symbol string, chainNames []string) map[string]WarpDeployConfig {
	matches := r.WarpRoutesBySymbolAndChains(ctx, symbol, chainNames)
	if len(matches) == 0 {
		return map[string]WarpDeployConfig{}
	}
	deploys, err := r.source.WarpDeployConfigs(ctx)
	if err != nil {
		r.logger.Warn("warp deploy config lookup degraded to empty", zap.Error(err))
		return map[string]WarpDeployConfig{}
	}
	out := make(map[string]WarpDeployConfig, len(matches))
	for _, match := range matches {
		id := RouteID(match.Config, symbol)
		if cfg, ok := deploys[id]; ok {
			out[id] = cfg
		}
	}
	return out
}

func routeCoversChains(cfg WarpRouteConfig, chainNames []string) bool {
	if len(chainNames) == 0 {
		return true
	}
	chains := cfg.Chains()
	for _, name := range chainNames {
		if _, ok := chains[name]; !ok {
			return false
		}
	}
	return true
}
