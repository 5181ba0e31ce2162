package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	chainsDir = "chains"
	routesDir = "routes"
	agentsDir = "agents"

	deploySuffix    = ".deploy.yaml"
	deploySuffixAlt = ".deploy.yml"
)

// Store persists three independent entity families under a root directory:
//
//	<root>/chains/<name>.yaml        chain metadata (no deploy addresses)
//	<root>/chains/<name>.deploy.yaml deploy address map only
//	<root>/routes/<routeId>.yaml     warp route configs
//
// All reads after construction are served from in-memory maps; writes update
// the map and the file together. The store assumes a single process owns the
// directory tree.
type Store struct {
	root   string
	logger *zap.Logger

	chains  map[string]ChainMetadata
	deploys map[string]ChainAddresses
	routes  map[string]WarpRouteConfig
}

// NewStore bootstraps the directory tree and scans any existing entity files
// into memory. A file that fails to parse is logged and skipped; it never
// aborts startup.
func NewStore(root string, logger *zap.Logger) (*Store, error) {
	for _, dir := range []string{chainsDir, routesDir, agentsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("bootstrap %s dir: %w", dir, err)
		}
	}

	s := &Store{
		root:    root,
		logger:  logger,
		chains:  make(map[string]ChainMetadata),
		deploys: make(map[string]ChainAddresses),
		routes:  make(map[string]WarpRouteConfig),
	}

	s.scanChains()
	s.scanRoutes()

	return s, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string { return s.root }

// AgentConfigPath returns the path of the agent config file for a chain.
func (s *Store) AgentConfigPath(chainName string) string {
	return filepath.Join(s.root, agentsDir, fmt.Sprintf("%s-agent-config.json", chainName))
}

func (s *Store) scanChains() {
	entries, err := os.ReadDir(filepath.Join(s.root, chainsDir))
	if err != nil {
		s.logger.Warn("chain scan failed", zap.Error(err))
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.root, chainsDir, name)
		switch {
		case strings.HasSuffix(name, deploySuffix) || strings.HasSuffix(name, deploySuffixAlt):
			chain := strings.TrimSuffix(strings.TrimSuffix(name, deploySuffix), deploySuffixAlt)
			var addrs ChainAddresses
			if err := readYAMLFile(path, &addrs); err != nil {
				s.logger.Warn("skipping unreadable deploy file", zap.String("file", name), zap.Error(err))
				continue
			}
			s.deploys[chain] = addrs
		case strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml"):
			chain := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
			var meta ChainMetadata
			if err := readYAMLFile(path, &meta); err != nil {
				s.logger.Warn("skipping unreadable metadata file", zap.String("file", name), zap.Error(err))
				continue
			}
			s.chains[chain] = meta
		}
	}
}

func (s *Store) scanRoutes() {
	entries, err := os.ReadDir(filepath.Join(s.root, routesDir))
	if err != nil {
		s.logger.Warn("route scan failed", zap.Error(err))
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		var cfg WarpRouteConfig
		if err := readYAMLFile(filepath.Join(s.root, routesDir, name), &cfg); err != nil {
			s.logger.Warn("skipping unreadable route file", zap.String("file", name), zap.Error(err))
			continue
		}
		s.routes[strings.TrimSuffix(name, ".yaml")] = cfg
	}
}

// ChainMetadata returns cached metadata for a chain.
func (s *Store) ChainMetadata(name string) (ChainMetadata, bool) {
	meta, ok := s.chains[name]
	return meta, ok
}

// Metadata returns a copy of the cached metadata map.
func (s *Store) Metadata() map[string]ChainMetadata {
	out := make(map[string]ChainMetadata, len(s.chains))
	for name, meta := range s.chains {
		out[name] = meta
	}
	return out
}

// PutChainMetadata writes chain metadata to its dedicated file and updates
// the cache.
func (s *Store) PutChainMetadata(meta ChainMetadata) error {
	if meta.Name == "" {
		return fmt.Errorf("chain metadata has no name")
	}
	path := filepath.Join(s.root, chainsDir, meta.Name+".yaml")
	if err := writeYAMLFile(path, meta); err != nil {
		return fmt.Errorf("write metadata for %s: %w", meta.Name, err)
	}
	s.chains[meta.Name] = meta
	return nil
}

// DeployAddresses returns cached deploy addresses for a chain.
func (s *Store) DeployAddresses(name string) (ChainAddresses, bool) {
	addrs, ok := s.deploys[name]
	return addrs, ok
}

// AllDeployAddresses returns a copy of the cached deploy address map.
func (s *Store) AllDeployAddresses() map[string]ChainAddresses {
	out := make(map[string]ChainAddresses, len(s.deploys))
	for name, addrs := range s.deploys {
		out[name] = addrs
	}
	return out
}

// PutDeployAddresses writes a chain's deploy address map to its dedicated
// file and updates the cache. Metadata is never touched.
func (s *Store) PutDeployAddresses(chainName string, addrs ChainAddresses) error {
	path := filepath.Join(s.root, chainsDir, chainName+deploySuffix)
	if err := writeYAMLFile(path, addrs); err != nil {
		return fmt.Errorf("write deploy addresses for %s: %w", chainName, err)
	}
	s.deploys[chainName] = addrs
	return nil
}

// LoadDeployAddressFile reads a chain's deploy address file from disk,
// trying the .yaml extension and then .yml, and caches the result. Used for
// files dropped into the directory after startup.
func (s *Store) LoadDeployAddressFile(chainName string) (ChainAddresses, bool) {
	base := filepath.Join(s.root, chainsDir, chainName+".deploy")
	for _, ext := range []string{".yaml", ".yml"} {
		var addrs ChainAddresses
		if err := readYAMLFile(base+ext, &addrs); err != nil {
			continue
		}
		s.deploys[chainName] = addrs
		return addrs, true
	}
	return nil, false
}

// WarpRoute returns a cached warp route by ID.
func (s *Store) WarpRoute(id string) (WarpRouteConfig, bool) {
	cfg, ok := s.routes[id]
	return cfg, ok
}

// WarpRoutes returns a copy of the cached warp route map.
func (s *Store) WarpRoutes() map[string]WarpRouteConfig {
	out := make(map[string]WarpRouteConfig, len(s.routes))
	for id, cfg := range s.routes {
		out[id] = cfg
	}
	return out
}

// PutWarpRoute persists a warp route under its derived ID.
func (s *Store) PutWarpRoute(id string, cfg WarpRouteConfig) error {
	path := filepath.Join(s.root, routesDir, id+".yaml")
	if err := writeYAMLFile(path, cfg); err != nil {
		return fmt.Errorf("write warp route %s: %w", id, err)
	}
	s.routes[id] = cfg
	return nil
}

// RouteFileExists reports whether a route file is already persisted for the
// given ID, without touching the cache.
func (s *Store) RouteFileExists(id string) bool {
	_, err := os.Stat(filepath.Join(s.root, routesDir, id+".yaml"))
	return err == nil
}

func readYAMLFile(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeYAMLFile writes via a temp file and rename so a concurrent reader
// never observes a partially written file.
func writeYAMLFile(path string, in any) error {
	b, err := yaml.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
