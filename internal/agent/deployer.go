package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/interchainlabs/hypermcp/internal/registry"
)

const (
	cliRegistryPath = "/workspace/registry"
	cliConfigsPath  = "/workspace/configs"
)

// CLIDeployer runs hyperlane CLI deployments inside a long-lived container.
// The host workDir is bind-mounted at /workspace so the CLI's registry
// output can be read back after each deployment.
type CLIDeployer struct {
	runner    *Runner
	reg       *registry.LocalRegistry
	image     string
	workDir   string
	signerKey string
	logger    *zap.Logger

	mu          sync.Mutex
	containerID string
}

func NewCLIDeployer(runner *Runner, reg *registry.LocalRegistry, image, workDir, signerKey string, logger *zap.Logger) *CLIDeployer {
	return &CLIDeployer{
		runner:    runner,
		reg:       reg,
		image:     image,
		workDir:   workDir,
		signerKey: signerKey,
		logger:    logger,
	}
}

// ensureContainer lazily starts the CLI container the deploy commands exec
// into.
func (d *CLIDeployer) ensureContainer(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.containerID != "" {
		return d.containerID, nil
	}
	for _, dir := range []string{"registry", "configs"} {
		if err := os.MkdirAll(filepath.Join(d.workDir, dir), 0o755); err != nil {
			return "", fmt.Errorf("prepare deployer workdir: %w", err)
		}
	}
	id, err := d.runner.StartContainer(ctx, ContainerSpec{
		Name:  "hyperlane-cli",
		Image: d.image,
		Cmd:   []string{"sleep", "infinity"},
		Binds: []string{fmt.Sprintf("%s:/workspace", d.workDir)},
	})
	if err != nil {
		return "", err
	}
	d.containerID = id
	return id, nil
}

// Close stops the CLI container if one was started.
func (d *CLIDeployer) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.containerID == "" {
		return nil
	}
	err := d.runner.StopContainer(ctx, d.containerID)
	d.containerID = ""
	return err
}

func (d *CLIDeployer) exec(ctx context.Context, cmd, env []string) error {
	id, err := d.ensureContainer(ctx)
	if err != nil {
		return err
	}
	stdout, stderr, err := d.runner.Exec(ctx, id, cmd, env)
	if err != nil {
		d.logger.Error("hyperlane cli command failed",
			zap.Strings("cmd", cmd),
			zap.String("stdout", string(stdout)),
			zap.String("stderr", string(stderr)),
			zap.Error(err))
		return err
	}
	d.logger.Debug("hyperlane cli command succeeded", zap.Strings("cmd", cmd))
	return nil
}

// DeployCore deploys the core mailbox contract set to the chain and returns
// the deployed addresses read back from the CLI registry output.
func (d *CLIDeployer) DeployCore(ctx context.Context, chainName string) (registry.ChainAddresses, error) {
	meta, err := d.reg.RequireChainMetadata(ctx, chainName)
	if err != nil {
		return nil, err
	}
	if err := d.writeCLIMetadata(*meta); err != nil {
		return nil, err
	}

	cmd := []string{
		"hyperlane", "core", "deploy",
		"--chain", chainName,
		"--registry", cliRegistryPath,
		"--yes",
	}
	env := []string{fmt.Sprintf("HYP_KEY=%s", d.signerKey)}
	if err := d.exec(ctx, cmd, env); err != nil {
		return nil, fmt.Errorf("core deploy on %s: %w", chainName, err)
	}

	addrs, err := d.readCLIAddresses(chainName)
	if err != nil {
		return nil, err
	}
	d.logger.Info("core contracts deployed",
		zap.String("chain", chainName),
		zap.Int("contracts", len(addrs)))
	return addrs, nil
}

// DeployWarpRoute deploys the warp route described by the per-chain deploy
// config and returns the resulting token config read back from the CLI
// registry output.
func (d *CLIDeployer) DeployWarpRoute(ctx context.Context, symbol string, deploy registry.WarpDeployConfig) (registry.WarpRouteConfig, error) {
	for name := range deploy {
		meta, err := d.reg.RequireChainMetadata(ctx, name)
		if err != nil {
			return registry.WarpRouteConfig{}, err
		}
		if err := d.writeCLIMetadata(*meta); err != nil {
			return registry.WarpRouteConfig{}, err
		}
	}
	id, err := d.ensureContainer(ctx)
	if err != nil {
		return registry.WarpRouteConfig{}, err
	}
	data, err := yaml.Marshal(deploy)
	if err != nil {
		return registry.WarpRouteConfig{}, err
	}
	if err := d.runner.WriteFile(ctx, id, cliConfigsPath, "warp-config.yaml", data); err != nil {
		return registry.WarpRouteConfig{}, err
	}

	cmd := []string{
		"hyperlane", "warp", "deploy",
		"--config", cliConfigsPath + "/warp-config.yaml",
		"--registry", cliRegistryPath,
		"--yes",
	}
	env := []string{fmt.Sprintf("HYP_KEY=%s", d.signerKey)}
	if err := d.exec(ctx, cmd, env); err != nil {
		return registry.WarpRouteConfig{}, fmt.Errorf("warp deploy %s: %w", symbol, err)
	}

	cfg, err := d.readCLIWarpConfig(symbol)
	if err != nil {
		return registry.WarpRouteConfig{}, err
	}
	d.logger.Info("warp route deployed",
		zap.String("symbol", symbol),
		zap.Int("tokens", len(cfg.Tokens)))
	return cfg, nil
}

// writeCLIMetadata exports a chain's metadata into the CLI registry layout
// (chains/<name>/metadata.yaml).
func (d *CLIDeployer) writeCLIMetadata(meta registry.ChainMetadata) error {
	dir := filepath.Join(d.workDir, "registry", "chains", meta.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare cli chain dir: %w", err)
	}
	return writeYAML(filepath.Join(dir, "metadata.yaml"), meta)
}

// readCLIAddresses loads the addresses.yaml the CLI wrote for a chain.
func (d *CLIDeployer) readCLIAddresses(chainName string) (registry.ChainAddresses, error) {
	path := filepath.Join(d.workDir, "registry", "chains", chainName, "addresses.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deployed addresses: %w", err)
	}
	var addrs registry.ChainAddresses
	if err := yaml.Unmarshal(data, &addrs); err != nil {
		return nil, fmt.Errorf("parse deployed addresses: %w", err)
	}
	return addrs, nil
}

// readCLIWarpConfig loads the warp route token config the CLI wrote for a
// symbol (deployments/warp_routes/<SYMBOL>/...-config.yaml).
func (d *CLIDeployer) readCLIWarpConfig(symbol string) (registry.WarpRouteConfig, error) {
	dir := filepath.Join(d.workDir, "registry", "deployments", "warp_routes", symbol)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return registry.WarpRouteConfig{}, fmt.Errorf("read warp deploy output: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return registry.WarpRouteConfig{}, err
		}
		var cfg registry.WarpRouteConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return registry.WarpRouteConfig{}, fmt.Errorf("parse warp deploy output %s: %w", entry.Name(), err)
		}
		if len(cfg.Tokens) > 0 {
			return cfg, nil
		}
	}
	return registry.WarpRouteConfig{}, fmt.Errorf("warp deploy produced no token config for %s", symbol)
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
