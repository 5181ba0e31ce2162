package agent

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type distinguishes the two hyperlane agent binaries.
type Type string

const (
	TypeValidator Type = "validator"
	TypeRelayer   Type = "relayer"
)

const (
	// configMountDir is where the registry agents directory is mounted
	// inside agent containers.
	configMountDir = "/etc/hyperlane"
	// checkpointDir is where validators write signed checkpoints.
	checkpointDir = "/tmp/checkpoints"
)

// Agent is a launched validator or relayer container.
type Agent struct {
	ID          string   `json:"id"`
	Type        Type     `json:"type"`
	Chains      []string `json:"chains"`
	ContainerID string   `json:"containerId"`
	ConfigPath  string   `json:"configPath"`
}

// ContainerRunner is the container lifecycle surface Manager depends on.
type ContainerRunner interface {
	StartContainer(ctx context.Context, spec ContainerSpec) (string, error)
	StopContainer(ctx context.Context, containerID string) error
	Status(ctx context.Context, containerID string) (string, error)
	CreateVolume(ctx context.Context, name string) error
}

// Manager launches and tracks agent containers. Configs are generated into
// the registry's agents directory and bind-mounted into each container.
type Manager struct {
	runner  ContainerRunner
	builder *Builder
	image   string
	hostDir string
	logger  *zap.Logger

	mu     sync.Mutex
	agents map[string]*Agent
}

// NewManager builds a manager. hostDir is the absolute path of the registry
// agents directory on the host; image is the hyperlane agent image ref.
func NewManager(runner ContainerRunner, builder *Builder, hostDir, image string, logger *zap.Logger) *Manager {
	return &Manager{
		runner:  runner,
		builder: builder,
		image:   image,
		hostDir: hostDir,
		logger:  logger,
		agents:  make(map[string]*Agent),
	}
}

// StartValidator launches a validator watching the given chain.
func (m *Manager) StartValidator(ctx context.Context, chainName string) (*Agent, error) {
	cfg, err := m.builder.BuildValidatorConfig(ctx, chainName, checkpointDir)
	if err != nil {
		return nil, fmt.Errorf("build validator config: %w", err)
	}
	configName := fmt.Sprintf("%s-validator", chainName)
	configPath, err := m.builder.WriteConfig(configName, cfg)
	if err != nil {
		return nil, err
	}
	return m.launch(ctx, TypeValidator, []string{chainName}, configName, configPath)
}

// StartRelayer launches a relayer moving messages between the given chains.
func (m *Manager) StartRelayer(ctx context.Context, chainNames []string) (*Agent, error) {
	cfg, err := m.builder.BuildRelayerConfig(ctx, chainNames)
	if err != nil {
		return nil, fmt.Errorf("build relayer config: %w", err)
	}
	configName := fmt.Sprintf("relayer-%s", strings.Join(chainNames, "-"))
	configPath, err := m.builder.WriteConfig(configName, cfg)
	if err != nil {
		return nil, err
	}
	return m.launch(ctx, TypeRelayer, chainNames, configName, configPath)
}

func (m *Manager) launch(ctx context.Context, typ Type, chains []string, configName, configPath string) (*Agent, error) {
	id := uuid.NewString()[:8]
	name := fmt.Sprintf("hyperlane-%s-%s", typ, id)

	if typ == TypeValidator {
		if err := m.runner.CreateVolume(ctx, name+"-checkpoints"); err != nil {
			return nil, err
		}
	}

	binds := []string{fmt.Sprintf("%s:%s", m.hostDir, configMountDir)}
	if typ == TypeValidator {
		binds = append(binds, fmt.Sprintf("%s-checkpoints:%s", name, checkpointDir))
	}

	containerID, err := m.runner.StartContainer(ctx, ContainerSpec{
		Name:  name,
		Image: m.image,
		Cmd:   []string{"/app/" + string(typ)},
		Env: []string{
			fmt.Sprintf("CONFIG_FILES=%s", path.Join(configMountDir, fmt.Sprintf("%s-agent-config.json", configName))),
			"RUST_LOG=info",
		},
		Binds: binds,
	})
	if err != nil {
		return nil, err
	}

	agent := &Agent{
		ID:          id,
		Type:        typ,
		Chains:      chains,
		ContainerID: containerID,
		ConfigPath:  configPath,
	}

	m.mu.Lock()
	m.agents[id] = agent
	m.mu.Unlock()

	m.logger.Info("agent started",
		zap.String("type", string(typ)),
		zap.Strings("chains", chains),
		zap.String("agentId", id))
	return agent, nil
}

// StopAgent stops and forgets the agent with the given ID.
func (m *Manager) StopAgent(ctx context.Context, id string) error {
	m.mu.Lock()
	agent, ok := m.agents[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no agent with id %s", id)
	}
	if err := m.runner.StopContainer(ctx, agent.ContainerID); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.agents, id)
	m.mu.Unlock()
	m.logger.Info("agent stopped", zap.String("agentId", id))
	return nil
}

// Agents lists the launched agents with their current container status.
func (m *Manager) Agents(ctx context.Context) map[string]string {
	m.mu.Lock()
	snapshot := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		snapshot = append(snapshot, a)
	}
	m.mu.Unlock()

	out := make(map[string]string, len(snapshot))
	for _, a := range snapshot {
		status, err := m.runner.Status(ctx, a.ContainerID)
		if err != nil {
			status = "unknown"
		}
		out[a.ID] = status
	}
	return out
}

// StopAll stops every tracked agent, keeping the first error.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.StopAgent(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
