package agent

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	dockerimagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	volumetypes "github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/moby/moby/client"
	"go.uber.org/zap"
)

// resourceLabel tags every container and volume we create so leftovers from
// interrupted runs can be found and removed.
const resourceLabel = "hypermcp.agent"

// ContainerSpec describes a container to launch.
type ContainerSpec struct {
	Name  string
	Image string
	Cmd   []string
	Env   []string
	// Binds are host:container mount specs.
	Binds []string
	// Ports maps container ports to host bindings.
	Ports nat.PortMap
}

// Runner executes container lifecycle operations against the local Docker
// daemon.
type Runner struct {
	cli       *client.Client
	networkID string
	logger    *zap.Logger
}

func NewRunner(cli *client.Client, networkID string, logger *zap.Logger) *Runner {
	return &Runner{cli: cli, networkID: networkID, logger: logger}
}

// EnsureImage pulls the image unless it is already present locally.
func (r *Runner) EnsureImage(ctx context.Context, ref string) error {
	images, err := r.cli.ImageList(ctx, dockerimagetypes.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	if len(images) > 0 {
		return nil
	}

	r.logger.Info("pulling image", zap.String("ref", ref))
	return retry.Do(
		func() error {
			rc, err := r.cli.ImagePull(ctx, ref, dockerimagetypes.PullOptions{})
			if err != nil {
				return err
			}
			_, _ = io.Copy(io.Discard, rc)
			return rc.Close()
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
	)
}

// CreateVolume creates a named volume, tolerating an existing one.
func (r *Runner) CreateVolume(ctx context.Context, name string) error {
	_, err := r.cli.VolumeCreate(ctx, volumetypes.CreateOptions{
		Name:   name,
		Labels: map[string]string{resourceLabel: name},
	})
	if err != nil {
		return fmt.Errorf("create volume %s: %w", name, err)
	}
	return nil
}

// StartContainer creates and starts a container from the spec and returns its ID.
func (r *Runner) StartContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	if err := r.EnsureImage(ctx, spec.Image); err != nil {
		return "", err
	}

	exposed := make(nat.PortSet, len(spec.Ports))
	for port := range spec.Ports {
		exposed[port] = struct{}{}
	}

	var netCfg *network.NetworkingConfig
	if r.networkID != "" {
		netCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				r.networkID: {},
			},
		}
	}

	created, err := r.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        spec.Image,
			Cmd:          spec.Cmd,
			Env:          spec.Env,
			Hostname:     spec.Name,
			ExposedPorts: exposed,
			Labels:       map[string]string{resourceLabel: spec.Name},
		},
		&container.HostConfig{
			Binds:        spec.Binds,
			PortBindings: spec.Ports,
		},
		netCfg,
		nil,
		spec.Name,
	)
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", spec.Name, err)
	}

	if err := r.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container %s: %w", spec.Name, err)
	}
	r.logger.Info("container started",
		zap.String("name", spec.Name),
		zap.String("id", created.ID))
	return created.ID, nil
}

// WriteFile copies a file into a running container at destDir/name.
func (r *Runner) WriteFile(ctx context.Context, containerID, destDir, name string, data []byte) error {
	archive, err := tarFile(name, data)
	if err != nil {
		return err
	}
	if err := r.cli.CopyToContainer(ctx, containerID, destDir, archive, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("copy %s into container: %w", name, err)
	}
	return nil
}

// tarFile wraps a single regular file into the tar stream CopyToContainer
// expects.
func tarFile(name string, data []byte) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  time.Now(),
		Typeflag: tar.TypeReg,
	}); err != nil {
		return nil, fmt.Errorf("write tar header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return nil, fmt.Errorf("write tar body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

// Exec runs a command inside a running container and returns its output.
// A non-zero exit code is an error.
func (r *Runner) Exec(ctx context.Context, containerID string, cmd, env []string) ([]byte, []byte, error) {
	exec, err := r.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd,
		Env:          env,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create exec: %w", err)
	}

	resp, err := r.cli.ContainerExecAttach(ctx, exec.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("attach exec: %w", err)
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader); err != nil {
		return nil, nil, fmt.Errorf("read exec output: %w", err)
	}

	info, err := r.cli.ContainerExecInspect(ctx, exec.ID)
	if err != nil {
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("inspect exec: %w", err)
	}
	if info.ExitCode != 0 {
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("command %v exited with code %d", cmd, info.ExitCode)
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// StopContainer stops and removes a container.
func (r *Runner) StopContainer(ctx context.Context, containerID string) error {
	timeout := 10
	if err := r.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("stop container: %w", err)
	}
	if err := r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

// Status returns the container's state string (running, exited, ...).
func (r *Runner) Status(ctx context.Context, containerID string) (string, error) {
	info, err := r.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("inspect container: %w", err)
	}
	if info.State == nil {
		return "unknown", nil
	}
	return info.State.Status, nil
}
