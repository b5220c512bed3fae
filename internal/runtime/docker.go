package runtime

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	dserrors "github.com/systmms/tierup/internal/errors"
)

// DockerAPI is the part of the Docker Engine client used by DockerReader.
type DockerAPI interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// DockerReader reads container state through the Docker Engine API.
type DockerReader struct {
	api DockerAPI
}

// NewDockerReader creates a reader using environment defaults (DOCKER_HOST and
// friends). host overrides the daemon address when non-empty.
func NewDockerReader(host string) (*DockerReader, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	c, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerReader{api: c}, nil
}

// NewDockerReaderWithAPI wraps an existing client, typically a fake in tests.
func NewDockerReaderWithAPI(api DockerAPI) *DockerReader {
	return &DockerReader{api: api}
}

// State inspects the container named name. A container that does not exist is
// reported as StateMissing rather than as an error.
func (r *DockerReader) State(ctx context.Context, name string) (State, error) {
	info, err := r.api.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return State{Status: StateMissing}, nil
		}
		if ctx.Err() != nil {
			return State{}, ctx.Err()
		}
		return State{}, dserrors.RuntimeError("docker", "inspect "+name, err)
	}

	if info.ContainerJSONBase == nil || info.State == nil {
		return State{Status: StateMissing}, nil
	}

	state := State{Status: string(info.State.Status)}
	if info.State.Health != nil {
		state.Health = string(info.State.Health.Status)
	}
	return state, nil
}

// Ping validates connectivity to the Docker daemon.
func (r *DockerReader) Ping(ctx context.Context) error {
	ping, err := r.api.Ping(ctx)
	if err != nil {
		return dserrors.RuntimeError("docker", "ping", err)
	}
	if ping.APIVersion == "" {
		return fmt.Errorf("docker ping returned empty API version")
	}
	return nil
}

// Close releases resources held by the Docker client.
func (r *DockerReader) Close() error {
	if r.api == nil {
		return nil
	}
	return r.api.Close()
}
