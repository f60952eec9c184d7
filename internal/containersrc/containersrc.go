// Package containersrc enumerates running containers on a Docker-class
// container runtime and subscribes to its lifecycle event stream, so
// the reconciler can project container state into registry entries.
package containersrc

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// TLSConfig holds the Agent CLI's TLS cert/key/ca flags for connecting
// to a TLS-secured Docker socket, per spec §6's Agent CLI flag
// contract.
type TLSConfig struct {
	CertFile string
	KeyFile  string
	CAFile   string
	Verify   bool
}

// Source wraps a Docker Engine API client with the two operations the
// reconciler needs: enumerate running containers, and observe
// lifecycle events as an optional fast-path trigger.
type Source struct {
	cli *client.Client
}

// New connects to the Docker daemon at dockerURL. An empty dockerURL
// defaults to client.FromEnv's DOCKER_HOST resolution (the classic
// unix:///var/run/docker.sock on Linux). When tls is non-nil and has a
// cert/key pair configured, the connection is upgraded to TLS the way
// the original agent wires its TLS flags into its Docker client.
// tlsCfg.Verify is not read: the TLS options passed to the client are
// the same whatever its value.
func New(dockerURL string, tlsCfg *TLSConfig) (*Source, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if dockerURL != "" {
		opts = append(opts, client.WithHost(dockerURL))
	} else {
		opts = append(opts, client.FromEnv)
	}
	if tlsCfg != nil && tlsCfg.CertFile != "" && tlsCfg.KeyFile != "" {
		opts = append(opts, client.WithTLSClientConfig(tlsCfg.CAFile, tlsCfg.CertFile, tlsCfg.KeyFile))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("containersrc: connecting to docker at %q: %w", dockerURL, err)
	}
	return &Source{cli: cli}, nil
}

// Close releases the underlying Docker API client's connections.
func (s *Source) Close() error {
	return s.cli.Close()
}

// ContainerInfo is the subset of container inspection data the
// projection rules need (spec §4.4/§6's container-runtime contract).
type ContainerInfo struct {
	ID       string
	Env      []string
	TTY      bool
	Status   string
	Networks map[string]NetworkInfo
}

// NetworkInfo is one entry of NetworkSettings.Networks.
type NetworkInfo struct {
	IPAddress        string
	GlobalIPv6Address string
}

// ListRunning enumerates every running container and returns its full
// inspection detail, matching "list-containers-quiet(running-only);
// inspect-container-by-id" from spec §6.
func (s *Source) ListRunning(ctx context.Context) ([]ContainerInfo, error) {
	summaries, err := s.cli.ContainerList(ctx, container.ListOptions{All: false})
	if err != nil {
		return nil, fmt.Errorf("containersrc: listing containers: %w", err)
	}

	out := make([]ContainerInfo, 0, len(summaries))
	for _, summary := range summaries {
		info, err := s.inspect(ctx, summary.ID)
		if err != nil {
			return nil, fmt.Errorf("containersrc: inspecting container %s: %w", summary.ID, err)
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *Source) inspect(ctx context.Context, id string) (ContainerInfo, error) {
	detail, err := s.cli.ContainerInspect(ctx, id)
	if err != nil {
		return ContainerInfo{}, err
	}

	info := ContainerInfo{
		ID:     detail.ID,
		Status: detail.State.Status,
	}
	if detail.Config != nil {
		info.Env = detail.Config.Env
		info.TTY = detail.Config.Tty
	}
	if detail.NetworkSettings != nil {
		info.Networks = make(map[string]NetworkInfo, len(detail.NetworkSettings.Networks))
		for name, net := range detail.NetworkSettings.Networks {
			info.Networks[name] = NetworkInfo{
				IPAddress:         net.IPAddress,
				GlobalIPv6Address: net.GlobalIPv6Address,
			}
		}
	}
	return info, nil
}

// Events streams lifecycle events filtered to start/stop/pause, the
// same filter set the original event loop used. The returned channel
// is closed when ctx is cancelled or the stream errors; callers treat
// each received event as "re-enumerate now", never as an authoritative
// state change, and stop listening once the channel is closed — see
// internal/agent.
func (s *Source) Events(ctx context.Context) (<-chan events.Message, <-chan error) {
	f := filters.NewArgs()
	f.Add("event", "start")
	f.Add("event", "stop")
	f.Add("event", "pause")
	return s.cli.Events(ctx, events.ListOptions{Filters: f})
}
