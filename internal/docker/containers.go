package docker

import (
	"context"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/berth/internal/logging"
)

// stopTimeoutSeconds is passed to the Engine's stop endpoint: the daemon
// sends SIGTERM, waits this long, then SIGKILLs, the same escalation
// protocol the reaper applies to bare processes.
const stopTimeoutSeconds = 5

// ContainersPublishing returns the IDs of running containers that publish
// the given host port. The Engine's "publish" filter matches the host side
// of port bindings, which is exactly the resource the launcher is trying
// to reclaim.
func (c *Client) ContainersPublishing(ctx context.Context, port int) ([]string, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("publish", strconv.Itoa(port)),
	)

	containers, err := c.inner.ContainerList(ctx, container.ListOptions{
		Filters: filterArgs,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(containers))
	for _, ctr := range containers {
		ids = append(ids, ctr.ID)
	}
	return ids, nil
}

// StopContainer stops a container, letting the daemon run its own
// graceful-then-forceful escalation.
func (c *Client) StopContainer(ctx context.Context, containerID string) error {
	timeout := stopTimeoutSeconds
	return c.inner.ContainerStop(ctx, containerID, container.StopOptions{
		Timeout: &timeout,
	})
}

// Reconciler is the launcher-facing wrapper around the Docker client.
// It is created unconditionally; when no daemon is reachable it simply
// reports inactive and every operation becomes a no-op. The launcher
// never fails because Docker is absent.
type Reconciler struct {
	cli *Client
	log zerolog.Logger
}

// NewReconciler connects to the Docker daemon if one is reachable.
// An unreachable or missing daemon yields an inactive reconciler,
// not an error.
func NewReconciler(ctx context.Context) *Reconciler {
	r := &Reconciler{log: logging.Component("docker")}

	cli, err := NewClient()
	if err != nil {
		r.log.Debug().Err(err).Msg("no Docker socket, container reconciliation disabled")
		return r
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := cli.Ping(pingCtx); err != nil {
		r.log.Debug().Err(err).Msg("Docker daemon unreachable, container reconciliation disabled")
		cli.Close()
		return r
	}

	r.cli = cli
	return r
}

// Active reports whether a reachable Docker daemon was found.
func (r *Reconciler) Active() bool {
	return r != nil && r.cli != nil
}

// StopByPort stops every running container publishing the given host port
// and returns how many were stopped. All failures are logged and swallowed;
// reclaiming the port is best-effort.
func (r *Reconciler) StopByPort(ctx context.Context, port int) int {
	if !r.Active() {
		return 0
	}

	ids, err := r.cli.ContainersPublishing(ctx, port)
	if err != nil {
		r.log.Debug().Int("port", port).Err(err).Msg("container lookup failed")
		return 0
	}

	stopped := 0
	for _, id := range ids {
		stopCtx, cancel := context.WithTimeout(ctx, (stopTimeoutSeconds+5)*time.Second)
		err := r.cli.StopContainer(stopCtx, id)
		cancel()
		if err != nil {
			r.log.Warn().Str("container", id).Int("port", port).Err(err).
				Msg("failed to stop container")
			continue
		}
		r.log.Info().Str("container", id).Int("port", port).Msg("stopped container")
		stopped++
	}
	return stopped
}

// Close releases the underlying client, if any.
func (r *Reconciler) Close() {
	if r.Active() {
		_ = r.cli.Close()
	}
}
