package docker

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"
)

// defaultPingTimeout is the maximum duration to wait for a Docker daemon
// response during a Ping. Generous enough for Docker Desktop on macOS,
// which responds slower than native Linux Docker.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client. It handles automatic socket
// detection across platforms and exposes only the operations the launcher
// needs (list by published port, stop).
type Client struct {
	inner *client.Client
}

// NewClient creates a Docker client with automatic socket detection.
//
// Detection priority:
//  1. DOCKER_HOST environment variable (used as-is when set)
//  2. Platform default socket paths:
//     - Linux: /var/run/docker.sock
//     - macOS: /var/run/docker.sock, then ~/.docker/run/docker.sock
//     - Windows: npipe:////./pipe/docker_engine
func NewClient() (*Client, error) {
	if dockerHost := os.Getenv("DOCKER_HOST"); dockerHost != "" {
		return newClientWithHost(dockerHost)
	}

	host, err := detectDockerHost()
	if err != nil {
		return nil, err
	}
	return newClientWithHost(host)
}

// newClientWithHost creates a client connected to the given host string
// (e.g. "unix:///var/run/docker.sock"). API version negotiation keeps the
// client compatible across daemon versions.
func newClientWithHost(host string) (*Client, error) {
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating Docker client for host %q: %w", host, err)
	}
	return &Client{inner: c}, nil
}

// detectDockerHost probes known socket paths and returns the connection
// string for the first one that exists. Existence is checked via os.Stat
// rather than a connection attempt; Ping handles connectivity.
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
		})

	case "darwin":
		// Newer Docker Desktop versions place the socket under the home
		// directory instead of symlinking /var/run/docker.sock.
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return detectUnixSocket([]string{
				"/var/run/docker.sock",
			})
		}
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
			homeDir + "/.docker/run/docker.sock",
		})

	case "windows":
		// Named pipes cannot be probed with os.Stat; return the default
		// pipe and let Ping decide whether a daemon is actually there.
		return "npipe:////./pipe/docker_engine", nil

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// detectUnixSocket returns the Docker host URI for the first socket path
// that exists, checked in order of preference.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v", paths)
}

// Ping verifies that the Docker daemon is reachable and responsive,
// waiting up to defaultPingTimeout.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return fmt.Errorf("Docker daemon is not responding: %w", err)
	}
	return nil
}

// Close releases the client's resources. Safe to call multiple times.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}
