package cluster

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/docker/go-connections/nat"
)

// ErrNotRunning is returned when an operation requires a running container.
var ErrNotRunning = errors.New("container is not running")

// ExecResult holds the captured outcome of a command run inside a container.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Ready describes how to decide that a container is ready for use.
// The zero value means the container counts as ready once it is running.
type Ready struct {
	// Port waits for the container port to accept connections.
	Port nat.Port
	// HTTPPath, together with Port, waits for an HTTP 200 from the path.
	HTTPPath string
	// LogLine waits for the container to log a line containing this text.
	LogLine string
	// Timeout bounds the readiness wait. Zero uses the runtime default.
	Timeout time.Duration
}

// Config describes a container to create. It is plain data; the runtime
// allocates resources only when the container is started.
type Config struct {
	Image string
	Name  string
	Cmd   []string
	Env   map[string]string

	// Network is the cluster network the container joins. Aliases are the
	// DNS names other containers on that network can use to reach it.
	Network string
	Aliases []string

	// Mounts maps host paths to container paths. Relative host paths are
	// resolved against the module root.
	Mounts map[string]string

	ExposedPorts []string
	Ready        Ready
}

// Clone returns a deep copy of the config.
func (c Config) Clone() Config {
	out := c
	out.Cmd = slices.Clone(c.Cmd)
	out.Env = maps.Clone(c.Env)
	out.Aliases = slices.Clone(c.Aliases)
	out.Mounts = maps.Clone(c.Mounts)
	out.ExposedPorts = slices.Clone(c.ExposedPorts)
	return out
}

// Container is a single container managed by a Runtime.
type Container interface {
	// Start creates and starts the container, blocking until it is ready
	// per the Config's Ready description. Start can be called at most once;
	// even if it fails, the container may hold resources until stopped.
	Start(ctx context.Context) error

	// Stop halts the container and releases whatever it holds. It is a
	// no-op if Start was never called or the container already stopped.
	Stop(ctx context.Context) error

	// Exec runs a command inside the running container and captures its
	// output. A non-zero exit code is reported in the result, not as an
	// error. Returns ErrNotRunning if the container is not running.
	Exec(ctx context.Context, cmd ...string) (*ExecResult, error)

	// Host returns the address from which mapped ports are reachable.
	Host(ctx context.Context) (string, error)

	// MappedPort returns the host port bound to the given container port.
	MappedPort(ctx context.Context, port nat.Port) (int, error)
}
