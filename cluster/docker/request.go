package docker

import (
	"fmt"
	"slices"
	"time"

	"github.com/docker/docker/api/types/container"
	clusteriface "github.com/pulsarlabs/pulsartest/cluster"
	"github.com/pulsarlabs/pulsartest/internal/files"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DefaultReadyTimeout bounds readiness waits when the config does not set
// its own timeout. Pulsar images can take minutes to start on a cold pull.
const DefaultReadyTimeout = 3 * time.Minute

// buildRequest maps a cluster.Config onto a testcontainers request.
// Relative mount sources are resolved against the module root found from
// startDir.
func buildRequest(cfg clusteriface.Config, startDir string) (testcontainers.ContainerRequest, error) {
	req := testcontainers.ContainerRequest{
		Image:        cfg.Image,
		Hostname:     cfg.Name,
		Cmd:          cfg.Cmd,
		Env:          cfg.Env,
		ExposedPorts: cfg.ExposedPorts,
		WaitingFor:   waitStrategy(cfg.Ready),
	}
	if cfg.Network != "" {
		req.Networks = []string{cfg.Network}
		req.NetworkAliases = map[string][]string{cfg.Network: cfg.Aliases}
	}

	var binds []string
	for host, target := range cfg.Mounts {
		resolved, err := files.ResolveFromModuleRoot(host, startDir)
		if err != nil {
			return testcontainers.ContainerRequest{}, fmt.Errorf("resolving mount source %q: %w", host, err)
		}
		binds = append(binds, resolved+":"+target)
	}
	if len(binds) > 0 {
		slices.Sort(binds)
		req.HostConfigModifier = func(hc *container.HostConfig) {
			hc.Binds = append(hc.Binds, binds...)
		}
	}
	return req, nil
}

// waitStrategy maps the declarative Ready description onto a testcontainers
// wait strategy. A zero Ready waits only for the container to be running.
func waitStrategy(r clusteriface.Ready) wait.Strategy {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultReadyTimeout
	}
	switch {
	case r.HTTPPath != "" && r.Port != "":
		return wait.ForHTTP(r.HTTPPath).WithPort(r.Port).WithStartupTimeout(timeout)
	case r.Port != "":
		return wait.ForListeningPort(r.Port).WithStartupTimeout(timeout)
	case r.LogLine != "":
		return wait.ForLog(r.LogLine).WithStartupTimeout(timeout)
	default:
		return nil
	}
}
