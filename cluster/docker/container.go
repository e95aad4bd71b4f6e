package docker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	clusteriface "github.com/pulsarlabs/pulsartest/cluster"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/zap"
)

// Container materializes a Docker container from its config on Start.
type Container struct {
	cfg clusteriface.Config
	log *zap.SugaredLogger

	mut     sync.Mutex
	ctr     testcontainers.Container
	running bool
}

// Start creates and starts the container, blocking until it is ready. On
// failure the partially created container is retained so Stop can release
// it.
func (c *Container) Start(ctx context.Context) error {
	c.mut.Lock()
	if c.ctr != nil || c.running {
		c.mut.Unlock()
		return fmt.Errorf("container %q was already started", c.cfg.Name)
	}
	c.mut.Unlock()

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting wd: %w", err)
	}
	req, err := buildRequest(c.cfg, wd)
	if err != nil {
		return fmt.Errorf("building container request for %q: %w", c.cfg.Name, err)
	}
	req.Name = uniqueName(c.cfg.Name)
	req.LogConsumerCfg = &testcontainers.LogConsumerConfig{
		Consumers: []testcontainers.LogConsumer{&zapLogConsumer{log: c.log}},
	}

	c.log.Debugf("starting container %s", req.Name)
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	c.mut.Lock()
	c.ctr = ctr
	c.running = err == nil
	c.mut.Unlock()
	if err != nil {
		return fmt.Errorf("starting container %q: %w", c.cfg.Name, err)
	}
	return nil
}

func (c *Container) Stop(ctx context.Context) error {
	c.mut.Lock()
	ctr := c.ctr
	c.ctr = nil
	c.running = false
	c.mut.Unlock()
	if ctr == nil {
		return nil
	}
	if err := ctr.Terminate(ctx); err != nil {
		return fmt.Errorf("terminating container %q: %w", c.cfg.Name, err)
	}
	return nil
}

func (c *Container) Exec(ctx context.Context, cmd ...string) (*clusteriface.ExecResult, error) {
	ctr, err := c.runningContainer()
	if err != nil {
		return nil, err
	}
	code, reader, err := ctr.Exec(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("executing command in %q: %w", c.cfg.Name, err)
	}
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return nil, fmt.Errorf("demultiplexing exec output: %w", err)
	}
	return &clusteriface.ExecResult{
		ExitCode: code,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

func (c *Container) Host(ctx context.Context) (string, error) {
	ctr, err := c.runningContainer()
	if err != nil {
		return "", err
	}
	return ctr.Host(ctx)
}

func (c *Container) MappedPort(ctx context.Context, port nat.Port) (int, error) {
	ctr, err := c.runningContainer()
	if err != nil {
		return 0, err
	}
	mapped, err := ctr.MappedPort(ctx, port)
	if err != nil {
		return 0, fmt.Errorf("getting mapped port %s of %q: %w", port, c.cfg.Name, err)
	}
	return mapped.Int(), nil
}

func (c *Container) runningContainer() (testcontainers.Container, error) {
	c.mut.Lock()
	defer c.mut.Unlock()
	if !c.running || c.ctr == nil {
		return nil, fmt.Errorf("container %q: %w", c.cfg.Name, clusteriface.ErrNotRunning)
	}
	return c.ctr, nil
}

// uniqueName appends a short random suffix so that concurrent clusters on
// one host cannot collide on container names. The network alias keeps the
// plain name.
func uniqueName(name string) string {
	return name + "-" + uuid.NewString()[:8]
}

// zapLogConsumer forwards container output to the logger at debug level.
type zapLogConsumer struct {
	log *zap.SugaredLogger
}

func (z *zapLogConsumer) Accept(l testcontainers.Log) {
	z.log.Debugf("%s", bytes.TrimRight(l.Content, "\n"))
}
