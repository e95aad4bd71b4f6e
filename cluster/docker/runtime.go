// Package docker runs cluster containers against a local Docker daemon via
// testcontainers. The standard Docker environment variables (DOCKER_HOST
// etc.) configure the connection.
package docker

import (
	"context"
	"fmt"

	clusteriface "github.com/pulsarlabs/pulsartest/cluster"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"go.uber.org/zap"
)

// Runtime implements cluster.Runtime on Docker.
type Runtime struct {
	Log *zap.SugaredLogger
}

func (r *Runtime) WithLogger(l *zap.SugaredLogger) *Runtime {
	r.Log = l.Named("docker_runtime")
	return r
}

func NewRuntime() (*Runtime, error) {
	log, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("instantiating default logger: %w", err)
	}
	r := &Runtime{}
	return r.WithLogger(log.Sugar()), nil
}

func MustNewRuntime() *Runtime {
	r, err := NewRuntime()
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Runtime) CreateNetwork(ctx context.Context) (clusteriface.Network, error) {
	net, err := network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating Docker network: %w", err)
	}
	r.Log.Debugf("created network %s", net.Name)
	return &Network{net: net}, nil
}

func (r *Runtime) NewContainer(cfg clusteriface.Config) clusteriface.Container {
	return &Container{
		cfg: cfg.Clone(),
		log: r.Log.Named("container").With("container", cfg.Name),
	}
}

// Network wraps a testcontainers Docker network.
type Network struct {
	net *testcontainers.DockerNetwork
}

func (n *Network) Name() string { return n.net.Name }

func (n *Network) Remove(ctx context.Context) error {
	return n.net.Remove(ctx)
}
