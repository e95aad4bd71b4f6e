package pulsar

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/docker/go-connections/nat"
	"github.com/pulsarlabs/pulsartest/cluster"
	"go.uber.org/zap"
)

// NodeState is the lifecycle state of one node.
type NodeState string

const (
	NodeNotStarted NodeState = "not-started"
	NodeRunning    NodeState = "running"
	NodeStopped    NodeState = "stopped"
)

// Node is one container-backed Pulsar process. Its name doubles as the
// network alias other nodes use to reach it. Nodes are created by a
// Cluster and share its container runtime.
type Node struct {
	role Role
	name string
	cfg  cluster.Config
	rt   cluster.Runtime
	log  *zap.SugaredLogger

	mut   sync.Mutex
	state NodeState
	ctr   cluster.Container
}

func newNode(rt cluster.Runtime, log *zap.SugaredLogger, role Role, cfg cluster.Config) *Node {
	return &Node{
		role:  role,
		name:  cfg.Name,
		cfg:   cfg,
		rt:    rt,
		log:   log.Named("node").With("node", cfg.Name),
		state: NodeNotStarted,
	}
}

func (n *Node) Name() string { return n.name }

func (n *Node) Role() Role { return n.role }

func (n *Node) State() NodeState {
	n.mut.Lock()
	defer n.mut.Unlock()
	return n.state
}

// Env returns a copy of the environment the node's process is configured
// with.
func (n *Node) Env() map[string]string {
	return maps.Clone(n.cfg.Env)
}

// Start launches the backing container and blocks until it reports ready.
// Starting a running node is an error. Starting a stopped node creates a
// fresh container from the same configuration.
func (n *Node) Start(ctx context.Context) error {
	n.mut.Lock()
	if n.state == NodeRunning {
		n.mut.Unlock()
		return fmt.Errorf("node %s: %w", n.name, ErrAlreadyRunning)
	}
	if n.ctr != nil {
		// A previous Start failed partway. Its container must be
		// stopped before another attempt.
		n.mut.Unlock()
		return fmt.Errorf("node %s holds a container from a failed start, stop it first", n.name)
	}
	ctr := n.rt.NewContainer(n.cfg)
	n.ctr = ctr
	n.mut.Unlock()

	n.log.Debugf("starting node %s", n.name)
	if err := ctr.Start(ctx); err != nil {
		return fmt.Errorf("starting node %s: %w", n.name, err)
	}

	n.mut.Lock()
	n.state = NodeRunning
	n.mut.Unlock()
	return nil
}

// Stop halts the backing container. Stopping a node that was never started
// or was already stopped is a no-op.
func (n *Node) Stop(ctx context.Context) error {
	n.mut.Lock()
	ctr := n.ctr
	n.ctr = nil
	if ctr != nil {
		n.state = NodeStopped
	}
	n.mut.Unlock()
	if ctr == nil {
		return nil
	}
	if err := ctr.Stop(ctx); err != nil {
		return fmt.Errorf("stopping node %s: %w", n.name, err)
	}
	return nil
}

// Exec runs a command inside the node's container and captures its output.
// A non-zero exit code is data in the result, not an error.
func (n *Node) Exec(ctx context.Context, cmd ...string) (*cluster.ExecResult, error) {
	ctr, err := n.runningContainer()
	if err != nil {
		return nil, err
	}
	res, err := ctr.Exec(ctx, cmd...)
	if err != nil {
		return nil, fmt.Errorf("exec on node %s: %w", n.name, err)
	}
	return res, nil
}

// Host returns the address from which the node's mapped ports are
// reachable.
func (n *Node) Host(ctx context.Context) (string, error) {
	ctr, err := n.runningContainer()
	if err != nil {
		return "", err
	}
	return ctr.Host(ctx)
}

// MappedPort returns the host port bound to the given container port.
func (n *Node) MappedPort(ctx context.Context, port nat.Port) (int, error) {
	ctr, err := n.runningContainer()
	if err != nil {
		return 0, err
	}
	return ctr.MappedPort(ctx, port)
}

func (n *Node) runningContainer() (cluster.Container, error) {
	n.mut.Lock()
	defer n.mut.Unlock()
	if n.state != NodeRunning || n.ctr == nil {
		return nil, fmt.Errorf("node %s: %w", n.name, cluster.ErrNotRunning)
	}
	return n.ctr, nil
}

func (n *Node) String() string {
	return fmt.Sprintf("%s node %s", n.role, n.name)
}
