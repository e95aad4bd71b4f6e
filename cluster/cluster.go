package cluster

import "context"

// Runtime creates the networks and containers that back cluster nodes.
// Runtime implementations are generally not goroutine-safe; the Containers
// they return are.
type Runtime interface {
	// CreateNetwork creates a private network for one cluster. The runtime
	// picks a unique name for it.
	CreateNetwork(ctx context.Context) (Network, error)

	// NewContainer returns a handle for the described container. No
	// resources are allocated until the container is started.
	NewContainer(cfg Config) Container
}

// Network is a private network shared by the containers of one cluster.
type Network interface {
	Name() string

	// Remove releases the network. Attached containers must be stopped
	// first.
	Remove(ctx context.Context) error
}
