package pulsar

import (
	"context"
	"fmt"
	"maps"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/pulsarlabs/pulsartest/cluster"
	"github.com/pulsarlabs/pulsartest/cluster/docker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const loggerName = "pulsar_cluster"

// State is the cluster lifecycle phase. Transitions move strictly forward
// during Start; Stop drives any state to StateStopped.
type State string

const (
	StateInitialized        State = "initialized"
	StateBootstrapping      State = "bootstrapping"
	StateClusterInitialized State = "cluster-initialized"
	StateStorageReady       State = "storage-ready"
	StateBrokersReady       State = "brokers-ready"
	StateRunning            State = "running"
	StateStopped            State = "stopped"
)

// Cluster owns a private network and the full set of nodes of one
// ephemeral Pulsar cluster: ZooKeeper, the configuration store, bookies,
// brokers, the proxy, optional function workers, and any external services
// from the spec.
type Cluster struct {
	spec ClusterSpec
	rt   cluster.Runtime
	log  *zap.SugaredLogger
	rng  *rand.Rand

	network     cluster.Network
	zookeeper   *Node
	configStore *Node
	proxy       *Node
	bookies     map[string]*Node
	brokers     map[string]*Node
	workers     map[string]*Node
	external    map[string]*Node

	mut         sync.Mutex
	state       State
	networkOnce sync.Once
}

// Option configures a Cluster before its nodes are constructed.
type Option func(*Cluster)

// WithLogger replaces the default production logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Cluster) { c.log = l.Named(loggerName) }
}

// WithRuntime replaces the container runtime backing the cluster. The
// default is the local Docker runtime.
func WithRuntime(rt cluster.Runtime) Option {
	return func(c *Cluster) { c.rt = rt }
}

// WithRandom replaces the randomness source used for node selection.
// Tests seed it to make selection reproducible.
func WithRandom(rng *rand.Rand) Option {
	return func(c *Cluster) { c.rng = rng }
}

// NewCluster validates the spec, creates the cluster network, and
// constructs every node handle. Nothing is started until Start. Worker
// handles are the exception: they are constructed during Start, because
// their environment depends on the chosen function runtime.
func NewCluster(ctx context.Context, spec ClusterSpec, opts ...Option) (*Cluster, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("validating cluster spec: %w", err)
	}
	spec = spec.withDefaults()

	c := &Cluster{
		spec:     spec,
		state:    StateInitialized,
		bookies:  map[string]*Node{},
		brokers:  map[string]*Node{},
		workers:  map[string]*Node{},
		external: map[string]*Node{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		log, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("instantiating default logger: %w", err)
		}
		c.log = log.Sugar().Named(loggerName)
	}
	c.log = c.log.With("cluster", spec.ClusterName)
	if c.rt == nil {
		rt, err := docker.NewRuntime()
		if err != nil {
			return nil, fmt.Errorf("building Docker runtime: %w", err)
		}
		c.rt = rt
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	net, err := c.rt.CreateNetwork(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating cluster network: %w", err)
	}
	c.network = net

	name := spec.ClusterName
	c.zookeeper = newNode(c.rt, c.log, RoleZooKeeper, c.nodeConfig(RoleZooKeeper, ZooKeeperName, zooKeeperEnv(name)))
	c.configStore = newNode(c.rt, c.log, RoleConfigStore, c.nodeConfig(RoleConfigStore, ConfigStoreName, configStoreEnv(name)))
	c.proxy = newNode(c.rt, c.log, RoleProxy, c.nodeConfig(RoleProxy, ProxyName, proxyEnv(name)))
	for i := 0; i < spec.NumBookies; i++ {
		n := scaledName(RoleBookie, i)
		c.bookies[n] = newNode(c.rt, c.log, RoleBookie, c.nodeConfig(RoleBookie, n, bookieEnv(name)))
	}
	for i := 0; i < spec.NumBrokers; i++ {
		n := scaledName(RoleBroker, i)
		c.brokers[n] = newNode(c.rt, c.log, RoleBroker, c.nodeConfig(RoleBroker, n, brokerEnv(name)))
	}
	for alias, cfg := range spec.ExternalServices {
		cfg.Name = alias
		cfg.Network = net.Name()
		cfg.Aliases = []string{alias}
		c.external[alias] = newNode(c.rt, c.log, RoleExternal, cfg)
	}
	return c, nil
}

// MustNewCluster is NewCluster that panics on error.
func MustNewCluster(ctx context.Context, spec ClusterSpec, opts ...Option) *Cluster {
	c, err := NewCluster(ctx, spec, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Cluster) nodeConfig(role Role, name string, env map[string]string) cluster.Config {
	return cluster.Config{
		Image:        c.spec.Image,
		Name:         name,
		Cmd:          roleCommand[role],
		Env:          env,
		Network:      c.network.Name(),
		Aliases:      []string{name},
		Mounts:       maps.Clone(c.spec.ResourceMounts),
		ExposedPorts: roleExposedPorts[role],
		Ready:        roleReady[role],
	}
}

// Name returns the cluster name from the spec.
func (c *Cluster) Name() string { return c.spec.ClusterName }

// State returns the current lifecycle phase.
func (c *Cluster) State() State {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.state
}

func (c *Cluster) setState(s State) {
	c.mut.Lock()
	c.state = s
	c.mut.Unlock()
}

// Start brings the cluster up in dependency order: ZooKeeper and the
// configuration store, cluster metadata initialization, bookies, brokers,
// the proxy, function workers, then external services. Nodes within a
// phase start concurrently; the phase waits for all of them. On failure
// nothing is rolled back: the caller must call Stop to reclaim whatever
// was started.
func (c *Cluster) Start(ctx context.Context) error {
	c.mut.Lock()
	if c.state != StateInitialized {
		c.mut.Unlock()
		return fmt.Errorf("cluster %s is %s, expected %s", c.spec.ClusterName, c.state, StateInitialized)
	}
	c.state = StateBootstrapping
	c.mut.Unlock()

	c.log.Infof("starting Pulsar cluster %s", c.spec.ClusterName)

	if err := startAll(ctx, c.zookeeper, c.configStore); err != nil {
		return err
	}

	res, err := c.zookeeper.Exec(ctx, initClusterCommand...)
	if err != nil {
		return fmt.Errorf("initializing cluster metadata: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("initializing cluster metadata: exit code %d: %s", res.ExitCode, res.Stderr)
	}
	c.setState(StateClusterInitialized)
	c.log.Infof("successfully initialized cluster %s", c.spec.ClusterName)

	if err := startAll(ctx, c.sortedBookies()...); err != nil {
		return err
	}
	c.setState(StateStorageReady)

	if err := startAll(ctx, c.sortedBrokers()...); err != nil {
		return err
	}
	c.setState(StateBrokersReady)

	if err := startAll(ctx, c.proxy); err != nil {
		return err
	}
	c.logServiceURLs(ctx)

	if c.spec.NumFunctionWorkers > 0 {
		c.mut.Lock()
		for i := 0; i < c.spec.NumFunctionWorkers; i++ {
			n := scaledName(RoleWorker, i)
			c.workers[n] = newNode(c.rt, c.log, RoleWorker,
				c.nodeConfig(RoleWorker, n, workerEnv(c.spec.ClusterName, n, c.spec.FunctionRuntime)))
		}
		c.mut.Unlock()
		if err := startAll(ctx, c.sortedWorkers()...); err != nil {
			return err
		}
	}

	if len(c.external) > 0 {
		if err := startAll(ctx, sortedNodes(c.external)...); err != nil {
			return err
		}
	}

	c.setState(StateRunning)
	c.log.Infof("successfully started Pulsar cluster %s", c.spec.ClusterName)
	return nil
}

// Stop halts every node concurrently, then releases the cluster network
// exactly once. Individual stop failures are logged and never block the
// rest of the teardown. Stop is safe to call repeatedly and on a
// never-started cluster.
func (c *Cluster) Stop(ctx context.Context) {
	c.mut.Lock()
	nodes := c.allNodesLocked()
	c.state = StateStopped
	c.mut.Unlock()

	type outcome struct {
		node *Node
		err  error
	}
	outcomes := make([]outcome, len(nodes))
	var wg sync.WaitGroup
	for i, n := range nodes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = outcome{node: n, err: n.Stop(ctx)}
		}()
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			c.log.Errorf("failed to stop %s: %s", o.node, o.err)
		}
	}

	c.networkOnce.Do(func() {
		if err := c.network.Remove(ctx); err != nil {
			c.log.Errorf("failed to remove network %s: %s", c.network.Name(), err)
		}
	})
	c.log.Infof("stopped Pulsar cluster %s", c.spec.ClusterName)
}

// allNodesLocked gathers every handle into one unordered stop set, in the
// same grouping the start phases used: workers, brokers, bookies, proxy,
// configuration store, ZooKeeper, external services.
func (c *Cluster) allNodesLocked() []*Node {
	nodes := sortedNodes(c.workers)
	nodes = append(nodes, sortedNodes(c.brokers)...)
	nodes = append(nodes, sortedNodes(c.bookies)...)
	nodes = append(nodes, c.proxy, c.configStore, c.zookeeper)
	nodes = append(nodes, sortedNodes(c.external)...)
	return nodes
}

// AnyBroker returns a uniformly random broker handle.
func (c *Cluster) AnyBroker() (*Node, error) {
	c.mut.Lock()
	defer c.mut.Unlock()
	return pickRandom(RoleBroker, c.brokers, c.rng)
}

// AnyWorker returns a uniformly random function worker handle. Workers
// exist only after Start on a spec with a non-zero worker count.
func (c *Cluster) AnyWorker() (*Node, error) {
	c.mut.Lock()
	defer c.mut.Unlock()
	return pickRandom(RoleWorker, c.workers, c.rng)
}

// pickRandom selects uniformly from the name-sorted members of m, so the
// choice depends only on the rng state.
func pickRandom(role Role, m map[string]*Node, rng *rand.Rand) (*Node, error) {
	if len(m) == 0 {
		return nil, &EmptyPoolError{Role: role}
	}
	nodes := sortedNodes(m)
	return nodes[rng.Intn(len(nodes))], nil
}

// Brokers returns the broker handles in name order.
func (c *Cluster) Brokers() []*Node {
	c.mut.Lock()
	defer c.mut.Unlock()
	return sortedNodes(c.brokers)
}

// Bookies returns the bookie handles in name order.
func (c *Cluster) Bookies() []*Node {
	c.mut.Lock()
	defer c.mut.Unlock()
	return sortedNodes(c.bookies)
}

// Workers returns the function worker handles in name order.
func (c *Cluster) Workers() []*Node {
	c.mut.Lock()
	defer c.mut.Unlock()
	return sortedNodes(c.workers)
}

func (c *Cluster) ZooKeeper() *Node { return c.zookeeper }

func (c *Cluster) ConfigStore() *Node { return c.configStore }

func (c *Cluster) Proxy() *Node { return c.proxy }

// ExternalService returns the handle of an auxiliary container by its
// network alias.
func (c *Cluster) ExternalService(alias string) (*Node, bool) {
	n, ok := c.external[alias]
	return n, ok
}

// StopAllBrokers halts every broker concurrently. Failures are logged, not
// returned, matching the teardown policy.
func (c *Cluster) StopAllBrokers(ctx context.Context) {
	c.mut.Lock()
	brokers := sortedNodes(c.brokers)
	c.mut.Unlock()

	var wg sync.WaitGroup
	for _, b := range brokers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Stop(ctx); err != nil {
				c.log.Errorf("failed to stop %s: %s", b, err)
			}
		}()
	}
	wg.Wait()
}

// StartAllBrokers starts every broker concurrently, waiting for all
// attempts before reporting the first failure.
func (c *Cluster) StartAllBrokers(ctx context.Context) error {
	c.mut.Lock()
	brokers := sortedNodes(c.brokers)
	c.mut.Unlock()
	return startAll(ctx, brokers...)
}

// PlainTextServiceURL returns the pulsar:// URL for clients connecting
// from the host through the proxy.
func (c *Cluster) PlainTextServiceURL(ctx context.Context) (string, error) {
	host, err := c.proxy.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("getting proxy host: %w", err)
	}
	port, err := c.proxy.MappedPort(ctx, BrokerPort)
	if err != nil {
		return "", fmt.Errorf("getting proxy binary port: %w", err)
	}
	return fmt.Sprintf("pulsar://%s:%d", host, port), nil
}

// HTTPServiceURL returns the http:// URL of the admin API through the
// proxy.
func (c *Cluster) HTTPServiceURL(ctx context.Context) (string, error) {
	host, err := c.proxy.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("getting proxy host: %w", err)
	}
	port, err := c.proxy.MappedPort(ctx, BrokerHTTPPort)
	if err != nil {
		return "", fmt.Errorf("getting proxy HTTP port: %w", err)
	}
	return fmt.Sprintf("http://%s:%d", host, port), nil
}

// ZKConnectString returns host:port for the ZooKeeper client port mapped
// on the host, for callers needing direct metadata access.
func (c *Cluster) ZKConnectString(ctx context.Context) (string, error) {
	host, err := c.zookeeper.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("getting ZooKeeper host: %w", err)
	}
	port, err := c.zookeeper.MappedPort(ctx, ZooKeeperPort)
	if err != nil {
		return "", fmt.Errorf("getting ZooKeeper port: %w", err)
	}
	return fmt.Sprintf("%s:%d", host, port), nil
}

func (c *Cluster) logServiceURLs(ctx context.Context) {
	serviceURL, err := c.PlainTextServiceURL(ctx)
	if err != nil {
		c.log.Debugf("service URL not available: %s", err)
		return
	}
	httpURL, err := c.HTTPServiceURL(ctx)
	if err != nil {
		c.log.Debugf("HTTP service URL not available: %s", err)
		return
	}
	c.log.Infof("cluster %s up, service URL %s, HTTP service URL %s", c.spec.ClusterName, serviceURL, httpURL)
}

// startAll starts the given nodes concurrently and waits for every attempt
// to finish before reporting the first failure.
func startAll(ctx context.Context, nodes ...*Node) error {
	var group errgroup.Group
	for _, n := range nodes {
		group.Go(func() error { return n.Start(ctx) })
	}
	return group.Wait()
}

func (c *Cluster) sortedBookies() []*Node { return sortedNodes(c.bookies) }

func (c *Cluster) sortedBrokers() []*Node { return sortedNodes(c.brokers) }

func (c *Cluster) sortedWorkers() []*Node { return sortedNodes(c.workers) }

func sortedNodes(m map[string]*Node) []*Node {
	nodes := make([]*Node, 0, len(m))
	for _, name := range slices.Sorted(maps.Keys(m)) {
		nodes = append(nodes, m[name])
	}
	return nodes
}
