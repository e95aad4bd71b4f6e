// Package fake provides an in-memory cluster.Runtime for unit tests. It
// journals every network and container operation in call order so that
// lifecycle ordering properties can be asserted without a container engine.
package fake

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/docker/go-connections/nat"
	"github.com/pulsarlabs/pulsartest/cluster"
)

// Op identifies a journaled runtime operation.
type Op string

const (
	OpNetworkCreate Op = "network-create"
	OpNetworkRemove Op = "network-remove"
	OpStart         Op = "start"
	OpExec          Op = "exec"
	OpStop          Op = "stop"
)

// Event is one journaled operation. Seq increases monotonically across the
// whole runtime, so relative ordering between containers is preserved.
type Event struct {
	Seq  int
	Op   Op
	Name string
	Args []string
}

// ExecFunc fabricates the result of an exec call.
type ExecFunc func(cmd []string) *cluster.ExecResult

// Runtime records operations instead of performing them. All methods are
// safe for concurrent use.
type Runtime struct {
	mut        sync.Mutex
	seq        int
	events     []Event
	containers map[string]*Container
	networks   int

	startErrs    map[string]error
	stopErrs     map[string]error
	execErrs     map[string]error
	execStubs    map[string]ExecFunc
	netRemoveErr error

	nextPort int
}

func NewRuntime() *Runtime {
	return &Runtime{
		containers: map[string]*Container{},
		startErrs:  map[string]error{},
		stopErrs:   map[string]error{},
		execErrs:   map[string]error{},
		execStubs:  map[string]ExecFunc{},
		nextPort:   32768,
	}
}

// FailStart makes Start fail for the named container.
func (r *Runtime) FailStart(name string, err error) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.startErrs[name] = err
}

// FailStop makes Stop fail for the named container. The stop attempt is
// still journaled.
func (r *Runtime) FailStop(name string, err error) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.stopErrs[name] = err
}

// FailExec makes Exec fail for the named container.
func (r *Runtime) FailExec(name string, err error) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.execErrs[name] = err
}

// FailNetworkRemove makes removing cluster networks fail.
func (r *Runtime) FailNetworkRemove(err error) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.netRemoveErr = err
}

// StubExec fabricates exec results for the named container. Without a stub,
// every exec succeeds with exit code 0 and empty output.
func (r *Runtime) StubExec(name string, fn ExecFunc) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.execStubs[name] = fn
}

func (r *Runtime) CreateNetwork(ctx context.Context) (cluster.Network, error) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.networks++
	name := fmt.Sprintf("fake-net-%d", r.networks)
	r.recordLocked(OpNetworkCreate, name, nil)
	return &Network{rt: r, name: name}, nil
}

func (r *Runtime) NewContainer(cfg cluster.Config) cluster.Container {
	r.mut.Lock()
	defer r.mut.Unlock()
	c := &Container{rt: r, cfg: cfg.Clone()}
	r.containers[cfg.Name] = c
	return c
}

// Events returns a copy of the journal in recording order.
func (r *Runtime) Events() []Event {
	r.mut.Lock()
	defer r.mut.Unlock()
	return slices.Clone(r.events)
}

// EventsFor returns the journaled events matching op and name.
func (r *Runtime) EventsFor(op Op, name string) []Event {
	r.mut.Lock()
	defer r.mut.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Op == op && e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// FirstSeq returns the sequence number of the first event matching op and
// name. The second return is false if no such event was recorded.
func (r *Runtime) FirstSeq(op Op, name string) (int, bool) {
	r.mut.Lock()
	defer r.mut.Unlock()
	for _, e := range r.events {
		if e.Op == op && e.Name == name {
			return e.Seq, true
		}
	}
	return 0, false
}

// CountOp returns how many events with the given op were recorded.
func (r *Runtime) CountOp(op Op) int {
	r.mut.Lock()
	defer r.mut.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Op == op {
			n++
		}
	}
	return n
}

// Container returns the most recent handle created for name.
func (r *Runtime) Container(name string) (*Container, bool) {
	r.mut.Lock()
	defer r.mut.Unlock()
	c, ok := r.containers[name]
	return c, ok
}

func (r *Runtime) recordLocked(op Op, name string, args []string) {
	r.seq++
	r.events = append(r.events, Event{Seq: r.seq, Op: op, Name: name, Args: args})
}

// Network is a fake cluster network.
type Network struct {
	rt   *Runtime
	name string
}

func (n *Network) Name() string { return n.name }

func (n *Network) Remove(ctx context.Context) error {
	n.rt.mut.Lock()
	defer n.rt.mut.Unlock()
	n.rt.recordLocked(OpNetworkRemove, n.name, nil)
	return n.rt.netRemoveErr
}

// Container is a fake container. It tracks lifecycle state and fabricates
// hosts and mapped ports deterministically.
type Container struct {
	rt  *Runtime
	cfg cluster.Config

	created bool
	running bool
	stopped bool
	ports   map[nat.Port]int
}

func (c *Container) Start(ctx context.Context) error {
	c.rt.mut.Lock()
	defer c.rt.mut.Unlock()
	c.created = true
	c.rt.recordLocked(OpStart, c.cfg.Name, nil)
	if err := c.rt.startErrs[c.cfg.Name]; err != nil {
		return err
	}
	c.running = true
	return nil
}

func (c *Container) Stop(ctx context.Context) error {
	c.rt.mut.Lock()
	defer c.rt.mut.Unlock()
	if !c.created || c.stopped {
		return nil
	}
	c.rt.recordLocked(OpStop, c.cfg.Name, nil)
	c.stopped = true
	c.running = false
	return c.rt.stopErrs[c.cfg.Name]
}

func (c *Container) Exec(ctx context.Context, cmd ...string) (*cluster.ExecResult, error) {
	c.rt.mut.Lock()
	defer c.rt.mut.Unlock()
	if !c.running {
		return nil, cluster.ErrNotRunning
	}
	c.rt.recordLocked(OpExec, c.cfg.Name, slices.Clone(cmd))
	if err := c.rt.execErrs[c.cfg.Name]; err != nil {
		return nil, err
	}
	if fn := c.rt.execStubs[c.cfg.Name]; fn != nil {
		return fn(cmd), nil
	}
	return &cluster.ExecResult{}, nil
}

func (c *Container) Host(ctx context.Context) (string, error) {
	return "127.0.0.1", nil
}

// MappedPort fabricates a stable host port per container port, unique
// across the runtime.
func (c *Container) MappedPort(ctx context.Context, port nat.Port) (int, error) {
	c.rt.mut.Lock()
	defer c.rt.mut.Unlock()
	if !c.running {
		return 0, cluster.ErrNotRunning
	}
	if c.ports == nil {
		c.ports = map[nat.Port]int{}
	}
	if p, ok := c.ports[port]; ok {
		return p, nil
	}
	c.rt.nextPort++
	c.ports[port] = c.rt.nextPort
	return c.ports[port], nil
}

// Config returns a copy of the configuration the container was created with.
func (c *Container) Config() cluster.Config {
	c.rt.mut.Lock()
	defer c.rt.mut.Unlock()
	return c.cfg.Clone()
}

// Running reports whether the container is currently running.
func (c *Container) Running() bool {
	c.rt.mut.Lock()
	defer c.rt.mut.Unlock()
	return c.running
}
