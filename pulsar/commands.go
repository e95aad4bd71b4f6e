package pulsar

import (
	"context"

	"github.com/pulsarlabs/pulsartest/cluster"
)

// Paths of the Pulsar CLI tools inside the official images.
const (
	AdminScript  = "/pulsar/bin/pulsar-admin"
	ClientScript = "/pulsar/bin/pulsar-client"
	PulsarScript = "/pulsar/bin/pulsar"
)

// RunAdminCommand runs a pulsar-admin subcommand on a random broker and
// returns its exit code and output. A non-zero exit code is not an error.
func (c *Cluster) RunAdminCommand(ctx context.Context, args ...string) (*cluster.ExecResult, error) {
	return c.runOnAnyBroker(ctx, AdminScript, args)
}

// RunClientCommand runs a pulsar-client subcommand on a random broker.
func (c *Cluster) RunClientCommand(ctx context.Context, args ...string) (*cluster.ExecResult, error) {
	return c.runOnAnyBroker(ctx, ClientScript, args)
}

// RunPulsarCommand runs a pulsar tool subcommand on a random broker.
func (c *Cluster) RunPulsarCommand(ctx context.Context, args ...string) (*cluster.ExecResult, error) {
	return c.runOnAnyBroker(ctx, PulsarScript, args)
}

func (c *Cluster) runOnAnyBroker(ctx context.Context, script string, args []string) (*cluster.ExecResult, error) {
	broker, err := c.AnyBroker()
	if err != nil {
		return nil, err
	}
	cmd := append([]string{script}, args...)
	c.log.Debugw("running command on broker", "broker", broker.Name(), "cmd", cmd)
	return broker.Exec(ctx, cmd...)
}

// CreateNamespace creates a namespace under the public tenant, bound to
// this cluster.
func (c *Cluster) CreateNamespace(ctx context.Context, name string) (*cluster.ExecResult, error) {
	return c.RunAdminCommand(ctx,
		"namespaces", "create", "public/"+name,
		"--clusters", c.spec.ClusterName)
}

// SetDeduplication toggles message deduplication on a namespace under the
// public tenant.
func (c *Cluster) SetDeduplication(ctx context.Context, name string, enabled bool) (*cluster.ExecResult, error) {
	flag := "--disable"
	if enabled {
		flag = "--enable"
	}
	return c.RunAdminCommand(ctx,
		"namespaces", "set-deduplication", "public/"+name, flag)
}
