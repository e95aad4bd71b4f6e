package pulsar

import (
	"context"
	"strings"
	"testing"

	"github.com/pulsarlabs/pulsartest/cluster"
	"github.com/pulsarlabs/pulsartest/cluster/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokerExecs returns the argv of every exec dispatched to a broker, in
// order. The metadata init exec runs on ZooKeeper and is excluded.
func brokerExecs(rt *fake.Runtime) [][]string {
	var out [][]string
	for _, e := range rt.Events() {
		if e.Op == fake.OpExec && strings.HasPrefix(e.Name, "pulsar-broker-") {
			out = append(out, e.Args)
		}
	}
	return out
}

func TestCreateNamespace(t *testing.T) {
	ctx := context.Background()
	c, rt := newFakeCluster(t, DefaultSpec("t1"))
	require.NoError(t, c.Start(ctx))

	res, err := c.CreateNamespace(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)

	execs := brokerExecs(rt)
	require.Len(t, execs, 1)
	assert.Equal(t, []string{
		"/pulsar/bin/pulsar-admin",
		"namespaces", "create", "public/ns1",
		"--clusters", "t1",
	}, execs[0])
}

func TestSetDeduplication(t *testing.T) {
	ctx := context.Background()
	c, rt := newFakeCluster(t, DefaultSpec("t1"))
	require.NoError(t, c.Start(ctx))

	_, err := c.SetDeduplication(ctx, "ns1", true)
	require.NoError(t, err)
	_, err = c.SetDeduplication(ctx, "ns1", false)
	require.NoError(t, err)

	execs := brokerExecs(rt)
	require.Len(t, execs, 2)
	assert.Equal(t, []string{
		"/pulsar/bin/pulsar-admin",
		"namespaces", "set-deduplication", "public/ns1", "--enable",
	}, execs[0])
	assert.Equal(t, []string{
		"/pulsar/bin/pulsar-admin",
		"namespaces", "set-deduplication", "public/ns1", "--disable",
	}, execs[1])
}

func TestCommandScripts(t *testing.T) {
	ctx := context.Background()
	c, rt := newFakeCluster(t, DefaultSpec("t1"))
	require.NoError(t, c.Start(ctx))

	_, err := c.RunAdminCommand(ctx, "clusters", "list")
	require.NoError(t, err)
	_, err = c.RunClientCommand(ctx, "produce", "t", "-m", "hello")
	require.NoError(t, err)
	_, err = c.RunPulsarCommand(ctx, "version")
	require.NoError(t, err)

	execs := brokerExecs(rt)
	require.Len(t, execs, 3)
	assert.Equal(t, "/pulsar/bin/pulsar-admin", execs[0][0])
	assert.Equal(t, "/pulsar/bin/pulsar-client", execs[1][0])
	assert.Equal(t, "/pulsar/bin/pulsar", execs[2][0])
}

func TestCommandNonZeroExitIsData(t *testing.T) {
	ctx := context.Background()
	c, rt := newFakeCluster(t, DefaultSpec("t1"))
	require.NoError(t, c.Start(ctx))

	for _, b := range c.Brokers() {
		rt.StubExec(b.Name(), func(cmd []string) *cluster.ExecResult {
			return &cluster.ExecResult{ExitCode: 255, Stderr: "namespace already exists"}
		})
	}

	res, err := c.CreateNamespace(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, 255, res.ExitCode)
	assert.Equal(t, "namespace already exists", res.Stderr)
}

func TestCommandEmptyPool(t *testing.T) {
	spec := DefaultSpec("t1")
	spec.NumBrokers = 0
	c, _ := newFakeCluster(t, spec)

	_, err := c.RunAdminCommand(context.Background(), "clusters", "list")
	require.Error(t, err)
	var empty *EmptyPoolError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "no broker is alive", err.Error())
}

func TestCommandBeforeStart(t *testing.T) {
	c, _ := newFakeCluster(t, DefaultSpec("t1"))
	_, err := c.RunAdminCommand(context.Background(), "clusters", "list")
	assert.ErrorIs(t, err, cluster.ErrNotRunning)
}
