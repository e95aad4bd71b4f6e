package pulsar

import (
	"context"
	"errors"
	"testing"

	"github.com/pulsarlabs/pulsartest/cluster"
	"github.com/pulsarlabs/pulsartest/cluster/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestNode(rt *fake.Runtime) *Node {
	return newNode(rt, zap.NewNop().Sugar(), RoleBroker, cluster.Config{
		Name:  "pulsar-broker-0",
		Image: DefaultImage,
		Cmd:   roleCommand[RoleBroker],
		Env:   brokerEnv("t1"),
	})
}

func TestNodeLifecycle(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewRuntime()
	n := newTestNode(rt)

	assert.Equal(t, NodeNotStarted, n.State())
	require.NoError(t, n.Start(ctx))
	assert.Equal(t, NodeRunning, n.State())

	rt.StubExec("pulsar-broker-0", func(cmd []string) *cluster.ExecResult {
		return &cluster.ExecResult{Stdout: "ok"}
	})
	res, err := n.Exec(ctx, "ls")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "ok", res.Stdout)

	host, err := n.Host(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, host)
	port, err := n.MappedPort(ctx, BrokerPort)
	require.NoError(t, err)
	assert.NotZero(t, port)

	require.NoError(t, n.Stop(ctx))
	assert.Equal(t, NodeStopped, n.State())

	_, err = n.Exec(ctx, "ls")
	assert.ErrorIs(t, err, cluster.ErrNotRunning)
	_, err = n.Host(ctx)
	assert.ErrorIs(t, err, cluster.ErrNotRunning)
	_, err = n.MappedPort(ctx, BrokerPort)
	assert.ErrorIs(t, err, cluster.ErrNotRunning)
}

func TestNodeStartTwice(t *testing.T) {
	ctx := context.Background()
	n := newTestNode(fake.NewRuntime())
	require.NoError(t, n.Start(ctx))
	assert.ErrorIs(t, n.Start(ctx), ErrAlreadyRunning)
}

func TestNodeStopBeforeStart(t *testing.T) {
	rt := fake.NewRuntime()
	n := newTestNode(rt)
	require.NoError(t, n.Stop(context.Background()))
	assert.Equal(t, NodeNotStarted, n.State())
	assert.Zero(t, rt.CountOp(fake.OpStop))
}

func TestNodeRestartRecreatesContainer(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewRuntime()
	n := newTestNode(rt)

	require.NoError(t, n.Start(ctx))
	require.NoError(t, n.Stop(ctx))
	require.NoError(t, n.Start(ctx))
	assert.Equal(t, NodeRunning, n.State())

	assert.Len(t, rt.EventsFor(fake.OpStart, "pulsar-broker-0"), 2)
	ctr, ok := rt.Container("pulsar-broker-0")
	require.True(t, ok)
	assert.True(t, ctr.Running())
}

func TestNodeFailedStart(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewRuntime()
	rt.FailStart("pulsar-broker-0", errors.New("image pull failed"))
	n := newTestNode(rt)

	err := n.Start(ctx)
	require.Error(t, err)
	assert.Equal(t, NodeNotStarted, n.State())

	// The failed attempt may have created a container, so another Start is
	// refused until Stop reclaims it.
	err = n.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed start")

	require.NoError(t, n.Stop(ctx))
	assert.Len(t, rt.EventsFor(fake.OpStop, "pulsar-broker-0"), 1)

	rt.FailStart("pulsar-broker-0", nil)
	require.NoError(t, n.Start(ctx))
	assert.Equal(t, NodeRunning, n.State())
}

func TestNodeEnvIsCopy(t *testing.T) {
	n := newTestNode(fake.NewRuntime())
	env := n.Env()
	require.Equal(t, "t1", env["clusterName"])
	env["clusterName"] = "mutated"
	assert.Equal(t, "t1", n.Env()["clusterName"])
}
