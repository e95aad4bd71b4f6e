//go:build integration

package docker

import (
	"context"
	"testing"
	"time"

	clusteriface "github.com/pulsarlabs/pulsartest/cluster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRuntimeLifecycle exercises the Docker backend end to end with a
// throwaway container: network, start, exec with demultiplexed output,
// stop, network removal.
func TestRuntimeLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rt := MustNewRuntime()

	net, err := rt.CreateNetwork(ctx)
	require.NoError(t, err)

	c := rt.NewContainer(clusteriface.Config{
		Image:   "alpine:3.20",
		Name:    "pulsartest-probe",
		Cmd:     []string{"sleep", "300"},
		Network: net.Name(),
		Aliases: []string{"probe"},
	})
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() {
		assert.NoError(t, c.Stop(context.Background()))
		assert.NoError(t, net.Remove(context.Background()))
	})

	res, err := c.Exec(ctx, "sh", "-c", "echo out; echo err >&2; exit 7")
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)

	host, err := c.Host(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, host)
}

func TestExecAfterStop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rt := MustNewRuntime()

	c := rt.NewContainer(clusteriface.Config{
		Image: "alpine:3.20",
		Name:  "pulsartest-stopped",
		Cmd:   []string{"sleep", "300"},
	})
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Stop(ctx))

	_, err := c.Exec(ctx, "true")
	require.ErrorIs(t, err, clusteriface.ErrNotRunning)

	// A second stop is a no-op.
	require.NoError(t, c.Stop(ctx))
}
