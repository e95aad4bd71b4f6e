package pulsar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSpec(t *testing.T) {
	spec := DefaultSpec("smoke")
	assert.Equal(t, "smoke", spec.ClusterName)
	assert.Equal(t, DefaultImage, spec.Image)
	assert.Equal(t, 2, spec.NumBookies)
	assert.Equal(t, 2, spec.NumBrokers)
	assert.Equal(t, 0, spec.NumFunctionWorkers)
	assert.Equal(t, ProcessRuntime, spec.FunctionRuntime)
	require.NoError(t, spec.Validate())
}

func TestSpecValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*ClusterSpec)
		wantErr string
	}{
		{
			name:   "default is valid",
			mutate: func(s *ClusterSpec) {},
		},
		{
			name:   "empty runtime is valid",
			mutate: func(s *ClusterSpec) { s.FunctionRuntime = "" },
		},
		{
			name:   "zero counts are valid",
			mutate: func(s *ClusterSpec) { s.NumBookies, s.NumBrokers = 0, 0 },
		},
		{
			name:    "empty cluster name",
			mutate:  func(s *ClusterSpec) { s.ClusterName = "" },
			wantErr: "cluster name",
		},
		{
			name:    "negative bookies",
			mutate:  func(s *ClusterSpec) { s.NumBookies = -1 },
			wantErr: "numBookies",
		},
		{
			name:    "negative brokers",
			mutate:  func(s *ClusterSpec) { s.NumBrokers = -2 },
			wantErr: "numBrokers",
		},
		{
			name:    "negative workers",
			mutate:  func(s *ClusterSpec) { s.NumFunctionWorkers = -1 },
			wantErr: "numFunctionWorkers",
		},
		{
			name:    "unknown runtime",
			mutate:  func(s *ClusterSpec) { s.FunctionRuntime = "fiber" },
			wantErr: "unknown function runtime",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			spec := DefaultSpec("t1")
			c.mutate(&spec)
			err := spec.Validate()
			if c.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.wantErr)
		})
	}
}

func TestWithDefaults(t *testing.T) {
	spec := ClusterSpec{
		ClusterName:    "t1",
		ResourceMounts: map[string]string{"testdata/certs": "/pulsar/certs"},
	}
	got := spec.withDefaults()
	assert.Equal(t, DefaultImage, got.Image)
	assert.Equal(t, ProcessRuntime, got.FunctionRuntime)

	// The copy must not share maps with the input.
	spec.ResourceMounts["testdata/certs"] = "/tmp/elsewhere"
	assert.Equal(t, "/pulsar/certs", got.ResourceMounts["testdata/certs"])
}

func TestLoadSpecFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cluster.yaml")
	content := `clusterName: integration
image: apachepulsar/pulsar:3.2.0
numBookies: 3
numBrokers: 1
numFunctionWorkers: 2
functionRuntime: thread
resourceMounts:
  testdata/certs: /pulsar/certs
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	spec, err := LoadSpecFile(path)
	require.NoError(t, err)
	assert.Equal(t, "integration", spec.ClusterName)
	assert.Equal(t, "apachepulsar/pulsar:3.2.0", spec.Image)
	assert.Equal(t, 3, spec.NumBookies)
	assert.Equal(t, 1, spec.NumBrokers)
	assert.Equal(t, 2, spec.NumFunctionWorkers)
	assert.Equal(t, ThreadRuntime, spec.FunctionRuntime)
	assert.Equal(t, map[string]string{"testdata/certs": "/pulsar/certs"}, spec.ResourceMounts)
	require.NoError(t, spec.Validate())
}

func TestLoadSpecFileMissing(t *testing.T) {
	_, err := LoadSpecFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading spec file")
}
