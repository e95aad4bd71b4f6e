package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/m\n"), 0o644))

	assert.Equal(t, filepath.Join(root, "go.mod"), FindUp("go.mod", nested))
	assert.Equal(t, filepath.Join(root, "go.mod"), FindUp("go.mod", root))
	assert.Equal(t, "", FindUp("does-not-exist-anywhere-xyz", nested))
}

func TestResolveFromModuleRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "pkg", "sub")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/m\n"), 0o644))

	got, err := ResolveFromModuleRoot("testdata/certs", nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "testdata/certs"), got)

	got, err = ResolveFromModuleRoot("/etc/ssl", nested)
	require.NoError(t, err)
	assert.Equal(t, "/etc/ssl", got)
}
