package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.NoError(t, AtomicWriteString(path, "hello", 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// Overwrite keeps the new content only.
	require.NoError(t, AtomicWriteString(path, "world", 0644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "checkout")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "pkg", "sub"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".koda"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "pkg", "sub", "b.txt"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".koda", "state.json"), []byte("{}"), 0644))

	require.NoError(t, CopyTree(src, dst, ".koda"))

	data, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	data, err = os.ReadFile(filepath.Join(dst, "pkg", "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))

	_, err = os.Stat(filepath.Join(dst, ".koda"))
	assert.True(t, os.IsNotExist(err))
}
