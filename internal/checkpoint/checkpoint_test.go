package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWorkspaceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readWorkspaceFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

// snapshotAndApply mimics the orchestrator's snapshot-then-apply
// sequence for a single file write.
func snapshotAndApply(t *testing.T, s *Store, dir, desc, name, content string) *Checkpoint {
	t.Helper()
	cp, err := s.Snapshot(desc, nil)
	require.NoError(t, err)
	writeWorkspaceFile(t, dir, name, content)
	require.NoError(t, s.Commit())
	return cp
}

func TestSnapshotChain(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "main.go", "v0")

	s, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Head())
	assert.Empty(t, s.List())

	cp1 := snapshotAndApply(t, s, dir, "write main.go", "main.go", "v1")
	cp2 := snapshotAndApply(t, s, dir, "write main.go", "main.go", "v2")

	assert.Equal(t, 1, cp1.Seq)
	assert.Equal(t, 2, cp2.Seq)
	assert.Equal(t, 1, cp2.Parent)
	assert.Equal(t, 2, s.Head())

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Seq)
	assert.Equal(t, 2, list[1].Seq)
}

func TestRewindArithmetic(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "main.go", "v0")

	s, err := Open(dir)
	require.NoError(t, err)

	snapshotAndApply(t, s, dir, "first", "main.go", "v1")
	snapshotAndApply(t, s, dir, "second", "main.go", "v2")
	snapshotAndApply(t, s, dir, "third", "main.go", "v3")

	// Rewinding two steps from #3 lands on #1, whose snapshot holds
	// the content before the first mutation.
	_, err = s.Rewind(2)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Head())
	assert.Equal(t, "v0", readWorkspaceFile(t, dir, "main.go"))

	// History is never discarded by a rewind.
	assert.Len(t, s.List(), 3)

	// A second rewind continues from the new position.
	_, err = s.Rewind(1)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Head())
}

func TestRewindOutOfRange(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "a.txt", "keep")

	s, err := Open(dir)
	require.NoError(t, err)
	snapshotAndApply(t, s, dir, "edit", "a.txt", "changed")

	_, err = s.Rewind(5)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = s.Rewind(0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// Failed rewinds leave everything in place.
	assert.Equal(t, 1, s.Head())
	assert.Equal(t, "changed", readWorkspaceFile(t, dir, "a.txt"))
	assert.Len(t, s.List(), 1)
}

func TestRewindRemovesLaterFiles(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "old.txt", "old")

	s, err := Open(dir)
	require.NoError(t, err)
	snapshotAndApply(t, s, dir, "add file", "new.txt", "new")

	_, err = s.Rewind(1)
	require.NoError(t, err)

	assert.Equal(t, "old", readWorkspaceFile(t, dir, "old.txt"))
	_, statErr := os.Stat(filepath.Join(dir, "new.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRewindRestoresSessionState(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "a.txt", "v0")

	s, err := Open(dir)
	require.NoError(t, err)

	state := json.RawMessage(`{"mode":"act","tasks":["one"]}`)
	_, err = s.Snapshot("edit", state)
	require.NoError(t, err)
	writeWorkspaceFile(t, dir, "a.txt", "v1")
	require.NoError(t, s.Commit())

	restored, err := s.Rewind(1)
	require.NoError(t, err)
	assert.JSONEq(t, string(state), string(restored))
}

func TestMergeFastForward(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "a.txt", "v0")

	s, err := Open(dir)
	require.NoError(t, err)
	snapshotAndApply(t, s, dir, "edit", "a.txt", "v1")

	res, err := s.Merge()
	require.NoError(t, err)
	assert.True(t, res.FastForward)

	// The merged state becomes the new baseline and the chain resets.
	assert.Equal(t, 0, s.Head())
	assert.Empty(t, s.List())
	assert.Equal(t, "v1", readWorkspaceFile(t, dir, "a.txt"))
}

func TestMergeConflictOnExternalEdit(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "a.txt", "v0")

	s, err := Open(dir)
	require.NoError(t, err)
	snapshotAndApply(t, s, dir, "edit", "a.txt", "v1")

	// Simulate another process editing the file behind the session.
	writeWorkspaceFile(t, dir, "a.txt", "external")

	res, err := s.Merge()
	assert.ErrorIs(t, err, ErrConflict)
	require.NotNil(t, res)
	assert.Equal(t, []string{"a.txt"}, res.Conflicts)

	// A failed merge modifies nothing.
	assert.Equal(t, 1, s.Head())
	assert.Equal(t, "external", readWorkspaceFile(t, dir, "a.txt"))
	assert.Len(t, s.List(), 1)
}

func TestDivergedDetectsNewAndDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "a.txt", "v0")

	s, err := Open(dir)
	require.NoError(t, err)

	writeWorkspaceFile(t, dir, "extra.txt", "surprise")
	require.NoError(t, os.Remove(filepath.Join(dir, "a.txt")))

	diverged, err := s.Diverged()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "extra.txt"}, diverged)
}

func TestReopenRestoresChain(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "a.txt", "v0")

	s, err := Open(dir)
	require.NoError(t, err)
	snapshotAndApply(t, s, dir, "edit", "a.txt", "v1")
	snapshotAndApply(t, s, dir, "edit", "a.txt", "v2")

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Head())
	assert.Len(t, reopened.List(), 2)

	_, err = reopened.Rewind(2)
	require.NoError(t, err)
	assert.Equal(t, "v0", readWorkspaceFile(t, dir, "a.txt"))
}

func TestCorruptBlobLeavesWorkspaceUntouched(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "a.txt", "v0")

	s, err := Open(dir)
	require.NoError(t, err)
	snapshotAndApply(t, s, dir, "edit", "a.txt", "v1")

	// Destroy the blob arena.
	require.NoError(t, os.RemoveAll(filepath.Join(dir, ".koda", "checkpoints", "blobs")))

	_, err = s.Rewind(1)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, "v1", readWorkspaceFile(t, dir, "a.txt"))
}

func TestSnapshotDeduplicatesBlobs(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "a.txt", "same content")
	writeWorkspaceFile(t, dir, "b.txt", "same content")

	s, err := Open(dir)
	require.NoError(t, err)

	base := s.Baseline()
	require.NotNil(t, base)
	assert.Equal(t, base.Files["a.txt"].Hash, base.Files["b.txt"].Hash)
}

func TestRewindRestoresFileMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho v0\n"), 0o755))
	require.NoError(t, os.Chmod(path, 0o755))

	s, err := Open(dir)
	require.NoError(t, err)

	// The mutation rewrites the script and drops its exec bit.
	_, err = s.Snapshot("edit run.sh", nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho v1\n"), 0o644))
	require.NoError(t, os.Chmod(path, 0o644))
	require.NoError(t, s.Commit())

	_, err = s.Rewind(1)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.Equal(t, "#!/bin/sh\necho v0\n", readWorkspaceFile(t, dir, "run.sh"))
}
