package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndPersist(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	assert.False(t, s.Exists())

	doc, err := s.Create("Add auth", "Add user authentication")
	require.NoError(t, err)
	assert.Equal(t, PhaseDrafting, doc.Phase)
	assert.True(t, s.Exists())

	// Both files written.
	_, err = os.Stat(filepath.Join(dir, "plan.yaml"))
	require.NoError(t, err)
	md, err := os.ReadFile(filepath.Join(dir, "plan.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Add auth")
}

func TestUpdateActions(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Create("t", "o")
	require.NoError(t, err)

	require.NoError(t, s.Update("add_context", "uses cobra", nil, ""))
	require.NoError(t, s.Update("add_step", "wire the command", []string{"cmd/root.go"}, ""))
	require.NoError(t, s.Update("set_approach", "extend the CLI", nil, "smallest change"))
	require.NoError(t, s.Update("add_file", "cmd/root.go", nil, ""))
	require.NoError(t, s.Update("add_risk", "flag collisions", nil, ""))
	require.NoError(t, s.Update("add_verification", "go test ./...", nil, ""))

	assert.Error(t, s.Update("bogus", "x", nil, ""))

	doc, ok := s.Current()
	require.True(t, ok)
	assert.Len(t, doc.Context, 1)
	assert.Len(t, doc.Steps, 1)
	assert.Equal(t, "extend the CLI", doc.Approach)
	assert.Equal(t, "smallest change", doc.Rationale)
}

func TestUpdateWithoutPlan(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Update("add_context", "x", nil, ""))
	_, err = s.Finalize(true)
	assert.Error(t, err)
}

func TestFinalizeAndReload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	_, err = s.Create("t", "o")
	require.NoError(t, err)

	doc, err := s.Finalize(true)
	require.NoError(t, err)
	assert.Equal(t, PhaseReady, doc.Phase)

	// A fresh store picks up the persisted plan.
	s2, err := NewStore(dir)
	require.NoError(t, err)
	doc2, ok := s2.Current()
	require.True(t, ok)
	assert.Equal(t, PhaseReady, doc2.Phase)
	assert.Equal(t, "t", doc2.Title)
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	_, err = s.Create("t", "o")
	require.NoError(t, err)

	require.NoError(t, s.Clear())
	assert.False(t, s.Exists())
	_, err = os.Stat(filepath.Join(dir, "plan.yaml"))
	assert.True(t, os.IsNotExist(err))
}
