package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"koda/internal/todo"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolvePathRejectsEscape(t *testing.T) {
	dir := t.TempDir()

	_, err := resolvePath(dir, "../outside.txt")
	assert.Error(t, err)

	_, err = resolvePath(dir, "/etc/passwd")
	assert.Error(t, err)

	p, err := resolvePath(dir, "sub/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "file.txt"), p)
}

func TestReadTool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.txt", "one\ntwo\nthree\n")

	tool := NewReadTool(dir)
	require.NoError(t, tool.Validate(map[string]any{"file_path": "hello.txt"}))

	res, err := tool.Execute(context.Background(), map[string]any{"file_path": "hello.txt"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Contains(t, res.Content, "1\tone")
	assert.Contains(t, res.Content, "3\tthree")

	// Offset and limit.
	res, err = tool.Execute(context.Background(), map[string]any{
		"file_path": "hello.txt", "offset": float64(2), "limit": float64(1),
	})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "two")
	assert.NotContains(t, res.Content, "one")
	assert.NotContains(t, res.Content, "three")

	// Missing file is a failed result, not an error.
	res, err = tool.Execute(context.Background(), map[string]any{"file_path": "nope.txt"})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestWriteTool(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteTool(dir)

	res, err := tool.Execute(context.Background(), map[string]any{
		"file_path": "pkg/new.txt", "content": "hello",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Contains(t, res.Content, "Created")

	data, err := os.ReadFile(filepath.Join(dir, "pkg", "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	res, err = tool.Execute(context.Background(), map[string]any{
		"file_path": "pkg/new.txt", "content": "changed",
	})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "Updated")
}

func TestEditTool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha beta alpha")
	tool := NewEditTool(dir)

	// Ambiguous match without replace_all.
	res, err := tool.Execute(context.Background(), map[string]any{
		"file_path": "a.txt", "old_string": "alpha", "new_string": "gamma",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)

	res, err = tool.Execute(context.Background(), map[string]any{
		"file_path": "a.txt", "old_string": "alpha", "new_string": "gamma", "replace_all": true,
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "gamma beta gamma", string(data))

	// old_string not present.
	res, err = tool.Execute(context.Background(), map[string]any{
		"file_path": "a.txt", "old_string": "missing", "new_string": "x",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)

	assert.Error(t, tool.Validate(map[string]any{
		"file_path": "a.txt", "old_string": "same", "new_string": "same",
	}))
}

func TestGlobTool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a")
	writeFile(t, dir, "sub/b.go", "package b")
	writeFile(t, dir, "sub/c.txt", "text")

	tool := NewGlobTool(dir)
	res, err := tool.Execute(context.Background(), map[string]any{"pattern": "**/*.go"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Contains(t, res.Content, "a.go")
	assert.Contains(t, res.Content, filepath.Join("sub", "b.go"))
	assert.NotContains(t, res.Content, "c.txt")
}

func TestGrepTool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.go", "func Alpha() {}\nfunc Beta() {}\n")
	writeFile(t, dir, "y.txt", "alpha beta\n")

	tool := NewGrepTool(dir)
	require.Error(t, tool.Validate(map[string]any{"pattern": "("}))

	res, err := tool.Execute(context.Background(), map[string]any{
		"pattern": "func \\w+", "include": "*.go",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Contains(t, res.Content, "x.go:1:func Alpha() {}")
	assert.NotContains(t, res.Content, "y.txt")
}

func TestListDirTool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "child"), 0755))

	tool := NewListDirTool(dir)
	res, err := tool.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Contains(t, res.Content, "child/")
	assert.Contains(t, res.Content, "file.txt")
}

func TestBashTool(t *testing.T) {
	dir := t.TempDir()
	tool := NewBashTool(dir)

	res, err := tool.Execute(context.Background(), map[string]any{"command": "echo hi"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Contains(t, res.Content, "hi")

	// Non-zero exit becomes a failed result with output preserved.
	res, err = tool.Execute(context.Background(), map[string]any{"command": "echo oops >&2; exit 3"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "oops")
	assert.Contains(t, res.Error, "status 3")
}

func TestTodoWriteTool(t *testing.T) {
	mgr := todo.NewManager()
	tool := NewTodoWriteTool(mgr)

	res, err := tool.Execute(context.Background(), map[string]any{
		"action": "replace",
		"tasks":  []any{"first", "second"},
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	view := mgr.View()
	require.Len(t, view, 2)

	res, err = tool.Execute(context.Background(), map[string]any{
		"action": "start", "task_id": view[0].ID,
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	// Second start is rejected through the tool as a failed result.
	res, err = tool.Execute(context.Background(), map[string]any{
		"action": "start", "task_id": view[1].ID,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "already in progress")
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	r := NewDefaultRegistry(dir, todo.NewManager(), nil, nil)

	tool, err := r.Get("read_file")
	require.NoError(t, err)
	assert.Equal(t, CapabilityRead, tool.Capability())

	_, err = r.Get("bogus")
	assert.Error(t, err)

	reads := r.Filter(func(t Tool) bool { return t.Capability() == CapabilityRead })
	for _, tool := range reads {
		assert.Equal(t, CapabilityRead, tool.Capability())
	}

	decls := Declarations(r.All())
	assert.Len(t, decls, len(r.All()))
}

func TestReadOnlyRegistry(t *testing.T) {
	r := NewReadOnlyRegistry(t.TempDir())
	for _, tool := range r.All() {
		assert.Equal(t, CapabilityRead, tool.Capability(), tool.Name())
	}
}
