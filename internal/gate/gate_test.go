package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"koda/internal/mode"
	"koda/internal/todo"
	"koda/internal/tools"
)

func testTools(t *testing.T) (readTool, writeTool, execTool, planTool tools.Tool) {
	t.Helper()
	dir := t.TempDir()
	r := tools.NewDefaultRegistry(dir, todo.NewManager(), nil, nil)

	var err error
	readTool, err = r.Get("read_file")
	require.NoError(t, err)
	writeTool, err = r.Get("write_file")
	require.NoError(t, err)
	execTool, err = r.Get("bash")
	require.NoError(t, err)
	return readTool, writeTool, execTool, nil
}

func TestPlanModeBlocksMutations(t *testing.T) {
	readTool, writeTool, execTool, _ := testTools(t)

	prompted := false
	g := New(func(ctx context.Context, req *Request) (Decision, error) {
		prompted = true
		return DecisionAllow, nil
	})

	assert.NoError(t, g.Authorize(context.Background(), mode.Plan, readTool, nil))

	err := g.Authorize(context.Background(), mode.Plan, writeTool, map[string]any{"file_path": "x"})
	assert.ErrorIs(t, err, ErrDenied)

	err = g.Authorize(context.Background(), mode.Plan, execTool, map[string]any{"command": "ls"})
	assert.ErrorIs(t, err, ErrDenied)

	// Deny happens without consulting the user.
	assert.False(t, prompted)
}

func TestActModeRequiresApproval(t *testing.T) {
	readTool, writeTool, _, _ := testTools(t)

	decision := DecisionDeny
	var lastReq *Request
	g := New(func(ctx context.Context, req *Request) (Decision, error) {
		lastReq = req
		return decision, nil
	})

	// Reads pass without a prompt.
	assert.NoError(t, g.Authorize(context.Background(), mode.Act, readTool, nil))
	assert.Nil(t, lastReq)

	// Denied write.
	err := g.Authorize(context.Background(), mode.Act, writeTool, map[string]any{"file_path": "a.txt"})
	assert.ErrorIs(t, err, ErrDenied)
	require.NotNil(t, lastReq)
	assert.Equal(t, "write_file", lastReq.ToolName)
	assert.Contains(t, lastReq.Reason, "a.txt")

	// Approved write.
	decision = DecisionAllow
	assert.NoError(t, g.Authorize(context.Background(), mode.Act, writeTool, map[string]any{"file_path": "a.txt"}))
}

func TestApproveAllSkipsLaterPrompts(t *testing.T) {
	_, writeTool, execTool, _ := testTools(t)

	prompts := 0
	g := New(func(ctx context.Context, req *Request) (Decision, error) {
		prompts++
		return DecisionAllowSession, nil
	})

	require.NoError(t, g.Authorize(context.Background(), mode.Act, writeTool, map[string]any{"file_path": "a"}))
	require.NoError(t, g.Authorize(context.Background(), mode.Act, execTool, map[string]any{"command": "ls"}))
	require.NoError(t, g.Authorize(context.Background(), mode.Act, writeTool, map[string]any{"file_path": "b"}))

	assert.Equal(t, 1, prompts)
	assert.True(t, g.ApproveAll())

	g.Reset()
	assert.False(t, g.ApproveAll())
}

func TestPromptErrorIsDenial(t *testing.T) {
	_, writeTool, _, _ := testTools(t)

	g := New(func(ctx context.Context, req *Request) (Decision, error) {
		return DecisionAllow, errors.New("interrupted")
	})

	err := g.Authorize(context.Background(), mode.Act, writeTool, map[string]any{"file_path": "a"})
	assert.ErrorIs(t, err, ErrDenied)
}

func TestBashModeBlocksEverything(t *testing.T) {
	readTool, writeTool, _, _ := testTools(t)

	g := New(nil)
	assert.ErrorIs(t, g.Authorize(context.Background(), mode.Bash, readTool, nil), ErrDenied)
	assert.ErrorIs(t, g.Authorize(context.Background(), mode.Bash, writeTool, nil), ErrDenied)
}
