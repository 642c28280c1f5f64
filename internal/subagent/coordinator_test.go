package subagent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"koda/internal/client"
	"koda/internal/tools"
)

type fakeProvider struct {
	send func(ctx context.Context, history []*genai.Content, declarations []*genai.FunctionDeclaration) (*client.Response, error)
}

func (f *fakeProvider) Send(ctx context.Context, history []*genai.Content, declarations []*genai.FunctionDeclaration) (*client.Response, error) {
	return f.send(ctx, history, declarations)
}

func (f *fakeProvider) Model() string               { return "fake" }
func (f *fakeProvider) SetModel(string)             {}
func (f *fakeProvider) SetSystemInstruction(string) {}
func (f *fakeProvider) Close() error                { return nil }

func textFactory(text string) ProviderFactory {
	return func(ctx context.Context) (client.Provider, error) {
		return &fakeProvider{
			send: func(ctx context.Context, history []*genai.Content, declarations []*genai.FunctionDeclaration) (*client.Response, error) {
				return &client.Response{Text: text}, nil
			},
		}, nil
	}
}

func TestRunParallelOneResultPerJob(t *testing.T) {
	calls := 0
	factory := func(ctx context.Context) (client.Provider, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("quota exhausted")
		}
		p, _ := textFactory("done")(ctx)
		return p, nil
	}

	c := NewCoordinator(t.TempDir(), factory, 4, time.Minute)
	results := c.RunParallel(context.Background(), []tools.SubagentSpec{
		{Type: tools.SubagentExplore, Instructions: "look around"},
		{Type: tools.SubagentPlan, Instructions: "plan it"},
		{Type: tools.SubagentExplore, Instructions: "look again"},
	})

	require.Len(t, results, 3)
	statuses := map[string]int{}
	for _, r := range results {
		statuses[r.Status]++
	}
	assert.Equal(t, 2, statuses["success"])
	assert.Equal(t, 1, statuses["failure"])
}

func TestRunParallelUsesTools(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("findings"), 0644))

	factory := func(ctx context.Context) (client.Provider, error) {
		turn := 0
		return &fakeProvider{
			send: func(ctx context.Context, history []*genai.Content, declarations []*genai.FunctionDeclaration) (*client.Response, error) {
				turn++
				if turn == 1 {
					call := &genai.FunctionCall{Name: "read_file", Args: map[string]any{"file_path": "notes.txt"}}
					return &client.Response{
						FunctionCalls: []*genai.FunctionCall{call},
						Parts:         []*genai.Part{{FunctionCall: call}},
					}, nil
				}
				// The tool result arrives as the last history entry.
				last := history[len(history)-1]
				if len(last.Parts) == 0 || last.Parts[0].FunctionResponse == nil {
					return nil, errors.New("expected a tool result in history")
				}
				return &client.Response{Text: "report: found notes.txt"}, nil
			},
		}, nil
	}

	c := NewCoordinator(dir, factory, 2, time.Minute)
	results := c.RunParallel(context.Background(), []tools.SubagentSpec{
		{Type: tools.SubagentExplore, Instructions: "what files exist?"},
	})

	require.Len(t, results, 1)
	assert.Equal(t, "success", results[0].Status)
	assert.Contains(t, results[0].Output, "notes.txt")
}

func TestRunParallelTimeout(t *testing.T) {
	factory := func(ctx context.Context) (client.Provider, error) {
		return &fakeProvider{
			send: func(ctx context.Context, history []*genai.Content, declarations []*genai.FunctionDeclaration) (*client.Response, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}, nil
	}

	c := NewCoordinator(t.TempDir(), factory, 2, 20*time.Millisecond)
	results := c.RunParallel(context.Background(), []tools.SubagentSpec{
		{Type: tools.SubagentExplore, Instructions: "slow"},
	})

	require.Len(t, results, 1)
	assert.Equal(t, "timeout", results[0].Status)
}

func TestBackgroundJobLifecycle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0644))

	c := NewCoordinator(dir, textFactory("all tests passed"), 2, time.Minute)
	id, err := c.StartBackground(context.Background(), tools.SubagentSpec{
		Type: tools.SubagentTestRunner, Instructions: "run tests",
	})
	require.NoError(t, err)

	// The checkout is a point-in-time copy without the session dir.
	checkout := filepath.Join(dir, ".koda", "jobs", id, "checkout")
	_, statErr := os.Stat(filepath.Join(checkout, "main.go"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(checkout, ".koda"))
	assert.True(t, os.IsNotExist(statErr))

	require.Eventually(t, func() bool {
		res, ok := c.Status(id)
		return ok && res.Status != "running"
	}, 2*time.Second, 10*time.Millisecond)

	res, ok := c.Status(id)
	require.True(t, ok)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "all tests passed", res.Output)

	// Finished jobs are reported exactly once.
	drained := c.DrainFinished()
	require.Len(t, drained, 1)
	assert.Equal(t, id, drained[0].ID)
	assert.Empty(t, c.DrainFinished())
}

func TestCancelBackgroundJob(t *testing.T) {
	blocked := make(chan struct{})
	factory := func(ctx context.Context) (client.Provider, error) {
		return &fakeProvider{
			send: func(ctx context.Context, history []*genai.Content, declarations []*genai.FunctionDeclaration) (*client.Response, error) {
				close(blocked)
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}, nil
	}

	c := NewCoordinator(t.TempDir(), factory, 2, time.Minute)
	id, err := c.StartBackground(context.Background(), tools.SubagentSpec{
		Type: tools.SubagentCodeReviewer, Instructions: "review",
	})
	require.NoError(t, err)

	<-blocked
	assert.True(t, c.Cancel(id))

	res, ok := c.Status(id)
	require.True(t, ok)
	assert.Equal(t, "cancelled", res.Status)

	// Cancelling twice or cancelling an unknown job is a no-op.
	assert.False(t, c.Cancel(id))
	assert.False(t, c.Cancel("nope"))
}

func TestRegistryPerSubagentType(t *testing.T) {
	c := NewCoordinator(t.TempDir(), textFactory("x"), 1, time.Minute)

	r := c.registryFor(tools.SubagentExplore, c.workDir)
	_, err := r.Get("bash")
	assert.Error(t, err)

	r = c.registryFor(tools.SubagentTestRunner, c.workDir)
	_, err = r.Get("bash")
	assert.NoError(t, err)
	_, err = r.Get("write_file")
	assert.Error(t, err)
}
