// Package subagent runs delegated jobs in isolated model
// conversations. Parallel jobs (explore, plan) block the main turn
// behind a bounded pool and see the live workspace read-only.
// Background jobs (test_runner, build_validator, code_reviewer) get a
// point-in-time copy of the workspace and run detached; their results
// are collected at the start of a later turn.
package subagent

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"koda/internal/client"
	"koda/internal/fileutil"
	"koda/internal/logging"
	"koda/internal/tools"
)

// ProviderFactory creates a fresh provider for one job's conversation.
type ProviderFactory func(ctx context.Context) (client.Provider, error)

// job is one delegated unit of work.
type job struct {
	id           string
	subagentType string
	instructions string
	status       string
	output       string
	startTime    time.Time
	endTime      time.Time
	cancel       context.CancelFunc
	done         chan struct{}
	reported     bool
}

// Coordinator implements tools.SubagentRunner.
type Coordinator struct {
	workDir     string
	newProvider ProviderFactory
	maxParallel int
	jobTimeout  time.Duration

	mu   sync.RWMutex
	jobs map[string]*job
}

// NewCoordinator creates a coordinator for the workspace at workDir.
func NewCoordinator(workDir string, factory ProviderFactory, maxParallel int, jobTimeout time.Duration) *Coordinator {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}
	return &Coordinator{
		workDir:     workDir,
		newProvider: factory,
		maxParallel: maxParallel,
		jobTimeout:  jobTimeout,
		jobs:        make(map[string]*job),
	}
}

// RunParallel executes a batch of read-only jobs against the live
// workspace and blocks until all finish. Every spec gets exactly one
// result; one job failing never hides the others.
func (c *Coordinator) RunParallel(ctx context.Context, specs []tools.SubagentSpec) []tools.SubagentResult {
	results := make([]tools.SubagentResult, len(specs))
	sem := make(chan struct{}, c.maxParallel)
	var wg sync.WaitGroup

	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec tools.SubagentSpec) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = tools.SubagentResult{
					ID:     uuid.NewString(),
					Type:   spec.Type,
					Status: "cancelled",
					Output: ctx.Err().Error(),
				}
				return
			}

			results[i] = c.runOne(ctx, spec, c.workDir, false)
		}(i, spec)
	}

	wg.Wait()
	return results
}

// StartBackground copies the workspace and launches a detached job
// against the copy. It returns immediately with the job's ID.
func (c *Coordinator) StartBackground(ctx context.Context, spec tools.SubagentSpec) (string, error) {
	id := uuid.NewString()
	checkout := filepath.Join(c.workDir, ".koda", "jobs", id, "checkout")

	if err := fileutil.CopyTree(c.workDir, checkout, ".koda", ".git"); err != nil {
		return "", fmt.Errorf("failed to prepare job checkout: %w", err)
	}

	// Detach from the caller: the turn ends, the job does not.
	jobCtx, cancel := context.WithTimeout(context.Background(), c.jobTimeout)

	j := &job{
		id:           id,
		subagentType: spec.Type,
		instructions: spec.Instructions,
		status:       "running",
		startTime:    time.Now(),
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	c.mu.Lock()
	c.jobs[id] = j
	c.mu.Unlock()

	go c.monitor(jobCtx, j, spec, checkout)

	logging.Info("background subagent started", "id", id, "type", spec.Type)
	return id, nil
}

// monitor runs a background job to completion and records its outcome.
func (c *Coordinator) monitor(ctx context.Context, j *job, spec tools.SubagentSpec, checkout string) {
	defer j.cancel()
	defer close(j.done)

	result := c.runOne(ctx, spec, checkout, true)

	c.mu.Lock()
	defer c.mu.Unlock()
	if j.status == "cancelled" {
		return
	}
	j.status = result.Status
	j.output = result.Output
	j.endTime = time.Now()
}

// runOne executes a single job conversation and normalizes the
// outcome into a result.
func (c *Coordinator) runOne(ctx context.Context, spec tools.SubagentSpec, root string, background bool) tools.SubagentResult {
	result := tools.SubagentResult{ID: uuid.NewString(), Type: spec.Type}

	runCtx := ctx
	if !background {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.jobTimeout)
		defer cancel()
	}

	provider, err := c.newProvider(runCtx)
	if err != nil {
		result.Status = "failure"
		result.Output = fmt.Sprintf("provider unavailable: %v", err)
		return result
	}
	defer provider.Close()
	provider.SetSystemInstruction(systemPrompt(spec.Type))

	output, err := runConversation(runCtx, provider, c.registryFor(spec.Type, root), spec.Instructions)
	switch {
	case err == nil:
		result.Status = "success"
		result.Output = output
	case runCtx.Err() == context.DeadlineExceeded:
		result.Status = "timeout"
		result.Output = fmt.Sprintf("timed out after %s", c.jobTimeout)
	case runCtx.Err() == context.Canceled:
		result.Status = "cancelled"
		result.Output = "cancelled"
	default:
		result.Status = "failure"
		result.Output = err.Error()
	}
	return result
}

// registryFor builds the tool set a subagent type may use. Everything
// is read-only; test and build runners additionally get a shell inside
// their own checkout.
func (c *Coordinator) registryFor(subagentType, root string) *tools.Registry {
	r := tools.NewReadOnlyRegistry(root)
	switch subagentType {
	case tools.SubagentTestRunner, tools.SubagentBuildValidator:
		r.Register(tools.NewBashTool(root))
	}
	return r
}

// Status returns a snapshot of one job.
func (c *Coordinator) Status(id string) (tools.SubagentResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	j, ok := c.jobs[id]
	if !ok {
		return tools.SubagentResult{}, false
	}
	return j.snapshot(), true
}

// List returns snapshots of all background jobs, newest last.
func (c *Coordinator) List() []tools.SubagentResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]tools.SubagentResult, 0, len(c.jobs))
	for _, j := range c.jobs {
		out = append(out, j.snapshot())
	}
	return out
}

// Cancel stops a running background job.
func (c *Coordinator) Cancel(id string) bool {
	c.mu.Lock()
	j, ok := c.jobs[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	running := j.status == "running"
	if running {
		j.status = "cancelled"
		j.output = "cancelled by user"
		j.endTime = time.Now()
	}
	c.mu.Unlock()

	if running {
		j.cancel()
		logging.Info("background subagent cancelled", "id", id)
	}
	return running
}

// DrainFinished returns results of background jobs that finished since
// the last drain, for merging into the conversation at turn start.
func (c *Coordinator) DrainFinished() []tools.SubagentResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []tools.SubagentResult
	for _, j := range c.jobs {
		if j.status == "running" || j.reported {
			continue
		}
		j.reported = true
		out = append(out, j.snapshot())
	}
	return out
}

// CancelAll stops every running background job, for shutdown.
func (c *Coordinator) CancelAll() {
	c.mu.RLock()
	ids := make([]string, 0, len(c.jobs))
	for id, j := range c.jobs {
		if j.status == "running" {
			ids = append(ids, id)
		}
	}
	c.mu.RUnlock()

	for _, id := range ids {
		c.Cancel(id)
	}
}

// snapshot must be called with the coordinator lock held.
func (j *job) snapshot() tools.SubagentResult {
	return tools.SubagentResult{
		ID:     j.id,
		Type:   j.subagentType,
		Status: j.status,
		Output: j.output,
	}
}
