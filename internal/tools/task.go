package tools

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Subagent types, each bound to an execution strategy.
const (
	SubagentExplore        = "explore"
	SubagentPlan           = "plan"
	SubagentTestRunner     = "test_runner"
	SubagentBuildValidator = "build_validator"
	SubagentCodeReviewer   = "code_reviewer"
)

// IsParallelSubagent reports whether the type runs as a blocking
// parallel worker; the rest run as detached background jobs.
func IsParallelSubagent(subagentType string) bool {
	return subagentType == SubagentExplore || subagentType == SubagentPlan
}

// ValidSubagentType reports whether the type is known.
func ValidSubagentType(subagentType string) bool {
	switch subagentType {
	case SubagentExplore, SubagentPlan, SubagentTestRunner, SubagentBuildValidator, SubagentCodeReviewer:
		return true
	}
	return false
}

// SubagentSpec describes one job to spawn.
type SubagentSpec struct {
	Type         string
	Instructions string
}

// SubagentResult is one job's outcome.
type SubagentResult struct {
	ID     string
	Type   string
	Status string // running | success | failure | timeout | cancelled
	Output string
}

// SubagentRunner is implemented by the subagent coordinator.
type SubagentRunner interface {
	// RunParallel runs the batch as bounded concurrent workers and
	// blocks until every job completes or times out. Always returns
	// one result per job.
	RunParallel(ctx context.Context, specs []SubagentSpec) []SubagentResult

	// StartBackground starts a detached job and returns its ID.
	StartBackground(ctx context.Context, spec SubagentSpec) (string, error)

	// Status returns a job's current result.
	Status(id string) (SubagentResult, bool)

	// List returns all background jobs.
	List() []SubagentResult

	// Cancel cancels a running background job.
	Cancel(id string) bool
}

// TaskTool spawns subagents.
type TaskTool struct {
	runner SubagentRunner
}

// NewTaskTool creates a TaskTool over the given runner.
func NewTaskTool(runner SubagentRunner) *TaskTool {
	return &TaskTool{runner: runner}
}

func (t *TaskTool) Name() string {
	return "task"
}

func (t *TaskTool) Capability() Capability {
	return CapabilityRead
}

func (t *TaskTool) Description() string {
	return `Spawns subagents to perform bounded sub-tasks.

SUBAGENT TYPES:
- explore: read-only codebase exploration (parallel, blocks this turn)
- plan: read-only design analysis (parallel, blocks this turn)
- test_runner: runs tests (background, returns a job ID immediately)
- build_validator: validates the build (background)
- code_reviewer: reviews changes (background)

PARAMETERS:
- subagent_type (required): One of the types above
- instructions (required): What the subagent should do

Parallel subagents read the live workspace and block this call until
they finish. Background results are merged into the conversation on a
later turn; check them with task_status.`
}

func (t *TaskTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"subagent_type": {
					Type: genai.TypeString,
					Enum: []string{
						SubagentExplore, SubagentPlan,
						SubagentTestRunner, SubagentBuildValidator, SubagentCodeReviewer,
					},
					Description: "The type of subagent to spawn",
				},
				"instructions": {
					Type:        genai.TypeString,
					Description: "Detailed instructions for the subagent",
				},
			},
			Required: []string{"subagent_type", "instructions"},
		},
	}
}

func (t *TaskTool) Validate(args map[string]any) error {
	subagentType, ok := GetString(args, "subagent_type")
	if !ok || subagentType == "" {
		return NewValidationError("subagent_type", "is required")
	}
	if !ValidSubagentType(subagentType) {
		return NewValidationError("subagent_type", fmt.Sprintf("unknown type %q", subagentType))
	}
	instructions, ok := GetString(args, "instructions")
	if !ok || strings.TrimSpace(instructions) == "" {
		return NewValidationError("instructions", "is required")
	}
	return nil
}

func (t *TaskTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	subagentType, _ := GetString(args, "subagent_type")
	instructions, _ := GetString(args, "instructions")
	spec := SubagentSpec{Type: subagentType, Instructions: instructions}

	if IsParallelSubagent(subagentType) {
		results := t.runner.RunParallel(ctx, []SubagentSpec{spec})
		return FormatSubagentResults(results), nil
	}

	id, err := t.runner.StartBackground(ctx, spec)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("failed to start %s job: %s", subagentType, err)), nil
	}
	return NewSuccessResult(fmt.Sprintf(
		"Started background %s job %s. Results will be merged into the conversation when it completes; query it with task_status.",
		subagentType, id)), nil
}

// FormatSubagentResults renders a batch outcome, one entry per job.
func FormatSubagentResults(results []SubagentResult) ToolResult {
	var b strings.Builder
	failures := 0
	for _, r := range results {
		switch r.Status {
		case "success":
			fmt.Fprintf(&b, "[%s %s: success]\n%s\n", r.Type, r.ID, r.Output)
		default:
			failures++
			fmt.Fprintf(&b, "[%s %s: %s]\n%s\n", r.Type, r.ID, r.Status, r.Output)
		}
	}

	content := strings.TrimRight(b.String(), "\n")
	if failures == len(results) && len(results) > 0 {
		// Whole batch failed; report it as a failed result but keep
		// every entry visible.
		return ToolResult{Content: content, Error: "all subagent jobs failed", Success: false}
	}
	return NewSuccessResultWithData(content, results)
}
