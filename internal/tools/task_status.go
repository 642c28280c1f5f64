package tools

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// TaskStatusTool queries and cancels background subagent jobs.
type TaskStatusTool struct {
	runner SubagentRunner
}

// NewTaskStatusTool creates a TaskStatusTool over the given runner.
func NewTaskStatusTool(runner SubagentRunner) *TaskStatusTool {
	return &TaskStatusTool{runner: runner}
}

func (t *TaskStatusTool) Name() string {
	return "task_status"
}

func (t *TaskStatusTool) Capability() Capability {
	return CapabilityRead
}

func (t *TaskStatusTool) Description() string {
	return `Checks on background subagent jobs.

PARAMETERS:
- job_id (optional): A specific job to inspect; omit to list all jobs
- cancel (optional): Cancel the given job instead of inspecting it`
}

func (t *TaskStatusTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"job_id": {
					Type:        genai.TypeString,
					Description: "The job to inspect. Optional.",
				},
				"cancel": {
					Type:        genai.TypeBoolean,
					Description: "Cancel the job instead of inspecting it. Requires job_id.",
				},
			},
		},
	}
}

func (t *TaskStatusTool) Validate(args map[string]any) error {
	if cancel := GetBoolDefault(args, "cancel", false); cancel {
		if id, ok := GetString(args, "job_id"); !ok || id == "" {
			return NewValidationError("job_id", "is required when cancel is true")
		}
	}
	return nil
}

func (t *TaskStatusTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	id := GetStringDefault(args, "job_id", "")
	cancel := GetBoolDefault(args, "cancel", false)

	if cancel {
		if !t.runner.Cancel(id) {
			return NewErrorResult(fmt.Sprintf("job %s is not running", id)), nil
		}
		return NewSuccessResult(fmt.Sprintf("Cancelled job %s", id)), nil
	}

	if id != "" {
		result, ok := t.runner.Status(id)
		if !ok {
			return NewErrorResult(fmt.Sprintf("unknown job %s", id)), nil
		}
		if result.Status == "running" {
			return NewSuccessResult(fmt.Sprintf("Job %s (%s) is still running", result.ID, result.Type)), nil
		}
		return FormatSubagentResults([]SubagentResult{result}), nil
	}

	jobs := t.runner.List()
	if len(jobs) == 0 {
		return NewSuccessResult("No background jobs."), nil
	}

	var b strings.Builder
	for _, j := range jobs {
		fmt.Fprintf(&b, "%s  %-16s %s\n", j.ID, j.Type, j.Status)
	}
	return NewSuccessResult(strings.TrimRight(b.String(), "\n")), nil
}
