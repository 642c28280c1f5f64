package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"koda/internal/todo"
)

// TodoWriteTool lets the model maintain the session task list.
type TodoWriteTool struct {
	manager *todo.Manager
}

// NewTodoWriteTool creates a TodoWriteTool over the given manager.
func NewTodoWriteTool(manager *todo.Manager) *TodoWriteTool {
	return &TodoWriteTool{manager: manager}
}

func (t *TodoWriteTool) Name() string {
	return "todo_write"
}

func (t *TodoWriteTool) Capability() Capability {
	return CapabilityRead
}

func (t *TodoWriteTool) Description() string {
	return `Creates and manages the structured task list for the session.

ACTIONS:
- replace: Replace the whole list with new pending tasks (for planning)
- start: Mark one task in_progress (only one task may be in_progress)
- complete: Mark one task completed
- revert: Return an in_progress task to pending
- list: Show the current list

Mark a task in_progress BEFORE starting it and completed IMMEDIATELY
after finishing. Completed tasks cannot change state again until the
list is replaced.`
}

func (t *TodoWriteTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"action": {
					Type:        genai.TypeString,
					Enum:        []string{"replace", "start", "complete", "revert", "list"},
					Description: "Action to perform on the task list",
				},
				"tasks": {
					Type:        genai.TypeArray,
					Items:       &genai.Schema{Type: genai.TypeString},
					Description: "Task descriptions in order (for the replace action)",
				},
				"task_id": {
					Type:        genai.TypeString,
					Description: "Task ID (for start, complete and revert actions)",
				},
			},
			Required: []string{"action"},
		},
	}
}

func (t *TodoWriteTool) Validate(args map[string]any) error {
	action, ok := GetString(args, "action")
	if !ok || action == "" {
		return NewValidationError("action", "is required")
	}
	switch action {
	case "replace":
		if descs, ok := GetStringSlice(args, "tasks"); !ok || len(descs) == 0 {
			return NewValidationError("tasks", "is required for the replace action")
		}
	case "start", "complete", "revert":
		if id, ok := GetString(args, "task_id"); !ok || id == "" {
			return NewValidationError("task_id", "is required for the "+action+" action")
		}
	case "list":
	default:
		return NewValidationError("action", fmt.Sprintf("unknown action %q", action))
	}
	return nil
}

func (t *TodoWriteTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	action, _ := GetString(args, "action")

	switch action {
	case "replace":
		descs, _ := GetStringSlice(args, "tasks")
		tasks := t.manager.Replace(descs)
		return NewSuccessResultWithData(
			fmt.Sprintf("Created %d tasks:\n%s", len(tasks), t.manager.Render()),
			tasks), nil

	case "start", "complete", "revert":
		id, _ := GetString(args, "task_id")
		target := todo.StateInProgress
		switch action {
		case "complete":
			target = todo.StateCompleted
		case "revert":
			target = todo.StatePending
		}

		task, err := t.manager.Transition(id, target)
		if err != nil {
			return NewErrorResult(err.Error()), nil
		}
		return NewSuccessResultWithData(
			fmt.Sprintf("Task %q is now %s", task.Description, task.State),
			task), nil

	case "list":
		return NewSuccessResultWithData(t.manager.Render(), t.manager.View()), nil
	}

	return NewErrorResult(fmt.Sprintf("unknown action %q", action)), nil
}
