package tools

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"koda/internal/plan"
)

// CreatePlanTool starts a new plan document. Offered only while no
// plan exists.
type CreatePlanTool struct {
	store *plan.Store
}

// NewCreatePlanTool creates a CreatePlanTool over the given store.
func NewCreatePlanTool(store *plan.Store) *CreatePlanTool {
	return &CreatePlanTool{store: store}
}

func (t *CreatePlanTool) Name() string {
	return "create_plan"
}

func (t *CreatePlanTool) Capability() Capability {
	return CapabilityPlan
}

func (t *CreatePlanTool) Description() string {
	return `Creates a new plan for the implementation task.

Use this at the START of plan mode to define what you are planning.
Build on it with update_plan as you explore, then finalize_plan when
ready. The plan is persisted to .koda/plan.md.`
}

func (t *CreatePlanTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title": {
					Type:        genai.TypeString,
					Description: "Short title for the plan, e.g. 'Add user authentication'",
				},
				"objective": {
					Type:        genai.TypeString,
					Description: "What needs to be accomplished",
				},
			},
			Required: []string{"title", "objective"},
		},
	}
}

func (t *CreatePlanTool) Validate(args map[string]any) error {
	if title, ok := GetString(args, "title"); !ok || title == "" {
		return NewValidationError("title", "is required")
	}
	if objective, ok := GetString(args, "objective"); !ok || objective == "" {
		return NewValidationError("objective", "is required")
	}
	return nil
}

func (t *CreatePlanTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	title, _ := GetString(args, "title")
	objective, _ := GetString(args, "objective")

	doc, err := t.store.Create(title, objective)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("failed to create plan: %s", err)), nil
	}

	return NewSuccessResult(fmt.Sprintf(`Created plan: %s

Objective: %s

Next steps:
1. Explore the codebase with read_file, grep, glob, list_dir
2. Document findings with update_plan
3. When complete, use finalize_plan to mark ready for implementation`,
		doc.Title, doc.Objective)), nil
}

// UpdatePlanTool adds information to the active plan.
type UpdatePlanTool struct {
	store *plan.Store
}

// NewUpdatePlanTool creates an UpdatePlanTool over the given store.
func NewUpdatePlanTool(store *plan.Store) *UpdatePlanTool {
	return &UpdatePlanTool{store: store}
}

func (t *UpdatePlanTool) Name() string {
	return "update_plan"
}

func (t *UpdatePlanTool) Capability() Capability {
	return CapabilityPlan
}

func (t *UpdatePlanTool) Description() string {
	return `Updates the current plan with new information.

ACTIONS:
- add_context: Add a finding from exploration
- add_step: Add an implementation step (optionally with files)
- add_file: Mark a critical file
- add_verification: Add how to verify success
- set_approach: Define the chosen approach (optionally with rationale)
- add_risk: Document a potential risk

Requires an active plan (use create_plan first).`
}

func (t *UpdatePlanTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"action": {
					Type:        genai.TypeString,
					Enum:        []string{"add_context", "add_step", "add_file", "add_verification", "set_approach", "add_risk"},
					Description: "What to update in the plan",
				},
				"content": {
					Type:        genai.TypeString,
					Description: "The content to add",
				},
				"files": {
					Type:        genai.TypeArray,
					Items:       &genai.Schema{Type: genai.TypeString},
					Description: "Files involved (for add_step). Optional.",
				},
				"rationale": {
					Type:        genai.TypeString,
					Description: "Rationale for the chosen approach (for set_approach). Optional.",
				},
			},
			Required: []string{"action", "content"},
		},
	}
}

func (t *UpdatePlanTool) Validate(args map[string]any) error {
	if action, ok := GetString(args, "action"); !ok || action == "" {
		return NewValidationError("action", "is required")
	}
	if content, ok := GetString(args, "content"); !ok || content == "" {
		return NewValidationError("content", "is required")
	}
	return nil
}

func (t *UpdatePlanTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	action, _ := GetString(args, "action")
	content, _ := GetString(args, "content")
	files, _ := GetStringSlice(args, "files")
	rationale := GetStringDefault(args, "rationale", "")

	if err := t.store.Update(action, content, files, rationale); err != nil {
		return NewErrorResult(err.Error()), nil
	}
	return NewSuccessResult(fmt.Sprintf("%s: %s", action, content)), nil
}

// FinalizePlanTool marks the plan ready for implementation.
type FinalizePlanTool struct {
	store *plan.Store
}

// NewFinalizePlanTool creates a FinalizePlanTool over the given store.
func NewFinalizePlanTool(store *plan.Store) *FinalizePlanTool {
	return &FinalizePlanTool{store: store}
}

func (t *FinalizePlanTool) Name() string {
	return "finalize_plan"
}

func (t *FinalizePlanTool) Capability() Capability {
	return CapabilityPlan
}

func (t *FinalizePlanTool) Description() string {
	return `Marks the plan as complete and ready for implementation.

Use this when you have gathered enough context, designed an approach
and documented the steps. The user then switches to Act mode with /act
to begin implementation. ALWAYS call this when done planning.`
}

func (t *FinalizePlanTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"summary": {
					Type:        genai.TypeString,
					Description: "Brief summary of the plan for the user",
				},
				"ready_to_implement": {
					Type:        genai.TypeBoolean,
					Description: "True if the plan is complete and ready for implementation",
				},
			},
			Required: []string{"summary"},
		},
	}
}

func (t *FinalizePlanTool) Validate(args map[string]any) error {
	if summary, ok := GetString(args, "summary"); !ok || summary == "" {
		return NewValidationError("summary", "is required")
	}
	return nil
}

func (t *FinalizePlanTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	summary, _ := GetString(args, "summary")
	ready := GetBoolDefault(args, "ready_to_implement", true)

	doc, err := t.store.Finalize(ready)
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("## Plan summary\n\n")
	b.WriteString(summary)
	b.WriteString("\n")

	if len(doc.Steps) > 0 {
		b.WriteString("\n## Implementation steps\n")
		for i, step := range doc.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step.Description)
		}
	}
	if len(doc.Verification) > 0 {
		b.WriteString("\n## Verification\n")
		for _, v := range doc.Verification {
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}

	if ready {
		b.WriteString("\nPlan is ready. Approve with /act to begin implementation.")
	} else {
		b.WriteString("\nPlan needs more work or user input.")
	}

	return NewSuccessResult(b.String()), nil
}
