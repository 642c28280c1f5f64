package tools

import (
	"koda/internal/plan"
	"koda/internal/todo"
)

// NewDefaultRegistry builds the full tool set for a session rooted at
// workDir. runner may be nil for sessions that cannot spawn subagents
// (the subagents themselves).
func NewDefaultRegistry(workDir string, todoMgr *todo.Manager, planStore *plan.Store, runner SubagentRunner) *Registry {
	r := NewRegistry()

	r.Register(NewReadTool(workDir))
	r.Register(NewListDirTool(workDir))
	r.Register(NewGlobTool(workDir))
	r.Register(NewGrepTool(workDir))
	r.Register(NewWriteTool(workDir))
	r.Register(NewEditTool(workDir))
	r.Register(NewBashTool(workDir))

	if todoMgr != nil {
		r.Register(NewTodoWriteTool(todoMgr))
	}
	if planStore != nil {
		r.Register(NewCreatePlanTool(planStore))
		r.Register(NewUpdatePlanTool(planStore))
		r.Register(NewFinalizePlanTool(planStore))
	}
	if runner != nil {
		r.Register(NewTaskTool(runner))
		r.Register(NewTaskStatusTool(runner))
	}

	return r
}

// NewReadOnlyRegistry builds the restricted tool set handed to
// subagent workers: read capability only, no spawning.
func NewReadOnlyRegistry(workDir string) *Registry {
	r := NewRegistry()
	r.Register(NewReadTool(workDir))
	r.Register(NewListDirTool(workDir))
	r.Register(NewGlobTool(workDir))
	r.Register(NewGrepTool(workDir))
	return r
}
