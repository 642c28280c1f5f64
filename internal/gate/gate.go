// Package gate authorizes tool calls against the active mode. It is
// the single checkpoint between the model's intent and the workspace:
// in Plan mode no write or execute call passes, and in Act mode they
// pass only with user approval.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"koda/internal/logging"
	"koda/internal/mode"
	"koda/internal/tools"
)

// ErrDenied is the base error for calls the gate refused. It is never
// fatal; callers convert it to a failed tool result.
var ErrDenied = errors.New("permission denied")

// Decision is the user's answer to an approval prompt.
type Decision int

const (
	// DecisionDeny refuses this call.
	DecisionDeny Decision = iota
	// DecisionAllow approves this call only.
	DecisionAllow
	// DecisionAllowSession approves this call and every later
	// write/execute call in this session.
	DecisionAllowSession
)

// Request is a pending approval presented to the user.
type Request struct {
	ToolName   string
	Capability tools.Capability
	Args       map[string]any
	Reason     string
}

// PromptHandler presents a Request and returns the user's decision.
// Returning an error aborts the call as a denial.
type PromptHandler func(ctx context.Context, req *Request) (Decision, error)

// Gate applies the capability decision table.
type Gate struct {
	mu         sync.Mutex
	prompt     PromptHandler
	approveAll bool
}

// New creates a gate with the given approval prompt. A nil prompt
// denies everything that would require approval.
func New(prompt PromptHandler) *Gate {
	return &Gate{prompt: prompt}
}

// Authorize decides whether the call may execute in the given mode.
// nil means approved; an ErrDenied-wrapped error means refused.
func (g *Gate) Authorize(ctx context.Context, m mode.Mode, tool tools.Tool, args map[string]any) error {
	capability := tool.Capability()

	switch m {
	case mode.Plan:
		switch capability {
		case tools.CapabilityRead, tools.CapabilityPlan:
			return nil
		default:
			return fmt.Errorf("%w: %s tools are not allowed in plan mode", ErrDenied, capability)
		}

	case mode.Act:
		switch capability {
		case tools.CapabilityRead:
			return nil
		case tools.CapabilityPlan:
			return fmt.Errorf("%w: planning tools require plan mode", ErrDenied)
		case tools.CapabilityWrite, tools.CapabilityExecute:
			return g.requireApproval(ctx, tool, args)
		default:
			return fmt.Errorf("%w: unknown capability %q", ErrDenied, capability)
		}

	default:
		// Bash mode: the orchestrator is suspended, nothing dispatches.
		return fmt.Errorf("%w: no tools execute in %s mode", ErrDenied, m)
	}
}

// requireApproval suspends until the user decides, honoring a prior
// session-wide approval.
func (g *Gate) requireApproval(ctx context.Context, tool tools.Tool, args map[string]any) error {
	g.mu.Lock()
	approveAll := g.approveAll
	prompt := g.prompt
	g.mu.Unlock()

	if approveAll {
		return nil
	}
	if prompt == nil {
		return fmt.Errorf("%w: no approval handler configured", ErrDenied)
	}

	req := &Request{
		ToolName:   tool.Name(),
		Capability: tool.Capability(),
		Args:       args,
		Reason:     buildReason(tool.Name(), args),
	}

	decision, err := prompt(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDenied, err)
	}

	switch decision {
	case DecisionAllow:
		logging.Debug("tool approved", "tool", tool.Name())
		return nil
	case DecisionAllowSession:
		g.mu.Lock()
		g.approveAll = true
		g.mu.Unlock()
		logging.Info("session-wide approval enabled", "tool", tool.Name())
		return nil
	default:
		return fmt.Errorf("%w: declined by user", ErrDenied)
	}
}

// ApproveAll reports whether session-wide approval is active.
func (g *Gate) ApproveAll() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.approveAll
}

// Reset clears session-scoped approvals, for /clear.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.approveAll = false
}

// buildReason creates a human-readable description of the intended
// effect for the approval prompt.
func buildReason(toolName string, args map[string]any) string {
	switch toolName {
	case "write_file":
		if path, ok := args["file_path"].(string); ok {
			return fmt.Sprintf("Write to file: %s", path)
		}
		return "Write to file"

	case "edit_file":
		if path, ok := args["file_path"].(string); ok {
			return fmt.Sprintf("Edit file: %s", path)
		}
		return "Edit file"

	case "bash":
		if cmd, ok := args["command"].(string); ok {
			if len(cmd) > 150 {
				cmd = cmd[:147] + "..."
			}
			return fmt.Sprintf("Execute command: %s", cmd)
		}
		return "Execute shell command"
	}

	return fmt.Sprintf("Run tool: %s", toolName)
}
