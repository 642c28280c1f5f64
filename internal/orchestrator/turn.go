package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"koda/internal/checkpoint"
	"koda/internal/gate"
	"koda/internal/logging"
	"koda/internal/mode"
	"koda/internal/tools"
)

// RunTurn carries one user message through model queries and tool
// execution until the model stops issuing tool calls.
func (s *Session) RunTurn(ctx context.Context, input string) error {
	s.mergeBackgroundResults()

	s.history = append(s.history, genai.NewContentFromText(input, genai.RoleUser))
	s.provider.SetSystemInstruction(s.systemInstruction())

	maxIterations := s.cfg.Model.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 25
	}

	for i := 0; i < maxIterations; i++ {
		resp, err := s.provider.Send(ctx, s.history, s.declarations())
		if err != nil {
			return err
		}

		if resp.Text != "" {
			s.printf("%s", s.render.Markdown(resp.Text))
		}
		if len(resp.FunctionCalls) == 0 {
			return nil
		}

		s.history = append(s.history, &genai.Content{Role: genai.RoleModel, Parts: resp.Parts})

		resultParts, err := s.executeCalls(ctx, resp.FunctionCalls)
		if err != nil {
			return err
		}
		s.history = append(s.history, &genai.Content{Role: genai.RoleUser, Parts: resultParts})
	}

	s.printf("%s", s.render.Warn(fmt.Sprintf("turn stopped after %d tool iterations", maxIterations)))
	return nil
}

// OneShot runs exactly one turn in the target mode, then restores the
// prior mode. Nested one-shots stack and unwind in order.
func (s *Session) OneShot(ctx context.Context, target mode.Mode, input string) error {
	s.modes.PushOneShot(target)
	defer func() {
		if s.modes.Pop() {
			s.printf("%s", s.render.Muted(fmt.Sprintf("back in %s mode", s.modes.Current())))
		}
	}()
	return s.RunTurn(ctx, input)
}

// executeCalls dispatches the model's tool calls strictly in request
// order. Denials and tool failures become failed results; only
// checkpoint corruption aborts the turn.
func (s *Session) executeCalls(ctx context.Context, calls []*genai.FunctionCall) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(calls))

	for _, call := range calls {
		result, err := s.executeCall(ctx, call)
		if err != nil {
			return nil, err
		}
		s.printf("%s", s.render.ToolResult(call.Name, result))
		parts = append(parts, genai.NewPartFromFunctionResponse(call.Name, result.ToMap()))
	}

	return parts, nil
}

func (s *Session) executeCall(ctx context.Context, call *genai.FunctionCall) (tools.ToolResult, error) {
	s.printf("%s", s.render.ToolCall(call.Name, callDetail(call)))

	tool, err := s.registry.Get(call.Name)
	if err != nil {
		return tools.NewErrorResult(err.Error()), nil
	}
	if err := tool.Validate(call.Args); err != nil {
		return tools.NewErrorResult(err.Error()), nil
	}

	if err := s.gate.Authorize(ctx, s.modes.Current(), tool, call.Args); err != nil {
		if errors.Is(err, gate.ErrDenied) {
			logging.Info("tool call denied", "tool", call.Name, "mode", s.modes.Current())
			return tools.NewErrorResult(err.Error()), nil
		}
		return tools.NewErrorResult(err.Error()), nil
	}

	mutation := tool.Capability() == tools.CapabilityWrite || tool.Capability() == tools.CapabilityExecute
	if mutation {
		// Snapshot, then apply: the write barrier for every approved
		// mutation.
		if _, err := s.checkpoints.Snapshot(callDescription(call), s.snapshotState()); err != nil {
			if errors.Is(err, checkpoint.ErrCorrupt) {
				return tools.ToolResult{}, err
			}
			return tools.NewErrorResult(fmt.Sprintf("checkpoint failed, mutation not applied: %s", err)), nil
		}
		if s.tracker != nil {
			s.tracker.Suspend()
		}
	}

	result, err := tool.Execute(ctx, call.Args)
	if err != nil {
		result = tools.NewErrorResult(err.Error())
	}

	if mutation {
		if s.tracker != nil {
			s.tracker.Resume()
		}
		if err := s.checkpoints.Commit(); err != nil {
			// A stale expected manifest makes the next /merge report the
			// session's own write as a conflict; tell the user now.
			s.printf("%s", s.render.Warn(fmt.Sprintf("failed to record post-mutation state: %s", err)))
			logging.Warn("failed to record post-mutation state", "error", err)
		}
	}

	return result, nil
}

// declarations returns the tool schemas permitted in the active mode.
// Plan tools are further gated on whether a plan document exists.
func (s *Session) declarations() []*genai.FunctionDeclaration {
	m := s.modes.Current()
	hasPlan := s.plans.Exists()

	var decls []*genai.FunctionDeclaration
	for _, tool := range s.registry.All() {
		switch tool.Capability() {
		case tools.CapabilityPlan:
			if m != mode.Plan {
				continue
			}
			switch tool.Name() {
			case "create_plan":
				if hasPlan {
					continue
				}
			case "update_plan", "finalize_plan":
				if !hasPlan {
					continue
				}
			}
		case tools.CapabilityWrite, tools.CapabilityExecute:
			if m != mode.Act {
				continue
			}
		}
		decls = append(decls, tool.Declaration())
	}
	return decls
}

// mergeBackgroundResults folds finished background job reports into
// the conversation at the start of a turn.
func (s *Session) mergeBackgroundResults() {
	if s.coordinator == nil {
		return
	}
	results := s.coordinator.DrainFinished()
	if len(results) == 0 {
		return
	}

	s.printf("%s", s.render.SubagentResults(results))

	var b strings.Builder
	b.WriteString("Background job results:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "[%s %s: %s]\n%s\n", r.Type, r.ID, r.Status, r.Output)
	}
	s.history = append(s.history, genai.NewContentFromText(b.String(), genai.RoleUser))
}

// callDetail is the short argument summary shown on the activity line.
func callDetail(call *genai.FunctionCall) string {
	if path, ok := tools.GetString(call.Args, "file_path"); ok {
		return path
	}
	if pattern, ok := tools.GetString(call.Args, "pattern"); ok {
		return pattern
	}
	if cmd, ok := tools.GetString(call.Args, "command"); ok {
		if len(cmd) > 60 {
			cmd = cmd[:57] + "..."
		}
		return cmd
	}
	return ""
}

// callDescription labels the checkpoint taken before a mutation.
func callDescription(call *genai.FunctionCall) string {
	detail := callDetail(call)
	if detail == "" {
		return call.Name
	}
	return call.Name + " " + detail
}
