package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"koda/internal/checkpoint"
	"koda/internal/mode"
	"koda/internal/tools"
)

const shellTimeout = 2 * time.Minute

// Execute handles one line of user input: a slash command, a shell
// line in Bash mode, or a conversational turn. It reports whether the
// session should end.
func (s *Session) Execute(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}

	if strings.HasPrefix(line, "/") {
		return s.runCommand(ctx, line)
	}

	if s.modes.Current() == mode.Bash {
		// The orchestrator is suspended; input goes straight to the
		// shell.
		s.runShell(ctx, line, false)
		return false, nil
	}

	return false, s.RunTurn(ctx, line)
}

func (s *Session) runCommand(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		s.printf("%s", s.render.Muted(helpText))

	case "/plan":
		if arg == "" {
			s.modes.Switch(mode.Plan)
			s.printf("%s", s.render.Info("switched to plan mode"))
			return false, nil
		}
		return false, s.OneShot(ctx, mode.Plan, arg)

	case "/act":
		if arg == "" {
			s.modes.Switch(mode.Act)
			s.printf("%s", s.render.Info("switched to act mode"))
			return false, nil
		}
		return false, s.OneShot(ctx, mode.Act, arg)

	case "/sh":
		if arg == "" {
			s.modes.Switch(mode.Bash)
			s.printf("%s", s.render.Info("switched to bash mode; /plan or /act to return"))
			return false, nil
		}
		s.runShell(ctx, arg, true)

	case "/checkpoints":
		s.printf("%s", s.render.Checkpoints(s.checkpoints.List(), s.checkpoints.Head()))

	case "/rewind":
		n := 1
		if arg != "" {
			parsed, err := strconv.Atoi(arg)
			if err != nil {
				s.printf("%s", s.render.Error(fmt.Errorf("usage: /rewind [N]")))
				return false, nil
			}
			n = parsed
		}
		return false, s.rewind(n)

	case "/merge":
		return false, s.merge()

	case "/tasks":
		s.printf("%s", s.render.TaskList(s.todos.View()))

	case "/clear":
		s.clear()
		s.printf("%s", s.render.Info("session cleared"))

	case "/model":
		if arg == "" {
			s.printf("%s", s.render.Info("active model: "+s.provider.Model()))
			return false, nil
		}
		s.provider.SetModel(arg)
		s.printf("%s", s.render.Info("model switched to "+arg))

	default:
		s.printf("%s", s.render.Warn("unknown command "+name+"; /help lists commands"))
	}

	return false, nil
}

// runShell executes a command directly. With inject set (the /sh
// one-shot) a synthetic bash call/result pair is appended to history
// so the model sees what the user did.
func (s *Session) runShell(ctx context.Context, command string, inject bool) {
	output, exitCode, err := tools.RunCommand(ctx, s.workDir, command, shellTimeout)
	if err != nil {
		s.printf("%s", s.render.Error(err))
		return
	}

	if output != "" {
		s.printf("%s", output)
	}
	if exitCode != 0 {
		s.printf("%s", s.render.Warn(fmt.Sprintf("exit status %d", exitCode)))
	}

	if !inject {
		return
	}

	result := tools.NewSuccessResult(output)
	if exitCode != 0 {
		result = tools.NewErrorResult(fmt.Sprintf("exit status %d\n%s", exitCode, output))
	}

	call := &genai.FunctionCall{Name: "bash", Args: map[string]any{"command": command}}
	s.history = append(s.history,
		&genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{FunctionCall: call}}},
		&genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{
			genai.NewPartFromFunctionResponse("bash", result.ToMap()),
		}},
	)
}

// rewind moves the session back n checkpoints. Out-of-range requests
// are reported and change nothing; corruption ends the session.
func (s *Session) rewind(n int) error {
	state, err := s.checkpoints.Rewind(n)
	if err != nil {
		if errors.Is(err, checkpoint.ErrCorrupt) {
			return err
		}
		s.printf("%s", s.render.Error(err))
		return nil
	}

	if err := s.restoreState(state); err != nil {
		return err
	}
	s.printf("%s", s.render.Info(fmt.Sprintf("rewound to checkpoint #%d", s.checkpoints.Head())))
	return nil
}

// merge folds the session branch onto its baseline, reporting
// conflicts from external edits instead of overwriting them.
func (s *Session) merge() error {
	if s.tracker != nil {
		if changed := s.tracker.Drain(); len(changed) > 0 {
			s.printf("%s", s.render.Warn("externally modified since last check: "+strings.Join(changed, ", ")))
		}
	}

	res, err := s.checkpoints.Merge()
	if err != nil {
		if errors.Is(err, checkpoint.ErrConflict) {
			s.printf("%s", s.render.Error(err))
			s.printf("%s", s.render.Muted("resolve the listed files manually, then /merge again"))
			return nil
		}
		return err
	}

	if res.FastForward {
		s.printf("%s", s.render.Info("merged: branch fast-forwarded onto baseline"))
	}
	return nil
}

// clear resets the conversation while keeping the workspace and
// checkpoint history intact.
func (s *Session) clear() {
	s.history = nil
	s.todos.Restore(nil)
	s.gate.Reset()
}

const helpText = `commands:
  /plan            switch to plan mode        /plan <msg>   one-shot plan turn
  /act             switch to act mode         /act <msg>    one-shot act turn
  /sh              switch to bash mode        /sh <cmd>     run a command in place
  /checkpoints     list checkpoints           /rewind [N]   restore N steps back
  /merge           fold branch onto baseline  /tasks        show the task list
  /model [name]    show or switch model       /clear        reset the conversation
  /help            this help                  /exit         quit`
