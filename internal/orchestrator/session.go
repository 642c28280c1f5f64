// Package orchestrator owns the session: the turn loop that carries
// user input through model queries and gated tool execution, the
// command surface, and the wiring between modes, tasks, plans,
// checkpoints, and subagents.
package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"koda/internal/checkpoint"
	"koda/internal/client"
	"koda/internal/config"
	"koda/internal/gate"
	"koda/internal/logging"
	"koda/internal/mode"
	"koda/internal/plan"
	"koda/internal/subagent"
	"koda/internal/todo"
	"koda/internal/tools"
	"koda/internal/ui"
	"koda/internal/watcher"
)

// Options wires a session's collaborators.
type Options struct {
	WorkDir string
	Out     io.Writer

	// Approval presents write/execute requests to the user. nil denies
	// everything that needs approval.
	Approval gate.PromptHandler

	// Coordinator runs subagent jobs. nil disables the task tools.
	Coordinator *subagent.Coordinator

	// Tracker watches for external workspace edits. Optional.
	Tracker *watcher.Tracker
}

// Session is the live agent session. It is owned by one goroutine;
// only the subagent coordinator runs work concurrently.
type Session struct {
	cfg      *config.Config
	provider client.Provider
	workDir  string
	out      io.Writer
	render   *ui.Renderer

	modes       *mode.Machine
	gate        *gate.Gate
	todos       *todo.Manager
	plans       *plan.Store
	checkpoints *checkpoint.Store
	coordinator *subagent.Coordinator
	tracker     *watcher.Tracker
	registry    *tools.Registry

	history []*genai.Content
}

// New builds a session rooted at opts.WorkDir.
func New(cfg *config.Config, provider client.Provider, opts Options) (*Session, error) {
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("workspace directory is required")
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	startMode, err := mode.Parse(cfg.Session.StartMode)
	if err != nil {
		return nil, err
	}

	store, err := checkpoint.Open(opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	plans, err := plan.NewStore(dotDir(opts.WorkDir))
	if err != nil {
		return nil, err
	}

	todos := todo.NewManager()

	s := &Session{
		cfg:         cfg,
		provider:    provider,
		workDir:     opts.WorkDir,
		out:         opts.Out,
		render:      ui.NewRenderer(),
		modes:       mode.NewMachine(startMode),
		gate:        gate.New(opts.Approval),
		todos:       todos,
		plans:       plans,
		checkpoints: store,
		coordinator: opts.Coordinator,
		tracker:     opts.Tracker,
	}
	var runner tools.SubagentRunner
	if opts.Coordinator != nil {
		runner = opts.Coordinator
	}
	s.registry = tools.NewDefaultRegistry(opts.WorkDir, todos, plans, runner)

	return s, nil
}

func dotDir(workDir string) string {
	return filepath.Join(workDir, ".koda")
}

// Mode returns the active mode, for the REPL prompt.
func (s *Session) Mode() mode.Mode {
	return s.modes.Current()
}

// Model returns the active model name.
func (s *Session) Model() string {
	return s.provider.Model()
}

// Close releases session resources.
func (s *Session) Close() error {
	if s.coordinator != nil {
		s.coordinator.CancelAll()
	}
	if s.tracker != nil {
		s.tracker.Stop()
	}
	return s.provider.Close()
}

// sessionState is what a checkpoint embeds to restore the live
// session on rewind.
type sessionState struct {
	History []*genai.Content `json:"history"`
	Mode    mode.Mode        `json:"mode"`
	Stack   []mode.Mode      `json:"stack"`
	Tasks   []todo.Task      `json:"tasks"`
}

// snapshotState serializes the live session for embedding in a
// checkpoint.
func (s *Session) snapshotState() json.RawMessage {
	current, stack := s.modes.Snapshot()
	state := sessionState{
		History: s.history,
		Mode:    current,
		Stack:   stack,
		Tasks:   s.todos.Snapshot(),
	}
	data, err := json.Marshal(state)
	if err != nil {
		logging.Error("failed to serialize session state", "error", err)
		return nil
	}
	return data
}

// restoreState replaces the live session with a checkpoint's embedded
// state. A nil payload (the branch baseline) resets to a fresh
// session.
func (s *Session) restoreState(raw json.RawMessage) error {
	if len(raw) == 0 {
		s.history = nil
		s.todos.Restore(nil)
		return nil
	}

	var state sessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("failed to restore session state: %w", err)
	}
	s.history = state.History
	s.modes.Restore(state.Mode, state.Stack)
	s.todos.Restore(state.Tasks)
	return nil
}

// systemInstruction assembles the per-turn system prompt: role, mode
// rules, and the current task and plan context.
func (s *Session) systemInstruction() string {
	var b strings.Builder
	b.WriteString("You are koda, a coding assistant operating on the workspace at ")
	b.WriteString(s.workDir)
	b.WriteString(".\n\n")

	switch s.modes.Current() {
	case mode.Plan:
		b.WriteString("You are in PLAN mode: explore the codebase with read-only tools " +
			"and build a plan with the plan tools. You cannot modify files or run " +
			"commands; do not attempt to.\n")
	case mode.Act:
		b.WriteString("You are in ACT mode: implement changes. Write and execute tools " +
			"require user approval; a denied call returns a failed result, adapt and " +
			"continue. Track your progress with todo_write.\n")
	}

	if tasks := s.todos.View(); len(tasks) > 0 {
		b.WriteString("\nCurrent tasks:\n")
		b.WriteString(s.todos.Render())
		b.WriteString("\n")
	}

	if doc, ok := s.plans.Current(); ok {
		b.WriteString("\nCurrent plan:\n")
		b.WriteString(doc.Render())
		b.WriteString("\n")
	}

	return b.String()
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}
