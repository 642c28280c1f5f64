// Package todo maintains the session's ordered progress list and
// enforces the single in-progress invariant.
package todo

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// State is a task's lifecycle state.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

// ParseState converts a state name to a State.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StatePending, StateInProgress, StateCompleted:
		return State(s), nil
	default:
		return "", fmt.Errorf("unknown task state %q", s)
	}
}

// Task is one entry in the progress list. Position is its index in
// the ordered sequence.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	State       State  `json:"state"`
	Position    int    `json:"position"`
}

// ErrTaskInProgress is returned when a transition would create a
// second in-progress task.
var ErrTaskInProgress = errors.New("another task is already in progress")

// ErrTaskCompleted is returned when a completed task is transitioned
// before the next whole-list replacement.
var ErrTaskCompleted = errors.New("completed tasks are immutable until the list is replaced")

// ErrTaskNotFound is returned when the task ID is unknown.
var ErrTaskNotFound = errors.New("task not found")

// Manager owns the ordered task list. It holds no reference to
// conversation or workspace state.
type Manager struct {
	mu    sync.RWMutex
	tasks []Task
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Replace swaps in a whole new list. Descriptions become pending
// tasks in the given order. Any prior list, completed entries
// included, is discarded.
func (m *Manager) Replace(descriptions []string) []Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks = make([]Task, 0, len(descriptions))
	for i, desc := range descriptions {
		m.tasks = append(m.tasks, Task{
			ID:          uuid.NewString(),
			Description: desc,
			State:       StatePending,
			Position:    i,
		})
	}
	return m.viewLocked()
}

// Transition changes a single task's state, enforcing ordering rules:
// at most one task is in_progress, and completed tasks stay completed.
func (m *Manager) Transition(id string, target State) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	task := &m.tasks[idx]

	if task.State == StateCompleted {
		return Task{}, fmt.Errorf("cannot transition task %q: %w", task.Description, ErrTaskCompleted)
	}

	if target == StateInProgress {
		for i := range m.tasks {
			if i != idx && m.tasks[i].State == StateInProgress {
				return Task{}, fmt.Errorf("cannot start task %q: task %q %w",
					task.Description, m.tasks[i].Description, ErrTaskInProgress)
			}
		}
	}

	task.State = target
	return *task, nil
}

// View returns a read-only copy of the ordered list.
func (m *Manager) View() []Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewLocked()
}

func (m *Manager) viewLocked() []Task {
	out := make([]Task, len(m.tasks))
	copy(out, m.tasks)
	return out
}

// InProgress returns the active task, if any.
func (m *Manager) InProgress() (Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tasks {
		if t.State == StateInProgress {
			return t, true
		}
	}
	return Task{}, false
}

// Snapshot returns the list for checkpointing.
func (m *Manager) Snapshot() []Task {
	return m.View()
}

// Restore replaces the list wholesale, for rewind.
func (m *Manager) Restore(tasks []Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = make([]Task, len(tasks))
	copy(m.tasks, tasks)
}

// Render formats the list for display.
func (m *Manager) Render() string {
	tasks := m.View()
	if len(tasks) == 0 {
		return "No tasks."
	}

	var b strings.Builder
	for i, t := range tasks {
		marker := "[ ]"
		switch t.State {
		case StateInProgress:
			marker = "[>]"
		case StateCompleted:
			marker = "[x]"
		}
		fmt.Fprintf(&b, "%s %d. %s\n", marker, i+1, t.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
