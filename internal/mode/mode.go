// Package mode tracks the session's operating mode and the return
// stack used by one-shot mode overrides.
package mode

import (
	"fmt"
	"sync"
)

// Mode is the session operating mode.
type Mode string

const (
	// Plan allows read-only exploration and plan tools.
	Plan Mode = "plan"
	// Act allows mutations behind approval.
	Act Mode = "act"
	// Bash suspends the orchestrator; the user drives a shell.
	Bash Mode = "bash"
)

// Parse converts a mode name to a Mode.
func Parse(s string) (Mode, error) {
	switch Mode(s) {
	case Plan, Act, Bash:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Machine is the mode state machine. Exactly one mode is active at any
// instant; the return stack records modes to restore after one-shot
// turns and supports nesting.
type Machine struct {
	mu      sync.RWMutex
	current Mode
	stack   []Mode
}

// NewMachine creates a machine starting in the given mode.
func NewMachine(initial Mode) *Machine {
	return &Machine{current: initial}
}

// Current returns the active mode.
func (m *Machine) Current() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Switch performs a persistent mode change. Any pending one-shot
// returns are discarded: an explicit switch is the user overriding
// whatever restoration was queued.
func (m *Machine) Switch(target Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = target
	m.stack = m.stack[:0]
}

// PushOneShot switches to target for a single turn, recording the
// active mode for restoration. Nested one-shots stack.
func (m *Machine) PushOneShot(target Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = append(m.stack, m.current)
	m.current = target
}

// Pop restores the mode saved by the most recent PushOneShot. It
// reports whether a restore happened; with an empty stack the active
// mode is left alone.
func (m *Machine) Pop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return false
	}
	m.current = m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return true
}

// Depth returns the return stack depth.
func (m *Machine) Depth() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stack)
}

// Snapshot returns the current mode and a copy of the return stack,
// for checkpointing.
func (m *Machine) Snapshot() (Mode, []Mode) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stack := make([]Mode, len(m.stack))
	copy(stack, m.stack)
	return m.current, stack
}

// Restore replaces the machine state, for rewind.
func (m *Machine) Restore(current Mode, stack []Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = current
	m.stack = make([]Mode, len(stack))
	copy(m.stack, stack)
}
