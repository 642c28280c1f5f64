package todo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplace(t *testing.T) {
	m := NewManager()
	tasks := m.Replace([]string{"first", "second", "third"})

	require.Len(t, tasks, 3)
	for i, task := range tasks {
		assert.Equal(t, StatePending, task.State)
		assert.Equal(t, i, task.Position)
		assert.NotEmpty(t, task.ID)
	}

	// Replacement discards everything, completed included.
	_, err := m.Transition(tasks[0].ID, StateCompleted)
	require.NoError(t, err)
	replaced := m.Replace([]string{"new"})
	require.Len(t, replaced, 1)
	assert.Equal(t, StatePending, replaced[0].State)
}

func TestSingleInProgressInvariant(t *testing.T) {
	m := NewManager()
	tasks := m.Replace([]string{"a", "b"})

	_, err := m.Transition(tasks[0].ID, StateInProgress)
	require.NoError(t, err)

	// Second in_progress is rejected, state unchanged.
	_, err = m.Transition(tasks[1].ID, StateInProgress)
	require.ErrorIs(t, err, ErrTaskInProgress)

	view := m.View()
	assert.Equal(t, StateInProgress, view[0].State)
	assert.Equal(t, StatePending, view[1].State)

	// Completing the first frees the slot.
	_, err = m.Transition(tasks[0].ID, StateCompleted)
	require.NoError(t, err)
	_, err = m.Transition(tasks[1].ID, StateInProgress)
	assert.NoError(t, err)
}

func TestRevertFreesSlot(t *testing.T) {
	m := NewManager()
	tasks := m.Replace([]string{"a", "b"})

	_, err := m.Transition(tasks[0].ID, StateInProgress)
	require.NoError(t, err)
	_, err = m.Transition(tasks[0].ID, StatePending)
	require.NoError(t, err)

	_, err = m.Transition(tasks[1].ID, StateInProgress)
	assert.NoError(t, err)
}

func TestCompletedImmutable(t *testing.T) {
	m := NewManager()
	tasks := m.Replace([]string{"a"})

	_, err := m.Transition(tasks[0].ID, StateCompleted)
	require.NoError(t, err)

	_, err = m.Transition(tasks[0].ID, StateInProgress)
	assert.ErrorIs(t, err, ErrTaskCompleted)
	_, err = m.Transition(tasks[0].ID, StatePending)
	assert.ErrorIs(t, err, ErrTaskCompleted)
}

func TestTransitionUnknownTask(t *testing.T) {
	m := NewManager()
	m.Replace([]string{"a"})

	_, err := m.Transition("nope", StateCompleted)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestSnapshotRestore(t *testing.T) {
	m := NewManager()
	tasks := m.Replace([]string{"a", "b"})
	_, err := m.Transition(tasks[0].ID, StateInProgress)
	require.NoError(t, err)

	snap := m.Snapshot()

	m.Replace([]string{"other"})
	m.Restore(snap)

	view := m.View()
	require.Len(t, view, 2)
	assert.Equal(t, StateInProgress, view[0].State)
	assert.Equal(t, "a", view[0].Description)
}

func TestInProgress(t *testing.T) {
	m := NewManager()
	_, ok := m.InProgress()
	assert.False(t, ok)

	tasks := m.Replace([]string{"a"})
	_, err := m.Transition(tasks[0].ID, StateInProgress)
	require.NoError(t, err)

	active, ok := m.InProgress()
	assert.True(t, ok)
	assert.Equal(t, tasks[0].ID, active.ID)
}

func TestRender(t *testing.T) {
	m := NewManager()
	assert.Equal(t, "No tasks.", m.Render())

	tasks := m.Replace([]string{"a", "b", "c"})
	_, err := m.Transition(tasks[0].ID, StateCompleted)
	require.NoError(t, err)
	_, err = m.Transition(tasks[1].ID, StateInProgress)
	require.NoError(t, err)

	out := m.Render()
	assert.Contains(t, out, "[x] 1. a")
	assert.Contains(t, out, "[>] 2. b")
	assert.Contains(t, out, "[ ] 3. c")
}
