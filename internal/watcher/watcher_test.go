package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsnotify/fsnotify"
)

func TestDrainCollectsExternalChanges(t *testing.T) {
	tr, err := New(t.TempDir())
	require.NoError(t, err)
	defer tr.Stop()

	tr.handleEvent(fsnotify.Event{Name: tr.workDir + "/main.go", Op: fsnotify.Write})

	// Force the debounce window to elapse.
	tr.mu.Lock()
	for path := range tr.pending {
		tr.pending[path] = time.Now().Add(-time.Second)
	}
	tr.mu.Unlock()
	tr.flushPending()

	assert.Equal(t, []string{"main.go"}, tr.Drain())
	assert.Nil(t, tr.Drain())
}

func TestSuspendedEventsAreDiscarded(t *testing.T) {
	tr, err := New(t.TempDir())
	require.NoError(t, err)
	defer tr.Stop()

	tr.Suspend()
	tr.handleEvent(fsnotify.Event{Name: tr.workDir + "/main.go", Op: fsnotify.Write})
	tr.Resume()

	tr.flushPending()
	assert.Nil(t, tr.Drain())
}

func TestTemporaryFilesIgnored(t *testing.T) {
	tr, err := New(t.TempDir())
	require.NoError(t, err)
	defer tr.Stop()

	tr.handleEvent(fsnotify.Event{Name: tr.workDir + "/.hidden", Op: fsnotify.Write})
	tr.handleEvent(fsnotify.Event{Name: tr.workDir + "/backup~", Op: fsnotify.Write})

	tr.mu.Lock()
	pending := len(tr.pending)
	tr.mu.Unlock()
	assert.Zero(t, pending)
}
