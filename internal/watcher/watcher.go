// Package watcher tracks file changes made outside the session. The
// orchestrator suspends tracking around its own approved mutations, so
// whatever accumulates here came from another process. The signal is
// advisory: merge decisions rest on content hashes, the watcher only
// lets the session warn early.
package watcher

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"koda/internal/logging"
)

const (
	defaultDebounce   = 500 * time.Millisecond
	defaultMaxWatches = 1000
)

// skipDirs are directory names never watched.
var skipDirs = map[string]bool{
	".git":         true,
	".koda":        true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"target":       true,
	"build":        true,
	"dist":         true,
	".idea":        true,
	".vscode":      true,
}

// Tracker watches a workspace and collects externally changed paths.
type Tracker struct {
	fsWatcher  *fsnotify.Watcher
	workDir    string
	debounce   time.Duration
	maxWatches int

	mu        sync.Mutex
	pending   map[string]time.Time
	external  map[string]bool
	suspended bool
	running   bool

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a tracker for workDir. Call Start to begin watching.
func New(workDir string) (*Tracker, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Tracker{
		fsWatcher:  fsWatcher,
		workDir:    workDir,
		debounce:   defaultDebounce,
		maxWatches: defaultMaxWatches,
		pending:    make(map[string]time.Time),
		external:   make(map[string]bool),
		done:       make(chan struct{}),
	}, nil
}

// Start begins watching. It is a no-op if already running.
func (t *Tracker) Start() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = true
	t.mu.Unlock()

	if err := t.addDirectories(); err != nil {
		return err
	}

	go t.processEvents()
	go t.processDebounce()
	return nil
}

// Stop shuts the tracker down.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	t.mu.Unlock()

	t.stopOnce.Do(func() { close(t.done) })
	return t.fsWatcher.Close()
}

// Suspend marks subsequent events as session-made so they are not
// reported as external. Call Resume once the mutation is applied.
func (t *Tracker) Suspend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = true
	// Events already pending were external; keep them.
}

// Resume re-enables external tracking and discards events that arrived
// during the suspended window.
func (t *Tracker) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = false
	t.pending = make(map[string]time.Time)
}

// Drain returns the externally changed paths collected so far and
// clears them.
func (t *Tracker) Drain() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.external) == 0 {
		return nil
	}
	paths := make([]string, 0, len(t.external))
	for path := range t.external {
		paths = append(paths, path)
	}
	t.external = make(map[string]bool)
	sort.Strings(paths)
	return paths
}

// addDirectories registers every workspace directory up to maxWatches.
func (t *Tracker) addDirectories() error {
	count := 0
	return filepath.Walk(t.workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if skipDirs[info.Name()] && path != t.workDir {
			return filepath.SkipDir
		}
		if count >= t.maxWatches {
			return filepath.SkipDir
		}
		if err := t.fsWatcher.Add(path); err != nil {
			return nil
		}
		count++
		return nil
	})
}

func (t *Tracker) processEvents() {
	for {
		select {
		case <-t.done:
			return
		case event, ok := <-t.fsWatcher.Events:
			if !ok {
				return
			}
			t.handleEvent(event)
		case err, ok := <-t.fsWatcher.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher error", "error", err)
		}
	}
}

func (t *Tracker) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if base == "" || base[0] == '.' || base[0] == '#' || base[len(base)-1] == '~' {
		return
	}

	// Newly created directories join the watch set.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDirs[info.Name()] {
				t.mu.Lock()
				if len(t.fsWatcher.WatchList()) < t.maxWatches {
					_ = t.fsWatcher.Add(event.Name)
				}
				t.mu.Unlock()
			}
			return
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.suspended {
		return
	}
	t.pending[event.Name] = time.Now()
}

func (t *Tracker) processDebounce() {
	ticker := time.NewTicker(t.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.flushPending()
		}
	}
}

// flushPending promotes paths that stayed quiet for a full debounce
// window into the external set.
func (t *Tracker) flushPending() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for path, eventTime := range t.pending {
		if now.Sub(eventTime) < t.debounce {
			continue
		}
		delete(t.pending, path)

		rel, err := filepath.Rel(t.workDir, path)
		if err != nil {
			rel = path
		}
		t.external[rel] = true
	}
}

// IsRunning reports whether the tracker is active.
func (t *Tracker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
