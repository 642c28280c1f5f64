// Package checkpoint snapshots the workspace before every approved
// mutation and supports rewinding to any prior snapshot. Checkpoints
// are immutable: rewinding moves a head pointer, it never discards
// history. A session runs on a branch whose baseline is the workspace
// state at branch creation; merging folds the branch back onto the
// baseline once no external edits diverged it.
package checkpoint

import (
	"encoding/json"
	"errors"
	"io/fs"
	"time"
)

var (
	// ErrOutOfRange reports a rewind past the start of the branch.
	// The workspace and the checkpoint chain are left untouched.
	ErrOutOfRange = errors.New("rewind out of range")

	// ErrConflict reports that the workspace diverged from the
	// session's recorded state, so a merge cannot fast-forward.
	ErrConflict = errors.New("merge conflict")

	// ErrCorrupt reports unreadable or tampered checkpoint data.
	// Unlike the other errors it is not recoverable.
	ErrCorrupt = errors.New("checkpoint store corrupt")
)

// FileState is one captured file: the blob holding its content and
// the permission bits to restore it with.
type FileState struct {
	Hash string      `json:"hash"`
	Mode fs.FileMode `json:"mode"`
}

// Checkpoint is one immutable snapshot in a branch. Seq 0 is the
// branch baseline; every later seq was taken immediately before an
// approved mutation.
type Checkpoint struct {
	Seq         int                  `json:"seq"`
	Parent      int                  `json:"parent"`
	Description string               `json:"description"`
	CreatedAt   time.Time            `json:"created_at"`
	Files       map[string]FileState `json:"files"`
	Session     json.RawMessage      `json:"session,omitempty"`
}

// branchState is the mutable head of a branch, persisted separately
// from the immutable checkpoint manifests.
type branchState struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	NextSeq   int               `json:"next_seq"`
	Head      int               `json:"head"`
	Expected  map[string]string `json:"expected"`
}

// MergeResult describes the outcome of a merge attempt.
type MergeResult struct {
	FastForward bool
	Conflicts   []string
}
