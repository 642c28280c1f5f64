package checkpoint

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"koda/internal/fileutil"
	"koda/internal/logging"
)

const (
	storeDirName  = "checkpoints"
	blobDirName   = "blobs"
	branchDirName = "branches"
	branchFile    = "branch.json"
)

// skipNames are directory names never captured in a snapshot.
var skipNames = map[string]bool{
	".koda": true,
	".git":  true,
}

// Store manages the checkpoint chain for one workspace. All methods
// are safe for concurrent use, though a session drives them serially.
type Store struct {
	workDir     string
	dir         string
	blobs       *blobStore
	branch      *branchState
	checkpoints map[int]*Checkpoint
}

// Open loads or initializes the checkpoint store under
// workDir/.koda/checkpoints. A fresh store captures the current
// workspace as the branch baseline (checkpoint #0).
func Open(workDir string) (*Store, error) {
	dir := filepath.Join(workDir, ".koda", storeDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	blobs, err := newBlobStore(filepath.Join(dir, blobDirName))
	if err != nil {
		return nil, err
	}

	s := &Store{
		workDir:     workDir,
		dir:         dir,
		blobs:       blobs,
		checkpoints: make(map[int]*Checkpoint),
	}

	if err := s.loadBranch(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := s.newBranch(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Snapshot captures the workspace and session state as a new
// checkpoint chained onto the head. It is called before the mutation
// it protects is applied.
func (s *Store) Snapshot(description string, session json.RawMessage) (*Checkpoint, error) {
	files, err := s.captureFiles()
	if err != nil {
		return nil, err
	}

	cp := &Checkpoint{
		Seq:         s.branch.NextSeq,
		Parent:      s.branch.Head,
		Description: description,
		CreatedAt:   time.Now(),
		Files:       files,
		Session:     session,
	}

	if err := s.writeManifest(cp); err != nil {
		return nil, err
	}

	s.checkpoints[cp.Seq] = cp
	s.branch.Head = cp.Seq
	s.branch.NextSeq++
	if err := s.saveBranch(); err != nil {
		return nil, err
	}

	logging.Debug("checkpoint created", "seq", cp.Seq, "files", len(files), "description", description)
	return cp, nil
}

// Commit records the workspace state after an approved mutation has
// been applied. The recorded manifest is what Merge later compares
// against to detect external edits.
func (s *Store) Commit() error {
	manifest, err := s.scanHashes()
	if err != nil {
		return err
	}
	s.branch.Expected = manifest
	return s.saveBranch()
}

// Rewind moves the head back n checkpoints and restores that
// checkpoint's workspace files. It returns the session state embedded
// in the restored checkpoint. Checkpoints past the new head are kept.
func (s *Store) Rewind(n int) (json.RawMessage, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", ErrOutOfRange, n)
	}

	target := s.branch.Head - n
	if target < 0 {
		return nil, fmt.Errorf("%w: only %d checkpoint(s) behind the current position", ErrOutOfRange, s.branch.Head)
	}

	cp, ok := s.checkpoints[target]
	if !ok {
		return nil, fmt.Errorf("%w: checkpoint #%d missing from branch", ErrCorrupt, target)
	}

	// Fetch every blob before touching the workspace so a corrupt
	// store cannot leave a half-restored tree.
	bodies := make(map[string][]byte, len(cp.Files))
	for path, file := range cp.Files {
		data, err := s.blobs.Get(file.Hash)
		if err != nil {
			return nil, err
		}
		bodies[path] = data
	}

	current, err := s.scanHashes()
	if err != nil {
		return nil, err
	}

	for path, data := range bodies {
		abs := filepath.Join(s.workDir, path)
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return nil, fmt.Errorf("failed to restore %s: %w", path, err)
		}
		if err := fileutil.AtomicWrite(abs, data, cp.Files[path].Mode); err != nil {
			return nil, fmt.Errorf("failed to restore %s: %w", path, err)
		}
	}

	// Files created after the target checkpoint are removed.
	for path := range current {
		if _, kept := cp.Files[path]; !kept {
			os.Remove(filepath.Join(s.workDir, path))
		}
	}

	s.branch.Head = target
	s.branch.Expected = hashesOf(cp.Files)
	if err := s.saveBranch(); err != nil {
		return nil, err
	}

	logging.Info("workspace rewound", "target", target, "files", len(cp.Files))
	return cp.Session, nil
}

// List returns the branch's mutation checkpoints in creation order.
// The baseline (seq 0) is not included.
func (s *Store) List() []*Checkpoint {
	out := make([]*Checkpoint, 0, len(s.checkpoints))
	for seq, cp := range s.checkpoints {
		if seq == 0 {
			continue
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Head returns the seq of the checkpoint the workspace is positioned
// at, which is 0 until the first mutation snapshot.
func (s *Store) Head() int {
	return s.branch.Head
}

// Baseline returns the branch's baseline checkpoint.
func (s *Store) Baseline() *Checkpoint {
	return s.checkpoints[0]
}

// Diverged returns the paths whose on-disk content no longer matches
// the state the session last recorded, meaning something outside the
// session changed them.
func (s *Store) Diverged() ([]string, error) {
	actual, err := s.scanHashes()
	if err != nil {
		return nil, err
	}

	var diverged []string
	for path, hash := range actual {
		if expected, ok := s.branch.Expected[path]; !ok || expected != hash {
			diverged = append(diverged, path)
		}
	}
	for path := range s.branch.Expected {
		if _, ok := actual[path]; !ok {
			diverged = append(diverged, path)
		}
	}
	sort.Strings(diverged)
	return diverged, nil
}

// Merge folds the branch onto its baseline. If no external edits
// diverged the workspace the merge fast-forwards and a fresh branch
// starts from the current state; otherwise the conflicting paths are
// reported and nothing changes.
func (s *Store) Merge() (*MergeResult, error) {
	conflicts, err := s.Diverged()
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return &MergeResult{Conflicts: conflicts},
			fmt.Errorf("%w: %s changed outside the session", ErrConflict, strings.Join(conflicts, ", "))
	}

	if err := s.newBranch(); err != nil {
		return nil, err
	}

	logging.Info("branch merged", "baseline_files", len(s.branch.Expected))
	return &MergeResult{FastForward: true}, nil
}

// newBranch starts a fresh branch whose baseline is the current
// workspace state.
func (s *Store) newBranch() error {
	files, err := s.captureFiles()
	if err != nil {
		return err
	}

	s.branch = &branchState{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		NextSeq:   1,
		Head:      0,
		Expected:  hashesOf(files),
	}
	s.checkpoints = map[int]*Checkpoint{}

	baseline := &Checkpoint{
		Seq:         0,
		Parent:      -1,
		Description: "baseline",
		CreatedAt:   s.branch.CreatedAt,
		Files:       files,
	}
	if err := os.MkdirAll(s.branchDir(), 0755); err != nil {
		return fmt.Errorf("failed to create branch directory: %w", err)
	}
	if err := s.writeManifest(baseline); err != nil {
		return err
	}
	s.checkpoints[0] = baseline

	return s.saveBranch()
}

func (s *Store) branchDir() string {
	return filepath.Join(s.dir, branchDirName, s.branch.ID)
}

func (s *Store) manifestPath(seq int) string {
	return filepath.Join(s.branchDir(), fmt.Sprintf("%06d.json", seq))
}

func (s *Store) writeManifest(cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint #%d: %w", cp.Seq, err)
	}
	if err := fileutil.AtomicWrite(s.manifestPath(cp.Seq), data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint #%d: %w", cp.Seq, err)
	}
	return nil
}

func (s *Store) saveBranch() error {
	data, err := json.MarshalIndent(s.branch, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode branch state: %w", err)
	}
	return fileutil.AtomicWrite(filepath.Join(s.dir, branchFile), data, 0644)
}

// loadBranch restores the branch head and all of its checkpoint
// manifests from disk.
func (s *Store) loadBranch() error {
	data, err := os.ReadFile(filepath.Join(s.dir, branchFile))
	if err != nil {
		return err
	}

	var branch branchState
	if err := json.Unmarshal(data, &branch); err != nil {
		return fmt.Errorf("%w: branch state unreadable: %v", ErrCorrupt, err)
	}
	s.branch = &branch

	entries, err := os.ReadDir(s.branchDir())
	if err != nil {
		return fmt.Errorf("%w: branch manifests unreadable: %v", ErrCorrupt, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		body, err := os.ReadFile(filepath.Join(s.branchDir(), entry.Name()))
		if err != nil {
			return fmt.Errorf("%w: %s unreadable: %v", ErrCorrupt, entry.Name(), err)
		}
		var cp Checkpoint
		if err := json.Unmarshal(body, &cp); err != nil {
			return fmt.Errorf("%w: %s undecodable: %v", ErrCorrupt, entry.Name(), err)
		}
		s.checkpoints[cp.Seq] = &cp
	}

	if _, ok := s.checkpoints[0]; !ok {
		return fmt.Errorf("%w: branch baseline missing", ErrCorrupt)
	}

	return nil
}

// captureFiles snapshots every workspace file into the blob arena and
// returns the manifest, content hash and permission bits per path.
func (s *Store) captureFiles() (map[string]FileState, error) {
	files := make(map[string]FileState)

	err := s.walkWorkspace(func(rel, abs string, d fs.DirEntry) error {
		data, err := os.ReadFile(abs)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		hash, err := s.blobs.Put(data)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", rel, err)
		}
		files[rel] = FileState{Hash: hash, Mode: info.Mode().Perm()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// scanHashes hashes every workspace file without storing blobs.
func (s *Store) scanHashes() (map[string]string, error) {
	files := make(map[string]string)

	err := s.walkWorkspace(func(rel, abs string, d fs.DirEntry) error {
		data, err := os.ReadFile(abs)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		files[rel] = hashBytes(data)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// hashesOf projects a manifest down to the path-to-hash map used for
// divergence checks.
func hashesOf(files map[string]FileState) map[string]string {
	hashes := make(map[string]string, len(files))
	for path, file := range files {
		hashes[path] = file.Hash
	}
	return hashes
}

func (s *Store) walkWorkspace(visit func(rel, abs string, d fs.DirEntry) error) error {
	return filepath.WalkDir(s.workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipNames[d.Name()] && path != s.workDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.workDir, path)
		if err != nil {
			return err
		}
		return visit(rel, path, d)
	})
}
