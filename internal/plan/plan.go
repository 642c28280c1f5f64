// Package plan maintains the structured plan document built during
// Plan mode and read back as context in Act mode.
package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"koda/internal/fileutil"
)

// Phase is the plan's lifecycle phase.
type Phase string

const (
	PhaseDrafting Phase = "drafting"
	PhaseReview   Phase = "review"
	PhaseReady    Phase = "ready"
)

// Step is one implementation step.
type Step struct {
	Description string   `yaml:"description"`
	Files       []string `yaml:"files,omitempty"`
}

// Document is the structured plan. The yaml sidecar is the source of
// truth; plan.md is rendered from it for humans and for the model.
type Document struct {
	Title         string   `yaml:"title"`
	Objective     string   `yaml:"objective"`
	Phase         Phase    `yaml:"phase"`
	Context       []string `yaml:"context,omitempty"`
	Approach      string   `yaml:"approach,omitempty"`
	Rationale     string   `yaml:"rationale,omitempty"`
	Steps         []Step   `yaml:"steps,omitempty"`
	CriticalFiles []string `yaml:"critical_files,omitempty"`
	Risks         []string `yaml:"risks,omitempty"`
	Verification  []string `yaml:"verification,omitempty"`
}

// Store persists the plan under the workspace dot-directory.
type Store struct {
	mu  sync.Mutex
	dir string
	doc *Document
}

// NewStore creates a store rooted at the given .koda directory. An
// existing plan is loaded if present.
func NewStore(dotDir string) (*Store, error) {
	s := &Store{dir: dotDir}

	data, err := os.ReadFile(s.yamlPath())
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	s.doc = &doc
	return s, nil
}

func (s *Store) yamlPath() string {
	return filepath.Join(s.dir, "plan.yaml")
}

func (s *Store) markdownPath() string {
	return filepath.Join(s.dir, "plan.md")
}

// Exists reports whether a plan is active.
func (s *Store) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc != nil
}

// Current returns a copy of the active plan.
func (s *Store) Current() (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return Document{}, false
	}
	return *s.doc, true
}

// Create replaces any existing plan with a fresh one.
func (s *Store) Create(title, objective string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = &Document{
		Title:     title,
		Objective: objective,
		Phase:     PhaseDrafting,
	}
	if err := s.persistLocked(); err != nil {
		return Document{}, err
	}
	return *s.doc, nil
}

// Update applies one update action to the active plan.
func (s *Store) Update(action, content string, files []string, rationale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return fmt.Errorf("no active plan")
	}

	switch action {
	case "add_context":
		s.doc.Context = append(s.doc.Context, content)
	case "add_step":
		s.doc.Steps = append(s.doc.Steps, Step{Description: content, Files: files})
	case "add_file":
		s.doc.CriticalFiles = append(s.doc.CriticalFiles, content)
	case "add_verification":
		s.doc.Verification = append(s.doc.Verification, content)
	case "set_approach":
		s.doc.Approach = content
		s.doc.Rationale = rationale
	case "add_risk":
		s.doc.Risks = append(s.doc.Risks, content)
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	return s.persistLocked()
}

// Finalize marks the plan ready (or back for review).
func (s *Store) Finalize(ready bool) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return Document{}, fmt.Errorf("no active plan")
	}

	if ready {
		s.doc.Phase = PhaseReady
	} else {
		s.doc.Phase = PhaseReview
	}
	if err := s.persistLocked(); err != nil {
		return Document{}, err
	}
	return *s.doc, nil
}

// Clear removes the active plan and its files.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = nil
	for _, path := range []string{s.yamlPath(), s.markdownPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (s *Store) persistLocked() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create plan directory: %w", err)
	}

	data, err := yaml.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	if err := fileutil.AtomicWrite(s.yamlPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}

	if err := fileutil.AtomicWriteString(s.markdownPath(), s.doc.Render(), 0644); err != nil {
		return fmt.Errorf("failed to write plan markdown: %w", err)
	}
	return nil
}

// Render formats the plan as markdown.
func (d *Document) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	fmt.Fprintf(&b, "Phase: %s\n\n", d.Phase)
	fmt.Fprintf(&b, "## Objective\n\n%s\n", d.Objective)

	if len(d.Context) > 0 {
		b.WriteString("\n## Context\n\n")
		for _, c := range d.Context {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	if d.Approach != "" {
		fmt.Fprintf(&b, "\n## Approach\n\n%s\n", d.Approach)
		if d.Rationale != "" {
			fmt.Fprintf(&b, "\nRationale: %s\n", d.Rationale)
		}
	}

	if len(d.Steps) > 0 {
		b.WriteString("\n## Steps\n\n")
		for i, step := range d.Steps {
			fmt.Fprintf(&b, "%d. %s", i+1, step.Description)
			if len(step.Files) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(step.Files, ", "))
			}
			b.WriteByte('\n')
		}
	}

	if len(d.CriticalFiles) > 0 {
		b.WriteString("\n## Critical files\n\n")
		for _, f := range d.CriticalFiles {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if len(d.Risks) > 0 {
		b.WriteString("\n## Risks\n\n")
		for _, r := range d.Risks {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	if len(d.Verification) > 0 {
		b.WriteString("\n## Verification\n\n")
		for _, v := range d.Verification {
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}

	return b.String()
}
