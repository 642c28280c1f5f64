package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"
)

const maxGlobResults = 200

// GlobTool finds files matching a glob pattern.
type GlobTool struct {
	workDir string
}

// NewGlobTool creates a GlobTool rooted at workDir.
func NewGlobTool(workDir string) *GlobTool {
	return &GlobTool{workDir: workDir}
}

func (t *GlobTool) Name() string {
	return "glob"
}

func (t *GlobTool) Capability() Capability {
	return CapabilityRead
}

func (t *GlobTool) Description() string {
	return `Finds files matching a glob pattern, relative to the workspace.

PARAMETERS:
- pattern (required): Glob pattern, ** supported (e.g. "internal/**/*.go")

Returns up to 200 matching paths sorted by modification time, newest
first.`
}

func (t *GlobTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pattern": {
					Type:        genai.TypeString,
					Description: "The glob pattern to match files against",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *GlobTool) Validate(args map[string]any) error {
	pattern, ok := GetString(args, "pattern")
	if !ok || pattern == "" {
		return NewValidationError("pattern", "is required")
	}
	if !doublestar.ValidatePattern(pattern) {
		return NewValidationError("pattern", "is not a valid glob pattern")
	}
	return nil
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	pattern, _ := GetString(args, "pattern")

	matches, err := doublestar.FilepathGlob(filepath.Join(t.workDir, pattern))
	if err != nil {
		return NewErrorResult(fmt.Sprintf("glob failed: %s", err)), nil
	}

	type match struct {
		path    string
		modTime int64
	}
	found := make([]match, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(t.workDir, m)
		if err != nil {
			rel = m
		}
		found = append(found, match{path: rel, modTime: info.ModTime().UnixNano()})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].modTime > found[j].modTime
	})

	if len(found) == 0 {
		return NewSuccessResult(fmt.Sprintf("No files match %q", pattern)), nil
	}

	truncated := false
	if len(found) > maxGlobResults {
		found = found[:maxGlobResults]
		truncated = true
	}

	var b strings.Builder
	for _, m := range found {
		b.WriteString(m.path)
		b.WriteByte('\n')
	}
	if truncated {
		fmt.Fprintf(&b, "(truncated to %d results)\n", maxGlobResults)
	}

	return NewSuccessResult(strings.TrimRight(b.String(), "\n")), nil
}
