package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"google.golang.org/genai"
)

// ListDirTool lists directory entries.
type ListDirTool struct {
	workDir string
}

// NewListDirTool creates a ListDirTool rooted at workDir.
func NewListDirTool(workDir string) *ListDirTool {
	return &ListDirTool{workDir: workDir}
}

func (t *ListDirTool) Name() string {
	return "list_dir"
}

func (t *ListDirTool) Capability() Capability {
	return CapabilityRead
}

func (t *ListDirTool) Description() string {
	return `Lists the entries of a directory.

PARAMETERS:
- path (optional): Directory to list, relative to the workspace (default: workspace root)

Directories are suffixed with /. Hidden entries are included.`
}

func (t *ListDirTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "The directory to list. Optional, defaults to the workspace root.",
				},
			},
		},
	}
}

func (t *ListDirTool) Validate(args map[string]any) error {
	return nil
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	dir := t.workDir
	rawPath := GetStringDefault(args, "path", "")
	if rawPath != "" {
		var err error
		dir, err = resolvePath(t.workDir, rawPath)
		if err != nil {
			return NewErrorResult(err.Error()), nil
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(fmt.Sprintf("directory not found: %s", rawPath)), nil
		}
		return NewErrorResult(fmt.Sprintf("error listing directory: %s", err)), nil
	}

	if len(entries) == 0 {
		return NewSuccessResult("(empty directory)"), nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return NewSuccessResult(strings.Join(names, "\n")), nil
}
