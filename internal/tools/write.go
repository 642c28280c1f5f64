package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/genai"

	"koda/internal/fileutil"
	"koda/internal/logging"
)

// WriteTool creates or overwrites a file. It is the mutation endpoint:
// the orchestrator snapshots the workspace before letting an approved
// call reach Execute.
type WriteTool struct {
	workDir string
}

// NewWriteTool creates a WriteTool rooted at workDir.
func NewWriteTool(workDir string) *WriteTool {
	return &WriteTool{workDir: workDir}
}

func (t *WriteTool) Name() string {
	return "write_file"
}

func (t *WriteTool) Capability() Capability {
	return CapabilityWrite
}

func (t *WriteTool) Description() string {
	return `Writes content to a file, creating it (and parent directories) if
needed or replacing it entirely if it exists.

PARAMETERS:
- file_path (required): Path to the file, relative to the workspace or absolute
- content (required): The full new content of the file

Prefer edit_file for small changes to existing files.`
}

func (t *WriteTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_path": {
					Type:        genai.TypeString,
					Description: "The path to the file to write",
				},
				"content": {
					Type:        genai.TypeString,
					Description: "The content to write to the file",
				},
			},
			Required: []string{"file_path", "content"},
		},
	}
}

func (t *WriteTool) Validate(args map[string]any) error {
	filePath, ok := GetString(args, "file_path")
	if !ok || filePath == "" {
		return NewValidationError("file_path", "is required")
	}
	if _, ok := GetString(args, "content"); !ok {
		return NewValidationError("content", "is required")
	}
	return nil
}

func (t *WriteTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	rawPath, _ := GetString(args, "file_path")
	content, _ := GetString(args, "content")

	filePath, err := resolvePath(t.workDir, rawPath)
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}

	existed := false
	perm := os.FileMode(0644)
	if info, err := os.Stat(filePath); err == nil {
		if info.IsDir() {
			return NewErrorResult(fmt.Sprintf("%s is a directory", rawPath)), nil
		}
		existed = true
		perm = info.Mode().Perm()
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return NewErrorResult(fmt.Sprintf("error creating directories: %s", err)), nil
	}

	if err := fileutil.AtomicWriteString(filePath, content, perm); err != nil {
		return NewErrorResult(fmt.Sprintf("error writing file: %s", err)), nil
	}

	logging.Debug("wrote file", "path", filePath, "bytes", len(content), "existed", existed)

	verb := "Created"
	if existed {
		verb = "Updated"
	}
	return NewSuccessResult(fmt.Sprintf("%s %s (%d bytes)", verb, rawPath, len(content))), nil
}
