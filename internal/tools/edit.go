package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"koda/internal/fileutil"
)

// EditTool replaces an exact string in a file.
type EditTool struct {
	workDir string
}

// NewEditTool creates an EditTool rooted at workDir.
func NewEditTool(workDir string) *EditTool {
	return &EditTool{workDir: workDir}
}

func (t *EditTool) Name() string {
	return "edit_file"
}

func (t *EditTool) Capability() Capability {
	return CapabilityWrite
}

func (t *EditTool) Description() string {
	return `Replaces an exact string in a file.

PARAMETERS:
- file_path (required): Path to the file, relative to the workspace or absolute
- old_string (required): The exact text to replace, including whitespace
- new_string (required): The replacement text
- replace_all (optional): Replace every occurrence (default: false)

Without replace_all, old_string must appear exactly once in the file.
Read the file first so old_string matches exactly.`
}

func (t *EditTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_path": {
					Type:        genai.TypeString,
					Description: "The path to the file to edit",
				},
				"old_string": {
					Type:        genai.TypeString,
					Description: "The exact text to replace",
				},
				"new_string": {
					Type:        genai.TypeString,
					Description: "The text to replace it with",
				},
				"replace_all": {
					Type:        genai.TypeBoolean,
					Description: "Replace all occurrences instead of exactly one. Optional.",
				},
			},
			Required: []string{"file_path", "old_string", "new_string"},
		},
	}
}

func (t *EditTool) Validate(args map[string]any) error {
	filePath, ok := GetString(args, "file_path")
	if !ok || filePath == "" {
		return NewValidationError("file_path", "is required")
	}
	oldString, ok := GetString(args, "old_string")
	if !ok || oldString == "" {
		return NewValidationError("old_string", "is required")
	}
	newString, ok := GetString(args, "new_string")
	if !ok {
		return NewValidationError("new_string", "is required")
	}
	if oldString == newString {
		return NewValidationError("new_string", "must differ from old_string")
	}
	return nil
}

func (t *EditTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	rawPath, _ := GetString(args, "file_path")
	oldString, _ := GetString(args, "old_string")
	newString, _ := GetString(args, "new_string")
	replaceAll := GetBoolDefault(args, "replace_all", false)

	filePath, err := resolvePath(t.workDir, rawPath)
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(fmt.Sprintf("file not found: %s", rawPath)), nil
		}
		return NewErrorResult(fmt.Sprintf("error accessing file: %s", err)), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("error reading file: %s", err)), nil
	}
	content := string(data)

	count := strings.Count(content, oldString)
	if count == 0 {
		return NewErrorResult(fmt.Sprintf("old_string not found in %s", rawPath)), nil
	}
	if count > 1 && !replaceAll {
		return NewErrorResult(fmt.Sprintf(
			"old_string appears %d times in %s; make it unique or set replace_all", count, rawPath)), nil
	}

	var updated string
	replaced := count
	if replaceAll {
		updated = strings.ReplaceAll(content, oldString, newString)
	} else {
		updated = strings.Replace(content, oldString, newString, 1)
		replaced = 1
	}

	if err := fileutil.AtomicWriteString(filePath, updated, info.Mode().Perm()); err != nil {
		return NewErrorResult(fmt.Sprintf("error writing file: %s", err)), nil
	}

	return NewSuccessResult(fmt.Sprintf("Replaced %d occurrence(s) in %s", replaced, rawPath)), nil
}
