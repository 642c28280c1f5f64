package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"google.golang.org/genai"

	"koda/internal/logging"
)

const (
	defaultBashTimeout = 2 * time.Minute
	maxBashTimeout     = 10 * time.Minute
	maxBashOutput      = 64 * 1024
)

// BashTool runs a shell command in the workspace.
type BashTool struct {
	workDir string
}

// NewBashTool creates a BashTool rooted at workDir.
func NewBashTool(workDir string) *BashTool {
	return &BashTool{workDir: workDir}
}

func (t *BashTool) Name() string {
	return "bash"
}

func (t *BashTool) Capability() Capability {
	return CapabilityExecute
}

func (t *BashTool) Description() string {
	return `Runs a shell command in the workspace directory.

PARAMETERS:
- command (required): The command to run via sh -c
- timeout (optional): Timeout in seconds (default 120, max 600)

Returns combined stdout/stderr and the exit code. Output over 64KB is
truncated.`
}

func (t *BashTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"command": {
					Type:        genai.TypeString,
					Description: "The shell command to execute",
				},
				"timeout": {
					Type:        genai.TypeInteger,
					Description: "Timeout in seconds. Optional, defaults to 120.",
				},
			},
			Required: []string{"command"},
		},
	}
}

func (t *BashTool) Validate(args map[string]any) error {
	command, ok := GetString(args, "command")
	if !ok || strings.TrimSpace(command) == "" {
		return NewValidationError("command", "is required")
	}
	return nil
}

func (t *BashTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	command, _ := GetString(args, "command")

	timeout := defaultBashTimeout
	if secs, ok := GetInt(args, "timeout"); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
		if timeout > maxBashTimeout {
			timeout = maxBashTimeout
		}
	}

	output, exitCode, err := RunCommand(ctx, t.workDir, command, timeout)
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}

	if exitCode != 0 {
		return ToolResult{
			Content: output,
			Error:   fmt.Sprintf("command exited with status %d", exitCode),
			Success: false,
		}, nil
	}

	if output == "" {
		output = "(no output)"
	}
	return NewSuccessResult(output), nil
}

// RunCommand runs command via sh -c in dir, returning combined output
// and the exit code. A non-zero exit is not an error; the error return
// covers timeouts and start failures only.
func RunCommand(ctx context.Context, dir, command string, timeout time.Duration) (string, int, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = dir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	err := cmd.Run()
	logging.Debug("ran command", "command", command, "duration", time.Since(start))

	output := buf.String()
	if len(output) > maxBashOutput {
		output = output[:maxBashOutput] + "\n(output truncated)"
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return output, -1, fmt.Errorf("command timed out after %s", timeout)
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return output, exitErr.ExitCode(), nil
		}
		return output, -1, fmt.Errorf("failed to run command: %w", err)
	}

	return output, 0, nil
}
