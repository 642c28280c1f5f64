// Package ui renders session output for the terminal: markdown from
// the model, tool activity lines, task and checkpoint listings, and
// approval previews with colored diffs.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"koda/internal/checkpoint"
	"koda/internal/highlight"
	"koda/internal/mode"
	"koda/internal/todo"
	"koda/internal/tools"
)

// Renderer converts session events into styled terminal output.
type Renderer struct {
	styles      *Styles
	markdown    *glamour.TermRenderer
	highlighter *highlight.Highlighter
}

// NewRenderer builds a renderer with the default theme.
func NewRenderer() *Renderer {
	markdown, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(100),
	)

	return &Renderer{
		styles:      DefaultStyles(),
		markdown:    markdown,
		highlighter: highlight.New("monokai"),
	}
}

// Banner returns the startup header.
func (r *Renderer) Banner(model string, m mode.Mode) string {
	return r.styles.Banner.Render("koda") +
		r.styles.Muted.Render(fmt.Sprintf("  %s · %s mode · /help for commands", model, m))
}

// Prompt returns the input prompt for the active mode.
func (r *Renderer) Prompt(m mode.Mode) string {
	switch m {
	case mode.Plan:
		return r.styles.PromptPlan.Render("plan> ")
	case mode.Bash:
		return r.styles.PromptBash.Render("bash$ ")
	default:
		return r.styles.PromptAct.Render("act> ")
	}
}

// Markdown renders model output as terminal markdown, falling back to
// the raw text if rendering fails.
func (r *Renderer) Markdown(text string) string {
	if r.markdown == nil {
		return text
	}
	out, err := r.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// ToolCall returns the activity line shown when a tool starts.
func (r *Renderer) ToolCall(name, detail string) string {
	line := "→ " + name
	if detail != "" {
		line += " " + detail
	}
	return r.styles.ToolCall.Render(line)
}

// ToolResult returns the line shown when a tool finishes.
func (r *Renderer) ToolResult(name string, result tools.ToolResult) string {
	if result.Success {
		return r.styles.ToolOK.Render("✓ " + name)
	}
	msg := result.Error
	if msg == "" {
		msg = "failed"
	}
	return r.styles.ToolFail.Render("✗ " + name + ": " + msg)
}

// Error returns a styled error line.
func (r *Renderer) Error(err error) string {
	return r.styles.Error.Render("error: " + err.Error())
}

// Warn returns a styled warning line.
func (r *Renderer) Warn(text string) string {
	return r.styles.Warning.Render("⚠ " + text)
}

// Info returns a styled informational line.
func (r *Renderer) Info(text string) string {
	return r.styles.Info.Render(text)
}

// Muted returns a styled secondary line.
func (r *Renderer) Muted(text string) string {
	return r.styles.Muted.Render(text)
}

// TaskList renders the shared task list.
func (r *Renderer) TaskList(tasks []todo.Task) string {
	if len(tasks) == 0 {
		return r.styles.Muted.Render("no tasks")
	}

	var b strings.Builder
	for i, task := range tasks {
		var line string
		switch task.State {
		case todo.StateInProgress:
			line = r.styles.TaskActive.Render(fmt.Sprintf("%d. [>] %s", i+1, task.Description))
		case todo.StateCompleted:
			line = r.styles.TaskDone.Render(fmt.Sprintf("%d. [x] %s", i+1, task.Description))
		default:
			line = r.styles.TaskPending.Render(fmt.Sprintf("%d. [ ] %s", i+1, task.Description))
		}
		b.WriteString(line)
		if i < len(tasks)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Checkpoints renders the checkpoint chain with the current position.
func (r *Renderer) Checkpoints(list []*checkpoint.Checkpoint, head int) string {
	if len(list) == 0 {
		return r.styles.Muted.Render("no checkpoints yet")
	}

	var b strings.Builder
	for i, cp := range list {
		marker := "  "
		if cp.Seq == head {
			marker = "* "
		}
		line := fmt.Sprintf("%s#%d  %s  %s", marker, cp.Seq,
			cp.CreatedAt.Format("15:04:05"), cp.Description)
		if cp.Seq == head {
			b.WriteString(r.styles.Info.Render(line))
		} else {
			b.WriteString(r.styles.Muted.Render(line))
		}
		if i < len(list)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// SubagentResults renders finished background job reports.
func (r *Renderer) SubagentResults(results []tools.SubagentResult) string {
	var b strings.Builder
	for i, res := range results {
		header := fmt.Sprintf("[%s %s] %s", res.Type, shortID(res.ID), res.Status)
		switch res.Status {
		case "success":
			b.WriteString(r.styles.ToolOK.Render(header))
		case "running":
			b.WriteString(r.styles.Info.Render(header))
		default:
			b.WriteString(r.styles.ToolFail.Render(header))
		}
		if res.Output != "" {
			b.WriteString("\n")
			b.WriteString(r.styles.Muted.Render(truncate(res.Output, 2000)))
		}
		if i < len(results)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ApprovalPrompt renders the boxed approval request with its preview.
func (r *Renderer) ApprovalPrompt(reason, preview string) string {
	var b strings.Builder
	b.WriteString(r.styles.Warning.Render(reason))
	if preview != "" {
		b.WriteString("\n\n")
		b.WriteString(preview)
	}
	b.WriteString("\n\n")
	b.WriteString(r.styles.Muted.Render("[y] approve  [a] approve all  [n] deny"))
	return r.styles.Approval.Render(b.String())
}

// WritePreview builds the preview for a pending file write: a colored
// diff for edits, highlighted content for new files.
func (r *Renderer) WritePreview(path, oldContent, newContent string) string {
	if oldContent == "" {
		lang := r.highlighter.DetectLanguage(path)
		return r.highlighter.Highlight(truncate(newContent, 4000), lang)
	}

	diff := UnifiedDiff(path, oldContent, newContent)
	added, removed := DiffStats(oldContent, newContent)
	return r.ColorizeDiff(truncate(diff, 4000)) +
		"\n" + r.styles.Muted.Render(fmt.Sprintf("+%d -%d", added, removed))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}
