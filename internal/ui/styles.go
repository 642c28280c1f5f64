package ui

import "github.com/charmbracelet/lipgloss"

// Colors for the terminal theme.
var (
	ColorPrimary = lipgloss.Color("#A78BFA") // soft purple
	ColorSuccess = lipgloss.Color("#059669") // muted green
	ColorWarning = lipgloss.Color("#D97706") // muted amber
	ColorError   = lipgloss.Color("#DC2626") // muted red
	ColorMuted   = lipgloss.Color("#9CA3AF") // neutral gray
	ColorInfo    = lipgloss.Color("#2DD4BF") // teal
	ColorRunning = lipgloss.Color("#60A5FA") // sky blue
	ColorAdded   = lipgloss.Color("#10B981")
	ColorRemoved = lipgloss.Color("#EF4444")
)

// Styles groups the render styles used by the REPL.
type Styles struct {
	Banner      lipgloss.Style
	PromptPlan  lipgloss.Style
	PromptAct   lipgloss.Style
	PromptBash  lipgloss.Style
	ToolCall    lipgloss.Style
	ToolOK      lipgloss.Style
	ToolFail    lipgloss.Style
	Error       lipgloss.Style
	Warning     lipgloss.Style
	Info        lipgloss.Style
	Muted       lipgloss.Style
	TaskPending lipgloss.Style
	TaskActive  lipgloss.Style
	TaskDone    lipgloss.Style
	Approval    lipgloss.Style
	DiffAdd     lipgloss.Style
	DiffDel     lipgloss.Style
	DiffHeader  lipgloss.Style
	DiffContext lipgloss.Style
}

// DefaultStyles builds the default theme.
func DefaultStyles() *Styles {
	return &Styles{
		Banner:      lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true),
		PromptPlan:  lipgloss.NewStyle().Foreground(ColorInfo).Bold(true),
		PromptAct:   lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true),
		PromptBash:  lipgloss.NewStyle().Foreground(ColorWarning).Bold(true),
		ToolCall:    lipgloss.NewStyle().Foreground(ColorRunning),
		ToolOK:      lipgloss.NewStyle().Foreground(ColorSuccess),
		ToolFail:    lipgloss.NewStyle().Foreground(ColorError),
		Error:       lipgloss.NewStyle().Foreground(ColorError).Bold(true),
		Warning:     lipgloss.NewStyle().Foreground(ColorWarning),
		Info:        lipgloss.NewStyle().Foreground(ColorInfo),
		Muted:       lipgloss.NewStyle().Foreground(ColorMuted),
		TaskPending: lipgloss.NewStyle().Foreground(ColorMuted),
		TaskActive:  lipgloss.NewStyle().Foreground(ColorRunning).Bold(true),
		TaskDone:    lipgloss.NewStyle().Foreground(ColorSuccess).Strikethrough(true),
		Approval: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarning).
			Padding(0, 1),
		DiffAdd:     lipgloss.NewStyle().Foreground(ColorAdded).Bold(true),
		DiffDel:     lipgloss.NewStyle().Foreground(ColorRemoved).Bold(true),
		DiffHeader:  lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true),
		DiffContext: lipgloss.NewStyle().Foreground(ColorMuted),
	}
}
