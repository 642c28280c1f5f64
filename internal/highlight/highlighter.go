// Package highlight provides terminal syntax highlighting for code
// shown in approval previews and file output.
package highlight

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Highlighter renders code with a chroma style.
type Highlighter struct {
	style     string
	formatter chroma.Formatter
}

// New creates a Highlighter. An empty style defaults to monokai.
func New(style string) *Highlighter {
	if style == "" {
		style = "monokai"
	}
	return &Highlighter{
		style:     style,
		formatter: formatters.Get("terminal256"),
	}
}

// Highlight colors code for the given language. On any failure the
// input is returned unchanged.
func (h *Highlighter) Highlight(code, lang string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(h.style)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// DetectLanguage guesses the language from a filename.
func (h *Highlighter) DetectLanguage(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	langMap := map[string]string{
		".go":   "go",
		".py":   "python",
		".js":   "javascript",
		".ts":   "typescript",
		".rs":   "rust",
		".rb":   "ruby",
		".java": "java",
		".c":    "c",
		".cpp":  "cpp",
		".sh":   "bash",
		".sql":  "sql",
		".html": "html",
		".css":  "css",
		".json": "json",
		".yaml": "yaml",
		".yml":  "yaml",
		".toml": "toml",
		".md":   "markdown",
	}
	if lang, ok := langMap[ext]; ok {
		return lang
	}

	base := strings.ToLower(filepath.Base(filename))
	switch base {
	case "dockerfile":
		return "docker"
	case "makefile":
		return "makefile"
	case "go.mod":
		return "gomod"
	}

	if lexer := lexers.Match(filename); lexer != nil {
		return lexer.Config().Name
	}
	return "text"
}
