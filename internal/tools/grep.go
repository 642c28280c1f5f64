package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"
)

const maxGrepMatches = 200

// GrepTool searches file contents with a regular expression.
type GrepTool struct {
	workDir string
}

// NewGrepTool creates a GrepTool rooted at workDir.
func NewGrepTool(workDir string) *GrepTool {
	return &GrepTool{workDir: workDir}
}

func (t *GrepTool) Name() string {
	return "grep"
}

func (t *GrepTool) Capability() Capability {
	return CapabilityRead
}

func (t *GrepTool) Description() string {
	return `Searches file contents for a regular expression.

PARAMETERS:
- pattern (required): Go regular expression
- path (optional): Directory to search, relative to the workspace (default: workspace root)
- include (optional): Glob filter on file names (e.g. "*.go")

Returns matching lines as path:line:text, up to 200 matches. Hidden
directories and binary files are skipped.`
}

func (t *GrepTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pattern": {
					Type:        genai.TypeString,
					Description: "The regular expression to search for",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "Directory to search in. Optional.",
				},
				"include": {
					Type:        genai.TypeString,
					Description: "Glob pattern to filter file names, e.g. \"*.go\". Optional.",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *GrepTool) Validate(args map[string]any) error {
	pattern, ok := GetString(args, "pattern")
	if !ok || pattern == "" {
		return NewValidationError("pattern", "is required")
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return NewValidationError("pattern", err.Error())
	}
	return nil
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	pattern, _ := GetString(args, "pattern")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("invalid pattern: %s", err)), nil
	}

	searchRoot := t.workDir
	if rawPath, ok := GetString(args, "path"); ok && rawPath != "" {
		searchRoot, err = resolvePath(t.workDir, rawPath)
		if err != nil {
			return NewErrorResult(err.Error()), nil
		}
	}

	include := GetStringDefault(args, "include", "")

	var b strings.Builder
	matches := 0

	err = filepath.WalkDir(searchRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if d.IsDir() {
			if path != searchRoot && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if include != "" {
			ok, err := doublestar.Match(include, name)
			if err != nil || !ok {
				return nil
			}
		}

		if matches >= maxGrepMatches {
			return filepath.SkipAll
		}

		rel, err := filepath.Rel(t.workDir, path)
		if err != nil {
			rel = path
		}

		matches += grepFile(path, rel, re, &b, maxGrepMatches-matches)
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return NewErrorResult("search cancelled"), nil
	}

	if matches == 0 {
		return NewSuccessResult(fmt.Sprintf("No matches for %q", pattern)), nil
	}

	out := strings.TrimRight(b.String(), "\n")
	if matches >= maxGrepMatches {
		out += fmt.Sprintf("\n(truncated to %d matches)", maxGrepMatches)
	}
	return NewSuccessResult(out), nil
}

// grepFile scans one file, appending up to budget matches to b.
func grepFile(path, rel string, re *regexp.Regexp, b *strings.Builder, budget int) int {
	file, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	count := 0
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// Cheap binary sniff on the first line.
		if lineNum == 1 && strings.ContainsRune(line, '\x00') {
			return 0
		}

		if re.MatchString(line) {
			if len(line) > maxLineLen {
				line = line[:maxLineLen] + "..."
			}
			fmt.Fprintf(b, "%s:%d:%s\n", rel, lineNum, line)
			count++
			if count >= budget {
				break
			}
		}
	}
	return count
}
