package ui

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// UnifiedDiff builds a unified-style diff between two file versions.
func UnifiedDiff(path, oldContent, newContent string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldContent, newContent, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("--- %s\n", path))
	b.WriteString(fmt.Sprintf("+++ %s\n", path))

	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		for i, line := range lines {
			if i == len(lines)-1 && line == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				b.WriteString("-" + line + "\n")
			case diffmatchpatch.DiffInsert:
				b.WriteString("+" + line + "\n")
			default:
				b.WriteString(" " + line + "\n")
			}
		}
	}

	return b.String()
}

// DiffStats counts added and removed lines in two file versions.
func DiffStats(oldContent, newContent string) (added, removed int) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldContent, newContent, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	for _, d := range diffs {
		n := strings.Count(strings.TrimSuffix(d.Text, "\n"), "\n") + 1
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

// ColorizeDiff styles each diff line by its marker.
func (r *Renderer) ColorizeDiff(diff string) string {
	lines := strings.Split(diff, "\n")
	var b strings.Builder

	for i, line := range lines {
		var styled string
		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			styled = r.styles.DiffHeader.Render(line)
		case strings.HasPrefix(line, "+"):
			styled = r.styles.DiffAdd.Render(line)
		case strings.HasPrefix(line, "-"):
			styled = r.styles.DiffDel.Render(line)
		default:
			styled = r.styles.DiffContext.Render(line)
		}
		b.WriteString(styled)
		if i < len(lines)-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}
