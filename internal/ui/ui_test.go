package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifiedDiff(t *testing.T) {
	diff := UnifiedDiff("a.go", "one\ntwo\nthree\n", "one\nTWO\nthree\n")

	assert.True(t, strings.HasPrefix(diff, "--- a.go\n+++ a.go\n"))
	assert.Contains(t, diff, "-two")
	assert.Contains(t, diff, "+TWO")
	assert.Contains(t, diff, " one")
}

func TestDiffStats(t *testing.T) {
	added, removed := DiffStats("one\ntwo\n", "one\ntwo\nthree\nfour\n")
	assert.Equal(t, 2, added)
	assert.Zero(t, removed)

	added, removed = DiffStats("one\ntwo\n", "one\n")
	assert.Zero(t, added)
	assert.Equal(t, 1, removed)
}

func TestWritePreviewNewFileUsesHighlight(t *testing.T) {
	r := NewRenderer()
	preview := r.WritePreview("main.go", "", "package main\n")
	require.NotEmpty(t, preview)
	// New files show content, not a diff header.
	assert.NotContains(t, preview, "+++")
}

func TestMarkdownFallsBackOnNil(t *testing.T) {
	r := &Renderer{styles: DefaultStyles()}
	assert.Equal(t, "plain", r.Markdown("plain"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	out := truncate(strings.Repeat("x", 20), 5)
	assert.Contains(t, out, "truncated")
}
