package complete

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diillson/wrensh/internal/env"
	"github.com/diillson/wrensh/internal/shtypes"
)

func newTestHighlighter(t *testing.T) *Highlighter {
	t.Helper()
	e := env.New()
	e.Set("PATH", []string{"/nonexistent"})
	return &Highlighter{Env: e.Snapshot(), Cwd: t.TempDir(), Functions: func(string) bool { return false }}
}

func TestHighlightUnknownCommandIsError(t *testing.T) {
	h := newTestHighlighter(t)
	colors := h.Compute("definitely_not_a_real_command arg")
	require.NotEmpty(t, colors)
	assert.Equal(t, shtypes.ColorError, colors[0].Primary())
}

func TestHighlightKnownBuiltinIsCommand(t *testing.T) {
	h := newTestHighlighter(t)
	colors := h.Compute("echo hi")
	assert.Equal(t, shtypes.ColorCommand, colors[0].Primary())
}

func TestHighlightPipeIsOperator(t *testing.T) {
	h := newTestHighlighter(t)
	src := "echo hi | cat"
	colors := h.Compute(src)
	idx := len("echo hi ")
	assert.Equal(t, shtypes.ColorOperator, colors[idx].Primary())
}

func TestHighlightCommentIsComment(t *testing.T) {
	h := newTestHighlighter(t)
	src := "echo hi # a comment"
	colors := h.Compute(src)
	idx := len("echo hi ")
	assert.Equal(t, shtypes.ColorComment, colors[idx].Primary())
}

func TestHighlightValidPathGetsModifier(t *testing.T) {
	h := newTestHighlighter(t)
	path := filepath.Join(h.Cwd, "realfile.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	src := "echo realfile.txt"
	colors := h.Compute(src)
	idx := len("echo ")
	assert.True(t, colors[idx].Has(shtypes.ModValidPath))
}

func TestHighlightMatchingPairsMarksBothBrackets(t *testing.T) {
	src := "echo (status)"
	colors := make([]shtypes.Color, len(src))
	open := 5
	HighlightMatchingPairs(src, open, colors)
	assert.True(t, colors[open].Has(shtypes.ModMatchBackground))
	assert.True(t, colors[len(src)-1].Has(shtypes.ModMatchBackground))
}

func TestHighlightUnmatchedBracketIsError(t *testing.T) {
	src := "echo (status"
	colors := make([]shtypes.Color, len(src))
	HighlightMatchingPairs(src, 5, colors)
	assert.Equal(t, shtypes.ColorError, colors[5].Primary())
}
