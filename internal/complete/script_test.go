package complete

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diillson/wrensh/internal/parsetree"
	"github.com/diillson/wrensh/internal/shtypes"
	"github.com/diillson/wrensh/internal/token"
)

func parseCompletionScript(t *testing.T, src string) shtypes.Tree {
	t.Helper()
	toks := token.Tokenize(src, 0)
	tree, errs := parsetree.Parse(src, toks, parsetree.ContinueAfterError)
	require.False(t, errs.HasAny())
	return tree
}

func TestParseCompleteCallsLongOption(t *testing.T) {
	src := `complete -c grep -l color -d "colorize output"`
	tree := parseCompletionScript(t, src)

	entries := parseCompleteCalls(&tree, src, "grep")
	require.Len(t, entries, 1)
	assert.Equal(t, "grep", entries[0].command)
	assert.Equal(t, "color", entries[0].option.Long)
	assert.Equal(t, "colorize output", entries[0].option.Description)
}

func TestParseCompleteCallsShortOption(t *testing.T) {
	src := `complete -c ls -s l -d "long format"`
	tree := parseCompletionScript(t, src)

	entries := parseCompleteCalls(&tree, src, "ls")
	require.Len(t, entries, 1)
	assert.Equal(t, byte('l'), entries[0].option.Short)
}

func TestParseCompleteCallsDefaultsToFileCommand(t *testing.T) {
	src := `complete -s v -l verbose`
	tree := parseCompletionScript(t, src)

	entries := parseCompleteCalls(&tree, src, "mytool")
	require.Len(t, entries, 1)
	assert.Equal(t, "mytool", entries[0].command)
}

func TestParseCompleteCallsEraseProducesNoOption(t *testing.T) {
	src := `complete -c ls -e`
	tree := parseCompletionScript(t, src)

	entries := parseCompleteCalls(&tree, src, "ls")
	assert.Empty(t, entries)
}

func TestParseCompleteCallsMultipleInvocations(t *testing.T) {
	src := "complete -c ls -s l -d \"long\"\ncomplete -c ls -s a -d \"all\"\n"
	tree := parseCompletionScript(t, src)

	entries := parseCompleteCalls(&tree, src, "ls")
	require.Len(t, entries, 2)
}
