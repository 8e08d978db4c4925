package complete

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diillson/wrensh/internal/env"
	"github.com/diillson/wrensh/internal/parsetree"
	"github.com/diillson/wrensh/internal/shtypes"
	"github.com/diillson/wrensh/internal/token"
)

func parseLine(t *testing.T, src string) shtypes.Tree {
	t.Helper()
	toks := token.Tokenize(src, token.AcceptUnfinished)
	tree, _ := parsetree.Parse(src, toks, parsetree.ContinueAfterError|parsetree.AcceptIncomplete)
	return tree
}

func TestCompleteVariableListsMatchingNames(t *testing.T) {
	e := env.New()
	e.Set("HOME", []string{"/home/me"})
	e.Set("HOSTNAME", []string{"box"})
	e.Set("OTHER", []string{"x"})
	c := &Completer{Env: e.Snapshot(), Cwd: t.TempDir()}

	src := "echo $HO"
	tree := parseLine(t, src)
	results := c.Complete(&tree, src, len(src))

	var texts []string
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	assert.ElementsMatch(t, []string{"$HOME", "$HOSTNAME"}, texts)
}

func TestCompleteCommandListsBuiltins(t *testing.T) {
	e := env.New()
	e.Set("PATH", []string{""})
	c := &Completer{Env: e.Snapshot(), Cwd: t.TempDir()}

	src := "ech"
	tree := parseLine(t, src)
	results := c.Complete(&tree, src, len(src))

	var texts []string
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	assert.Contains(t, texts, "echo")
}

func TestCompleteArgumentUsesRuleOptions(t *testing.T) {
	e := env.New()
	e.Set("PATH", []string{""})
	rs := NewRuleSet()
	rs.AddOption("grep", false, shtypes.CompletionOption{Long: "color", Description: "colorize"})
	c := &Completer{Env: e.Snapshot(), Cwd: t.TempDir(), Rules: rs}

	src := "grep --col"
	tree := parseLine(t, src)
	results := c.Complete(&tree, src, len(src))

	var texts []string
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	assert.Contains(t, texts, "--color")
}

func TestCompleteArgumentFallsBackToFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "needle.txt"), []byte("x"), 0o644))
	e := env.New()
	e.Set("PATH", []string{""})
	c := &Completer{Env: e.Snapshot(), Cwd: dir}

	src := "cat need"
	tree := parseLine(t, src)
	results := c.Complete(&tree, src, len(src))

	var texts []string
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	assert.Contains(t, texts, "needle.txt")
}

func TestValidateOptionUnknownLongOption(t *testing.T) {
	rs := NewRuleSet()
	rs.AddOption("grep", false, shtypes.CompletionOption{Long: "color"})
	c := &Completer{Rules: rs}

	v, _ := c.ValidateOption("grep", "--bogus")
	assert.Equal(t, OptionInvalid, v)
}

func TestValidateOptionKnownShortOptionWithValue(t *testing.T) {
	rs := NewRuleSet()
	rs.AddOption("gcc", false, shtypes.CompletionOption{Short: 'I', RequireParam: true})
	c := &Completer{Rules: rs}

	v, _ := c.ValidateOption("gcc", "-I/usr/include")
	assert.Equal(t, OptionValid, v)
}
