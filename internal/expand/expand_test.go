package expand

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diillson/wrensh/internal/env"
)

type fakeRunner struct {
	out map[string][]string
}

func (f *fakeRunner) RunCaptured(src string) ([]string, error) {
	return f.out[src], nil
}

func newExpander(t *testing.T) (*Expander, *env.Environment) {
	t.Helper()
	e := env.New()
	e.Set("HOME", []string{"/home/test"})
	return &Expander{Env: e.Snapshot(), Cwd: "/tmp"}, e
}

func TestExpandLiteral(t *testing.T) {
	x, _ := newExpander(t)
	got, errs := x.Expand("hello")
	require.False(t, errs.HasAny())
	assert.Equal(t, []string{"hello"}, got)
}

func TestExpandSingleQuotedIsLiteral(t *testing.T) {
	x, e := newExpander(t)
	e.Set("x", []string{"VALUE"})
	x.Env = e.Snapshot()
	got, _ := x.Expand(`'$x * literal'`)
	assert.Equal(t, []string{"$x * literal"}, got)
}

func TestExpandVariableScalarInDoubleQuotes(t *testing.T) {
	x, e := newExpander(t)
	e.Set("name", []string{"a", "b", "c"})
	x.Env = e.Snapshot()
	got, _ := x.Expand(`"$name"`)
	assert.Equal(t, []string{"a b c"}, got)
}

func TestExpandVariableListUnquotedSplits(t *testing.T) {
	x, e := newExpander(t)
	e.Set("name", []string{"a", "b", "c"})
	x.Env = e.Snapshot()
	got, _ := x.Expand(`$name`)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestExpandUndefinedVariableVanishes(t *testing.T) {
	x, _ := newExpander(t)
	got, _ := x.Expand(`pre$nope post`)
	assert.Equal(t, []string{"pre post"}, got)
}

func TestExpandBraces(t *testing.T) {
	x, _ := newExpander(t)
	got, _ := x.Expand(`file.{txt,md}`)
	assert.ElementsMatch(t, []string{"file.txt", "file.md"}, got)
}

func TestExpandTilde(t *testing.T) {
	x, _ := newExpander(t)
	got, _ := x.Expand(`~/project`)
	assert.Equal(t, []string{"/home/test/project"}, got)
}

func TestExpandCommandSubstitutionUnquotedSplitsOnWhitespace(t *testing.T) {
	x, _ := newExpander(t)
	x.Runner = &fakeRunner{out: map[string][]string{"echo a b": {"a b"}}}
	got, errs := x.Expand(`(echo a b)`)
	require.False(t, errs.HasAny())
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestExpandCommandSubstitutionQuotedJoinsWithNewline(t *testing.T) {
	x, _ := newExpander(t)
	x.Runner = &fakeRunner{out: map[string][]string{"echo a b": {"line1", "line2"}}}
	got, errs := x.Expand(`"(echo a b)"`)
	require.False(t, errs.HasAny())
	assert.Equal(t, []string{"line1\nline2"}, got)
}

func TestExpandWildcard(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.md"), nil, 0o644))

	x, _ := newExpander(t)
	x.Cwd = dir
	got, _ := x.Expand(`*.txt`)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, got)
}

func TestExpandEscapedGlobIsLiteral(t *testing.T) {
	dir := t.TempDir()
	x, _ := newExpander(t)
	x.Cwd = dir
	got, _ := x.Expand(`\*.txt`)
	assert.Equal(t, []string{"*.txt"}, got)
}

func TestExpandIndexedVariable(t *testing.T) {
	x, e := newExpander(t)
	e.Set("list", []string{"first", "second", "third"})
	x.Env = e.Snapshot()
	got, _ := x.Expand(`$list[2]`)
	assert.Equal(t, []string{"second"}, got)
}
