package complete

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diillson/wrensh/internal/env"
)

func TestAutosuggestFromHistoryPrefix(t *testing.T) {
	e := env.New()
	a := &Autosuggester{Env: e.Snapshot(), Cwd: t.TempDir()}

	history := []string{"echo hello world", "ls -la"}
	got := a.Suggest("echo hel", history)
	assert.Equal(t, "echo hello world", got)
}

func TestAutosuggestNoMatchReturnsOriginal(t *testing.T) {
	e := env.New()
	a := &Autosuggester{Env: e.Snapshot(), Cwd: t.TempDir()}

	got := a.Suggest("nonexistent_prefix", nil)
	assert.Equal(t, "nonexistent_prefix", got)
}

func TestAutosuggestCdUniquePrefix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "projects"), 0o755))
	e := env.New()
	a := &Autosuggester{Env: e.Snapshot(), Cwd: dir}

	got := a.Suggest("cd proj", nil)
	assert.Equal(t, "cd projects/", got)
}

func TestAutosuggestCdAmbiguousPrefixReturnsOriginal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "projects-a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "projects-b"), 0o755))
	e := env.New()
	a := &Autosuggester{Env: e.Snapshot(), Cwd: dir}

	got := a.Suggest("cd proj", nil)
	assert.Equal(t, "cd proj", got)
}
