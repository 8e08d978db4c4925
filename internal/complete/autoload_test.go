package complete

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diillson/wrensh/internal/shtypes"
)

func TestAutoloaderReloadAllPopulatesRuleSet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grep.wrensh"),
		[]byte(`complete -c grep -l color -d "colorize output"`), 0o644))

	rs := NewRuleSet()
	a := &Autoloader{dir: dir, rules: rs, logger: zap.NewNop()}
	a.ReloadAll()

	opts := rs.Options("grep")
	require.Len(t, opts, 1)
	assert.Equal(t, "color", opts[0].Long)
}

func TestAutoloaderReloadOneEvictsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	rs := NewRuleSet()
	rs.Register(&shtypes.CompletionRule{Command: "ghost"})
	a := &Autoloader{dir: dir, rules: rs, logger: zap.NewNop()}

	a.reloadOne(filepath.Join(dir, "ghost.wrensh"))

	_, ok := rs.Get("ghost")
	assert.False(t, ok)
}
