package complete

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diillson/wrensh/internal/shtypes"
)

func TestRuleSetAddOptionCreatesRule(t *testing.T) {
	rs := NewRuleSet()
	rs.AddOption("grep", false, shtypes.CompletionOption{Long: "color", Description: "colorize output"})

	rule, ok := rs.Get("grep")
	require.True(t, ok)
	assert.Equal(t, "grep", rule.Command)
	assert.Len(t, rule.Options, 1)
}

func TestRuleSetAddOptionReplacesByKey(t *testing.T) {
	rs := NewRuleSet()
	rs.AddOption("grep", false, shtypes.CompletionOption{Long: "color", Description: "first"})
	rs.AddOption("grep", false, shtypes.CompletionOption{Long: "color", Description: "second"})

	opts := rs.Options("grep")
	require.Len(t, opts, 1)
	assert.Equal(t, "second", opts[0].Description)
}

func TestRuleSetRemove(t *testing.T) {
	rs := NewRuleSet()
	rs.Register(&shtypes.CompletionRule{Command: "ls"})
	rs.Remove("ls")

	_, ok := rs.Get("ls")
	assert.False(t, ok)
}

func TestRuleSetCommandsListsAllRules(t *testing.T) {
	rs := NewRuleSet()
	rs.Register(&shtypes.CompletionRule{Command: "ls"})
	rs.Register(&shtypes.CompletionRule{Command: "grep"})

	assert.ElementsMatch(t, []string{"ls", "grep"}, rs.Commands())
}
