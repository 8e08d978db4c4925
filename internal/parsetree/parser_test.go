package parsetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diillson/wrensh/internal/shellerr"
	"github.com/diillson/wrensh/internal/shtypes"
	"github.com/diillson/wrensh/internal/token"
)

func parseSrc(t *testing.T, src string, flags Flags) (shtypes.Tree, shellerr.List) {
	t.Helper()
	toks := token.Tokenize(src, token.AcceptUnfinished)
	return Parse(src, toks, flags)
}

func TestParsePlainStatement(t *testing.T) {
	tree, errs := parseSrc(t, "echo hello world", 0)
	assert.False(t, errs.HasAny())
	require.NotNil(t, tree.Root())
	assert.Equal(t, shtypes.NodeJobList, tree.Root().Type)
}

func TestParsePipeline(t *testing.T) {
	tree, errs := parseSrc(t, "echo a | grep a | wc -l", 0)
	assert.False(t, errs.HasAny())
	job := findFirst(tree, shtypes.NodeJob)
	require.NotEqual(t, -1, job)
	pipes := 0
	for _, ci := range tree.Children(job) {
		if tree.Nodes[ci].Type == shtypes.NodeTerminal && tree.Nodes[ci].TermKind == shtypes.TokPipe {
			pipes++
		}
	}
	assert.Equal(t, 2, pipes)
}

func TestParseIfElse(t *testing.T) {
	src := "if true\n  echo yes\nelse\n  echo no\nend"
	tree, errs := parseSrc(t, src, 0)
	assert.False(t, errs.HasAny())
	assert.NotEqual(t, -1, findFirst(tree, shtypes.NodeIfStatement))
	assert.NotEqual(t, -1, findFirst(tree, shtypes.NodeElseClause))
}

func TestParseElseIfChain(t *testing.T) {
	src := "if a\nelse if b\n  echo b\nelse\n  echo c\nend"
	_, errs := parseSrc(t, src, 0)
	assert.False(t, errs.HasAny())
}

func TestParseSwitch(t *testing.T) {
	src := "switch $x\ncase a\n  echo A\ncase b c\n  echo BC\nend"
	tree, errs := parseSrc(t, src, 0)
	assert.False(t, errs.HasAny())
	n := 0
	for _, node := range tree.Nodes {
		if node.Type == shtypes.NodeCaseItem {
			n++
		}
	}
	assert.Equal(t, 2, n)
}

func TestParseForLoop(t *testing.T) {
	src := "for x in a b c\n  echo $x\nend"
	tree, errs := parseSrc(t, src, 0)
	assert.False(t, errs.HasAny())
	hdr := findFirst(tree, shtypes.NodeBlockHeader)
	require.NotEqual(t, -1, hdr)
	assert.Equal(t, shtypes.TagHeaderFor, tree.Nodes[hdr].Tag)
}

func TestParseFunctionAndReturn(t *testing.T) {
	src := "function f\n  return 0\nend"
	_, errs := parseSrc(t, src, 0)
	assert.False(t, errs.HasAny())
}

func TestParseReturnOutsideFunctionIsError(t *testing.T) {
	_, errs := parseSrc(t, "return 0", 0)
	require.True(t, errs.HasAny())
	assert.Equal(t, shellerr.CodeReturnOutsideFunction, errs[0].Code)
}

func TestParseBreakOutsideLoopIsError(t *testing.T) {
	_, errs := parseSrc(t, "break", 0)
	require.True(t, errs.HasAny())
	assert.Equal(t, shellerr.CodeBreakOutsideLoop, errs[0].Code)
}

func TestParseBreakInsideLoopIsFine(t *testing.T) {
	src := "while true\n  break\nend"
	_, errs := parseSrc(t, src, 0)
	assert.False(t, errs.HasAny())
}

func TestParseUnbalancingEnd(t *testing.T) {
	_, errs := parseSrc(t, "end", ContinueAfterError)
	require.Len(t, errs, 1)
	assert.Equal(t, shellerr.CodeUnbalancingEnd, errs[0].Code)
	assert.Equal(t, 0, errs[0].SourceStart)
	assert.Equal(t, 3, errs[0].SourceLength)
}

func TestParseUnbalancingElse(t *testing.T) {
	_, errs := parseSrc(t, "else", ContinueAfterError)
	require.True(t, errs.HasAny())
	assert.Equal(t, shellerr.CodeUnbalancingElse, errs[0].Code)
}

func TestParseUnbalancingCase(t *testing.T) {
	_, errs := parseSrc(t, "case a", ContinueAfterError)
	require.True(t, errs.HasAny())
	assert.Equal(t, shellerr.CodeUnbalancingCase, errs[0].Code)
}

func TestParseBooleanMidPipelineIsError(t *testing.T) {
	_, errs := parseSrc(t, "echo a | and echo b", ContinueAfterError)
	var found bool
	for _, e := range errs {
		if e.Code == shellerr.CodeBooleanInPipeline {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParseNotMidPipelineIsFine(t *testing.T) {
	_, errs := parseSrc(t, "echo a | not grep b", ContinueAfterError)
	for _, e := range errs {
		assert.NotEqual(t, shellerr.CodeBooleanInPipeline, e.Code)
	}
}

func TestParseExecInPipelineIsError(t *testing.T) {
	_, errs := parseSrc(t, "exec ls | grep a", ContinueAfterError)
	var found bool
	for _, e := range errs {
		if e.Code == shellerr.CodeExecInPipeline {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParseBackgroundThenBooleanIsError(t *testing.T) {
	src := "sleep 1 &\nand echo done"
	_, errs := parseSrc(t, src, ContinueAfterError)
	var found bool
	for _, e := range errs {
		if e.Code == shellerr.CodeBackgroundThenBoolean {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParseCommandDecoration(t *testing.T) {
	tree, errs := parseSrc(t, "command ls", 0)
	assert.False(t, errs.HasAny())
	idx := findFirst(tree, shtypes.NodeDecoratedStatement)
	require.NotEqual(t, -1, idx)
	assert.Equal(t, shtypes.TagDecorationCommand, tree.Nodes[idx].Tag)
}

func TestParseCommandHelpIsNotDecoration(t *testing.T) {
	tree, errs := parseSrc(t, "command --help", 0)
	assert.False(t, errs.HasAny())
	idx := findFirst(tree, shtypes.NodeDecoratedStatement)
	require.NotEqual(t, -1, idx)
	assert.Equal(t, shtypes.TagDecorationNone, tree.Nodes[idx].Tag)
}

func TestParseChildrenAreContiguous(t *testing.T) {
	tree, _ := parseSrc(t, "if true\n  echo a\n  echo b\nend", ContinueAfterError)
	for pi, n := range tree.Nodes {
		for i := 0; i < n.ChildCount; i++ {
			ci := n.ChildStart + i
			require.Less(t, ci, len(tree.Nodes))
			assert.Equal(t, pi, tree.Nodes[ci].ParentIndex)
		}
	}
}

func findFirst(tree shtypes.Tree, typ shtypes.NodeType) int {
	for i, n := range tree.Nodes {
		if n.Type == typ {
			return i
		}
	}
	return -1
}
