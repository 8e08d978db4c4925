package jobexec

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diillson/wrensh/internal/env"
)

// newTestExecutor wires stdout/stderr through os.Pipe so tests can read
// back what the executed script printed, the way a real terminal would
// see it.
func newTestExecutor(t *testing.T) (*Executor, func() string) {
	t.Helper()
	e := env.NewFromOS()
	ex := New(e, t.TempDir(), zap.NewNop(), nil, nil)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	ex.Stdout = w
	ex.Stderr = w

	done := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(r)
		done <- string(data)
	}()
	return ex, func() string {
		w.Close()
		return <-done
	}
}

func TestExecuteSimpleEcho(t *testing.T) {
	ex, read := newTestExecutor(t)
	status, errs := ex.Execute("echo hello world")
	assert.False(t, errs.HasAny())
	assert.Equal(t, 0, status)
	assert.Equal(t, "hello world\n", read())
}

func TestExecuteIfElse(t *testing.T) {
	ex, read := newTestExecutor(t)
	status, errs := ex.Execute("if true; echo yes; else; echo no; end")
	assert.False(t, errs.HasAny())
	assert.Equal(t, 0, status)
	assert.Equal(t, "yes\n", read())
}

func TestExecuteIfElseFalseBranch(t *testing.T) {
	ex, read := newTestExecutor(t)
	_, errs := ex.Execute("if false; echo yes; else; echo no; end")
	assert.False(t, errs.HasAny())
	assert.Equal(t, "no\n", read())
}

func TestExecuteForLoop(t *testing.T) {
	ex, read := newTestExecutor(t)
	_, errs := ex.Execute("for i in a b c; echo $i; end")
	assert.False(t, errs.HasAny())
	assert.Equal(t, "a\nb\nc\n", read())
}

func TestExecuteForLoopBreak(t *testing.T) {
	ex, read := newTestExecutor(t)
	_, errs := ex.Execute("for i in a b c; if test $i = b; break; end; echo $i; end")
	assert.False(t, errs.HasAny())
	assert.Equal(t, "a\n", read())
}

func TestExecuteWhileLoop(t *testing.T) {
	ex, read := newTestExecutor(t)
	ex.Env.Set("n", []string{"0"})
	_, errs := ex.Execute("while false; echo nope; end")
	assert.False(t, errs.HasAny())
	assert.Equal(t, "", read())
}

func TestExecuteSwitchMatchesFirstCase(t *testing.T) {
	ex, read := newTestExecutor(t)
	_, errs := ex.Execute("switch abc\ncase abc\necho matched\ncase '*'\necho fallthrough\nend")
	assert.False(t, errs.HasAny())
	assert.Equal(t, "matched\n", read())
}

func TestExecuteSwitchWildcardCase(t *testing.T) {
	ex, read := newTestExecutor(t)
	_, errs := ex.Execute("switch foo.txt\ncase '*.txt'\necho is-text\nend")
	assert.False(t, errs.HasAny())
	assert.Equal(t, "is-text\n", read())
}

func TestExecuteFunctionDefinitionAndCall(t *testing.T) {
	ex, read := newTestExecutor(t)
	_, errs := ex.Execute("function greet\necho hello $argv[1]\nend\ngreet world")
	assert.False(t, errs.HasAny())
	assert.Equal(t, "hello world\n", read())
}

func TestExecuteAndOrShortCircuit(t *testing.T) {
	ex, read := newTestExecutor(t)
	_, errs := ex.Execute("true; and echo ran")
	assert.False(t, errs.HasAny())
	assert.Equal(t, "ran\n", read())
}

func TestExecuteOrSkipsOnSuccess(t *testing.T) {
	ex, read := newTestExecutor(t)
	_, errs := ex.Execute("true; or echo skipped")
	assert.False(t, errs.HasAny())
	assert.Equal(t, "", read())
}

func TestExecutePipeline(t *testing.T) {
	ex, read := newTestExecutor(t)
	status, errs := ex.Execute("echo hello | cat")
	assert.False(t, errs.HasAny())
	assert.Equal(t, 0, status)
	assert.Equal(t, "hello\n", read())
}

func TestExecuteCdBuiltin(t *testing.T) {
	dir := t.TempDir()
	ex, _ := newTestExecutor(t)
	sub := dir + "/child"
	require.NoError(t, os.Mkdir(sub, 0o755))
	status, errs := ex.Execute("cd " + sub)
	assert.False(t, errs.HasAny())
	assert.Equal(t, 0, status)
	assert.Equal(t, sub, ex.Cwd)
}

func TestExecuteSetAndExpand(t *testing.T) {
	ex, read := newTestExecutor(t)
	_, errs := ex.Execute("set x hello; echo $x")
	assert.False(t, errs.HasAny())
	assert.Equal(t, "hello\n", read())
}

func TestRunCapturedCommandSubstitution(t *testing.T) {
	ex, read := newTestExecutor(t)
	_, errs := ex.Execute(`echo (echo inner)`)
	assert.False(t, errs.HasAny())
	assert.Equal(t, "inner\n", read())
}

func TestExecuteParseErrorStopsEvaluation(t *testing.T) {
	ex, read := newTestExecutor(t)
	_, errs := ex.Execute("end")
	assert.True(t, errs.HasAny())
	assert.Equal(t, "", read())
}

func TestExecuteBreakOutsideLoopReportsError(t *testing.T) {
	// Semantic errors are still reported, but per spec.md they are
	// reported at parse time rather than silently accepted.
	ex, _ := newTestExecutor(t)
	_, errs := ex.Execute("break")
	assert.True(t, errs.HasAny())
}
