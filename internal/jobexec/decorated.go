package jobexec

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/diillson/wrensh/internal/parsetree"
	"github.com/diillson/wrensh/internal/shtypes"
	"github.com/diillson/wrensh/internal/token"
)

// execDecoratedStatement resolves a command name to a function, a
// builtin, or an external process, honoring the command/builtin
// decoration keywords that force one resolution path over the others.
func (ex *Executor) execDecoratedStatement(tree *shtypes.Tree, idx int, src string, in, out, errOut *os.File, pg *pgroup) int {
	n := tree.Nodes[idx]
	var plainIdx = -1
	for _, ci := range tree.Children(idx) {
		if tree.Nodes[ci].Type == shtypes.NodePlainStatement {
			plainIdx = ci
		}
	}
	if plainIdx < 0 {
		return 0
	}
	plainChildren := tree.Children(plainIdx)
	if len(plainChildren) == 0 {
		return 0
	}
	name := tree.Nodes[plainChildren[0]].Text(src)

	x := ex.newExpander()
	var argv []string
	var ioListIdx = -1
	if len(plainChildren) > 1 {
		ioListIdx = plainChildren[1]
		words, werrs := ex.expandWords(tree, ioListIdx, src)
		if status, abort := ex.wildcardNoMatchStatus(werrs, errOut); abort {
			return status
		}
		argv = append([]string{name}, words...)
	} else {
		argv = []string{name}
	}

	newIn, newOut, newErr := in, out, errOut
	var extraFds []*os.File
	if ioListIdx >= 0 {
		chain, ioerrs := ex.buildIOChain(tree, ioListIdx, src, x)
		if status, abort := ex.wildcardNoMatchStatus(ioerrs, errOut); abort {
			return status
		}
		var opened []*os.File
		var err error
		newIn, newOut, newErr, extraFds, opened, err = applyIOChain(chain, in, out, errOut)
		defer func() {
			for _, f := range opened {
				f.Close()
			}
		}()
		if err != nil {
			ex.Logger.Error("redirection failed", zap.Error(err), zap.String("command", name))
			fmt.Fprintf(errOut, "%s: %v\n", name, err)
			return int(shtypes.ExitNotExecutable)
		}
	}

	io := IOFiles{newIn, newOut, newErr, extraFds}
	switch n.Tag {
	case shtypes.TagDecorationBuiltin:
		if fn, ok := builtinTable[name]; ok {
			return fn(ex, argv, io)
		}
		fmt.Fprintf(newErr, "%s: unknown builtin\n", name)
		return int(shtypes.ExitUnknownCmd)
	case shtypes.TagDecorationCommand:
		return ex.dispatchExternal(name, argv, io, pg)
	default:
		if fd, ok := ex.functions[name]; ok {
			return ex.callFunction(fd, argv, newIn, newOut, newErr)
		}
		if fn, ok := builtinTable[name]; ok {
			return fn(ex, argv, io)
		}
		return ex.dispatchExternal(name, argv, io, pg)
	}
}

// dispatchExternal resolves name against $PATH, falling back to
// fish's implicit-cd rule (a bare path to a directory changes into it)
// before giving up with "command not found".
func (ex *Executor) dispatchExternal(name string, argv []string, io IOFiles, pg *pgroup) int {
	path, err := exec.LookPath(name)
	if err != nil {
		candidate := name
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(ex.Cwd, candidate)
		}
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return builtinCd(ex, []string{"cd", name}, io)
		}
		fmt.Fprintf(io.Err, "%s: command not found\n", name)
		return int(shtypes.ExitUnknownCmd)
	}
	return ex.spawnExternal(path, argv, io, pg)
}

// defineFunction registers a function's body for later invocation; the
// body is re-tokenized and re-parsed each call rather than cached as a
// tree, matching how the rest of the executor always works from source
// text plus a fresh parse.
func (ex *Executor) defineFunction(tree *shtypes.Tree, headerIdx, bodyIdx int, src string) {
	children := tree.Children(headerIdx)
	var name string
	for _, ci := range children {
		if tree.Nodes[ci].Type == shtypes.NodeArgument {
			name = tree.Nodes[ci].Text(src)
			break
		}
	}
	if name == "" || bodyIdx < 0 {
		return
	}
	body := tree.Nodes[bodyIdx].Text(src)
	ex.functions[name] = &functionDef{name: name, body: body}
}

// callFunction runs a previously defined function body against a fresh
// $argv, tracking call depth via a BlockFunction scope entry so a
// runaway direct-or-indirect recursion is caught rather than blowing
// the Go call stack.
func (ex *Executor) callFunction(fd *functionDef, argv []string, in, out, errOut *os.File) int {
	if ex.functionDepth() >= ex.maxFunctionDepth() {
		fmt.Fprintf(errOut, "%s: function call depth exceeded\n", fd.name)
		return 1
	}

	prevArgv, hadArgv := ex.Env.Get("argv")
	ex.Env.Set("argv", argv[1:])
	defer func() {
		if hadArgv {
			ex.Env.Set("argv", prevArgv)
		} else {
			ex.Env.Unset("argv")
		}
	}()

	st := &shtypes.FunctionState{Name: fd.name, Argv: argv[1:], Depth: ex.functionDepth() + 1}
	ex.pushBlock(&shtypes.Block{Type: shtypes.BlockFunction, Function: st})
	defer ex.popBlock()

	toks := token.Tokenize(fd.body, 0)
	t, errs := parsetree.Parse(fd.body, toks, 0)
	if errs.HasAny() {
		return 1
	}

	prevIn, prevOut, prevErr := ex.Stdin, ex.Stdout, ex.Stderr
	ex.Stdin, ex.Stdout, ex.Stderr = in, out, errOut
	status := ex.execJobList(&t, 0, fd.body)
	ex.Stdin, ex.Stdout, ex.Stderr = prevIn, prevOut, prevErr

	if ex.unwind == unwindReturn {
		ex.unwind = unwindNone
	}
	return status
}
