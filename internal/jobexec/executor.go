// Package jobexec implements the executor (spec.md §4.D): it walks the
// flat shtypes.Tree a parse produces and runs it, owning the job/process
// bookkeeping, the block-statement scope stack, and process-group/
// terminal-control discipline.
package jobexec

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/diillson/wrensh/internal/env"
	"github.com/diillson/wrensh/internal/expand"
	"github.com/diillson/wrensh/internal/metrics"
	"github.com/diillson/wrensh/internal/parsetree"
	"github.com/diillson/wrensh/internal/shellconfig"
	"github.com/diillson/wrensh/internal/shellerr"
	"github.com/diillson/wrensh/internal/shtypes"
	"github.com/diillson/wrensh/internal/token"
)

// Executor is the single owner of the shell's mutable runtime state: the
// variable environment, the current directory, and the block scope
// stack. It is not safe for concurrent Execute calls (spec.md §5: one
// writer), but RunCaptured — used for nested command substitution — is
// called reentrantly on the same goroutine stack, never concurrently.
type Executor struct {
	Env     *env.Environment
	Cwd     string
	Logger  *zap.Logger
	Metrics *metrics.JobMetrics
	Config  *shellconfig.Manager

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	functions map[string]*functionDef
	blocks    []*shtypes.Block
	jobIDSeq  int

	// jobsMu guards jobs, the table of currently-running background
	// jobs (spec.md §4.D: "Job table: owned by the main thread;
	// background threads do not inspect it" — the goroutine running a
	// background pipeline only ever removes its own entry).
	jobsMu sync.Mutex
	jobs   map[int]*bgJob

	lastStatus int
	cancelled  bool

	// unwind carries a break/continue/return in flight up through every
	// enclosing execJobList/execStatement call until the construct that
	// can actually catch it (the nearest loop, or the function boundary)
	// does so and clears it.
	unwind unwindKind
}

type unwindKind int

const (
	unwindNone unwindKind = iota
	unwindBreak
	unwindContinue
	unwindReturn
)

type functionDef struct {
	name string
	body string // source text of the function body, re-parsed on each call
}

// bgJob pairs a job-table entry with the channel its runner closes
// once every stage has completed, so the wait builtin can block on it.
type bgJob struct {
	job  *shtypes.Job
	done chan int
}

func New(e *env.Environment, cwd string, logger *zap.Logger, m *metrics.JobMetrics, cfg *shellconfig.Manager) *Executor {
	return &Executor{
		Env:       e,
		Cwd:       cwd,
		Logger:    logger,
		Metrics:   m,
		Config:    cfg,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		functions: make(map[string]*functionDef),
		blocks:    []*shtypes.Block{{Type: shtypes.BlockTop}},
		jobs:      make(map[int]*bgJob),
	}
}

// registerJob adds j to the job table under a fresh ID and returns the
// entry's done channel, on which completeJob sends the job's final
// status before closing it.
func (ex *Executor) registerJob(j *shtypes.Job) (int, chan int) {
	ex.jobsMu.Lock()
	defer ex.jobsMu.Unlock()
	ex.jobIDSeq++
	j.JobID = ex.jobIDSeq
	entry := &bgJob{job: j, done: make(chan int, 1)}
	ex.jobs[j.JobID] = entry
	return j.JobID, entry.done
}

// completeJob removes a job from the table and, unless SkipNotification
// is set, prints a one-line notification if it exited abnormally, per
// spec.md §4.D.
func (ex *Executor) completeJob(id int, status int) {
	ex.jobsMu.Lock()
	entry, ok := ex.jobs[id]
	delete(ex.jobs, id)
	ex.jobsMu.Unlock()
	if !ok {
		return
	}
	entry.done <- status
	close(entry.done)
	if status != 0 && !entry.job.Flags.Has(shtypes.JobSkipNotification) {
		fmt.Fprintf(ex.Stderr, "wrensh: job %d, '%s' ended with status %d\n", entry.job.JobID, entry.job.CommandSource, status)
	}
}

// BackgroundJobs returns a snapshot of the currently running background
// jobs, for the jobs/wait builtins.
func (ex *Executor) BackgroundJobs() []*shtypes.Job {
	ex.jobsMu.Lock()
	defer ex.jobsMu.Unlock()
	out := make([]*shtypes.Job, 0, len(ex.jobs))
	for _, entry := range ex.jobs {
		out = append(out, entry.job)
	}
	return out
}

// WaitJob blocks until job id completes, returning its final status
// and whether it was found running at all.
func (ex *Executor) WaitJob(id int) (int, bool) {
	ex.jobsMu.Lock()
	entry, ok := ex.jobs[id]
	ex.jobsMu.Unlock()
	if !ok {
		return 0, false
	}
	status, ok := <-entry.done
	return status, ok
}

// WaitAll blocks until every currently-registered background job has
// completed.
func (ex *Executor) WaitAll() {
	for _, j := range ex.BackgroundJobs() {
		ex.WaitJob(j.JobID)
	}
}

func (ex *Executor) maxFunctionDepth() int {
	if ex.Config != nil {
		return ex.Config.GetInt("WRENSH_MAX_FUNCTION_DEPTH", 128)
	}
	return 128
}

func (ex *Executor) topBlock() *shtypes.Block { return ex.blocks[len(ex.blocks)-1] }

func (ex *Executor) pushBlock(b *shtypes.Block) { ex.blocks = append(ex.blocks, b) }

func (ex *Executor) popBlock() {
	ex.blocks = ex.blocks[:len(ex.blocks)-1]
}

func (ex *Executor) functionDepth() int {
	n := 0
	for _, b := range ex.blocks {
		if b.Type == shtypes.BlockFunction {
			n++
		}
	}
	return n
}

// FunctionNames lists the currently defined function names, for the
// completion/highlighting engine's command-position validation.
func (ex *Executor) FunctionNames() []string {
	names := make([]string, 0, len(ex.functions))
	for name := range ex.functions {
		names = append(names, name)
	}
	return names
}

// IsFunction reports whether name is a currently defined function.
func (ex *Executor) IsFunction(name string) bool {
	_, ok := ex.functions[name]
	return ok
}

// Execute tokenizes, parses, and runs one top-level line of input,
// returning the resulting $status and any syntax/semantic errors found
// before execution began.
func (ex *Executor) Execute(src string) (int, shellerr.List) {
	toks := token.Tokenize(src, 0)
	tree, errs := parsetree.Parse(src, toks, 0)
	if errs.HasAny() {
		ex.lastStatus = 1
		return 1, errs
	}
	status := ex.execJobList(&tree, 0, src)
	ex.lastStatus = status
	return status, nil
}

// RunCaptured implements expand.Runner for nested command substitution:
// it runs source to completion with stdout captured through a pipe and
// returns it split into lines.
func (ex *Executor) RunCaptured(source string) ([]string, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	sub := *ex
	sub.Stdout = w
	sub.blocks = append([]*shtypes.Block{}, ex.blocks...)

	done := make(chan struct{})
	var lines []string
	go func() {
		defer close(done)
		data, _ := readAllClose(r)
		text := strings.TrimRight(string(data), "\n")
		if text != "" {
			lines = strings.Split(text, "\n")
		}
	}()

	toks := token.Tokenize(source, 0)
	tree, errs := parsetree.Parse(source, toks, 0)
	if !errs.HasAny() {
		sub.execJobList(&tree, 0, source)
	}
	w.Close()
	<-done
	return lines, nil
}

func readAllClose(f *os.File) ([]byte, error) {
	defer f.Close()
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := f.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return buf, nil
}

func (ex *Executor) newExpander() *expand.Expander {
	return &expand.Expander{Env: ex.Env.Snapshot(), Cwd: ex.Cwd, Runner: ex}
}

// expandWords expands an ArgOrRedirList/ArgumentList node's Argument
// children into final argv words, in order.
func (ex *Executor) expandWords(tree *shtypes.Tree, listIdx int, src string) ([]string, shellerr.List) {
	x := ex.newExpander()
	var out []string
	var errs shellerr.List
	for _, ci := range tree.Children(listIdx) {
		n := tree.Nodes[ci]
		if n.Type != shtypes.NodeArgument {
			continue
		}
		words, e := x.Expand(n.Text(src))
		errs = append(errs, e.Translate(n.SourceStart-0)...)
		out = append(out, words...)
	}
	return out, errs
}

// wildcardNoMatchStatus inspects errs for a CodeWildcardNoMatch failure;
// if one is present it is reported on errOut and the status the caller
// must abort the job with (without running it) is returned. abort is
// false when nothing in errs calls for an abort, in which case status is
// meaningless.
func (ex *Executor) wildcardNoMatchStatus(errs shellerr.List, errOut *os.File) (status int, abort bool) {
	for _, e := range errs {
		if e.Code == shellerr.CodeWildcardNoMatch {
			fmt.Fprintf(errOut, "%s\n", e.Text)
			return int(shtypes.ExitUnmatchedWild), true
		}
	}
	return 0, false
}

// execJobList runs every Job (and, via nested blocks, the Jobs inside
// them) in source order, honoring break/continue/return propagation
// from the current topBlock.
func (ex *Executor) execJobList(tree *shtypes.Tree, idx int, src string) int {
	status := ex.lastStatus
	for _, ci := range tree.Children(idx) {
		n := tree.Nodes[ci]
		switch n.Type {
		case shtypes.NodeJob:
			status = ex.execJob(tree, ci, src)
			ex.lastStatus = status
			if ex.shouldUnwind() {
				return status
			}
		}
	}
	return status
}

// shouldUnwind reports whether a break/continue/return is in flight, so
// callers up the call stack stop running further statements until the
// construct that can catch it does so.
func (ex *Executor) shouldUnwind() bool {
	return ex.cancelled || ex.unwind != unwindNone
}

// execJob runs one pipeline: a Job node's children are a sequence of
// statement nodes separated by Pipe terminals, with an optional
// trailing Background terminal. and/or short-circuit is not handled
// here: "and"/"or" are the job's leading statement wrapping another
// statement, and execBoolStatement decides whether to run it.
func (ex *Executor) execJob(tree *shtypes.Tree, idx int, src string) int {
	children := tree.Children(idx)
	var stages []int
	background := false
	for _, ci := range children {
		n := tree.Nodes[ci]
		if n.Type == shtypes.NodeTerminal {
			if n.TermKind == shtypes.TokBackground {
				background = true
			}
			continue
		}
		stages = append(stages, ci)
	}
	if len(stages) == 0 {
		return 0
	}
	if ex.Metrics != nil {
		ex.Metrics.JobsStarted.Inc()
	}
	start := time.Now()
	status := ex.runPipeline(tree, stages, src, background)
	if ex.Metrics != nil {
		ex.Metrics.JobDuration.Observe(time.Since(start).Seconds())
		class := "ok"
		if status != 0 {
			class = "error"
		}
		ex.Metrics.JobsCompleted.WithLabelValues(class).Inc()
	}
	return status
}

// execStatement executes one Statement-grammar node (BoolStatement,
// BlockStatement, IfStatement, SwitchStatement, or DecoratedStatement),
// writing to out and reading from in when it isn't a real external
// process (those connect the fds directly instead). pg is the enclosing
// pipeline's process-group coordinator, non-nil only when this call is
// itself one stage of a runPipeline job.
func (ex *Executor) execStatement(tree *shtypes.Tree, idx int, src string, in, out, errOut *os.File, pg *pgroup) int {
	n := tree.Nodes[idx]
	switch n.Type {
	case shtypes.NodeBoolStatement:
		return ex.execBoolStatement(tree, idx, src, in, out, errOut, pg)
	case shtypes.NodeIfStatement:
		return ex.execIfStatement(tree, idx, src)
	case shtypes.NodeSwitchStatement:
		return ex.execSwitchStatement(tree, idx, src)
	case shtypes.NodeBlockStatement:
		return ex.execBlockStatement(tree, idx, src)
	case shtypes.NodeDecoratedStatement:
		return ex.execDecoratedStatement(tree, idx, src, in, out, errOut, pg)
	default:
		return 0
	}
}

func (ex *Executor) execBoolStatement(tree *shtypes.Tree, idx int, src string, in, out, errOut *os.File, pg *pgroup) int {
	n := tree.Nodes[idx]
	children := tree.Children(idx)
	if len(children) < 2 {
		return 0
	}
	inner := children[1]
	switch n.Tag {
	case shtypes.TagBoolNot:
		s := ex.execStatement(tree, inner, src, in, out, errOut, pg)
		if s == 0 {
			return 1
		}
		return 0
	case shtypes.TagBoolAnd:
		if ex.lastStatus != 0 {
			return ex.lastStatus
		}
		return ex.execStatement(tree, inner, src, in, out, errOut, pg)
	case shtypes.TagBoolOr:
		if ex.lastStatus == 0 {
			return ex.lastStatus
		}
		return ex.execStatement(tree, inner, src, in, out, errOut, pg)
	default:
		return ex.execStatement(tree, inner, src, in, out, errOut, pg)
	}
}
