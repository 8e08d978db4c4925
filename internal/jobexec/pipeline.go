package jobexec

import (
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/diillson/wrensh/internal/shtypes"
)

// maxForkRetries and forkRetryDelay bound spawnExternal's retry of a
// fork() that failed with EAGAIN: the kernel can transiently refuse a
// new process under memory or process-count pressure even though the
// command itself is perfectly runnable.
const (
	maxForkRetries = 5
	forkRetryDelay = time.Millisecond
)

// pgroup coordinates process-group assignment across one pipeline's
// external stages so the whole job shares a single pgid: whichever
// stage forks first creates the group from its own pid, and every later
// stage joins that group once it is known. For a Foreground+Terminal
// job it also hands the controlling terminal to the group the moment it
// exists, per the job-control contract a real shell honors.
type pgroup struct {
	job *shtypes.Job
	mu  sync.Mutex
}

func newPgroup(job *shtypes.Job) *pgroup {
	return &pgroup{job: job}
}

// start forks cmd under the job's shared process group and records it
// as one of the job's Processes, returning the index of that record so
// the caller can fill in its exit status once the process is reaped.
func (pg *pgroup) start(cmd *exec.Cmd, logger *zap.Logger) (procIdx int, err error) {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	leader := pg.job.Pgid == 0
	if leader {
		setProcessGroup(cmd)
	}
	if err := cmd.Start(); err != nil {
		return -1, err
	}

	if leader {
		pg.job.Pgid = cmd.Process.Pid
		if pg.job.Flags.Has(shtypes.JobForeground) && pg.job.Flags.Has(shtypes.JobTerminal) {
			setForegroundGroup(logger, pg.job.Pgid)
		}
	} else if jerr := joinProcessGroup(cmd.Process.Pid, pg.job.Pgid); jerr != nil {
		logger.Debug("joining pipeline process group failed", zap.Error(jerr),
			zap.Int("pid", cmd.Process.Pid), zap.Int("pgid", pg.job.Pgid))
	}

	idx := len(pg.job.Processes)
	pg.job.Processes = append(pg.job.Processes, shtypes.Process{Kind: shtypes.ProcExternal, Argv: cmd.Args, Pid: cmd.Process.Pid})
	return idx, nil
}

// finish records a spawned stage's reaped exit status against the
// Process record start returned, making Job.Completed/FinalStatus
// meaningful for jobs with external stages.
func (pg *pgroup) finish(procIdx, status int) {
	if procIdx < 0 {
		return
	}
	pg.mu.Lock()
	defer pg.mu.Unlock()
	pg.job.Processes[procIdx].Completed = true
	pg.job.Processes[procIdx].ExitStatus = status
}

// runPipeline runs every stage in stages concurrently, wiring each
// stage's stdout to the next stage's stdin through an os.Pipe, exactly
// as a real shell does; only the final stage's exit status is returned
// to the caller (a background job returns 0 at once and reports the
// final stage's status when it completes). A
// Foreground job running against a real controlling terminal takes
// tcsetpgrp discipline over it for the duration and hands it back once
// every stage has been reaped.
func (ex *Executor) runPipeline(tree *shtypes.Tree, stages []int, src string, background bool) int {
	n := len(stages)
	ins := make([]*os.File, n)
	outs := make([]*os.File, n)

	ins[0] = ex.Stdin
	outs[n-1] = ex.Stdout
	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			ex.Logger.Error("pipe creation failed", zap.Error(err))
			return 1
		}
		outs[i] = w
		ins[i+1] = r
	}

	job := &shtypes.Job{CommandSource: tree.Nodes[stages[0]].Text(src)}
	if !background {
		job.Flags |= shtypes.JobForeground
		if isControllingTerminal(ex.Stdin) {
			job.Flags |= shtypes.JobControlled | shtypes.JobTerminal
		}
	}
	pg := newPgroup(job)

	results := make([]int, n)
	var wg sync.WaitGroup
	runStage := func(i int) {
		defer wg.Done()
		results[i] = ex.execStatement(tree, stages[i], src, ins[i], outs[i], ex.Stderr, pg)
		if i > 0 {
			ins[i].Close()
		}
		if i < n-1 {
			outs[i].Close()
		}
	}

	if background {
		id, _ := ex.registerJob(job)
		wg.Add(n)
		go func() {
			for i := 0; i < n; i++ {
				go runStage(i)
			}
			wg.Wait()
			ex.completeJob(id, results[n-1])
		}()
		return 0
	}

	wg.Add(n)
	for i := 0; i < n; i++ {
		go runStage(i)
	}
	wg.Wait()
	if job.Flags.Has(shtypes.JobTerminal) && job.Pgid != 0 {
		reclaimForegroundGroup(ex.Logger)
	}
	return results[n-1]
}

// spawnExternal runs argv as a real child process, connecting the given
// fds directly (no goroutine needed: the kernel owns the data flow). A
// fork that fails with EAGAIN is retried, up to maxForkRetries attempts
// in all, with forkRetryDelay between attempts, each retry counted
// against the ForkRetries metric.
func (ex *Executor) spawnExternal(path string, argv []string, io IOFiles, pg *pgroup) int {
	var lastErr error
	for attempt := 0; attempt < maxForkRetries; attempt++ {
		cmd := exec.Command(path, argv[1:]...)
		cmd.Stdin = io.In
		cmd.Stdout = io.Out
		cmd.Stderr = io.Err
		cmd.ExtraFiles = io.Extra
		cmd.Dir = ex.Cwd
		cmd.Env = ex.envPairs()

		var procIdx int
		var err error
		if pg != nil {
			procIdx, err = pg.start(cmd, ex.Logger)
		} else {
			setProcessGroup(cmd)
			procIdx = -1
			err = cmd.Start()
		}
		if err != nil {
			if isEAGAIN(err) && attempt < maxForkRetries-1 {
				lastErr = err
				if ex.Metrics != nil {
					ex.Metrics.ForkRetries.Inc()
				}
				time.Sleep(forkRetryDelay)
				continue
			}
			return int(shtypes.ExitNotExecutable)
		}

		if ex.Metrics != nil {
			ex.Metrics.ProcessesForked.Inc()
		}

		status := 0
		if waitErr := cmd.Wait(); waitErr != nil {
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				status = exitErr.ExitCode()
			} else {
				status = int(shtypes.ExitNotExecutable)
			}
		}
		if pg != nil {
			pg.finish(procIdx, status)
		}
		return status
	}
	ex.Logger.Error("fork retries exhausted", zap.Error(lastErr), zap.String("path", path))
	return int(shtypes.ExitNotExecutable)
}

func (ex *Executor) envPairs() []string {
	names := ex.Env.Names()
	out := make([]string, 0, len(names))
	for _, name := range names {
		if v, ok := ex.Env.Get(name); ok {
			out = append(out, name+"="+joinScalar(v))
		}
	}
	return out
}

func joinScalar(v []string) string {
	if len(v) == 0 {
		return ""
	}
	s := v[0]
	for _, e := range v[1:] {
		s += " " + e
	}
	return s
}

// IOFiles bundles the three standard streams a stage runs with, plus any
// fd>=3 targets resolved from its redirections (exec.Cmd.ExtraFiles).
type IOFiles struct {
	In, Out, Err *os.File
	Extra        []*os.File
}
