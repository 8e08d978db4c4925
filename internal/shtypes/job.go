package shtypes

// JobFlag is a bitmask of the control attributes described in spec.md §3.
type JobFlag uint16

const (
	JobForeground JobFlag = 1 << iota
	JobControlled
	JobTerminal
	JobNegated
	JobSkip
	JobSkipNotification
	JobWildcardError
	JobElseIfContinuation
)

func (f JobFlag) Has(bit JobFlag) bool { return f&bit != 0 }

// TerminalModes is an opaque slot for a snapshot of the tty's termios
// state; shtypes just carries the bytes so job bookkeeping doesn't need
// to import platform packages. The executor in internal/jobexec hands
// the terminal's process group over with tcsetpgrp but neither captures
// nor restores termios state, so this field stays empty.
type TerminalModes []byte

// Job is a pipeline: an ordered list of Processes linked by Next, plus
// the job-control bookkeeping the executor needs.
type Job struct {
	JobID         int
	CommandSource string
	Pgid          int
	Processes     []Process
	IOChain       IOChain
	Flags         JobFlag
	TModes        TerminalModes
}

func (j *Job) Completed() bool {
	if len(j.Processes) == 0 {
		return false
	}
	for i := range j.Processes {
		if !j.Processes[i].Completed {
			return false
		}
	}
	return true
}

// FinalStatus is the status of the last process, inverted if the job
// is Negated, per spec.md §4.D.
func (j *Job) FinalStatus() int {
	if len(j.Processes) == 0 {
		return 0
	}
	status := j.Processes[len(j.Processes)-1].ExitStatus
	if j.Flags.Has(JobNegated) {
		if status == 0 {
			return 1
		}
		return 0
	}
	return status
}
