//go:build !windows

package jobexec

import (
	"errors"
	"os"
	"os/exec"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// setProcessGroup puts a child in its own process group before it
// execs, the way every job-controlling shell does it: the group is
// created from the child's own eventual pid (Setpgid with Pgid 0), so
// every stage of a pipeline can be moved into one shared group via
// Pgid below once the first stage's pid is known.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
}

// joinProcessGroup assigns an already-started child to an existing
// process group, used for every stage after the first in a pipeline so
// the whole job shares one pgid.
func joinProcessGroup(pid, pgid int) error {
	return unix.Setpgid(pid, pgid)
}

// setForegroundGroup hands the controlling terminal to pgid, the
// job-control dance a shell performs before letting a foreground job
// run and must undo afterward by handing it back to its own pgid.
func setForegroundGroup(logger *zap.Logger, pgid int) {
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return
	}
	defer tty.Close()
	if err := unix.IoctlSetPointerInt(int(tty.Fd()), unix.TIOCSPGRP, pgid); err != nil {
		logger.Debug("tcsetpgrp failed", zap.Error(err), zap.Int("pgid", pgid))
	}
}

// isControllingTerminal reports whether f is a tty, used to decide
// whether a foreground job is also a JobTerminal one that should take
// over tcsetpgrp, versus a foreground job running with stdin/stdout
// redirected (e.g. from a script) that never should.
func isControllingTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// reclaimForegroundGroup hands the controlling terminal back to the
// shell's own process group, undoing setForegroundGroup once a
// foreground job has finished.
func reclaimForegroundGroup(logger *zap.Logger) {
	setForegroundGroup(logger, unix.Getpgrp())
}

// isEAGAIN reports whether err is the EAGAIN a fork() can transiently
// fail with under memory or process-count pressure, the condition
// spawnExternal retries on.
func isEAGAIN(err error) bool {
	return errors.Is(err, unix.EAGAIN)
}
