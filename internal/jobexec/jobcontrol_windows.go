//go:build windows

package jobexec

import (
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// setProcessGroup is a no-op on Windows, which has no POSIX process
// group / controlling-terminal model.
func setProcessGroup(cmd *exec.Cmd) {}

func joinProcessGroup(pid, pgid int) error { return nil }

func setForegroundGroup(logger *zap.Logger, pgid int) {}

func isControllingTerminal(f *os.File) bool { return false }

func reclaimForegroundGroup(logger *zap.Logger) {}

func isEAGAIN(err error) bool { return false }
