//go:build !windows

package main

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// notifyWinch arranges for ch to receive a value on every terminal
// resize, so the picker can recompute its column layout.
func notifyWinch(ch chan os.Signal) {
	signal.Notify(ch, unix.SIGWINCH)
}
