//go:build windows

package main

import "os"

// notifyWinch is a no-op on Windows, which has no SIGWINCH equivalent;
// the picker simply redraws at the layout computed at startup.
func notifyWinch(ch chan os.Signal) {}
