package expand

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// expandTilde expands a leading "~" to $HOME, or "~name" to that user's
// home directory, generalizing internal/legacy/utils/path.go's
// ExpandPath (which only knew the process's own home) to the shell's
// own $HOME variable and to other users via os/user, since a shell's
// tilde expansion must honor whatever HOME the user has just set.
func (x *Expander) expandTilde(w string) string {
	if !strings.HasPrefix(w, "~") {
		return w
	}
	rest := w[1:]
	sep := strings.IndexByte(rest, '/')
	name, tail := rest, ""
	if sep >= 0 {
		name, tail = rest[:sep], rest[sep:]
	}

	var home string
	if name == "" {
		home = x.homeDir()
	} else if u, err := user.Lookup(name); err == nil {
		home = u.HomeDir
	} else {
		return w // ~unknownuser is left untouched, matching fish
	}
	return filepath.Join(home, tail)
}

func (x *Expander) homeDir() string {
	if x.Env != nil {
		if v, ok := x.Env.Get("HOME"); ok && len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return ""
}
