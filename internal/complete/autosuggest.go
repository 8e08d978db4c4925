package complete

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/diillson/wrensh/internal/env"
)

// Autosuggester proposes a single continuation for the current command
// line from prior history, special-casing `cd` against $CDPATH per
// spec.md §4.E.
type Autosuggester struct {
	Env *env.Snapshot
	Cwd string
}

// Suggest returns line unchanged if it has no suggestion, or the full
// suggested line otherwise (never just the suffix, so callers always
// diff against the line they passed in).
func (a *Autosuggester) Suggest(line string, history []string) string {
	if fields := strings.Fields(line); len(fields) >= 1 && fields[0] == "cd" {
		if s := a.suggestCd(line, fields); s != "" {
			return s
		}
	}
	for i := len(history) - 1; i >= 0; i-- {
		if strings.HasPrefix(history[i], line) && history[i] != line {
			return history[i]
		}
	}
	return line
}

func (a *Autosuggester) suggestCd(line string, fields []string) string {
	if len(fields) < 2 {
		return ""
	}
	partial := fields[len(fields)-1]
	if partial == "" {
		return ""
	}

	dirs := a.cdpathDirs()
	var match string
	for _, base := range dirs {
		lookIn := filepath.Dir(filepath.Join(base, partial))
		prefix := filepath.Base(partial)
		entries, err := os.ReadDir(lookIn)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
				continue
			}
			candidate := filepath.Join(filepath.Dir(partial), e.Name())
			if match != "" && match != candidate {
				return "" // ambiguous prefix, spec requires uniqueness
			}
			match = candidate
		}
	}
	if match == "" {
		return ""
	}
	return line[:len(line)-len(partial)] + match + "/"
}

// cdpathDirs returns $CDPATH entries plus Cwd, CDPATH checked first so
// an explicit entry can shadow the working directory as fish does.
func (a *Autosuggester) cdpathDirs() []string {
	dirs := []string{a.Cwd}
	if v, ok := a.Env.GetScalar("CDPATH"); ok && v != "" {
		dirs = append(strings.Split(v, ":"), dirs...)
	}
	return dirs
}
