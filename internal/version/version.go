// Package version carries build metadata injected via -ldflags, the
// way the teacher's version package does, trimmed to just the fields
// the core's tools (wrensh, wrensh-indent, wrensh-pager --version)
// need — the teacher's GitHub latest-release HTTP checker has no
// analog in a local shell core and is not carried (see DESIGN.md).
package version

var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// String renders the one-line --version output shared by all three
// cmd/ entry points.
func String(program string) string {
	return program + " " + Version + " (" + CommitHash + ", built " + BuildDate + ")"
}
