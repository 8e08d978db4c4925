package shtypes

// ProcessKind distinguishes how a pipeline stage is run.
type ProcessKind int

const (
	ProcExternal ProcessKind = iota
	ProcBuiltin
	ProcFunction
	ProcBlock
	ProcExec
)

// ExitCode is the shell's own alphabet of well-known exit statuses
// layered on top of whatever the last process in a pipeline returned.
type ExitCode int

const (
	ExitGenericError  ExitCode = 1
	ExitUnmatchedWild ExitCode = 124
	ExitNotExecutable ExitCode = 126
	ExitUnknownCmd    ExitCode = 127
)

// Process is a single stage of a Job. The executor in internal/jobexec
// resolves commands as it runs each stage and does not fill in
// ActualPath.
type Process struct {
	Kind       ProcessKind
	Argv       []string
	ActualPath string
	IOChain    IOChain

	Pid       int
	Completed bool
	Stopped   bool
	ExitStatus int

	// Next indexes the following stage in the owning Job.Processes
	// slice, or -1 if this is the last stage. Processes are also simply
	// ordered in that slice; Next exists so algorithms that walk the
	// pipeline structurally (mirroring the original linked list) don't
	// need to special-case slice indexing. The executor in
	// internal/jobexec walks the slice and does not set Next.
	Next int
}
