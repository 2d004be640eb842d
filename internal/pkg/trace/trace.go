// Package trace implements C2: running a child process under syscall
// interception and returning the ordered list of paths it (or any
// process it forks) opened, per spec.md §4.2.
//
// The implementation is a thin wrapper around the kernel's ptrace, per
// spec.md's design note ("do not attempt to re-implement full syscall
// decoding — only the path-accepting calls are of interest"). It is
// grounded on the syscall filter used by
// original_source/e4s_cl/cf/trace.py (python-ptrace's open/openat
// interception), generalized to the fuller syscall set spec.md names:
// open, openat, execve, the stat family, access, and readlink.
package trace

import (
	"context"
)

// Result is the outcome of one traced execution.
type Result struct {
	ExitStatus    int
	ObservedPaths []string
}

// ErrPtraceUnavailable is returned when ptrace cannot be used (missing
// permission, seccomp filtering it out). C7 surfaces this to the user
// suggesting the bare-bones backend as a fallback (spec.md §4.2).
type ErrPtraceUnavailable struct{ Cause error }

func (e *ErrPtraceUnavailable) Error() string {
	return "ptrace unavailable: " + e.Cause.Error()
}
func (e *ErrPtraceUnavailable) Unwrap() error { return e.Cause }

// Trace runs argv with env, attaching as tracer before the child execs,
// and returns every path observed across the process tree it spawns
// (spec.md §4.2). Cancellation of ctx propagates SIGTERM to the traced
// process group, escalating to SIGKILL after a bounded grace period
// (spec.md §4.2/§5).
//
// Trace blocks on waitpid for the duration of the traced execution
// (spec.md §5's scheduling model).
func Trace(ctx context.Context, argv []string, env []string) (Result, error) {
	return trace(ctx, argv, env)
}
