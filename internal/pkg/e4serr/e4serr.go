// Package e4serr defines the typed error taxonomy described in spec.md
// §7: user errors, configuration errors, environment errors, and backend
// failures, each carrying the exit code the CLI should use.
//
// The taxonomy mirrors the exception hierarchy in
// original_source/e4s_cl/cf/containers/__init__.py (BackendError,
// BackendNotAvailableError, AnalysisError, ConfigurationError), translated
// from Python's catch-and-handle idiom to Go's error-value idiom.
package e4serr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Exit codes, per spec.md §6.
const (
	ExitSuccess     = 0
	ExitUserError   = 1
	ExitEnvironment = 2
)

// ExitCoder is implemented by every error in this package so the CLI's
// top-level handler (cmd/internal/cli) can compute a process exit code
// without a type switch per call site.
type ExitCoder interface {
	error
	ExitCode() int
}

// UserError is a bad flag, unknown profile, or missing command.
type UserError struct{ msg string }

func NewUserError(format string, args ...interface{}) *UserError {
	return &UserError{msg: fmt.Sprintf(format, args...)}
}
func (e *UserError) Error() string { return e.msg }
func (e *UserError) ExitCode() int { return ExitUserError }

// ConfigError is malformed YAML or an unknown backend name.
type ConfigError struct{ msg string }

func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}
func (e *ConfigError) Error() string { return e.msg }
func (e *ConfigError) ExitCode() int { return ExitUserError }

// EnvironmentError is a missing container runtime, missing launcher, or
// lack of ptrace permission.
type EnvironmentError struct {
	msg        string
	Remediation string
}

func NewEnvironmentError(remediation, format string, args ...interface{}) *EnvironmentError {
	return &EnvironmentError{msg: fmt.Sprintf(format, args...), Remediation: remediation}
}
func (e *EnvironmentError) Error() string {
	if e.Remediation == "" {
		return e.msg
	}
	return fmt.Sprintf("%s (%s)", e.msg, e.Remediation)
}
func (e *EnvironmentError) ExitCode() int { return ExitEnvironment }

// BackendFailure wraps a non-zero exit from a container backend or from
// the user's own program; its code is forwarded unchanged (spec.md §6/§7).
type BackendFailure struct {
	Code int
	msg  string
}

func NewBackendFailure(code int, format string, args ...interface{}) *BackendFailure {
	return &BackendFailure{Code: code, msg: fmt.Sprintf(format, args...)}
}
func (e *BackendFailure) Error() string { return e.msg }
func (e *BackendFailure) ExitCode() int { return e.Code }

// ClassificationWarning marks a non-fatal C1 issue (unresolvable
// DT_NEEDED, unreadable path). It is never returned as an error from a
// public API; callers collect these into a slice and log them.
type ClassificationWarning struct {
	Path   string
	Reason string
}

func (w ClassificationWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Reason)
}

// Wrap adds context to err using github.com/pkg/errors, matching the
// wrapping idiom used throughout the teacher's internal packages.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrapf(err, format, args...)
}

// CodeOf extracts the process exit code for a given error, defaulting to
// ExitUserError for untyped errors and ExitSuccess for nil.
func CodeOf(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitUserError
}
