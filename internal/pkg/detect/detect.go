// Package detect implements C7: running a reference MPI execution
// under C2, classifying what it touched through C1, and merging the
// result into a profile via C5, per spec.md §4.7.
package detect

import (
	"context"
	"strings"

	"github.com/E4S-Project/e4s-cl/internal/pkg/classify"
	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	"github.com/E4S-Project/e4s-cl/internal/pkg/profile"
	"github.com/E4S-Project/e4s-cl/internal/pkg/trace"
	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

// Options carries the inputs detect needs beyond the target profile
// name, per spec.md §6's `init`/`detect` flags.
type Options struct {
	// Launcher is the sample invocation to trace, e.g.
	// ["mpirun", "-n", "2", probeBinary]. If empty, DefaultProbe is used.
	Launcher []string
	Env      []string
}

// DefaultProbe is the built-in MPI probe invoked when the user supplies
// no sample command, per spec.md §4.7 step 1's "or a built-in MPI probe
// binary that calls one point-to-point and one collective". The probe
// binary itself is an external collaborator (spec.md §1); this package
// only needs its path.
var DefaultProbe = []string{"e4s-cl-mpi-probe"}

// Run traces Options.Launcher (or DefaultProbe), classifies every path
// it observed, and merges the result into the named profile at level,
// creating the profile first if it does not exist. Per spec.md §4.7's
// retry policy, a classification with no libraries and no files is
// retried once before detect reports failure.
func Run(ctx context.Context, level profile.Level, name string, opts Options) error {
	launcher := opts.Launcher
	if len(launcher) == 0 {
		launcher = DefaultProbe
	}

	result, err := traceAndClassify(ctx, launcher, opts.Env)
	if err != nil {
		return err
	}

	if len(result.Libraries) == 0 && len(result.Files) == 0 {
		sylog.Warningf("detect: no libraries or files observed, retrying the same trace once")
		result, err = traceAndClassify(ctx, launcher, opts.Env)
		if err != nil {
			return err
		}
	}

	for _, w := range result.Warnings {
		sylog.Warningf("detect: rejected %s: %s", w.Path, w.Reason)
	}

	if len(result.Libraries) == 0 && len(result.Files) == 0 {
		return e4serr.NewEnvironmentError(
			"check ptrace permissions (CAP_SYS_PTRACE, yama ptrace_scope) or try the none backend",
			"detect: no libraries or files observed after retry")
	}

	return mergeIntoProfile(level, name, result)
}

func traceAndClassify(ctx context.Context, launcher []string, env []string) (classify.Result, error) {
	traced, err := trace.Trace(ctx, launcher, env)
	if err != nil {
		return classify.Result{}, err
	}
	if traced.ExitStatus != 0 {
		sylog.Warningf("detect: probe command exited with status %d", traced.ExitStatus)
	}

	return classify.Classify(traced.ObservedPaths, classify.Policy{
		LDLibraryPath: splitPathList(envValue(env, "LD_LIBRARY_PATH")),
	}), nil
}

func mergeIntoProfile(level profile.Level, name string, result classify.Result) error {
	_, _, err := profile.Get(name)
	if err != nil {
		if createErr := profile.Create(level, profile.Profile{Name: name}); createErr != nil {
			return createErr
		}
	}

	return profile.Update(name, func(p *profile.Profile) {
		p.Libraries = mergeByKey(p.Libraries, result.Libraries)
		p.Files = mergeByKey(p.Files, append(result.Files, result.Directories...))
	})
}

// mergeByKey unions existing and fresh, letting fresh win on key
// collisions, matching spec.md §3's dedup-by-key invariant.
func mergeByKey(existing, fresh []classify.Path) []classify.Path {
	byKey := map[string]classify.Path{}
	for _, p := range existing {
		byKey[p.Key()] = p
	}
	for _, p := range fresh {
		byKey[p.Key()] = p
	}
	out := make([]classify.Path, 0, len(byKey))
	for _, p := range byKey {
		out = append(out, p)
	}
	return out
}

func envValue(env []string, key string) string {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimPrefix(kv, prefix)
		}
	}
	return ""
}

func splitPathList(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ":")
}
