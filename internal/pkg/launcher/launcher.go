// Package launcher implements C3: splitting a command line typed at
// `e4s-cl launch` into the launcher invocation (mpirun/srun/aprun/jsrun
// and their flags) and the application it ultimately runs, per
// spec.md §4.3.
//
// Each supported launcher registers an arity table mapping its flags to
// the number of values each consumes, ported from
// original_source/e4s_cl/cf/launchers/*.py. The generic splitting
// algorithm lives here; per-launcher files only supply the table.
package launcher

import (
	"fmt"
	"path/filepath"
	"regexp"
)

// Spec is a launcher's flag-arity table: how many values follow each
// flag before the next token is itself a flag or the application.
type Spec struct {
	// Names are the executable basenames this launcher answers to
	// (SCRIPT_NAMES in the Python source).
	Names []string
	// Arguments maps a flag to the count of values it consumes.
	Arguments map[string]int
	// ReservedDirectories are paths this launcher's runtime owns and
	// that must never be bound over (slurm.py's META.reserved_directories).
	ReservedDirectories []string
}

var registry = map[string]*Spec{}

// Register adds a launcher's spec to the registry, keyed by every name
// in spec.Names. Called from each launcher file's init().
func Register(spec *Spec) {
	for _, name := range spec.Names {
		registry[name] = spec
	}
}

// Lookup returns the registered Spec for an executable path's basename,
// or nil if cmd names an unrecognized launcher.
func Lookup(cmd []string) *Spec {
	if len(cmd) == 0 {
		return nil
	}
	return registry[filepath.Base(cmd[0])]
}

// ReservedDirectories returns the paths cmd's launcher reserves for its
// own runtime, empty if cmd's launcher is unregistered or has none.
func ReservedDirectories(cmd []string) []string {
	spec := Lookup(cmd)
	if spec == nil {
		return nil
	}
	return spec.ReservedDirectories
}

var longOptionWithValue = regexp.MustCompile(`^--[-A-Za-z0-9]+=.*$`)

// Parse separates a command line into the launcher invocation and the
// application it launches, consulting spec's arity table. It mirrors
// original_source/e4s_cl/cf/launchers/__init__.py's Parser.parse: the
// executable itself always belongs to the launcher side, then flags are
// consumed one at a time using their registered arity until an
// unrecognized token is reached.
func (s *Spec) Parse(cmd []string) (launcherArgs, application []string) {
	if len(cmd) == 0 {
		return nil, nil
	}

	position := 1
	launcherArgs = append(launcherArgs, cmd[0])

	for position < len(cmd) {
		flag := cmd[position]

		toSkip, known := s.Arguments[flag]
		if !known {
			if longOptionWithValue.MatchString(flag) {
				toSkip = 0
			} else {
				break
			}
		}

		end := position + toSkip + 1
		if end > len(cmd) {
			end = len(cmd)
		}
		launcherArgs = append(launcherArgs, cmd[position:end]...)
		position = end
	}

	return launcherArgs, cmd[position:]
}

// FilterArguments splits cmd into tokens recognized by spec's arity
// table and tokens that are not, preserving each recognized flag's
// consumed values alongside it. Ported from filter_arguments in
// original_source/e4s_cl/cf/launchers/__init__.py; used when forwarding
// only the launcher-native subset of arguments to a backend.
func (s *Spec) FilterArguments(cmd []string) (valid, foreign []string) {
	tokens := append([]string(nil), cmd...)
	for len(tokens) > 0 {
		token := tokens[0]
		tokens = tokens[1:]

		toConsume, known := s.Arguments[token]
		if !known {
			foreign = append(foreign, token)
			continue
		}
		if toConsume > len(tokens) {
			toConsume = len(tokens)
		}
		valid = append(valid, token)
		valid = append(valid, tokens[:toConsume]...)
		tokens = tokens[toConsume:]
	}
	return valid, foreign
}

// Interpret tries, in order: an explicit `--` boundary (everything
// before is launcher, everything after is application); a recognized
// launcher name at cmd[0], delegated to its Spec.Parse; or, failing
// both, spec.md §4.3's "Unknown launcher" fallback: the first token is
// taken to be the launcher and everything else the program.
func Interpret(cmd []string) (launcherArgs, application []string, err error) {
	if len(cmd) == 0 {
		return nil, nil, nil
	}

	for i, tok := range cmd {
		if tok == "--" {
			return cmd[:i], cmd[i+1:], nil
		}
	}

	spec := Lookup(cmd)
	if spec == nil {
		return cmd[:1], cmd[1:], nil
	}

	launcherArgs, application = spec.Parse(cmd)
	return launcherArgs, application, nil
}

// ErrUnsupported reports an executable that names a launcher-looking
// program e4s-cl has no arity table for.
type ErrUnsupported struct{ Name string }

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("launcher %q is not supported", e.Name)
}
