// Package entry synthesizes C6: the in-container entry script every
// rank execs into, ordered exactly per spec.md §4.6. Grounded on
// original_source/e4s_cl/cf/containers/apptainer.py's
// APPTAINERENV_LD_PRELOAD/LD_LIBRARY_PATH shaping for the variables it
// exports, with the script-building approach itself grounded on
// apptainer's internal/pkg/build/files/files.go, which hands a
// generated shell fragment to mvdan.cc/sh/v3/syntax to confirm it
// parses before use.
package entry

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/E4S-Project/e4s-cl/internal/pkg/buildcfg"
	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
)

// Params carries everything the script needs that the caller (C9)
// already resolved: the profile's source script and wi4mpi settings,
// the final bound library paths, and the user's command.
type Params struct {
	HostLibraryBindDir   string
	Source               string
	PreloadLibraries     []string
	Wi4mpiRoot           string
	Wi4mpiFrom           string
	Wi4mpiTo             string
	Wi4mpiWrapperBin     string
	Command              []string
}

// Render produces the entry script's text, following spec.md §4.6's
// five ordered steps.
func Render(p Params) (string, error) {
	if len(p.Command) == 0 {
		return "", e4serr.NewUserError("entry: no command to exec")
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# generated by e4s-cl, do not edit\n\n")

	fmt.Fprintf(&b, "export LD_LIBRARY_PATH=%s${LD_LIBRARY_PATH:+:$LD_LIBRARY_PATH}\n",
		shellQuote(p.HostLibraryBindDir))

	if p.Source != "" {
		fmt.Fprintf(&b, "\n. %s\n", shellQuote(p.Source))
	}

	if len(p.PreloadLibraries) > 0 {
		quoted := make([]string, len(p.PreloadLibraries))
		for i, lib := range p.PreloadLibraries {
			quoted[i] = shellQuote(lib)
		}
		fmt.Fprintf(&b, "\nexport LD_PRELOAD=%s\n", strings.Join(quoted, " "))
	}

	b.WriteString("\n")
	if p.Wi4mpiRoot != "" {
		fmt.Fprintf(&b, "export WI4MPI_ROOT=%s\n", shellQuote(p.Wi4mpiRoot))
		fmt.Fprintf(&b, "export WI4MPI_FROM=%s\n", shellQuote(p.Wi4mpiFrom))
		fmt.Fprintf(&b, "export WI4MPI_TO=%s\n", shellQuote(p.Wi4mpiTo))
		fmt.Fprintf(&b, "export WI4MPI_WRAPPER_BIN=%s\n", shellQuote(p.Wi4mpiWrapperBin))
		b.WriteString("exec \"$WI4MPI_WRAPPER_BIN\"")
	} else {
		b.WriteString("exec")
	}

	for _, arg := range p.Command {
		b.WriteByte(' ')
		b.WriteString(shellQuote(arg))
	}
	b.WriteByte('\n')

	script := b.String()
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), "entry"); err != nil {
		return "", e4serr.Wrap(err, "generated entry script does not parse")
	}
	return script, nil
}

// Path returns the fixed in-container location the script is deposited
// at, spec.md §4.6's "default /.e4s-cl/entry".
func Path() string {
	return buildcfg.EntryScriptPath()
}

// shellQuote wraps s in single quotes, escaping embedded single quotes
// POSIX-style, so every substituted value is safe regardless of
// whitespace or shell metacharacters it contains.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
