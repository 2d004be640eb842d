package entry

import (
	"strings"
	"testing"
)

func TestRenderOrdersStepsPerSpec(t *testing.T) {
	script, err := Render(Params{
		HostLibraryBindDir: "/.e4s-cl/hostlibs",
		Source:             "/home/user/setup.sh",
		PreloadLibraries:   []string{"/lib/libfoo.so"},
		Command:            []string{"mpi_app", "--flag"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	ldLibIdx := strings.Index(script, "LD_LIBRARY_PATH")
	sourceIdx := strings.Index(script, ". '/home/user/setup.sh'")
	preloadIdx := strings.Index(script, "LD_PRELOAD")
	execIdx := strings.Index(script, "exec 'mpi_app' '--flag'")

	if ldLibIdx < 0 || sourceIdx < 0 || preloadIdx < 0 || execIdx < 0 {
		t.Fatalf("expected every step present, got:\n%s", script)
	}
	if !(ldLibIdx < sourceIdx && sourceIdx < preloadIdx && preloadIdx < execIdx) {
		t.Fatalf("expected steps in spec order, got:\n%s", script)
	}
}

func TestRenderWithoutSourceOrPreload(t *testing.T) {
	script, err := Render(Params{
		HostLibraryBindDir: "/.e4s-cl/hostlibs",
		Command:            []string{"hostname"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(script, "LD_PRELOAD") {
		t.Fatalf("expected no LD_PRELOAD export when no libraries are preloaded:\n%s", script)
	}
	if !strings.Contains(script, "exec 'hostname'") {
		t.Fatalf("expected a direct exec, got:\n%s", script)
	}
}

func TestRenderWithWi4mpiExecsThroughWrapper(t *testing.T) {
	script, err := Render(Params{
		HostLibraryBindDir: "/.e4s-cl/hostlibs",
		Wi4mpiRoot:         "/opt/wi4mpi",
		Wi4mpiFrom:         "openmpi",
		Wi4mpiTo:           "mpich",
		Wi4mpiWrapperBin:   "/opt/wi4mpi/bin/wi4mpi",
		Command:            []string{"mpi_app"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(script, "WI4MPI_ROOT") || !strings.Contains(script, `exec "$WI4MPI_WRAPPER_BIN" 'mpi_app'`) {
		t.Fatalf("expected wi4mpi exec-through, got:\n%s", script)
	}
}

func TestRenderRejectsEmptyCommand(t *testing.T) {
	if _, err := Render(Params{}); err == nil {
		t.Fatal("expected an error for an empty command")
	}
}

func TestShellQuoteEscapesSingleQuotes(t *testing.T) {
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Fatalf("unexpected quoting: %q", got)
	}
}
