package container

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBindOptimizationMergesNestedBind(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "sub", "libfoo.so")
	if err := os.MkdirAll(filepath.Dir(lib), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(lib, nil, 0644); err != nil {
		t.Fatal(err)
	}

	b := newBase("image")
	b.bindFile(dir, dir, ReadOnly)
	b.bindFile(lib, lib, ReadWrite)

	bound := b.bound()
	if len(bound) != 1 {
		t.Fatalf("expected the nested bind to merge into the containing one, got %+v", bound)
	}
	if bound[0].Access != ReadWrite {
		t.Fatalf("expected the merged bind to take the more permissive access level, got %v", bound[0].Access)
	}
}

func TestBindSkipsMissingSource(t *testing.T) {
	b := newBase("image")
	b.bindFile("/does/not/exist", "/does/not/exist", ReadOnly)

	if bound := b.bound(); len(bound) != 0 {
		t.Fatalf("expected missing source to be dropped, got %+v", bound)
	}
}

func TestNewUnsupportedBackend(t *testing.T) {
	if _, err := New("not-a-backend", "image"); err == nil {
		t.Fatal("expected an error for an unregistered backend name")
	}
}

func TestDummyBackendRecordsCommand(t *testing.T) {
	backend, err := New("dummy", "image")
	if err != nil {
		t.Fatal(err)
	}

	code, err := backend.Run([]string{"hostname"})
	if err != nil || code != 0 {
		t.Fatalf("dummy backend should always succeed, got code=%d err=%v", code, err)
	}

	d := backend.(*dummyBackend)
	if len(d.LastCommand) != 1 || d.LastCommand[0] != "hostname" {
		t.Fatalf("expected dummy backend to record its command, got %v", d.LastCommand)
	}
}

func TestSupportsFileBindingFalseOnlyForShifter(t *testing.T) {
	for _, name := range append(ExposedBackends(), "dummy") {
		backend, err := New(name, "image")
		if err != nil {
			t.Fatal(err)
		}
		want := name != "shifter"
		if got := backend.SupportsFileBinding(); got != want {
			t.Fatalf("%s.SupportsFileBinding() = %v, want %v", name, got, want)
		}
	}
}

func TestDummyImageVersionInfoIsBestEffortEmpty(t *testing.T) {
	backend, err := New("dummy", "image")
	if err != nil {
		t.Fatal(err)
	}
	if got := backend.ImageVersionInfo(); got != "" {
		t.Fatalf("expected the dummy backend to report no version info, got %q", got)
	}
}

func TestDummyRunScriptIsBestEffortEmpty(t *testing.T) {
	backend, err := New("dummy", "image")
	if err != nil {
		t.Fatal(err)
	}
	if got := backend.RunScript("echo hi"); got != "" {
		t.Fatalf("expected the dummy backend to report no script output, got %q", got)
	}
}

func TestExposedBackendsExcludesDummy(t *testing.T) {
	for _, name := range ExposedBackends() {
		if name == "dummy" {
			t.Fatalf("dummy backend must not be exposed")
		}
	}
}

func TestNewAppliesBackendConfigExtraArgs(t *testing.T) {
	backend, err := New("dummy", "image", BackendConfig{ExtraArgs: []string{"--foo", "bar"}})
	if err != nil {
		t.Fatal(err)
	}
	d := backend.(*dummyBackend)
	if len(d.extraArgs) != 2 || d.extraArgs[0] != "--foo" || d.extraArgs[1] != "bar" {
		t.Fatalf("expected extraArgs to be configured, got %v", d.extraArgs)
	}
}

func TestNewAppliesExecOptionsEnvironmentVariable(t *testing.T) {
	t.Setenv("E4S_CL_APPTAINER_EXEC_OPTIONS", "--fakeroot --bind /a:/b")

	backend, err := New("apptainer", "image")
	if err != nil {
		t.Fatal(err)
	}
	b := backend.(*apptainerBackend)
	want := []string{"--fakeroot", "--bind", "/a:/b"}
	if len(b.extraArgs) != len(want) {
		t.Fatalf("expected %v, got %v", want, b.extraArgs)
	}
	for i := range want {
		if b.extraArgs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, b.extraArgs)
		}
	}
}

func TestNewCombinesConfigAndEnvironmentExtraArgs(t *testing.T) {
	t.Setenv("E4S_CL_DOCKER_OPTIONS", "--privileged")

	backend, err := New("docker", "image", BackendConfig{ExtraArgs: []string{"--network=host"}})
	if err != nil {
		t.Fatal(err)
	}
	b := backend.(*dockerBackend)
	want := []string{"--network=host", "--privileged"}
	if len(b.extraArgs) != len(want) || b.extraArgs[0] != want[0] || b.extraArgs[1] != want[1] {
		t.Fatalf("expected config options before the environment override, got %v", b.extraArgs)
	}
}

func TestNewHonorsExecutableOverride(t *testing.T) {
	backend, err := New("shifter", "image", BackendConfig{Executable: "shifter-custom"})
	if err != nil {
		t.Fatal(err)
	}
	b := backend.(*shifterBackend)
	if got := b.execName("shifter"); got != "shifter-custom" {
		t.Fatalf("expected the configured executable to win, got %q", got)
	}
}
