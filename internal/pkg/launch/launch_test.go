package launch

import (
	"strings"
	"testing"

	"github.com/E4S-Project/e4s-cl/internal/pkg/container"
	"github.com/E4S-Project/e4s-cl/internal/pkg/profile"
)

// fakeVersionBackend reports a fixed version banner from
// ImageVersionInfo, standing in for a real container runtime in tests
// that exercise resolveTranslation's family comparison.
type fakeVersionBackend struct {
	version string
}

func (f *fakeVersionBackend) Name() string                            { return "fake" }
func (f *fakeVersionBackend) BindFile(string, string, container.Access) {}
func (f *fakeVersionBackend) SetEnv(string, string)                   {}
func (f *fakeVersionBackend) AddLDPreload(string)                     {}
func (f *fakeVersionBackend) AddLDLibraryPath(string)                 {}
func (f *fakeVersionBackend) Run([]string) (int, error)               { return 0, nil }
func (f *fakeVersionBackend) SupportsFileBinding() bool               { return true }
func (f *fakeVersionBackend) ImageVersionInfo() string                { return f.version }
func (f *fakeVersionBackend) RunScript(string) string                 { return "" }
func (f *fakeVersionBackend) Configure(string, []string)              {}

func withFakeBackend(t *testing.T, version string) {
	t.Helper()
	original := newBackend
	newBackend = func(name, image string, cfg ...container.BackendConfig) (container.Backend, error) {
		return &fakeVersionBackend{version: version}, nil
	}
	t.Cleanup(func() { newBackend = original })
}

func withTempHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func withFakeSelf(t *testing.T) {
	t.Helper()
	original := selfExecutable
	selfExecutable = func(string) (string, error) { return "/usr/local/bin/e4s-cl", nil }
	t.Cleanup(func() { selfExecutable = original })
}

func TestResolveRewritesCommandWithSelectedProfile(t *testing.T) {
	withTempHome(t)
	withFakeSelf(t)

	if err := profile.Create(profile.User, profile.Profile{Name: "default"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := profile.Select("default"); err != nil {
		t.Fatalf("select: %v", err)
	}

	plan, err := Resolve([]string{"unknown-launcher-binary", "--", "a.out", "-x"}, Flags{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if plan.ProfileName != "default" {
		t.Fatalf("expected default profile, got %q", plan.ProfileName)
	}

	joined := strings.Join(plan.Command, " ")
	if !strings.Contains(joined, "/usr/local/bin/e4s-cl __execute --profile default -- a.out -x") {
		t.Fatalf("unexpected rewritten command: %v", plan.Command)
	}
}

func TestResolveFailsWithoutProfileOrSelection(t *testing.T) {
	withTempHome(t)
	withFakeSelf(t)

	if _, err := Resolve([]string{"mpirun", "--", "a.out"}, Flags{}); err == nil {
		t.Fatal("expected an error with no selected profile and no --profile flag")
	}
}

func TestResolveExplicitFromForcesTranslationWithNoImageToCompareAgainst(t *testing.T) {
	withTempHome(t)
	withFakeSelf(t)

	if err := profile.Create(profile.User, profile.Profile{Name: "p"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	plan, err := Resolve([]string{"--", "a.out"}, Flags{ProfileName: "p", From: "mpich"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if plan.TranslationFrom != "mpich" {
		t.Fatalf("expected explicit --from to propagate, got %q", plan.TranslationFrom)
	}
	if !strings.Contains(strings.Join(plan.Command, " "), "--from mpich") {
		t.Fatalf("expected --from mpich in rewritten command, got %v", plan.Command)
	}
}

func TestResolveExplicitFromForcesTranslationWhenContainerFamilyDiffers(t *testing.T) {
	withTempHome(t)
	withFakeSelf(t)
	withFakeBackend(t, "Open MPI v4.1.2")

	if err := profile.Create(profile.User, profile.Profile{Name: "p", Image: "image.sif", Backend: "docker"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	plan, err := Resolve([]string{"--", "a.out"}, Flags{ProfileName: "p", From: "mpich"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if plan.TranslationFrom != "mpich" {
		t.Fatalf("expected translation to still be forced when the container is openmpi, got %q", plan.TranslationFrom)
	}
}

func TestResolveExplicitFromShortCircuitsWhenContainerAlreadyMatches(t *testing.T) {
	withTempHome(t)
	withFakeSelf(t)
	withFakeBackend(t, "CRAY MPICH version 8.1.0")

	if err := profile.Create(profile.User, profile.Profile{Name: "p", Image: "image.sif", Backend: "docker"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	plan, err := Resolve([]string{"--", "a.out"}, Flags{ProfileName: "p", From: "mpich"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if plan.TranslationFrom != "" {
		t.Fatalf("expected no translation when the container already advertises mpich, got %q", plan.TranslationFrom)
	}
	if strings.Contains(strings.Join(plan.Command, " "), "--from") {
		t.Fatalf("expected no --from in rewritten command, got %v", plan.Command)
	}
}

func TestResolveRejectsEmptyApplication(t *testing.T) {
	withTempHome(t)
	withFakeSelf(t)

	if err := profile.Create(profile.User, profile.Profile{Name: "p"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := Resolve([]string{"--"}, Flags{ProfileName: "p"}); err == nil {
		t.Fatal("expected an error when there is nothing to run after the boundary")
	}
}

func TestResolveFlagOverridesImageAndBackend(t *testing.T) {
	withTempHome(t)
	withFakeSelf(t)

	if err := profile.Create(profile.User, profile.Profile{Name: "p", Image: "orig.sif"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := Resolve([]string{"--", "a.out"}, Flags{ProfileName: "p", Image: "override.sif", Backend: "dummy"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// The override is applied to a local copy of the profile inside Resolve,
	// not persisted; confirm the stored profile is unchanged.
	stored, _, err := profile.Get("p")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Image != "orig.sif" {
		t.Fatalf("expected stored profile to remain unmodified, got image=%q", stored.Image)
	}
}
