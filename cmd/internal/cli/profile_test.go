package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/E4S-Project/e4s-cl/internal/pkg/profile"
)

func withTempHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestProfileCreateEditShowRoundTrip(t *testing.T) {
	withTempHome(t)

	profileCreateSystemFlagValue = false
	profileCreateBackendFlagValue = ""
	profileCreateImageFlagValue = ""
	profileCreateSourceFlagValue = ""
	profileCreateWi4mpiFlagValue = ""
	if err := profileCreateCmd.RunE(profileCreateCmd, []string{"p"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	fixture := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(fixture, []byte("x"), 0644); err != nil {
		t.Fatalf("writing fixture file: %v", err)
	}

	profileEditBackendFlagValue = ""
	profileEditImageFlagValue = ""
	profileEditSourceFlagValue = ""
	profileEditWi4mpiFlagValue = ""
	profileEditAddLibrariesValue = nil
	profileEditAddFilesValue = []string{fixture}
	if err := profileEditCmd.RunE(profileEditCmd, []string{"p"}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	p, _, err := profile.Get("p")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(p.Files) != 1 || p.Files[0].HostPath != fixture {
		t.Fatalf("expected the fixture file to be bound, got %+v", p.Files)
	}

	// Re-running the same --add-files edit must be idempotent: the
	// dedup-by-key merge in mergePathsByKey should not double the entry.
	if err := profileEditCmd.RunE(profileEditCmd, []string{"p"}); err != nil {
		t.Fatalf("second edit: %v", err)
	}
	p, _, err = profile.Get("p")
	if err != nil {
		t.Fatalf("get after second edit: %v", err)
	}
	if len(p.Files) != 1 {
		t.Fatalf("expected the add-files edit to be idempotent, got %+v", p.Files)
	}
}

func TestProfileCreateRejectsDuplicateName(t *testing.T) {
	withTempHome(t)

	profileCreateSystemFlagValue = false
	profileCreateBackendFlagValue = ""
	profileCreateImageFlagValue = ""
	profileCreateSourceFlagValue = ""
	profileCreateWi4mpiFlagValue = ""
	if err := profileCreateCmd.RunE(profileCreateCmd, []string{"dup"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := profileCreateCmd.RunE(profileCreateCmd, []string{"dup"}); err == nil {
		t.Fatal("expected an error creating a second profile with the same name")
	}
}
