package profile

import (
	"testing"

	"github.com/E4S-Project/e4s-cl/internal/pkg/classify"
)

func withTempHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestValidateRejectsEmptyName(t *testing.T) {
	p := Profile{}
	if err := p.Validate(); err == nil {
		t.Fatal("expected an error for an empty profile name")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	p := Profile{Name: "x", Backend: "not-a-backend"}
	if err := p.Validate(); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

func TestValidateRejectsDuplicateLibrary(t *testing.T) {
	lib := classify.Path{Kind: classify.KindLibrary, HostPath: "/lib/libfoo.so", Realpath: "/lib/libfoo.so.1"}
	p := Profile{Name: "x", Libraries: []classify.Path{lib, lib}}
	if err := p.Validate(); err == nil {
		t.Fatal("expected an error for a duplicate library")
	}
}

func TestValidateRejectsLibraryAlsoListedAsFile(t *testing.T) {
	p := Profile{
		Name:      "x",
		Libraries: []classify.Path{{Kind: classify.KindLibrary, HostPath: "/lib/libfoo.so"}},
		Files:     []classify.Path{{Kind: classify.KindFile, HostPath: "/lib/libfoo.so"}},
	}
	if err := p.Validate(); err == nil {
		t.Fatal("expected an error when a path appears under both libraries and files")
	}
}

func TestValidateRejectsNonLibraryKindUnderLibraries(t *testing.T) {
	p := Profile{
		Name:      "x",
		Libraries: []classify.Path{{Kind: classify.KindFile, HostPath: "/etc/foo.conf"}},
	}
	if err := p.Validate(); err == nil {
		t.Fatal("expected an error when a non-library Path is listed under Libraries")
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	withTempHome(t)

	if err := Create(User, Profile{Name: "alpha", Backend: BackendApptainer, Image: "img.sif"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, level, err := Get("alpha")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if level != User || got.Image != "img.sif" {
		t.Fatalf("unexpected profile: %+v level=%v", got, level)
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	withTempHome(t)

	if err := Create(User, Profile{Name: "alpha"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := Create(User, Profile{Name: "alpha"}); err == nil {
		t.Fatal("expected an error creating a second profile with the same name")
	}
}

func TestSelectUnselectAndSelected(t *testing.T) {
	withTempHome(t)

	if err := Create(User, Profile{Name: "alpha"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := Select("alpha"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if name, err := Selected(); err != nil || name != "alpha" {
		t.Fatalf("expected alpha selected, got %q err=%v", name, err)
	}
	if err := Unselect(); err != nil {
		t.Fatalf("unselect: %v", err)
	}
	if name, err := Selected(); err != nil || name != "" {
		t.Fatalf("expected nothing selected, got %q err=%v", name, err)
	}
}

func TestDeleteClearsSelection(t *testing.T) {
	withTempHome(t)

	if err := Create(User, Profile{Name: "alpha"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := Select("alpha"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := Delete("alpha"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if name, err := Selected(); err != nil || name != "" {
		t.Fatalf("expected selection cleared after delete, got %q err=%v", name, err)
	}
	if _, _, err := Get("alpha"); err == nil {
		t.Fatal("expected alpha to be gone after delete")
	}
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	withTempHome(t)

	if err := Create(User, Profile{Name: "alpha"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := Update("alpha", func(p *Profile) {
		p.Backend = "not-a-backend"
	})
	if err == nil {
		t.Fatal("expected an error for a patch that violates backend enum membership")
	}

	got, _, err := Get("alpha")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Backend != "" {
		t.Fatalf("expected the rejected patch to leave the stored profile untouched, got backend=%q", got.Backend)
	}
}

func TestUpdateAppliesValidPatch(t *testing.T) {
	withTempHome(t)

	if err := Create(User, Profile{Name: "alpha"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := Update("alpha", func(p *Profile) { p.Image = "new.sif" }); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _, err := Get("alpha")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Image != "new.sif" {
		t.Fatalf("expected image to be updated, got %q", got.Image)
	}
}

func TestCopyDuplicatesUnderNewName(t *testing.T) {
	withTempHome(t)

	if err := Create(User, Profile{Name: "alpha", Image: "img.sif"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := Copy("alpha", "beta"); err != nil {
		t.Fatalf("copy: %v", err)
	}

	orig, _, err := Get("alpha")
	if err != nil {
		t.Fatalf("get alpha: %v", err)
	}
	dup, _, err := Get("beta")
	if err != nil {
		t.Fatalf("get beta: %v", err)
	}
	if dup.Image != orig.Image {
		t.Fatalf("expected copy to preserve image, got %q vs %q", dup.Image, orig.Image)
	}
}

func TestDiffProfilesReportsAsymmetricDifference(t *testing.T) {
	a := Profile{
		Name: "a",
		Libraries: []classify.Path{
			{Kind: classify.KindLibrary, HostPath: "/lib/common.so", Realpath: "/lib/common.so"},
			{Kind: classify.KindLibrary, HostPath: "/lib/onlya.so", Realpath: "/lib/onlya.so"},
		},
	}
	b := Profile{
		Name: "b",
		Libraries: []classify.Path{
			{Kind: classify.KindLibrary, HostPath: "/lib/common.so", Realpath: "/lib/common.so"},
			{Kind: classify.KindLibrary, HostPath: "/lib/onlyb.so", Realpath: "/lib/onlyb.so"},
		},
	}

	onlyAKey := classify.Path{Kind: classify.KindLibrary, HostPath: "/lib/onlya.so", Realpath: "/lib/onlya.so"}.Key()
	onlyBKey := classify.Path{Kind: classify.KindLibrary, HostPath: "/lib/onlyb.so", Realpath: "/lib/onlyb.so"}.Key()

	d := DiffProfiles(a, b)
	if len(d.OnlyInA) != 1 || d.OnlyInA[0] != onlyAKey {
		t.Fatalf("unexpected OnlyInA: %v", d.OnlyInA)
	}
	if len(d.OnlyInB) != 1 || d.OnlyInB[0] != onlyBKey {
		t.Fatalf("unexpected OnlyInB: %v", d.OnlyInB)
	}
}

func TestListMergesLevelsUserShadowsSystem(t *testing.T) {
	withTempHome(t)

	if err := Create(User, Profile{Name: "alpha", Image: "user.sif"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	profiles, err := List(nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, p := range profiles {
		if p.Name == "alpha" {
			found = true
			if p.Image != "user.sif" {
				t.Fatalf("expected user-level profile, got image=%q", p.Image)
			}
		}
	}
	if !found {
		t.Fatal("expected alpha to be present in the merged list")
	}
}
