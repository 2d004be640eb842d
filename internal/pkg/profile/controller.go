package profile

import (
	"fmt"
	"sort"

	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
)

// Create inserts a new profile at level, rejecting a duplicate name at
// that level, ported from mvc/controller.py's create() (_check_unique)
// combined with model/profile.py's homogenize_files-on-create.
func Create(level Level, p Profile) error {
	p.homogenize()
	if err := p.Validate(); err != nil {
		return err
	}
	return Open(level).withLock(func(doc *document) (*document, error) {
		for _, existing := range doc.Profiles {
			if existing.Name == p.Name {
				return nil, e4serr.NewUserError("a profile named %q already exists", p.Name)
			}
		}
		doc.Profiles = append(doc.Profiles, p)
		return doc, nil
	})
}

// Get looks a profile up by name, checking the user store first and
// falling back to the system store, per spec.md §3's "the user store is
// checked first, falling back to the system store".
func Get(name string) (*Profile, Level, error) {
	for _, level := range []Level{User, System} {
		doc, err := Open(level).read()
		if err != nil {
			return nil, level, err
		}
		for _, p := range doc.Profiles {
			if p.Name == name {
				pCopy := p
				return &pCopy, level, nil
			}
		}
	}
	return nil, User, e4serr.NewUserError("no profile named %q", name)
}

// List returns every profile at level, or at both levels (user profiles
// shadowing system ones by name) when level is nil.
func List(level *Level) ([]Profile, error) {
	if level != nil {
		doc, err := Open(*level).read()
		if err != nil {
			return nil, err
		}
		return doc.Profiles, nil
	}

	byName := map[string]Profile{}
	for _, lvl := range []Level{System, User} {
		doc, err := Open(lvl).read()
		if err != nil {
			return nil, err
		}
		for _, p := range doc.Profiles {
			byName[p.Name] = p
		}
	}
	out := make([]Profile, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sortProfiles(out)
	return out, nil
}

// Update applies patch to the named profile in place, all-or-nothing:
// the patch is validated against a copy before being committed, so a
// patch that would violate spec.md §3's invariants is rejected without
// touching the stored document. Ported from mvc/controller.py's update().
func Update(name string, patch func(*Profile)) error {
	return Open(User).withLock(func(doc *document) (*document, error) {
		for i := range doc.Profiles {
			if doc.Profiles[i].Name != name {
				continue
			}
			candidate := doc.Profiles[i]
			patch(&candidate)
			candidate.homogenize()
			if err := candidate.Validate(); err != nil {
				return nil, err
			}
			doc.Profiles[i] = candidate
			return doc, nil
		}
		return nil, e4serr.NewUserError("no profile named %q in the user store", name)
	})
}

// Delete removes the named profile from the user store, unselecting it
// first if it was selected, ported from model/profile.py's
// ProfileController.delete (which must clear the selection before the
// record disappears, or a later Selected() would resolve to a ghost).
func Delete(name string) error {
	return Open(User).withLock(func(doc *document) (*document, error) {
		kept := doc.Profiles[:0]
		found := false
		for _, p := range doc.Profiles {
			if p.Name == name {
				found = true
				continue
			}
			kept = append(kept, p)
		}
		if !found {
			return nil, e4serr.NewUserError("no profile named %q in the user store", name)
		}
		doc.Profiles = kept
		if doc.Selected == name {
			doc.Selected = ""
		}
		return doc, nil
	})
}

// Select marks name as the active profile in the user store, requiring
// it to already exist somewhere (user or system store), per spec.md
// §3's "at most one selected profile per level" (only the user level
// carries a selection).
func Select(name string) error {
	if _, _, err := Get(name); err != nil {
		return err
	}
	return Open(User).withLock(func(doc *document) (*document, error) {
		doc.Selected = name
		return doc, nil
	})
}

// Unselect clears the active selection, a no-op if nothing is selected.
func Unselect() error {
	return Open(User).withLock(func(doc *document) (*document, error) {
		doc.Selected = ""
		return doc, nil
	})
}

// Selected returns the name of the currently-selected profile, or ""
// if none is selected.
func Selected() (string, error) {
	doc, err := Open(User).read()
	if err != nil {
		return "", err
	}
	return doc.Selected, nil
}

// Copy duplicates the profile named src under a new name dst in the
// user store, leaving src untouched, ported from the original CLI's
// `profile copy` command.
func Copy(src, dst string) error {
	p, _, err := Get(src)
	if err != nil {
		return err
	}
	clone := *p
	clone.Name = dst
	return Create(User, clone)
}

// Diff reports the libraries and files present in only one of two
// profiles (OnlyInA, OnlyInB, each sorted) and the backend, image and
// source fields whose values differ (Fields, keyed by field name).
type Diff struct {
	OnlyInA, OnlyInB []string
	Fields           map[string][2]string
}

func DiffProfiles(a, b Profile) Diff {
	keysA := map[string]bool{}
	for _, k := range sortedLibraryKeys(a.Libraries) {
		keysA[k] = true
	}
	for _, f := range a.Files {
		keysA[f.HostPath] = true
	}
	keysB := map[string]bool{}
	for _, k := range sortedLibraryKeys(b.Libraries) {
		keysB[k] = true
	}
	for _, f := range b.Files {
		keysB[f.HostPath] = true
	}

	d := Diff{Fields: map[string][2]string{}}
	for k := range keysA {
		if !keysB[k] {
			d.OnlyInA = append(d.OnlyInA, k)
		}
	}
	for k := range keysB {
		if !keysA[k] {
			d.OnlyInB = append(d.OnlyInB, k)
		}
	}
	sort.Strings(d.OnlyInA)
	sort.Strings(d.OnlyInB)

	if a.Backend != b.Backend {
		d.Fields["backend"] = [2]string{string(a.Backend), string(b.Backend)}
	}
	if a.Image != b.Image {
		d.Fields["image"] = [2]string{a.Image, b.Image}
	}
	if a.Source != b.Source {
		d.Fields["source"] = [2]string{a.Source, b.Source}
	}
	return d
}

// Dump renders every profile at level as a deterministically-ordered
// string, for the `profile dump` command, grounded on spec.md §6's
// "JSON serialization must use sorted keys for diffable dumps".
func Dump(level Level) ([]string, error) {
	doc, err := Open(level).read()
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(doc.Profiles))
	for _, p := range doc.Profiles {
		lines = append(lines, fmt.Sprintf("%s\tbackend=%s\timage=%s\tlibraries=%v\tfiles=%d",
			p.Name, p.Backend, p.Image, sortedLibraryKeys(p.Libraries), len(p.Files)))
	}
	return lines, nil
}
