// Package profile implements C5: the profile data model and its
// create/get/list/update/delete/select/unselect/selected/copy/diff/dump
// operations, persisted as one JSON document per storage level.
//
// Grounded on original_source/e4s_cl/model/profile.py (the attribute
// set, homogenize_files) and mvc/controller.py (create/delete/select/
// unselect/selected semantics), with TinyDB's table-of-records storage
// replaced per spec.md §4.5/§6 by a single sorted-key JSON document per
// level, written atomically and guarded by an advisory file lock.
package profile

import (
	"path/filepath"
	"sort"

	"github.com/E4S-Project/e4s-cl/internal/pkg/classify"
	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
)

// Backend names a profile's container backend, restricted to the set
// spec.md §3 enumerates.
type Backend string

const (
	BackendApptainer   Backend = "apptainer"
	BackendSingularity Backend = "singularity"
	BackendDocker      Backend = "docker"
	BackendPodman      Backend = "podman"
	BackendShifter     Backend = "shifter"
	BackendNone        Backend = "none"
)

var validBackends = map[Backend]bool{
	BackendApptainer: true, BackendSingularity: true, BackendDocker: true,
	BackendPodman: true, BackendShifter: true, BackendNone: true,
}

// Profile is spec.md §3's profile record, ported from
// model/profile.py's attributes().
type Profile struct {
	Name          string         `json:"name"`
	Backend       Backend        `json:"backend,omitempty"`
	Image         string         `json:"image,omitempty"`
	Libraries     []classify.Path `json:"libraries,omitempty"`
	Files         []classify.Path `json:"files,omitempty"`
	Source        string         `json:"source,omitempty"`
	Wi4mpi        string         `json:"wi4mpi,omitempty"`
	Wi4mpiOptions string         `json:"wi4mpi_options,omitempty"`
}

// homogenize cleans every file's host path lexically (filepath.Clean);
// relative paths stay relative. Ported from model/profile.py's
// homogenize_files.
func (p *Profile) homogenize() {
	for i := range p.Files {
		p.Files[i].HostPath = filepath.Clean(p.Files[i].HostPath)
	}
}

// Validate enforces spec.md §3's invariants that do not require store
// access (dedup by soname/realpath, disjointness of libraries/files,
// backend name membership). The wi4mpi-directory-layout invariant is
// checked by the wi4mpi package at install/use time instead, since it
// requires filesystem access this package has no business performing.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return e4serr.NewUserError("profile name must not be empty")
	}
	if p.Backend != "" && !validBackends[p.Backend] {
		return e4serr.NewConfigError("unknown backend %q", p.Backend)
	}

	seen := map[string]bool{}
	for _, lib := range p.Libraries {
		if lib.Kind != classify.KindLibrary {
			return e4serr.NewUserError("%s listed under libraries is not a library", lib.HostPath)
		}
		key := lib.Key()
		if seen[key] {
			return e4serr.NewUserError("duplicate library %s in profile %q", key, p.Name)
		}
		seen[key] = true
	}

	fileKeys := map[string]bool{}
	for _, f := range p.Files {
		fileKeys[f.HostPath] = true
	}
	for _, lib := range p.Libraries {
		if fileKeys[lib.HostPath] {
			return e4serr.NewUserError("%s appears in both libraries and files", lib.HostPath)
		}
	}

	return nil
}

// sortedLibraryKeys is used by diff/dump to produce deterministic
// output (spec.md §6's "JSON serialization must be deterministic").
func sortedLibraryKeys(paths []classify.Path) []string {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, p.Key())
	}
	sort.Strings(keys)
	return keys
}
