// Package classify implements C1: turning a bag of raw observed paths
// (from the tracer, C2) into the disjoint {libraries, files, directories}
// triple of spec.md §3/§4.1, completing the library set by walking ELF
// DT_NEEDED graphs to a fixed point, and performing the host/container
// soname tie-break of spec.md §4.1's table.
//
// Grounded on internal/pkg/util/paths/resolve.go's debug/elf-based
// approach to ELF introspection (open, check machine, walk symlinks).
package classify

import (
	"path/filepath"
	"sort"

	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
)

// Kind identifies the disjoint category a Path record falls into.
type Kind int

const (
	KindLibrary Kind = iota
	KindFile
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindLibrary:
		return "LIBRARY"
	case KindDirectory:
		return "DIRECTORY"
	default:
		return "FILE"
	}
}

// Path is the Path record of spec.md §3.
type Path struct {
	Kind     Kind
	HostPath string
	Soname   string
	Realpath string
	Needed   []string
}

// Key returns the deduplication key of spec.md §3's invariant: soname if
// present, else realpath.
func (p Path) Key() string {
	if p.Soname != "" {
		return p.Soname
	}
	return p.Realpath
}

// Policy carries the configurable inputs to classification (spec.md
// §4.1): the host rootfs to resolve against, an optional probe of the
// container's own rootfs (used by the tie-break, not classification
// itself), the LD_LIBRARY_PATH captured at detect time, and the set of
// path prefixes known to be container-only and therefore dropped
// unconditionally rather than treated as "missing on host".
type Policy struct {
	HostRootfs            string
	LDLibraryPath         []string
	ContainerOnlyPrefixes []string
	SystemSearchDirs      []string

	// ContainerRootfsProbe runs a short shell script inside the target
	// container and returns its captured output, or "" on failure. Set
	// by C9 (backed by container.Backend.RunScript) before calling
	// TieBreak; left nil during ordinary Classify calls, which never
	// need it.
	ContainerRootfsProbe ContainerProbe
}

// ContainerProbe runs script inside a container and returns its
// captured stdout. Declared as a function type rather than an
// import of internal/pkg/container so this package stays free of a
// dependency it only needs for one optional, C9-only operation.
type ContainerProbe func(script string) string

// DefaultContainerOnlyPrefixes matches spec.md §4.1 rule 1's example.
var DefaultContainerOnlyPrefixes = []string{"/.e4s-cl", "/.singularity.d"}

// DefaultSystemSearchDirs is consulted after RPATH/RUNPATH/LD_LIBRARY_PATH
// when resolving DT_NEEDED entries (spec.md §4.1 "Library completion").
var DefaultSystemSearchDirs = []string{"/lib", "/lib64", "/usr/lib", "/usr/lib64"}

// Result is the disjoint classification output plus any warnings
// collected along the way (spec.md §4.1's failure semantics: skip and
// report, never abort the whole run).
type Result struct {
	Libraries  []Path
	Files      []Path
	Directories []Path
	Warnings   []e4serr.ClassificationWarning
}

func isContainerOnly(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || (len(path) > len(p) && path[:len(p)] == p && path[len(p)] == '/') {
			return true
		}
	}
	return false
}

// Classify implements spec.md §4.1's classification rules and library
// completion, returning a disjoint, deduplicated triple.
func Classify(paths []string, policy Policy) Result {
	if policy.ContainerOnlyPrefixes == nil {
		policy.ContainerOnlyPrefixes = DefaultContainerOnlyPrefixes
	}
	if policy.SystemSearchDirs == nil {
		policy.SystemSearchDirs = DefaultSystemSearchDirs
	}

	var res Result
	libsByKey := map[string]Path{}
	filesByKey := map[string]Path{}
	dirsByKey := map[string]Path{}

	classifyOne := func(raw string) {
		if isContainerOnly(raw, policy.ContainerOnlyPrefixes) {
			return
		}
		rec, warn, ok := classifyPath(raw)
		if warn != nil {
			res.Warnings = append(res.Warnings, *warn)
		}
		if !ok {
			return
		}
		switch rec.Kind {
		case KindLibrary:
			libsByKey[rec.Key()] = rec
		case KindDirectory:
			dirsByKey[rec.Key()] = rec
		default:
			filesByKey[rec.Key()] = rec
		}
	}

	for _, p := range paths {
		classifyOne(p)
	}

	// Library completion: walk DT_NEEDED to a fixed point. The work list
	// is a set keyed by soname, not a stack, so cyclic DT_NEEDED graphs
	// (spec.md §9) terminate naturally.
	visited := map[string]bool{}
	for {
		added := false
		for key, lib := range libsByKey {
			if visited[key] {
				continue
			}
			visited[key] = true
			for _, needed := range lib.Needed {
				if _, have := libsByKey[needed]; have {
					continue
				}
				resolved, err := resolveNeeded(needed, lib, policy)
				if err != nil {
					res.Warnings = append(res.Warnings, e4serr.ClassificationWarning{
						Path:   needed,
						Reason: "unresolved DT_NEEDED dependency: " + err.Error(),
					})
					continue
				}
				rec, warn, ok := classifyPath(resolved)
				if warn != nil {
					res.Warnings = append(res.Warnings, *warn)
				}
				if ok && rec.Kind == KindLibrary {
					libsByKey[rec.Key()] = rec
					added = true
				}
			}
		}
		if !added {
			break
		}
	}

	// A path must never appear in both libraries and files (spec.md §3).
	for key := range libsByKey {
		delete(filesByKey, key)
	}

	res.Libraries = sortedValues(libsByKey)
	res.Files = sortedValues(filesByKey)
	res.Directories = sortedValues(dirsByKey)
	return res
}

func sortedValues(m map[string]Path) []Path {
	out := make([]Path, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// searchDirs builds the dynamic-linker search order for resolving a
// dependent library's DT_NEEDED entries: its own RPATH/RUNPATH, then the
// LD_LIBRARY_PATH captured at detect time, then the system default
// search dirs (spec.md §4.1). The ldconfig cache is not part of this
// list; resolveNeeded consults it after every directory has missed.
func searchDirs(dependent Path, policy Policy) []string {
	var dirs []string
	dirs = append(dirs, rpath(dependent)...)
	dirs = append(dirs, policy.LDLibraryPath...)
	dirs = append(dirs, policy.SystemSearchDirs...)
	return dirs
}

func resolveNeeded(soname string, dependent Path, policy Policy) (string, error) {
	for _, dir := range searchDirs(dependent, policy) {
		candidate := filepath.Join(dir, soname)
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	if p, ok := ldconfigCache()[soname]; ok {
		return p, nil
	}
	return "", errNotFound(soname)
}
