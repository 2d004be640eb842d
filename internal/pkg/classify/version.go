package classify

import (
	"debug/elf"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// glibcTextPattern matches a GLIBC_x.y[.z] token in a probe's captured
// text output, tiebreak.go's container-side counterpart to this file's
// ELF-based GlibcVersions.
var glibcTextPattern = regexp.MustCompile(`GLIBC_[0-9]+\.[0-9]+(?:\.[0-9]+)?`)

// VersionSet is the set of versioned symbols a library exports, read
// from its .gnu.version_d section (spec.md §4.1's tie-break: "Version is
// the set of versioned symbols exported in the .gnu.version_d section").
type VersionSet map[string]bool

// GlibcVersions opens path and returns the set of GLIBC_x.y version
// strings it defines.
func GlibcVersions(path string) (VersionSet, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	syms, err := f.DynamicSymbols()
	if err != nil {
		return nil, err
	}

	set := VersionSet{}
	for _, s := range syms {
		if strings.HasPrefix(s.Version, "GLIBC_") {
			set[s.Version] = true
		}
	}
	return set, nil
}

// subsetOf reports whether a is a (non-strict) subset of b.
func (a VersionSet) subsetOf(b VersionSet) bool {
	for v := range a {
		if !b[v] {
			return false
		}
	}
	return true
}

func parseGlibcVersion(tag string) (major, minor int, ok bool) {
	rest := strings.TrimPrefix(tag, "GLIBC_")
	parts := strings.SplitN(rest, ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return major, minor, true
}

func (a VersionSet) max() (string, bool) {
	var best string
	bestMajor, bestMinor := -1, -1
	found := false
	for v := range a {
		major, minor, ok := parseGlibcVersion(v)
		if !ok {
			continue
		}
		if major > bestMajor || (major == bestMajor && minor > bestMinor) {
			best, bestMajor, bestMinor, found = v, major, minor, true
		}
	}
	return best, found
}

// Newer reports whether b is newer than a, per spec.md §4.1: one set
// strictly containing the other decides it; otherwise compare the
// lexicographically greatest GLIBC_x.y symbol of each.
func Newer(a, b VersionSet) bool {
	if len(a) == 0 && len(b) == 0 {
		return false
	}
	if a.subsetOf(b) && !b.subsetOf(a) {
		return true
	}
	if b.subsetOf(a) && !a.subsetOf(b) {
		return false
	}

	aMax, aOK := a.max()
	bMax, bOK := b.max()
	if !aOK {
		return bOK
	}
	if !bOK {
		return false
	}

	aMajor, aMinor, _ := parseGlibcVersion(aMax)
	bMajor, bMinor, _ := parseGlibcVersion(bMax)
	if bMajor != aMajor {
		return bMajor > aMajor
	}
	return bMinor > aMinor
}

// sortedVersionList is used only for deterministic debug output.
func sortedVersionList(v VersionSet) []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
