package classify

import (
	"fmt"

	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

// BindDecision is the outcome of the host/container tie-break for one
// soname (spec.md §4.1's table, executed by C9 before binding).
type BindDecision int

const (
	// BindHost means bind the host copy into the container.
	BindHost BindDecision = iota
	// KeepContainer means leave the container's own copy alone.
	KeepContainer
)

func (d BindDecision) String() string {
	if d == KeepContainer {
		return "KEEP_CONTAINER"
	}
	return "BIND_HOST"
}

// TieBreak implements spec.md §4.1's host/container tie-break table.
// hostPresent/containerPresent report whether a library with this soname
// exists on each side; hostVersions/containerVersions are its exported
// GLIBC_x.y symbol sets, consulted only when both sides have the
// library.
func TieBreak(hostPresent, containerPresent bool, hostVersions, containerVersions VersionSet) BindDecision {
	switch {
	case hostPresent && !containerPresent:
		return BindHost
	case !hostPresent && containerPresent:
		return KeepContainer
	case Newer(hostVersions, containerVersions):
		// container version strictly newer than host: keep container's
		return KeepContainer
	default:
		// same version, or host newer: bind host copy
		return BindHost
	}
}

// ResolveBindSet applies TieBreak across every host library, using
// probe to read the container's own ldconfig cache and, for a soname
// present on both sides, the GLIBC_x.y symbols the container's copy
// exports — spec.md §4.9 step 3's "short in-container command via C4".
// A nil probe (no container reachable yet, or the backend offers none)
// binds every host library unconditionally.
func ResolveBindSet(hostLibs []Path, probe ContainerProbe) []Path {
	if probe == nil {
		return hostLibs
	}

	containerCache := parseLdconfigOutput(probe("ldconfig -p 2>/dev/null || true"))

	out := make([]Path, 0, len(hostLibs))
	for _, lib := range hostLibs {
		containerPath, containerPresent := containerCache[lib.Soname]

		hostVersions, _ := GlibcVersions(lib.Realpath)
		var containerVersions VersionSet
		if containerPresent {
			containerVersions = parseGlibcVersionText(probe(glibcProbeScript(containerPath)))
		}

		decision := TieBreak(true, containerPresent, hostVersions, containerVersions)
		sylog.Debugf("tie-break %s: host=%v container=%v (present=%v) -> %v",
			lib.Soname, sortedVersionList(hostVersions), sortedVersionList(containerVersions), containerPresent, decision)
		if decision == BindHost {
			out = append(out, lib)
		}
	}
	return out
}

// glibcProbeScript builds the in-container command that lists the
// GLIBC_x.y version symbols a resolved library exports, per spec.md
// §4.9 step 3.
func glibcProbeScript(path string) string {
	return fmt.Sprintf("strings %s 2>/dev/null | grep -o 'GLIBC_[0-9.]*' | sort -u", shellQuoteForProbe(path))
}

func shellQuoteForProbe(s string) string {
	out := "'"
	for _, r := range s {
		if r == '\'' {
			out += `'\''`
			continue
		}
		out += string(r)
	}
	return out + "'"
}

// parseGlibcVersionText turns a probe's captured "GLIBC_x.y" lines into
// a VersionSet, the container-side counterpart to GlibcVersions, which
// reads the same symbol names straight out of an ELF file's dynamic
// symbol table.
func parseGlibcVersionText(text string) VersionSet {
	set := VersionSet{}
	for _, m := range glibcTextPattern.FindAllString(text, -1) {
		set[m] = true
	}
	return set
}

// parseLdconfigOutput parses `ldconfig -p`'s output into a soname ->
// path map for the container-side probe above. elf.go's host-side
// ldconfigCache shares ldconfigLinePattern but not this function.
func parseLdconfigOutput(out string) map[string]string {
	cache := map[string]string{}
	for _, m := range ldconfigLinePattern.FindAllStringSubmatch(out, -1) {
		if _, ok := cache[m[1]]; !ok {
			cache[m[1]] = m[2]
		}
	}
	return cache
}
