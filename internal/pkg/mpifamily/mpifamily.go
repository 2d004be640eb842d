// Package mpifamily matches an MPI implementation's version-string
// banner against the coarse family names spec.md §4.8/§8 names, using
// the same vendor-substring approach as
// original_source/e4s_cl/cf/detect_mpi.py's VENDOR_VERSION_EXTRACTORS
// table, but matching directly against whatever version string the
// launcher binary or container already printed (spec.md §1's
// Non-goals explicitly push binary-level MPI fingerprinting out to the
// external helper binary; this package only ever sees text).
package mpifamily

import "regexp"

// entry pairs a pattern with the family name it resolves to. Order
// matters: more specific vendors (cray mpich, hydra) must be tried
// before the generic "mpich" pattern they'd otherwise also match.
type entry struct {
	pattern *regexp.Regexp
	family  string
}

var table = []entry{
	{regexp.MustCompile(`(?i)open\s*mpi`), "openmpi"},
	{regexp.MustCompile(`(?i)spectrum\s*mpi`), "openmpi"},
	{regexp.MustCompile(`(?i)intel\([Rr]\)\s*mpi|intel\s*mpi`), "intel"},
	{regexp.MustCompile(`(?i)cray\s*mpich|hydra`), "mpich"},
	{regexp.MustCompile(`(?i)mvapich`), "mvapich"},
	{regexp.MustCompile(`(?i)mpich`), "mpich"},
}

// Match resolves version to a family name per spec.md §8's table, or
// "" if nothing matches.
func Match(version string) string {
	for _, e := range table {
		if e.pattern.MatchString(version) {
			return e.family
		}
	}
	return ""
}

// TranslationRequired reports whether launching host family against a
// container advertising containerFamily requires the translation
// layer, per spec.md §4.8 step 3 and §9's resolution of the --from
// short-circuit question: an explicit --from still short-circuits when
// the container already advertises that same family; otherwise
// translation is needed only when both families resolved to something
// and they differ.
func TranslationRequired(explicitFrom, hostVersion, containerVersion string) (required bool, family string) {
	container := Match(containerVersion)

	if explicitFrom != "" {
		if container != "" && container == explicitFrom {
			return false, ""
		}
		return true, explicitFrom
	}

	host := Match(hostVersion)
	if host == "" || container == "" {
		return false, ""
	}
	if host == container {
		return false, ""
	}
	return true, host
}
