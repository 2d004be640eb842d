package classify

import "testing"

func TestTieBreakTable(t *testing.T) {
	older := VersionSet{"GLIBC_2.14": true}
	newer := VersionSet{"GLIBC_2.14": true, "GLIBC_2.17": true}

	cases := []struct {
		name             string
		hostPresent      bool
		containerPresent bool
		hostVersions     VersionSet
		containerVersions VersionSet
		want             BindDecision
	}{
		{"host only", true, false, nil, nil, BindHost},
		{"container only", false, true, nil, nil, KeepContainer},
		{"same version", true, true, older, older, BindHost},
		{"container strictly newer", true, true, older, newer, KeepContainer},
		{"host strictly newer", true, true, newer, older, BindHost},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := TieBreak(c.hostPresent, c.containerPresent, c.hostVersions, c.containerVersions)
			if got != c.want {
				t.Fatalf("TieBreak(%v, %v, ...) = %v, want %v", c.hostPresent, c.containerPresent, got, c.want)
			}
		})
	}
}

func TestNewerSubsetContainment(t *testing.T) {
	a := VersionSet{"GLIBC_2.14": true}
	b := VersionSet{"GLIBC_2.14": true, "GLIBC_2.17": true}

	if !Newer(a, b) {
		t.Fatalf("expected b (superset) to be newer than a")
	}
	if Newer(b, a) {
		t.Fatalf("expected a (subset) not to be newer than b")
	}
	if Newer(a, a) {
		t.Fatalf("identical sets must not be 'newer'")
	}
}

func TestClassifyIdempotent(t *testing.T) {
	// classify(classify(x).all) == classify(x), per spec.md §8. Since
	// Classify only ever adds transitive DT_NEEDED dependencies and
	// never removes a path already present, running it twice on a
	// fixed-point result must not grow or shrink the library set.
	paths := []string{"/nonexistent/libfoo.so.1"}
	first := Classify(paths, Policy{})

	var all []string
	for _, p := range first.Libraries {
		all = append(all, p.HostPath)
	}
	for _, p := range first.Files {
		all = append(all, p.HostPath)
	}
	for _, p := range first.Directories {
		all = append(all, p.HostPath)
	}

	second := Classify(all, Policy{})

	if len(second.Libraries) != len(first.Libraries) ||
		len(second.Files) != len(first.Files) ||
		len(second.Directories) != len(first.Directories) {
		t.Fatalf("classification is not idempotent: first=%+v second=%+v", first, second)
	}
}

func TestContainerOnlyPrefixDroppedUnconditionally(t *testing.T) {
	res := Classify([]string{"/.e4s-cl/entry", "/.singularity.d/libs/libfoo.so"}, Policy{})
	if len(res.Libraries)+len(res.Files)+len(res.Directories) != 0 {
		t.Fatalf("expected container-only prefixes to be dropped, got %+v", res)
	}
}
