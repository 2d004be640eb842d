package detect

import (
	"testing"

	"github.com/E4S-Project/e4s-cl/internal/pkg/classify"
)

func TestMergeByKeyFreshWins(t *testing.T) {
	existing := []classify.Path{{Kind: classify.KindLibrary, HostPath: "/lib/a.so", Soname: "a.so", Realpath: "/lib/a.so"}}
	fresh := []classify.Path{{Kind: classify.KindLibrary, HostPath: "/lib/a.so.1", Soname: "a.so", Realpath: "/lib/a.so.1"}}

	merged := mergeByKey(existing, fresh)
	if len(merged) != 1 || merged[0].HostPath != "/lib/a.so.1" {
		t.Fatalf("expected fresh entry to win on key collision, got %+v", merged)
	}
}

func TestMergeByKeyUnionsDisjointSets(t *testing.T) {
	existing := []classify.Path{{Kind: classify.KindLibrary, Soname: "a.so"}}
	fresh := []classify.Path{{Kind: classify.KindLibrary, Soname: "b.so"}}

	if merged := mergeByKey(existing, fresh); len(merged) != 2 {
		t.Fatalf("expected union of disjoint sets, got %+v", merged)
	}
}

func TestEnvValueFindsKey(t *testing.T) {
	env := []string{"PATH=/bin", "LD_LIBRARY_PATH=/a:/b"}
	if got := envValue(env, "LD_LIBRARY_PATH"); got != "/a:/b" {
		t.Fatalf("envValue = %q, want /a:/b", got)
	}
	if got := envValue(env, "MISSING"); got != "" {
		t.Fatalf("expected empty string for missing key, got %q", got)
	}
}

func TestSplitPathListHandlesEmpty(t *testing.T) {
	if got := splitPathList(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := splitPathList("/a:/b"); len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Fatalf("unexpected split: %v", got)
	}
}
