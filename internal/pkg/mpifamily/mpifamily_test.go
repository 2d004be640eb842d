package mpifamily

import "testing"

func TestMatchTableFromSpecExamples(t *testing.T) {
	cases := map[string]string{
		"Open MPI v4.1.2":           "openmpi",
		"HYDRA build details:":      "mpich",
		"MVAPICH2 Version":          "mvapich",
		"":                          "",
		"some unrecognized banner":  "",
	}
	for input, want := range cases {
		if got := Match(input); got != want {
			t.Errorf("Match(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMatchPrefersCrayMpichOverGenericMpich(t *testing.T) {
	if got := Match("CRAY MPICH version 8.1.0"); got != "mpich" {
		t.Fatalf("Match(CRAY MPICH) = %q, want mpich", got)
	}
}

func TestTranslationRequiredExplicitFromForcesWhenContainerDiffers(t *testing.T) {
	required, family := TranslationRequired("mpich", "Open MPI v4.1.2", "Open MPI v4.1.2")
	if !required || family != "mpich" {
		t.Fatalf("expected explicit --from to force translation, got required=%v family=%q", required, family)
	}
}

func TestTranslationRequiredExplicitFromShortCircuitsWhenContainerAlreadyMatches(t *testing.T) {
	required, family := TranslationRequired("mpich", "Open MPI v4.1.2", "CRAY MPICH version 8.1.0")
	if required || family != "" {
		t.Fatalf("expected explicit --from to short-circuit when the container already advertises mpich, got required=%v family=%q", required, family)
	}
}

func TestTranslationRequiredSameFamilyNoTranslation(t *testing.T) {
	required, _ := TranslationRequired("", "Open MPI v4.1.2", "Open MPI v3.0.0")
	if required {
		t.Fatal("expected no translation when host and container families match")
	}
}

func TestTranslationRequiredDifferentFamilies(t *testing.T) {
	required, family := TranslationRequired("", "Open MPI v4.1.2", "MVAPICH2 Version 2.3")
	if !required || family != "openmpi" {
		t.Fatalf("expected translation from openmpi, got required=%v family=%q", required, family)
	}
}

func TestTranslationRequiredUnknownFamilySkipsTranslation(t *testing.T) {
	required, _ := TranslationRequired("", "garbage", "also garbage")
	if required {
		t.Fatal("expected no translation when neither family resolves")
	}
}
