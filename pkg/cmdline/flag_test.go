package cmdline

import (
	"testing"

	"github.com/spf13/cobra"
)

func newTestCmd(name string) *cobra.Command {
	return &cobra.Command{Use: name}
}

func TestRegisterOnRejectsUnsupportedValueType(t *testing.T) {
	flag := &Flag{ID: "bad", Value: &cobra.Command{}, Name: "bad"}
	if err := flag.registerOn(newTestCmd("x")); err == nil {
		t.Fatal("expected an error for an unsupported flag value type")
	}
}

func TestRegisterOnEachSupportedType(t *testing.T) {
	var (
		s   string
		b   bool
		i   int
		u   uint32
		ss  []string
		sm  map[string]string
	)

	cases := []*Flag{
		{ID: "s", Value: &s, DefaultValue: "x", Name: "string-flag"},
		{ID: "b", Value: &b, DefaultValue: true, Name: "bool-flag"},
		{ID: "i", Value: &i, DefaultValue: 7, Name: "int-flag"},
		{ID: "u", Value: &u, DefaultValue: uint32(7), Name: "uint-flag"},
		{ID: "ss", Value: &ss, DefaultValue: []string{"a"}, Name: "slice-flag"},
		{ID: "sm", Value: &sm, DefaultValue: map[string]string{"k": "v"}, Name: "map-flag"},
	}

	cmd := newTestCmd("x")
	for _, f := range cases {
		if err := f.registerOn(cmd); err != nil {
			t.Errorf("%s: unexpected error: %v", f.Name, err)
		}
		if cmd.Flags().Lookup(f.Name) == nil {
			t.Errorf("%s: flag was not registered", f.Name)
		}
	}
}

func TestRegisterOnAppliesHiddenDeprecated(t *testing.T) {
	var s string
	cmd := newTestCmd("x")

	flag := &Flag{ID: "f", Value: &s, Name: "f", Hidden: true, Deprecated: "use g"}
	if err := flag.registerOn(cmd); err != nil {
		t.Fatalf("registerOn: %v", err)
	}
	pf := cmd.Flags().Lookup("f")
	if !pf.Hidden {
		t.Error("expected the flag to be marked hidden")
	}
	if pf.Deprecated == "" {
		t.Error("expected the flag to be marked deprecated")
	}
}

func TestUpdateFromEnvAppliesPrefixedKey(t *testing.T) {
	var s string
	cmd := newTestCmd("x")
	flag := &Flag{ID: "f", Value: &s, Name: "f", EnvKeys: []string{"THING"}}
	if err := flag.registerOn(cmd); err != nil {
		t.Fatalf("registerOn: %v", err)
	}

	t.Setenv("E4S_CL_THING", "hello")

	if err := flag.updateFromEnv(cmd.Flags(), map[string]string{}); err != nil {
		t.Fatalf("updateFromEnv: %v", err)
	}
	if s != "hello" {
		t.Fatalf("expected %q, got %q", "hello", s)
	}
}

func TestUpdateFromEnvHonorsWithoutPrefix(t *testing.T) {
	var s string
	cmd := newTestCmd("x")
	flag := &Flag{ID: "f", Value: &s, Name: "f", EnvKeys: []string{"THING"}, WithoutPrefix: true}
	if err := flag.registerOn(cmd); err != nil {
		t.Fatalf("registerOn: %v", err)
	}

	t.Setenv("THING", "bare")
	t.Setenv("E4S_CL_THING", "prefixed")

	if err := flag.updateFromEnv(cmd.Flags(), map[string]string{}); err != nil {
		t.Fatalf("updateFromEnv: %v", err)
	}
	if s != "bare" {
		t.Fatalf("expected the unprefixed key to win, got %q", s)
	}
}

func TestUpdateFromEnvSkipsKeyAlreadySeen(t *testing.T) {
	var s string
	cmd := newTestCmd("x")
	flag := &Flag{ID: "f", Value: &s, Name: "f", EnvKeys: []string{"THING"}}
	if err := flag.registerOn(cmd); err != nil {
		t.Fatalf("registerOn: %v", err)
	}

	t.Setenv("E4S_CL_THING", "hello")

	seen := map[string]string{"E4S_CL_THING": "already-resolved"}
	if err := flag.updateFromEnv(cmd.Flags(), seen); err != nil {
		t.Fatalf("updateFromEnv: %v", err)
	}
	if s != "" {
		t.Fatalf("expected the flag to be left untouched, got %q", s)
	}
}
