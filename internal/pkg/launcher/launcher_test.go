package launcher

import (
	"reflect"
	"testing"
)

// testLauncherSpec mirrors original_source/tests/assets/test_launcher_module.py.
var testLauncherSpec = &Spec{
	Names: []string{"mylauncher"},
	Arguments: map[string]int{
		"-a": 0,
		"-b": 1,
		"-c": 5,
	},
	ReservedDirectories: []string{"/reserved"},
}

func init() {
	Register(testLauncherSpec)
}

func split(s string) []string {
	var out []string
	cur := ""
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			} else {
				cur += string(c)
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == ' ':
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
		default:
			cur += string(c)
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func TestNoLauncher(t *testing.T) {
	cmd := split("ls -alh /dev")
	launcherArgs, app, err := Interpret(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(launcherArgs, cmd[:1]) {
		t.Fatalf("expected the first token as the launcher, got %v", launcherArgs)
	}
	if !reflect.DeepEqual(app, cmd[1:]) {
		t.Fatalf("expected the remaining tokens as the application, got %v", app)
	}
}

func TestOption(t *testing.T) {
	cmd := append(split("mylauncher -a -b test"), split("command")...)
	launcherArgs, app, err := Interpret(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(launcherArgs, split("mylauncher -a -b test")) {
		t.Fatalf("got launcher %v", launcherArgs)
	}
	if !reflect.DeepEqual(app, split("command")) {
		t.Fatalf("got application %v", app)
	}
}

func TestUnsupportedOption(t *testing.T) {
	cmd := append(split("mylauncher -z 4"), split("command")...)
	launcherArgs, app, err := Interpret(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(launcherArgs, split("mylauncher -z 4")) {
		t.Fatalf("unsupported option should not have been consumed: %v", launcherArgs)
	}
	if reflect.DeepEqual(app, split("command")) {
		t.Fatalf("unsupported option should have spilled into application: %v", app)
	}
}

func TestEqualledOption(t *testing.T) {
	cmd := append(
		split("mylauncher --option1=a --option2=a:b:c"),
		append([]string{"something or another"}, split("command")...)...,
	)
	launcherArgs, app, err := Interpret(cmd)
	if err != nil {
		t.Fatal(err)
	}
	want := split("mylauncher --option1=a --option2=a:b:c")
	if !reflect.DeepEqual(launcherArgs, want) {
		t.Fatalf("got launcher %v, want %v", launcherArgs, want)
	}
	if !reflect.DeepEqual(app, append([]string{"something or another"}, split("command")...)) {
		t.Fatalf("got application %v", app)
	}
}

func TestGetReservedDirectories(t *testing.T) {
	dirs := ReservedDirectories([]string{"mylauncher"})
	if !reflect.DeepEqual(dirs, []string{"/reserved"}) {
		t.Fatalf("got %v", dirs)
	}
}

func TestDashesBoundary(t *testing.T) {
	cmd := []string{"mylauncher", "-n", "2", "--", "hostname"}
	launcherArgs, app, err := Interpret(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(launcherArgs, []string{"mylauncher", "-n", "2"}) {
		t.Fatalf("got launcher %v", launcherArgs)
	}
	if !reflect.DeepEqual(app, []string{"hostname"}) {
		t.Fatalf("got application %v", app)
	}

	cmd = []string{"unsupported", "-z", "4", "--", "hostname"}
	launcherArgs, app, err = Interpret(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(launcherArgs, []string{"unsupported", "-z", "4"}) {
		t.Fatalf("got launcher %v", launcherArgs)
	}
	if !reflect.DeepEqual(app, []string{"hostname"}) {
		t.Fatalf("got application %v", app)
	}
}

func TestComplexArgumentSplit(t *testing.T) {
	cmd := []string{"mpirun", "-E", "two words", "command"}
	launcherArgs, app, err := Interpret(cmd)
	if err != nil {
		t.Fatal(err)
	}
	// mpirun's table doesn't list "-E"; it falls through to the
	// application per the arity table ported from mpirun.py.
	if !reflect.DeepEqual(launcherArgs, []string{"mpirun"}) {
		t.Fatalf("got launcher %v", launcherArgs)
	}
	if !reflect.DeepEqual(app, []string{"-E", "two words", "command"}) {
		t.Fatalf("got application %v", app)
	}
}

func TestFilterArguments(t *testing.T) {
	spec := &Spec{Arguments: map[string]int{"-a": 1, "-c": 2}}
	cmd := split("-a test -b 1 2 3 -c ofi btl -d host1:2,host2:2")

	valid, foreign := spec.FilterArguments(cmd)

	if !reflect.DeepEqual(valid, split("-a test -c ofi btl")) {
		t.Fatalf("got valid %v", valid)
	}
	if !reflect.DeepEqual(foreign, split("-b 1 2 3 -d host1:2,host2:2")) {
		t.Fatalf("got foreign %v", foreign)
	}
}

func TestAdditionalOptionsNotAppliedHere(t *testing.T) {
	// Launcher-options injection from config/environment is C8's
	// responsibility (internal/pkg/launch), not this package's
	// Interpret — Interpret only splits the command line.
	cmd := []string{"mpirun", "-np", "4", "./foo", "--bar"}
	launcherArgs, app, err := Interpret(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(launcherArgs, []string{"mpirun", "-np", "4"}) {
		t.Fatalf("got launcher %v", launcherArgs)
	}
	if !reflect.DeepEqual(app, []string{"./foo", "--bar"}) {
		t.Fatalf("got application %v", app)
	}
}
