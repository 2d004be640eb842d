// Package launch implements C8: the front end of `e4s-cl launch`. It
// splits the user's command via C3, resolves the profile to run under,
// decides whether MPI translation is required, and rewrites the
// program portion of the launcher's argv into a self-reinvocation that
// each rank's fork-exec turns into an independent C9 (execute)
// invocation, per spec.md §4.8.
package launch

import (
	"os/exec"
	"strings"

	"github.com/E4S-Project/e4s-cl/internal/pkg/container"
	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	"github.com/E4S-Project/e4s-cl/internal/pkg/launcher"
	"github.com/E4S-Project/e4s-cl/internal/pkg/mpifamily"
	"github.com/E4S-Project/e4s-cl/internal/pkg/profile"
	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

// Flags carries the `launch` command's own flags (spec.md §6):
// explicit overrides take priority over the selected profile. Only the
// fields actually set are forwarded to the rewritten `__execute`
// invocation, which re-reads the base profile itself and layers these
// on top, mirroring original_source's launch.py:_parameters merge.
type Flags struct {
	ProfileName string
	Image       string
	Backend     string
	Source      string
	Libraries   []string
	Files       []string
	Wi4mpi      string
	From        string
}

// Plan is the fully-resolved launch: the rewritten command ready to
// exec, and the profile/family decisions that produced it, kept around
// for logging.
type Plan struct {
	Command          []string
	ProfileName      string
	TranslationFrom  string
}

// selfExecutable resolves the running binary's own path; it is a
// package variable so tests can substitute it.
var selfExecutable = exec.LookPath

// newBackend is overridable by tests that need to control what
// ImageVersionInfo() reports without shelling out to a real container
// runtime.
var newBackend = container.New

// Resolve implements spec.md §4.8 steps 1-4. userCmd is the full
// command line following `e4s-cl launch`, e.g.
// ["mpirun", "-n", "4", "a.out", "-x"].
func Resolve(userCmd []string, flags Flags) (*Plan, error) {
	launcherArgs, application, err := launcher.Interpret(userCmd)
	if err != nil {
		return nil, err
	}
	if len(application) == 0 {
		return nil, e4serr.NewUserError("launch: no program to run after the launcher arguments")
	}

	name, err := resolveProfileName(flags)
	if err != nil {
		return nil, err
	}
	p, _, err := profile.Get(name)
	if err != nil {
		return nil, err
	}
	if flags.Image != "" {
		p.Image = flags.Image
	}
	if flags.Backend != "" {
		p.Backend = profile.Backend(flags.Backend)
	}

	family, err := resolveTranslation(flags.From, p, launcherArgs)
	if err != nil {
		return nil, err
	}

	self, err := selfExecutable("e4s-cl")
	if err != nil {
		return nil, e4serr.NewEnvironmentError("ensure e4s-cl is on PATH", "launch: cannot find my own executable to re-invoke")
	}

	rewritten := []string{self, "__execute", "--profile", name}
	if family != "" {
		rewritten = append(rewritten, "--from", family)
	}
	if flags.Image != "" {
		rewritten = append(rewritten, "--image", flags.Image)
	}
	if flags.Backend != "" {
		rewritten = append(rewritten, "--backend", flags.Backend)
	}
	if flags.Source != "" {
		rewritten = append(rewritten, "--source", flags.Source)
	}
	if flags.Wi4mpi != "" {
		rewritten = append(rewritten, "--wi4mpi", flags.Wi4mpi)
	}
	if len(flags.Libraries) > 0 {
		rewritten = append(rewritten, "--libraries", strings.Join(flags.Libraries, ","))
	}
	if len(flags.Files) > 0 {
		rewritten = append(rewritten, "--files", strings.Join(flags.Files, ","))
	}
	rewritten = append(rewritten, "--")
	rewritten = append(rewritten, application...)

	command := append(append([]string(nil), launcherArgs...), rewritten...)

	return &Plan{Command: command, ProfileName: name, TranslationFrom: family}, nil
}

func resolveProfileName(flags Flags) (string, error) {
	if flags.ProfileName != "" {
		return flags.ProfileName, nil
	}
	name, err := profile.Selected()
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", e4serr.NewUserError("launch: no profile selected and none given with --profile")
	}
	return name, nil
}

// resolveTranslation implements spec.md §4.8 step 3 and §9's resolution
// of the --from short-circuit question: an explicit --from still needs
// checking against the container's own advertised family, since no
// translation is needed when they already agree; absent --from, the
// host launcher binary's version banner is compared against the
// container image's via the mpifamily regex table.
func resolveTranslation(explicitFrom string, p *profile.Profile, launcherArgs []string) (string, error) {
	backendName := string(p.Backend)
	if backendName == "" || p.Image == "" {
		return explicitFrom, nil
	}
	if explicitFrom == "" && len(launcherArgs) == 0 {
		return "", nil
	}

	backend, err := newBackend(backendName, p.Image)
	if err != nil {
		return "", err
	}
	containerVersion := backend.ImageVersionInfo()

	var hostVersion string
	if explicitFrom == "" {
		hostVersion = probeHostVersion(launcherArgs[0])
	}

	required, family := mpifamily.TranslationRequired(explicitFrom, hostVersion, containerVersion)
	if required && family == "" {
		sylog.Warningf("launch: translation required but no family could be determined")
	}
	return family, nil
}

func probeHostVersion(launcherPath string) string {
	path, err := exec.LookPath(launcherPath)
	if err != nil {
		return ""
	}
	out, err := exec.Command(path, "--version").CombinedOutput()
	if err != nil && len(out) == 0 {
		return ""
	}
	return strings.TrimSpace(string(out))
}
