package container

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/E4S-Project/e4s-cl/internal/pkg/buildcfg"
	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

// apptainerBackend drives either `apptainer` or `singularity`: the two
// CLIs are command-for-command identical, so original_source carries
// near-duplicate apptainer.py/singularity.py modules that differ only
// in their executable name and env-var prefix. Here that duplication
// collapses into one backend parameterized by executableName.
type apptainerBackend struct {
	base
	executableName string
	envPrefix      string
}

func newApptainerBackend(image string) Backend {
	b := &apptainerBackend{base: newBase(image), executableName: "apptainer", envPrefix: "APPTAINERENV_"}
	b.setupHomeBind()
	return b
}

func newSingularityBackend(image string) Backend {
	b := &apptainerBackend{base: newBase(image), executableName: "singularity", envPrefix: "SINGULARITYENV_"}
	b.setupHomeBind()
	return b
}

func (b *apptainerBackend) Name() string { return b.executableName }

// setupHomeBind binds $HOME read-write, matching __setup__ in both
// apptainer.py and singularity.py (HOME must survive --contain).
func (b *apptainerBackend) setupHomeBind() {
	if home, err := os.UserHomeDir(); err == nil {
		b.bindFile(home, home, ReadWrite)
	}
}

func (b *apptainerBackend) BindFile(origin, destination string, access Access) {
	b.bindFile(origin, destination, access)
}

func (b *apptainerBackend) SetEnv(key, value string) {
	b.setEnv(fmt.Sprintf("%s%s", b.envPrefix, key), value)
}

func (b *apptainerBackend) AddLDPreload(path string)      { b.addLDPreload(path) }
func (b *apptainerBackend) AddLDLibraryPath(path string)  { b.addLDLibraryPath(path) }

func (b *apptainerBackend) formatBound() string {
	var parts []string
	for _, f := range b.bound() {
		tag := "ro"
		if f.Access == ReadWrite {
			tag = "rw"
		}
		parts = append(parts, fmt.Sprintf("%s:%s:%s", f.Origin, f.Destination, tag))
	}
	return strings.Join(parts, ",")
}

func (b *apptainerBackend) hasNvidia() bool {
	out, err := exec.Command("ldconfig", "-p").Output()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(out)), "nvidia")
}

func (b *apptainerBackend) prepare(command []string) []string {
	b.addLDLibraryPath(buildcfg.HostLibraryBindDir())
	b.setEnv(fmt.Sprintf("%sLD_PRELOAD", b.envPrefix), strings.Join(b.ldPreload, ":"))
	b.setEnv(fmt.Sprintf("%sLD_LIBRARY_PATH", b.envPrefix), strings.Join(b.ldLibPath, ":"))
	b.env[fmt.Sprintf("%sBIND", strings.TrimSuffix(b.envPrefix, "ENV_"))] = b.formatBound()

	args := []string{"exec", "--pwd", mustGetwd()}
	if b.hasNvidia() {
		args = append(args, "--nv")
	}
	args = append(args, b.extraArgs...)
	args = append(args, b.image)
	args = append(args, command...)
	return args
}

func (b *apptainerBackend) Run(command []string) (int, error) {
	execName := b.execName(b.executableName)
	path, err := exec.LookPath(execName)
	if err != nil {
		return -1, e4serr.NewEnvironmentError(
			fmt.Sprintf("install %s or load its environment module", execName),
			"backend %q not found on PATH", execName)
	}

	args := b.prepare(command)
	sylog.Debugf("running %s using: `%s %s'", execName, path, strings.Join(args, " "))
	return runSubprocess(append([]string{path}, args...), b.sortedEnv())
}

func (b *apptainerBackend) SupportsFileBinding() bool { return true }

func (b *apptainerBackend) ImageVersionInfo() string { return b.RunScript(versionProbeScript) }

func (b *apptainerBackend) RunScript(script string) string {
	path, err := exec.LookPath(b.execName(b.executableName))
	if err != nil {
		return ""
	}
	return runCaptured([]string{path, "exec", b.image, "sh", "-c", script}, nil)
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func init() {
	register("apptainer", newApptainerBackend, true)
	register("singularity", newSingularityBackend, true)
}
