package container

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

// podmanBackend drives `podman run --env-host`, ported from
// original_source/e4s_cl/cf/containers/podman.py. The file-descriptor
// preservation dance (opened_fds/FDFiller) that podman.py performs so
// fds MPI's PMI wiring leaves open survive the exec is reproduced with
// Go's native inherited-fd behavior: os/exec already passes through
// every fd above stderr that lacks O_CLOEXEC, so only the count podman
// needs telling about (--preserve-fds=K) is computed here.
type podmanBackend struct{ base }

func newPodmanBackend(image string) Backend { return &podmanBackend{base: newBase(image)} }

func (b *podmanBackend) Name() string { return "podman" }

func (b *podmanBackend) BindFile(origin, destination string, access Access) {
	b.bindFile(origin, destination, access)
}
func (b *podmanBackend) SetEnv(key, value string)      { b.setEnv(key, value) }
func (b *podmanBackend) AddLDPreload(path string)       { b.addLDPreload(path) }
func (b *podmanBackend) AddLDLibraryPath(path string)   { b.addLDLibraryPath(path) }

// preservedFDCount mirrors podman.py's _fd_number: the number of open
// file descriptors beyond stdio that must be passed into the container.
func preservedFDCount() int {
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		switch e.Name() {
		case "0", "1", "2":
			continue
		}
		count++
	}
	return count
}

func (b *podmanBackend) formatBound() []string {
	var out []string
	for _, f := range b.bound() {
		params := []string{"type=bind", fmt.Sprintf("src=%s", f.Origin), fmt.Sprintf("dst=%s", f.Destination)}
		if f.Access == ReadOnly {
			params = append(params, "ro=true")
		}
		out = append(out, "--mount="+strings.Join(params, ","))
	}
	return out
}

func (b *podmanBackend) Run(command []string) (int, error) {
	execName := b.execName("podman")
	path, err := exec.LookPath(execName)
	if err != nil {
		return -1, e4serr.NewEnvironmentError("install podman or load its environment module",
			"backend %q not found on PATH", execName)
	}

	wd, _ := os.Getwd()
	args := []string{
		"run", "--rm", "--ipc=host", "--env-host",
		fmt.Sprintf("--preserve-fds=%d", preservedFDCount()),
		"--workdir", wd,
	}
	args = append(args, b.formatBound()...)
	args = append(args, b.extraArgs...)
	args = append(args, b.image)
	args = append(args, command...)

	sylog.Debugf("running %s using: `%s %s'", execName, path, strings.Join(args, " "))
	return runSubprocess(append([]string{path}, args...), b.sortedEnv())
}

func (b *podmanBackend) SupportsFileBinding() bool { return true }

func (b *podmanBackend) ImageVersionInfo() string { return b.RunScript(versionProbeScript) }

func (b *podmanBackend) RunScript(script string) string {
	path, err := exec.LookPath(b.execName("podman"))
	if err != nil {
		return ""
	}
	return runCaptured([]string{path, "run", "--rm", b.image, "sh", "-c", script}, nil)
}

func init() {
	register("podman", newPodmanBackend, true)
}
