package container

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

// dockerBackend drives `docker run`. original_source/docker.py talks to
// the daemon through the `docker` Python SDK; per DESIGN.md's dropped-
// dependency note, this backend shells out to the `docker` CLI instead
// (spec.md §4.4 adapter policy — no registry/build client of our own).
type dockerBackend struct{ base }

func newDockerBackend(image string) Backend { return &dockerBackend{base: newBase(image)} }

func (b *dockerBackend) Name() string { return "docker" }

func (b *dockerBackend) BindFile(origin, destination string, access Access) {
	b.bindFile(origin, destination, access)
}
func (b *dockerBackend) SetEnv(key, value string)       { b.setEnv(key, value) }
func (b *dockerBackend) AddLDPreload(path string)        { b.addLDPreload(path) }
func (b *dockerBackend) AddLDLibraryPath(path string)    { b.addLDLibraryPath(path) }

func (b *dockerBackend) mounts() []string {
	var out []string
	for _, f := range b.bound() {
		ro := ""
		if f.Access == ReadOnly {
			ro = ",readonly"
		}
		out = append(out, fmt.Sprintf("--mount=type=bind,src=%s,dst=%s%s", f.Origin, f.Destination, ro))
	}
	return out
}

func (b *dockerBackend) Run(command []string) (int, error) {
	execName := b.execName("docker")
	path, err := exec.LookPath(execName)
	if err != nil {
		return -1, e4serr.NewEnvironmentError("install docker or load its environment module",
			"backend %q not found on PATH", execName)
	}

	if b.ldPreload != nil {
		b.setEnv("LD_PRELOAD", strings.Join(b.ldPreload, ":"))
	}
	if b.ldLibPath != nil {
		b.setEnv("LD_LIBRARY_PATH", strings.Join(b.ldLibPath, ":"))
	}

	args := []string{"run", "--rm"}
	args = append(args, b.mounts()...)
	for _, kv := range b.sortedEnv() {
		args = append(args, "--env", kv)
	}
	args = append(args, b.extraArgs...)
	args = append(args, b.image)
	args = append(args, command...)

	sylog.Debugf("running %s using: `%s %s'", execName, path, strings.Join(args, " "))
	return runSubprocess(append([]string{path}, args...), nil)
}

func (b *dockerBackend) SupportsFileBinding() bool { return true }

func (b *dockerBackend) ImageVersionInfo() string { return b.RunScript(versionProbeScript) }

func (b *dockerBackend) RunScript(script string) string {
	path, err := exec.LookPath(b.execName("docker"))
	if err != nil {
		return ""
	}
	return runCaptured([]string{path, "run", "--rm", b.image, "sh", "-c", script}, nil)
}

func init() {
	register("docker", newDockerBackend, true)
}
