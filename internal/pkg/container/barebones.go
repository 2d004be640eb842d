package container

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/E4S-Project/e4s-cl/internal/pkg/buildcfg"
	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

// barebonesBackend runs the application directly on the host, under no
// container technology at all, ported from
// original_source/e4s_cl/cf/containers/host.py's Containerless. Binds
// are realized as symlinks in a scratch directory added to
// LD_LIBRARY_PATH instead of being passed to a container runtime,
// matching host.py's _setup_import.
type barebonesBackend struct {
	base
	linkDir string
}

func newBarebonesBackend(image string) Backend { return &barebonesBackend{base: newBase(image)} }

func (b *barebonesBackend) Name() string { return "none" }

func (b *barebonesBackend) BindFile(origin, destination string, access Access) {
	b.bindFile(origin, destination, access)
}
func (b *barebonesBackend) SetEnv(key, value string)      { b.setEnv(key, value) }
func (b *barebonesBackend) AddLDPreload(path string)       { b.addLDPreload(path) }
func (b *barebonesBackend) AddLDLibraryPath(path string)   { b.addLDLibraryPath(path) }

func (b *barebonesBackend) setupImport(containerDir string) error {
	dir, err := os.MkdirTemp("", "e4s-cl-barebones-")
	if err != nil {
		return err
	}
	b.linkDir = dir

	for _, f := range b.bound() {
		info, err := os.Stat(f.Origin)
		if err != nil || info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(containerDir, f.Destination)
		if err != nil || strings.HasPrefix(rel, "..") {
			sylog.Debugf("%s is not in %s", f.Destination, containerDir)
			continue
		}

		link, err := securejoin.SecureJoin(dir, rel)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
			return err
		}
		realOrigin, err := filepath.EvalSymlinks(f.Origin)
		if err != nil {
			realOrigin = f.Origin
		}
		if err := os.Symlink(realOrigin, link); err != nil {
			return err
		}
	}

	ldPath := dir
	if existing := os.Getenv("LD_LIBRARY_PATH"); existing != "" {
		ldPath = dir + string(os.PathListSeparator) + existing
	}
	b.setEnv("LD_LIBRARY_PATH", ldPath)
	return nil
}

func (b *barebonesBackend) Run(command []string) (int, error) {
	if len(command) == 0 {
		return -1, fmt.Errorf("barebones: empty command")
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return -1, e4serr.NewEnvironmentError("", "%q not found on PATH", command[0])
	}

	if err := b.setupImport(buildcfg.ContainerDir()); err != nil {
		return -1, err
	}
	defer os.RemoveAll(b.linkDir)

	return runSubprocess(command, b.sortedEnv())
}

func (b *barebonesBackend) SupportsFileBinding() bool { return true }

// ImageVersionInfo probes whatever MPI is on the host PATH, since the
// barebones backend has no image of its own to inspect.
func (b *barebonesBackend) ImageVersionInfo() string { return b.RunScript(versionProbeScript) }

// RunScript runs script directly on the host, since barebones has no
// container image of its own.
func (b *barebonesBackend) RunScript(script string) string {
	return runCaptured([]string{"sh", "-c", script}, nil)
}

func init() {
	register("none", newBarebonesBackend, true)
}
