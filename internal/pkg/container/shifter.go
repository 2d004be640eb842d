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

// shifterBackend drives `shifter --image=... --volume=...`, ported from
// original_source/e4s_cl/cf/containers/shifter.py. Shifter has no
// single-file bind mount, only --volume=host:container directory
// mounts, so binds under the e4s-cl container root are staged into a
// scratch directory and that directory is volume-mounted as a whole
// (shifter.py's _setup_import).
type shifterBackend struct {
	base
	stagingDir string
}

func newShifterBackend(image string) Backend { return &shifterBackend{base: newBase(image)} }

func (b *shifterBackend) Name() string { return "shifter" }

func (b *shifterBackend) BindFile(origin, destination string, access Access) {
	b.bindFile(origin, destination, access)
}
func (b *shifterBackend) SetEnv(key, value string)      { b.setEnv(key, value) }
func (b *shifterBackend) AddLDPreload(path string)       { b.addLDPreload(path) }
func (b *shifterBackend) AddLDLibraryPath(path string)   { b.addLDLibraryPath(path) }

// setupImport stages every bound file under the e4s-cl container root
// into where, and volume-mounts plain directories that live outside it
// directly. Single files outside the container root (shifter cannot
// bind a lone file) are reported and skipped.
func (b *shifterBackend) setupImport(where string) ([]string, error) {
	containerDir := buildcfg.ContainerDir()
	volumes := [][2]string{{where, containerDir}}

	for _, f := range b.bound() {
		switch {
		case strings.HasPrefix(f.Destination, containerDir):
			rebased := strings.TrimPrefix(f.Destination, containerDir+string(filepath.Separator))
			target, err := securejoin.SecureJoin(where, rebased)
			if err != nil {
				return nil, fmt.Errorf("shifter: staging path %s: %w", rebased, err)
			}

			sylog.Debugf("shifter: creating %s for %s in %s", target, f.Origin, f.Destination)
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, err
			}
			if err := exec.Command("cp", "-r", f.Origin, target).Run(); err != nil {
				return nil, fmt.Errorf("shifter: staging %s: %w", f.Origin, err)
			}

		case isDir(f.Origin):
			if strings.HasPrefix(f.Destination, "/etc") {
				sylog.Errorf("shifter: backend does not support binding to '/etc'")
				continue
			}
			volumes = append(volumes, [2]string{f.Origin, f.Destination})

		default:
			sylog.Warningf("shifter: backend does not support file binding. Performance may be impacted.")
		}
	}

	out := make([]string, 0, len(volumes))
	for _, v := range volumes {
		out = append(out, fmt.Sprintf("--volume=%s:%s", v[0], v[1]))
	}
	return out, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (b *shifterBackend) prepare(command []string) ([]string, error) {
	var envList []string
	if len(b.ldPreload) > 0 {
		envList = append(envList, fmt.Sprintf("--env=LD_PRELOAD=%s", strings.Join(b.ldPreload, ":")))
	}
	if len(b.ldLibPath) > 0 {
		envList = append(envList, fmt.Sprintf("--env=LD_LIBRARY_PATH=%s", strings.Join(b.ldLibPath, ":")))
	}
	for _, kv := range b.sortedEnv() {
		envList = append(envList, fmt.Sprintf("--env=%s", kv))
	}

	staging, err := os.MkdirTemp("", "e4s-cl-shifter-")
	if err != nil {
		return nil, err
	}
	b.stagingDir = staging

	volumes, err := b.setupImport(staging)
	if err != nil {
		return nil, err
	}

	args := []string{fmt.Sprintf("--image=%s", b.image)}
	args = append(args, envList...)
	args = append(args, volumes...)
	args = append(args, b.extraArgs...)
	args = append(args, command...)
	return args, nil
}

func (b *shifterBackend) Run(command []string) (int, error) {
	execName := b.execName("shifter")
	path, err := exec.LookPath(execName)
	if err != nil {
		return -1, e4serr.NewEnvironmentError("install shifter or load its environment module",
			"backend %q not found on PATH", execName)
	}
	if b.stagingDir != "" {
		defer os.RemoveAll(b.stagingDir)
	}

	args, err := b.prepare(command)
	if err != nil {
		return -1, err
	}

	sylog.Debugf("%s command: %v", execName, args)
	return runSubprocess(append([]string{path}, args...), nil)
}

func (b *shifterBackend) SupportsFileBinding() bool { return false }

func (b *shifterBackend) ImageVersionInfo() string { return b.RunScript(versionProbeScript) }

func (b *shifterBackend) RunScript(script string) string {
	path, err := exec.LookPath(b.execName("shifter"))
	if err != nil {
		return ""
	}
	return runCaptured([]string{path, fmt.Sprintf("--image=%s", b.image), "sh", "-c", script}, nil)
}

func init() {
	register("shifter", newShifterBackend, true)
}
