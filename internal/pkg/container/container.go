// Package container implements C4: the container backend abstraction
// spec.md §4.4 describes as a tagged-variant + method table rather than
// a class hierarchy. Each backend (apptainer/singularity, docker,
// podman, shifter, barebones) registers itself with a NAME and a
// constructor; the caller picks one by name and gets back a Backend
// that knows how to bind files, shape its environment, and run a
// command inside the container it wraps.
//
// Grounded file-for-file on
// original_source/e4s_cl/cf/containers/{__init__,apptainer,docker,
// podman,shifter,singularity,barebones}.py.
package container

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

// Access is the permission a bound file is exposed with inside the
// container (FileOptions.READ_ONLY/READ_WRITE in __init__.py).
type Access int

const (
	ReadOnly Access = iota
	ReadWrite
)

// BoundFile is one host path mapped to one container path, ported from
// __init__.py's frozen BoundFile dataclass.
type BoundFile struct {
	Origin      string
	Destination string
	Access      Access
}

func (b BoundFile) key() string { return b.Origin + "\x00" + b.Destination }

// Backend is the behavior every container technology implements. Run
// executes command inside the container, having already applied every
// prior BindFile/SetEnv/AddLDPreload/AddLDLibraryPath call.
type Backend interface {
	Name() string
	BindFile(origin, destination string, access Access)
	SetEnv(key, value string)
	AddLDPreload(path string)
	AddLDLibraryPath(path string)
	Run(command []string) (int, error)

	// SupportsFileBinding reports whether this backend can bind
	// individual files into the container, per spec.md §4.4's uniform
	// operation of the same name (false only for Shifter, which must
	// stage files into a single bound directory instead — §4.1).
	SupportsFileBinding() bool

	// ImageVersionInfo best-effort probes the image for an MPI
	// `--version` banner, used by mpifamily for family fingerprinting
	// per spec.md §4.4. Returns "" on any failure.
	ImageVersionInfo() string

	// RunScript best-effort runs a short shell script inside the
	// container (or, for backends with no image of their own, on the
	// host) and returns its captured stdout. ImageVersionInfo is
	// one caller; C9's container-side ldconfig cache probe (spec.md
	// §4.9 step 3) is another. Returns "" on any failure.
	RunScript(script string) string

	// Configure applies the YAML "executable" override and any extra
	// CLI arguments (config-file "options"/"run_options" plus the
	// matching E4S_CL_*_OPTIONS environment variable, spec.md §6) New
	// resolved for this backend. Called once, before the backend is
	// used.
	Configure(executable string, extraArgs []string)
}

// base provides the bind-set bookkeeping and optimization shared by
// every backend, mirroring Container.__init__/bind_file/bound in
// __init__.py. Concrete backends embed it.
type base struct {
	image      string
	boundFiles map[string]BoundFile
	env        map[string]string
	ldPreload  []string
	ldLibPath  []string

	// executable and extraArgs carry Configure's arguments; zero value
	// for each means "use the backend's built-in default".
	executable string
	extraArgs  []string
}

// Configure implements Backend.Configure, promoted onto every concrete
// backend that embeds base.
func (b *base) Configure(executable string, extraArgs []string) {
	b.executable = executable
	b.extraArgs = extraArgs
}

// execName returns the configured executable override, or fall back
// when none was given.
func (b *base) execName(fallback string) string {
	if b.executable != "" {
		return b.executable
	}
	return fallback
}

func newBase(image string) base {
	return base{
		image:      image,
		boundFiles: map[string]BoundFile{},
		env:        map[string]string{},
	}
}

// bindFile adds a bind, applying __init__.py's optimize_bind_addition:
// a bind already covered by (or covering) an existing bind is merged
// rather than duplicated, taking the more permissive access level.
func (b *base) bindFile(origin, destination string, access Access) {
	if origin == "" {
		return
	}
	if destination == "" {
		destination = origin
	}

	new := BoundFile{Origin: filepath.Clean(origin), Destination: filepath.Clean(destination), Access: access}

	for key, existing := range b.boundFiles {
		if contains(existing, new) {
			if existing.Access < new.Access {
				existing.Access = new.Access
				b.boundFiles[key] = existing
			}
			return
		}
		if contains(new, existing) {
			if new.Access < existing.Access {
				new.Access = existing.Access
			}
			delete(b.boundFiles, key)
		}
	}

	b.boundFiles[new.key()] = new
}

// contains reports whether outer's (origin, destination) pair contains
// inner's, i.e. inner is a path underneath outer on both sides with the
// same relative suffix.
func contains(outer, inner BoundFile) bool {
	if outer.Origin == inner.Origin && outer.Destination == inner.Destination {
		return true
	}
	originRel, err1 := filepath.Rel(outer.Origin, inner.Origin)
	destRel, err2 := filepath.Rel(outer.Destination, inner.Destination)
	if err1 != nil || err2 != nil {
		return false
	}
	if strings.HasPrefix(originRel, "..") || strings.HasPrefix(destRel, "..") {
		return false
	}
	return originRel == destRel
}

// bound yields every still-valid bind, logging and skipping ones whose
// source has disappeared or whose destination is relative, per
// __init__.py's `bound` property.
func (b *base) bound() []BoundFile {
	keys := make([]string, 0, len(b.boundFiles))
	for k := range b.boundFiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]BoundFile, 0, len(keys))
	for _, k := range keys {
		bf := b.boundFiles[k]
		if _, err := os.Stat(bf.Origin); err != nil {
			sylog.Warningf("attempting to bind non-existing file: %s to %s", bf.Origin, bf.Destination)
			continue
		}
		if !filepath.IsAbs(bf.Destination) {
			sylog.Warningf("attempting to bind non-existing file: %s to %s", bf.Origin, bf.Destination)
			continue
		}
		out = append(out, bf)
	}
	return out
}

func (b *base) setEnv(key, value string) { b.env[key] = value }

func (b *base) addLDPreload(path string) {
	for _, p := range b.ldPreload {
		if p == path {
			return
		}
	}
	b.ldPreload = append(b.ldPreload, path)
}

func (b *base) addLDLibraryPath(path string) {
	for _, p := range b.ldLibPath {
		if p == path {
			return
		}
	}
	b.ldLibPath = append(b.ldLibPath, path)
}

func (b *base) sortedEnv() []string {
	keys := make([]string, 0, len(b.env))
	for k := range b.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, b.env[k]))
	}
	return out
}

// Constructor builds a Backend for a resolved image identifier.
type Constructor func(image string) Backend

var registry = map[string]Constructor{}

// exposed lists backend names offered to users (help text, --backend
// completion); "dummy" stays unlisted, mirroring __init__.py's
// DEBUG_BACKEND flag on its own dummy module.
var exposed []string

func register(name string, ctor Constructor, expose bool) {
	registry[name] = ctor
	if expose {
		exposed = append(exposed, name)
	}
}

// BackendConfig carries the per-backend YAML sub-table spec.md §6
// recognizes under "options"/"run_options"/"executable". New merges
// ExtraArgs with the backend's own E4S_CL_*_OPTIONS environment
// variable, environment last, before configuring the backend.
type BackendConfig struct {
	Executable string
	ExtraArgs  []string
}

// backendEnvVar names the environment variable (spec.md §6) each
// backend's own extra-arguments list is read from.
var backendEnvVar = map[string]string{
	"apptainer":   "E4S_CL_APPTAINER_EXEC_OPTIONS",
	"singularity": "E4S_CL_SINGULARITY_EXEC_OPTIONS",
	"podman":      "E4S_CL_PODMAN_RUN_OPTIONS",
	"shifter":     "E4S_CL_SHIFTER_OPTIONS",
	"docker":      "E4S_CL_DOCKER_OPTIONS",
}

// envExecOptions shell-splits the backend's options environment
// variable, falling back to whitespace splitting if the variable isn't
// valid shell syntax.
func envExecOptions(name string) []string {
	key, ok := backendEnvVar[name]
	if !ok {
		return nil
	}
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	fields, err := shell.Fields(value, nil)
	if err != nil {
		return strings.Fields(value)
	}
	return fields
}

// New builds the named backend's Backend for image, or a
// BackendUnsupported error listing the exposed alternatives. An
// optional BackendConfig supplies the config file's per-backend
// "executable"/"options"/"run_options"; the matching
// E4S_CL_*_OPTIONS environment variable is always appended after it.
func New(name, image string, cfg ...BackendConfig) (Backend, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, e4serr.NewConfigError(
			"backend %q not supported at this time. The available backends are: %s",
			name, strings.Join(ExposedBackends(), ", "))
	}

	var c BackendConfig
	if len(cfg) > 0 {
		c = cfg[0]
	}

	backend := ctor(image)
	extraArgs := append(append([]string(nil), c.ExtraArgs...), envExecOptions(name)...)
	backend.Configure(c.Executable, extraArgs)
	return backend, nil
}

// ExposedBackends returns the sorted list of non-debug backend names.
func ExposedBackends() []string {
	out := append([]string(nil), exposed...)
	sort.Strings(out)
	return out
}

// versionProbeScript is run inside an image to fingerprint its MPI
// implementation, tolerating whichever of mpirun/mpiexec exists.
const versionProbeScript = "mpirun --version 2>&1 || mpiexec --version 2>&1 || true"

// runCaptured is runSubprocess's captured-output twin, used by every
// backend's RunScript: stdout is returned (trimmed) instead of streamed,
// and a failure with no output collapses to "" rather than surfacing to
// the caller; a failure that did print keeps that output.
func runCaptured(command []string, env []string) string {
	if len(command) == 0 {
		return ""
	}
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.Output()
	if err != nil && len(out) == 0 {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// runSubprocess execs command with env appended to the current
// environment, streaming stdio through, mirroring util.run_subprocess.
func runSubprocess(command []string, env []string) (int, error) {
	if len(command) == 0 {
		return -1, fmt.Errorf("container: empty command")
	}
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), env...)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
