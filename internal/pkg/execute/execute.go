// Package execute implements C9: the private `__execute` worker each
// rank's self-reinvocation (C8) lands in. It reads the resolved
// profile, makes sure the Wi4MPI translation layer is present if one
// was requested, trims the host library set down to what the
// container actually needs via C1's tie-break, writes the entry script
// (C6) into a rank-private bind directory, and execs into the
// container through C4.
//
// Grounded directly on spec.md §4.9's six steps; there is no single
// Python module this mirrors one-to-one, since original_source drove
// the same sequence from e4s_cl/cli/commands/launch.py's
// `SelectedExecuteCommand` inline rather than as a standalone unit.
package execute

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/E4S-Project/e4s-cl/internal/pkg/buildcfg"
	"github.com/E4S-Project/e4s-cl/internal/pkg/classify"
	"github.com/E4S-Project/e4s-cl/internal/pkg/container"
	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	"github.com/E4S-Project/e4s-cl/internal/pkg/entry"
	"github.com/E4S-Project/e4s-cl/internal/pkg/mpifamily"
	"github.com/E4S-Project/e4s-cl/internal/pkg/profile"
	"github.com/E4S-Project/e4s-cl/internal/pkg/wi4mpi"
	"github.com/E4S-Project/e4s-cl/pkg/config"
	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

// Options carries the `__execute` invocation's own flags (spec.md §6):
// the profile to run under, the translation family to run from if any,
// and the same launch-time overrides `e4s-cl launch` was given, which
// it forwards here rather than baking into the persisted profile.
type Options struct {
	ProfileName  string
	From         string
	BuilderImage string
	Image        string
	Backend      string
	Source       string
	Wi4mpi       string
	Libraries    []string
	Files        []string
	Command      []string
}

// defaultEnvFilter names the variables stripped from the environment
// passed into the container, mirroring config.py's filtering of
// variables the host shell sets that would otherwise leak host paths
// into the container (spec.md §4.9 step 5's "configurable filter
// list").
var defaultEnvFilter = []string{"LD_LIBRARY_PATH", "LD_PRELOAD", "PS1"}

// mkdirTemp is overridable by tests.
var mkdirTemp = os.MkdirTemp

// Run implements spec.md §4.9's six steps for one rank. Any failure in
// steps 1-4 returns a non-nil error; the caller (cmd/e4s-cl) turns that
// into the process's exit code via e4serr.CodeOf. Step 5/6's outcome is
// the backend's own exit code, returned even when err is nil.
func Run(opts Options, cfg *config.Config) (int, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if len(opts.Command) == 0 {
		return -1, e4serr.NewUserError("execute: no command to run")
	}

	// Step 1: read the selected profile.
	p, _, err := profile.Get(opts.ProfileName)
	if err != nil {
		return -1, err
	}
	applyOverrides(p, opts)

	backendName := string(p.Backend)
	if backendName == "" {
		backendName = string(profile.BackendNone)
	}
	backend, err := container.New(backendName, p.Image, backendConfig(cfg, backendName))
	if err != nil {
		return -1, err
	}

	// Step 2: ensure the translation layer is present, if requested.
	containerFamily := mpifamily.Match(backend.ImageVersionInfo())

	var wrapperBin string
	if opts.From != "" {
		dir := p.Wi4mpi
		if dir == "" {
			dir = filepath.Join(buildcfg.StagingRoot(), "wi4mpi", backendName)
		}
		if err := wi4mpi.EnsureInstalled(backend, opts.BuilderImage, dir); err != nil {
			return -1, err
		}

		wrapperBin = wi4mpi.WrapperLibrary(dir, opts.From, containerFamily)
		p.Wi4mpi = dir
	}

	// Step 3: compute the final library bind set via C1's tie-break.
	probe := classify.ContainerProbe(backend.RunScript)
	finalLibs := classify.ResolveBindSet(p.Libraries, probe)

	// Step 4: write the entry script into a rank-private bind directory.
	bindDir, err := rankBindDir()
	if err != nil {
		return -1, e4serr.Wrap(err, "execute: creating rank bind directory")
	}
	defer os.RemoveAll(bindDir)

	var preload []string
	if cfg.PreloadRootLibraries {
		for _, lib := range finalLibs {
			preload = append(preload, filepath.Join(buildcfg.HostLibraryBindDir(), filepath.Base(lib.HostPath)))
		}
	}
	if opts.From != "" {
		preload = append(preload, wi4mpi.Preload(p.Wi4mpi, opts.From)...)
	}

	script, err := entry.Render(entry.Params{
		HostLibraryBindDir: buildcfg.HostLibraryBindDir(),
		Source:             p.Source,
		PreloadLibraries:   preload,
		Wi4mpiRoot:         p.Wi4mpi,
		Wi4mpiFrom:         opts.From,
		Wi4mpiTo:           containerFamily,
		Wi4mpiWrapperBin:   wrapperBin,
		Command:            opts.Command,
	})
	if err != nil {
		return -1, err
	}

	scriptPath := filepath.Join(bindDir, buildcfg.EntryScriptName)
	if err := os.WriteFile(scriptPath, []byte(script), 0755); err != nil {
		return -1, e4serr.Wrap(err, "execute: writing entry script")
	}

	// Step 5: invoke C4 with the computed binds and environment.
	backend.BindFile(bindDir, buildcfg.ContainerDir(), container.ReadOnly)

	hostlibsDir := stageHostLibraries(finalLibs)
	if hostlibsDir != "" {
		defer os.RemoveAll(hostlibsDir)
	}
	backend.BindFile(hostlibsDir, buildcfg.HostLibraryBindDir(), container.ReadOnly)

	for _, f := range p.Files {
		backend.BindFile(f.HostPath, f.HostPath, container.ReadOnly)
	}

	for _, kv := range filteredEnv(defaultEnvFilter) {
		key, value, ok := strings.Cut(kv, "=")
		if ok {
			backend.SetEnv(key, value)
		}
	}
	for _, lib := range preload {
		backend.AddLDPreload(lib)
	}
	backend.AddLDLibraryPath(buildcfg.HostLibraryBindDir())

	code, err := backend.Run([]string{entry.Path()})
	if err != nil {
		return -1, err
	}

	// Step 6.
	return code, nil
}

// backendConfig translates the config file's per-backend sub-table
// into the form container.New expects, concatenating "options" and
// "run_options" ahead of the environment-variable override New applies
// itself (spec.md §6).
func backendConfig(cfg *config.Config, backendName string) container.BackendConfig {
	opts, ok := cfg.Backends[backendName]
	if !ok {
		return container.BackendConfig{}
	}
	return container.BackendConfig{
		Executable: opts.Executable,
		ExtraArgs:  append(append([]string(nil), opts.Options...), opts.RunOptions...),
	}
}

// applyOverrides layers the launch-time flags forwarded by `e4s-cl
// launch` onto the profile read in step 1, mirroring
// original_source/cli/commands/launch.py's _parameters: an override
// given on the command line replaces the corresponding profile field
// outright rather than merging with it.
func applyOverrides(p *profile.Profile, opts Options) {
	if opts.Image != "" {
		p.Image = opts.Image
	}
	if opts.Backend != "" {
		p.Backend = profile.Backend(opts.Backend)
	}
	if opts.Source != "" {
		p.Source = opts.Source
	}
	if opts.Wi4mpi != "" {
		p.Wi4mpi = opts.Wi4mpi
	}
	if len(opts.Libraries) > 0 {
		p.Libraries = classify.Classify(opts.Libraries, classify.Policy{}).Libraries
	}
	if len(opts.Files) > 0 {
		p.Files = classify.Classify(opts.Files, classify.Policy{}).Files
	}
}

// rankBindDir creates /tmp/.e4s-cl/<pid>-<rand> (configurable root via
// buildcfg.StagingRoot), private to this rank, per spec.md §4.9 step 4.
func rankBindDir() (string, error) {
	root := buildcfg.StagingRoot()
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", err
	}
	return mkdirTemp(root, strconv.Itoa(os.Getpid())+"-")
}

// stageHostLibraries symlinks every library to bind into one scratch
// directory, since C4's bind API takes a single source per destination
// and spec.md §4.9 step 5 binds the whole set at /.e4s-cl/hostlibs in
// one shot.
func stageHostLibraries(libs []classify.Path) string {
	dir, err := mkdirTemp("", "e4s-cl-hostlibs-")
	if err != nil {
		return ""
	}
	for _, lib := range libs {
		target := filepath.Join(dir, filepath.Base(lib.HostPath))
		if err := os.Symlink(lib.Realpath, target); err != nil {
			sylog.Warningf("execute: could not stage %s: %s", lib.HostPath, err)
		}
	}
	return dir
}

// filteredEnv returns the current process environment minus every
// variable named in filter.
func filteredEnv(filter []string) []string {
	drop := map[string]bool{}
	for _, k := range filter {
		drop[k] = true
	}
	var out []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !drop[key] {
			out = append(out, kv)
		}
	}
	return out
}
