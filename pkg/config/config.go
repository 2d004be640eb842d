// Package config loads and merges e4s-cl's YAML configuration file,
// ported from original_source/e4s_cl/config.py. The original flattens
// nested YAML tables into underscore-joined keys and merges layered files
// with a bitwise-or; here the same search order and override behavior
// (spec.md §6) is expressed as a typed struct with an explicit Merge.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/E4S-Project/e4s-cl/internal/pkg/buildcfg"
)

// BackendOptions holds the per-backend sub-table recognized under
// "options"/"run_options"/"executable" (spec.md §6).
type BackendOptions struct {
	Executable string   `yaml:"executable,omitempty"`
	Options    []string `yaml:"options,omitempty"`
	RunOptions []string `yaml:"run_options,omitempty"`
}

// Config is the parsed, merged configuration. Fields correspond exactly
// to spec.md §6's "Recognized keys" list.
type Config struct {
	ContainerDirectory     string                     `yaml:"container_directory,omitempty"`
	LauncherOptions        []string                   `yaml:"launcher_options,omitempty"`
	PreloadRootLibraries   bool                       `yaml:"preload_root_libraries,omitempty"`
	DisableRankedLog       bool                       `yaml:"disable_ranked_log,omitempty"`
	Backends               map[string]BackendOptions  `yaml:"-"`
}

type rawConfig struct {
	ContainerDirectory   string                 `yaml:"container_directory"`
	LauncherOptions      []string               `yaml:"launcher_options"`
	PreloadRootLibraries bool                   `yaml:"preload_root_libraries"`
	DisableRankedLog     bool                   `yaml:"disable_ranked_log"`
	Apptainer            *BackendOptions        `yaml:"apptainer"`
	Singularity          *BackendOptions        `yaml:"singularity"`
	Docker               *BackendOptions        `yaml:"docker"`
	Podman               *BackendOptions        `yaml:"podman"`
	Shifter              *BackendOptions        `yaml:"shifter"`
}

// Default returns the zero-value configuration completed with the
// defaults named in spec.md §6 (container_directory defaults to the
// in-container bind root).
func Default() *Config {
	return &Config{
		ContainerDirectory: buildcfg.DefaultContainerDir,
		LauncherOptions:    []string{},
		Backends:           map[string]BackendOptions{},
	}
}

// Load reads and merges the configuration search path of spec.md §6,
// later files overriding earlier ones field by field.
func Load() (*Config, error) {
	cfg := Default()
	for _, path := range buildcfg.ConfigSearchPath() {
		layer, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	var raw rawConfig
	if err := yaml.UnmarshalStrict(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}

	c := &Config{
		ContainerDirectory:   raw.ContainerDirectory,
		LauncherOptions:      raw.LauncherOptions,
		PreloadRootLibraries: raw.PreloadRootLibraries,
		DisableRankedLog:     raw.DisableRankedLog,
		Backends:             map[string]BackendOptions{},
	}
	for name, opts := range map[string]*BackendOptions{
		"apptainer":   raw.Apptainer,
		"singularity": raw.Singularity,
		"docker":      raw.Docker,
		"podman":      raw.Podman,
		"shifter":     raw.Shifter,
	} {
		if opts != nil {
			c.Backends[name] = *opts
		}
	}
	return c, nil
}

// merge overrides c's fields with any non-zero field set in layer,
// matching Configuration.__or__'s right-hand-wins semantics in the
// original Python.
func (c *Config) merge(layer *Config) {
	if layer.ContainerDirectory != "" {
		c.ContainerDirectory = layer.ContainerDirectory
	}
	if len(layer.LauncherOptions) > 0 {
		c.LauncherOptions = layer.LauncherOptions
	}
	if layer.PreloadRootLibraries {
		c.PreloadRootLibraries = layer.PreloadRootLibraries
	}
	if layer.DisableRankedLog {
		c.DisableRankedLog = layer.DisableRankedLog
	}
	for name, opts := range layer.Backends {
		c.Backends[name] = opts
	}
}
