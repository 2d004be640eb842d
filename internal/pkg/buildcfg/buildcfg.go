// Package buildcfg holds the small set of path defaults e4s-cl needs at
// runtime: where the in-container bind root lives, where the user and
// system profile stores live, and where the default config search path
// points. Real installations override these through the environment
// variables named in spec.md §6; the constants below are the fallbacks.
package buildcfg

import (
	"os"
	"path/filepath"
)

// ContainerDirEnv is the environment variable used to override the
// in-container bind root (spec.md §6).
const ContainerDirEnv = "E4S_CL_CONTAINER_DIR"

// DefaultContainerDir is the default in-container bind root.
const DefaultContainerDir = "/.e4s-cl"

// EntryScriptName is the fixed name of the synthesized entry script inside
// the bind root.
const EntryScriptName = "entry"

// ContainerDir returns the configured in-container bind root.
func ContainerDir() string {
	if v := os.Getenv(ContainerDirEnv); v != "" {
		return v
	}
	return DefaultContainerDir
}

// EntryScriptPath returns the absolute in-container path of the entry
// script, e.g. /.e4s-cl/entry.
func EntryScriptPath() string {
	return filepath.Join(ContainerDir(), EntryScriptName)
}

// HostLibraryBindDir is the in-container mount point for the host library
// staging directory (spec.md §4.9 step 5).
func HostLibraryBindDir() string {
	return filepath.Join(ContainerDir(), "hostlibs")
}

// UserStorePath returns the path to the per-user profile document.
func UserStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".local", "e4s_cl", "user.json")
}

// SystemStorePath returns the path to the read-only system profile
// document, rooted at the installation prefix.
func SystemStorePath() string {
	prefix := os.Getenv("E4S_CL_INSTALL_PREFIX")
	if prefix == "" {
		prefix = "/usr/local"
	}
	return filepath.Join(prefix, "e4s_cl", "system.json")
}

// StagingRoot is the parent directory under which per-rank bind
// directories are created (spec.md §4.9 step 4).
func StagingRoot() string {
	if v := os.Getenv("E4S_CL_STAGING_ROOT"); v != "" {
		return v
	}
	return filepath.Join(os.TempDir(), ".e4s-cl")
}

// ConfigSearchPath returns the ordered list of config file locations,
// later entries override earlier ones (spec.md §6).
func ConfigSearchPath() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	prefix := os.Getenv("E4S_CL_INSTALL_PREFIX")
	if prefix == "" {
		prefix = "/usr/local"
	}
	return []string{
		"/etc/e4s-cl/e4s-cl.yaml",
		filepath.Join(prefix, "e4s-cl.yaml"),
		filepath.Join(home, ".config", "e4s-cl.yaml"),
	}
}

// PackageName is used in the CLI's user-agent-style banner.
const PackageName = "e4s-cl"
