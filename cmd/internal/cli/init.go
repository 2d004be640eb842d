package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/E4S-Project/e4s-cl/internal/pkg/detect"
	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	"github.com/E4S-Project/e4s-cl/internal/pkg/profile"
	"github.com/E4S-Project/e4s-cl/pkg/cmdline"
	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

var (
	initSystemFlagValue        bool
	initMPIFlagValue           string
	initLauncherFlagValue      string
	initLauncherArgsFlagValue  string
	initImageFlagValue         string
	initBackendFlagValue       string
	initSourceFlagValue        string
	initProfileFlagValue       string
	initWi4mpiFlagValue        string
)

var initSystemFlag = cmdline.Flag{
	ID: "initSystemFlag", Value: &initSystemFlagValue, DefaultValue: false,
	Name: "system", Usage: "create the profile in the system store instead of the user store",
}

var initMPIFlag = cmdline.Flag{
	ID: "initMPIFlag", Value: &initMPIFlagValue,
	Name: "mpi", Usage: "path to a sample MPI program to trace instead of the built-in probe",
}

var initLauncherFlag = cmdline.Flag{
	ID: "initLauncherFlag", Value: &initLauncherFlagValue,
	Name: "launcher", Usage: "launcher binary to run the sample program with",
}

var initLauncherArgsFlag = cmdline.Flag{
	ID: "initLauncherArgsFlag", Value: &initLauncherArgsFlagValue,
	Name: "launcher_args", Usage: "arguments passed to the launcher binary, as one shell-quoted string",
}

var initImageFlag = cmdline.Flag{
	ID: "initImageFlag", Value: &initImageFlagValue,
	Name: "image", Usage: "container image the resulting profile should target",
}

var initBackendFlag = cmdline.Flag{
	ID: "initBackendFlag", Value: &initBackendFlagValue,
	Name: "backend", Usage: "container backend the resulting profile should use",
}

var initSourceFlag = cmdline.Flag{
	ID: "initSourceFlag", Value: &initSourceFlagValue,
	Name: "source", Usage: "shell script to source inside the container before the command",
}

var initProfileFlag = cmdline.Flag{
	ID: "initProfileFlag", Value: &initProfileFlagValue, DefaultValue: "default",
	Name: "profile", Usage: "name of the profile to create or update",
}

var initWi4mpiFlag = cmdline.Flag{
	ID: "initWi4mpiFlag", Value: &initWi4mpiFlagValue,
	Name: "wi4mpi", Usage: "path to an existing Wi4MPI installation to reuse",
}

// initCmd implements `e4s-cl init`: create (or update) a profile and
// populate it by tracing a sample MPI execution, per spec.md §6. It is
// pure orchestration over C5 (profile) and C7 (detect); spec.md's
// component list names no separate component for it.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a profile for this system by analyzing a sample MPI execution",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := profile.User
		if initSystemFlagValue {
			level = profile.System
		}

		if _, _, createErr := profile.Get(initProfileFlagValue); createErr != nil {
			if err := profile.Create(level, profile.Profile{Name: initProfileFlagValue}); err != nil {
				return err
			}
		}

		if err := profile.Update(initProfileFlagValue, func(p *profile.Profile) {
			if initImageFlagValue != "" {
				p.Image = initImageFlagValue
			}
			if initBackendFlagValue != "" {
				p.Backend = profile.Backend(initBackendFlagValue)
			}
			if initSourceFlagValue != "" {
				p.Source = initSourceFlagValue
			}
			if initWi4mpiFlagValue != "" {
				p.Wi4mpi = initWi4mpiFlagValue
			}
		}); err != nil {
			return err
		}

		launcherCmd := buildProbeCommand()

		sylog.Infof("init: tracing %s to build profile %q", strings.Join(launcherCmd, " "), initProfileFlagValue)

		if err := detect.Run(context.Background(), level, initProfileFlagValue, detect.Options{Launcher: launcherCmd}); err != nil {
			return e4serr.Wrap(err, "init")
		}

		sylog.Infof("init: profile %q is ready", initProfileFlagValue)
		return nil
	},
}

// buildProbeCommand assembles the sample command detect.Run traces,
// from --launcher/--launcher_args/--mpi, falling back to
// detect.DefaultProbe when none of them were given.
func buildProbeCommand() []string {
	if initLauncherFlagValue == "" && initMPIFlagValue == "" {
		return nil
	}

	var cmd []string
	if initLauncherFlagValue != "" {
		cmd = append(cmd, initLauncherFlagValue)
		cmd = append(cmd, strings.Fields(initLauncherArgsFlagValue)...)
	}
	if initMPIFlagValue != "" {
		cmd = append(cmd, initMPIFlagValue)
	} else {
		cmd = append(cmd, detect.DefaultProbe...)
	}
	return cmd
}

func init() {
	addCmdInit(func(manager *cmdline.CommandManager) {
		manager.RegisterCmd(initCmd)
		manager.RegisterFlagForCmd(&initSystemFlag, initCmd)
		manager.RegisterFlagForCmd(&initMPIFlag, initCmd)
		manager.RegisterFlagForCmd(&initLauncherFlag, initCmd)
		manager.RegisterFlagForCmd(&initLauncherArgsFlag, initCmd)
		manager.RegisterFlagForCmd(&initImageFlag, initCmd)
		manager.RegisterFlagForCmd(&initBackendFlag, initCmd)
		manager.RegisterFlagForCmd(&initSourceFlag, initCmd)
		manager.RegisterFlagForCmd(&initProfileFlag, initCmd)
		manager.RegisterFlagForCmd(&initWi4mpiFlag, initCmd)
	})
}
