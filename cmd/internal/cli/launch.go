package cli

import (
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/E4S-Project/e4s-cl/internal/pkg/container"
	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	"github.com/E4S-Project/e4s-cl/internal/pkg/launch"
	"github.com/E4S-Project/e4s-cl/pkg/cmdline"
	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

var (
	launchProfileFlagValue   string
	launchImageFlagValue     string
	launchBackendFlagValue   string
	launchSourceFlagValue    string
	launchLibrariesFlagValue []string
	launchFilesFlagValue     []string
	launchWi4mpiFlagValue    string
	launchFromFlagValue      string
)

var launchProfileFlag = cmdline.Flag{
	ID: "launchProfileFlag", Value: &launchProfileFlagValue,
	Name: "profile", Usage: "profile to use; overridden fields take priority over its contents",
}

var launchImageFlag = cmdline.Flag{
	ID: "launchImageFlag", Value: &launchImageFlagValue,
	Name: "image", Usage: "path or identifier of the container image to run the program in",
}

var launchBackendFlag = cmdline.Flag{
	ID: "launchBackendFlag", Value: &launchBackendFlagValue,
	Name: "backend", Usage: "container backend to use. Available backends are: " + strings.Join(container.ExposedBackends(), ", "),
}

var launchSourceFlag = cmdline.Flag{
	ID: "launchSourceFlag", Value: &launchSourceFlagValue,
	Name: "source", Usage: "shell script to source inside the container before the command",
}

var launchLibrariesFlag = cmdline.Flag{
	ID: "launchLibrariesFlag", Value: &launchLibrariesFlagValue,
	Name: "libraries", Usage: "comma-separated list of libraries to bind",
}

var launchFilesFlag = cmdline.Flag{
	ID: "launchFilesFlag", Value: &launchFilesFlagValue,
	Name: "files", Usage: "comma-separated list of files to bind",
}

var launchWi4mpiFlag = cmdline.Flag{
	ID: "launchWi4mpiFlag", Value: &launchWi4mpiFlagValue,
	Name: "wi4mpi", Usage: "path to an existing Wi4MPI installation to reuse",
}

var launchFromFlag = cmdline.Flag{
	ID: "launchFromFlag", Value: &launchFromFlagValue,
	Name: "from", Usage: "translate from this MPI family instead of auto-detecting it (no translation when the container already uses it)",
}

// launchCmd implements `e4s-cl launch`: it rewrites the user's launcher
// invocation into a self-reinvocation of `__execute` for each rank and
// runs it, following spec.md §4.8/§6.
var launchCmd = &cobra.Command{
	Use:   "launch [arguments] [launcher] [launcher_arguments] [--] <command> [command_arguments]",
	Short: "Launch a process with a tailored environment",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return e4serr.NewUserError("launch: no command given")
		}

		plan, err := launch.Resolve(args, launch.Flags{
			ProfileName: launchProfileFlagValue,
			Image:       launchImageFlagValue,
			Backend:     launchBackendFlagValue,
			Source:      launchSourceFlagValue,
			Libraries:   splitNonEmpty(launchLibrariesFlagValue),
			Files:       splitNonEmpty(launchFilesFlagValue),
			Wi4mpi:      launchWi4mpiFlagValue,
			From:        launchFromFlagValue,
		})
		if err != nil {
			return err
		}

		sylog.Debugf("launch: %s", strings.Join(plan.Command, " "))

		return runForwarding(plan.Command)
	},
}

// splitNonEmpty flattens a StringSliceVarP's accumulated values (which
// already split on commas) back into one list, dropping empties left
// by an unset flag.
func splitNonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// runForwarding spawns command, forwarding stdio, and translates its
// exit status into this process's own exit code via a BackendFailure,
// mirroring original_source's create_subprocess_exp: the launcher is
// run to completion rather than exec'd in place, since e4s-cl itself
// has nothing useful left to do once the launcher starts but does need
// to observe its exit status.
func runForwarding(command []string) error {
	if len(command) == 0 {
		return e4serr.NewUserError("launch: nothing to run")
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return e4serr.NewBackendFailure(exitErr.ExitCode(), "launch: %s exited with status %d", command[0], exitErr.ExitCode())
	}
	return e4serr.NewEnvironmentError("check that the launcher binary exists and is executable", "launch: could not start %s: %s", command[0], err)
}

func init() {
	addCmdInit(func(manager *cmdline.CommandManager) {
		// The launcher and its own arguments (e.g. mpirun -n 4) follow
		// launchCmd's own flags positionally rather than being registered
		// flags of this command, so flag parsing must stop at the first
		// non-flag token instead of erroring on an unrecognized one.
		launchCmd.Flags().SetInterspersed(false)
		manager.RegisterCmd(launchCmd)
		manager.RegisterFlagForCmd(&launchProfileFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchImageFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchBackendFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchSourceFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchLibrariesFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchFilesFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchWi4mpiFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchFromFlag, launchCmd)
	})
}
