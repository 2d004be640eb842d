package cli

import (
	"github.com/spf13/cobra"

	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	"github.com/E4S-Project/e4s-cl/internal/pkg/execute"
	"github.com/E4S-Project/e4s-cl/pkg/cmdline"
)

var (
	executeProfileFlagValue   string
	executeImageFlagValue     string
	executeBackendFlagValue   string
	executeSourceFlagValue    string
	executeLibrariesFlagValue []string
	executeFilesFlagValue     []string
	executeWi4mpiFlagValue    string
	executeFromFlagValue      string
)

var executeProfileFlag = cmdline.Flag{
	ID: "executeProfileFlag", Value: &executeProfileFlagValue,
	Name: "profile", Usage: "profile to read", Required: true,
}

var executeImageFlag = cmdline.Flag{
	ID: "executeImageFlag", Value: &executeImageFlagValue,
	Name: "image", Usage: "overrides the profile's image",
}

var executeBackendFlag = cmdline.Flag{
	ID: "executeBackendFlag", Value: &executeBackendFlagValue,
	Name: "backend", Usage: "overrides the profile's backend",
}

var executeSourceFlag = cmdline.Flag{
	ID: "executeSourceFlag", Value: &executeSourceFlagValue,
	Name: "source", Usage: "overrides the profile's source script",
}

var executeLibrariesFlag = cmdline.Flag{
	ID: "executeLibrariesFlag", Value: &executeLibrariesFlagValue,
	Name: "libraries", Usage: "overrides the profile's library set",
}

var executeFilesFlag = cmdline.Flag{
	ID: "executeFilesFlag", Value: &executeFilesFlagValue,
	Name: "files", Usage: "overrides the profile's bound file set",
}

var executeWi4mpiFlag = cmdline.Flag{
	ID: "executeWi4mpiFlag", Value: &executeWi4mpiFlagValue,
	Name: "wi4mpi", Usage: "overrides the profile's Wi4MPI installation directory",
}

var executeFromFlag = cmdline.Flag{
	ID: "executeFromFlag", Value: &executeFromFlagValue,
	Name: "from", Usage: "MPI family to translate calls from",
}

// executeCmd implements the private `__execute` worker spec.md §6
// describes as hidden from users: `e4s-cl launch` re-invokes itself as
// this command once per rank, via the self-reinvocation launch.Resolve
// builds.
var executeCmd = &cobra.Command{
	Use:    "__execute",
	Short:  "Internal worker invoked by `launch`",
	Hidden: true,
	Args:   cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return e4serr.NewUserError("__execute: no command given")
		}

		code, err := execute.Run(execute.Options{
			ProfileName: executeProfileFlagValue,
			From:        executeFromFlagValue,
			Image:       executeImageFlagValue,
			Backend:     executeBackendFlagValue,
			Source:      executeSourceFlagValue,
			Wi4mpi:      executeWi4mpiFlagValue,
			Libraries:   splitNonEmpty(executeLibrariesFlagValue),
			Files:       splitNonEmpty(executeFilesFlagValue),
			Command:     args,
		}, loadedConfig)
		if err != nil {
			return err
		}

		if code != 0 {
			return e4serr.NewBackendFailure(code, "__execute: command exited with status %d", code)
		}
		return nil
	},
}

func init() {
	addCmdInit(func(manager *cmdline.CommandManager) {
		executeCmd.Flags().SetInterspersed(false)
		manager.RegisterCmd(executeCmd)
		manager.RegisterFlagForCmd(&executeProfileFlag, executeCmd)
		manager.RegisterFlagForCmd(&executeImageFlag, executeCmd)
		manager.RegisterFlagForCmd(&executeBackendFlag, executeCmd)
		manager.RegisterFlagForCmd(&executeSourceFlag, executeCmd)
		manager.RegisterFlagForCmd(&executeLibrariesFlag, executeCmd)
		manager.RegisterFlagForCmd(&executeFilesFlag, executeCmd)
		manager.RegisterFlagForCmd(&executeWi4mpiFlag, executeCmd)
		manager.RegisterFlagForCmd(&executeFromFlag, executeCmd)
	})
}
