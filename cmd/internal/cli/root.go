// Package cli wires spec.md §6's CLI surface onto cobra, following
// cmd/internal/cli/apptainer.go's shape: a package-level root command,
// a slice of init funcs each command file appends itself to, and one
// Execute entry point cmd/e4s-cl/main.go calls.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/E4S-Project/e4s-cl/internal/pkg/buildcfg"
	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	"github.com/E4S-Project/e4s-cl/pkg/cmdline"
	"github.com/E4S-Project/e4s-cl/pkg/config"
	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

var cmdInits = make([]func(*cmdline.CommandManager), 0)

func addCmdInit(f func(*cmdline.CommandManager)) {
	cmdInits = append(cmdInits, f)
}

var (
	debugFlagValue   bool
	verboseFlagValue bool
	quietFlagValue   bool
	silentFlagValue  bool
	noColorValue     bool
)

var debugFlag = cmdline.Flag{
	ID: "debugFlag", Value: &debugFlagValue, DefaultValue: false,
	Name: "debug", ShortHand: "d", Usage: "print debugging information (highest verbosity)",
	EnvKeys: []string{"DEBUG"},
}

var verboseFlag = cmdline.Flag{
	ID: "verboseFlag", Value: &verboseFlagValue, DefaultValue: false,
	Name: "verbose", ShortHand: "v", Usage: "print additional information",
	EnvKeys: []string{"VERBOSE"},
}

var quietFlag = cmdline.Flag{
	ID: "quietFlag", Value: &quietFlagValue, DefaultValue: false,
	Name: "quiet", ShortHand: "q", Usage: "suppress normal output",
}

var silentFlag = cmdline.Flag{
	ID: "silentFlag", Value: &silentFlagValue, DefaultValue: false,
	Name: "silent", ShortHand: "s", Usage: "only print errors",
}

var noColorFlag = cmdline.Flag{
	ID: "noColorFlag", Value: &noColorValue, DefaultValue: false,
	Name: "nocolor", Usage: "print without color output",
}

func setSylogMessageLevel() {
	var level sylog.MessageLevel
	switch {
	case debugFlagValue:
		level = sylog.DebugLevel
	case verboseFlagValue:
		level = sylog.VerboseLevel
	case quietFlagValue:
		level = sylog.WarnLevel
	case silentFlagValue:
		level = sylog.ErrorLevel
	default:
		level = sylog.InfoLevel
	}
	sylog.SetLevel(level)
	sylog.SetNoColor(noColorValue)
}

// rootCmd is the base `e4s-cl` command.
var rootCmd = &cobra.Command{
	Use:                   buildcfg.PackageName,
	Short:                 "Run MPI applications in containers using the host's MPI implementation",
	SilenceErrors:         true,
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	TraverseChildren:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// loadedConfig is the merged configuration read once by the root
// command's PersistentPreRunE and handed to every subcommand that needs
// it, following spec.md §6's layered YAML search order.
var loadedConfig *config.Config

func persistentPreRun(cmd *cobra.Command, args []string) error {
	setSylogMessageLevel()

	cfg, err := config.Load()
	if err != nil {
		return e4serr.Wrap(err, "loading configuration")
	}
	loadedConfig = cfg
	return nil
}

// Init registers every subcommand and global flag, mirroring
// apptainer.go's Init(loadPlugins bool) with the plugin-loading branch
// dropped (spec.md §1 treats plugins as out of scope).
func Init() {
	manager := cmdline.NewCommandManager(rootCmd)

	rootCmd.PersistentFlags().SetInterspersed(false)

	manager.RegisterFlagForCmd(&debugFlag, rootCmd)
	manager.RegisterFlagForCmd(&verboseFlag, rootCmd)
	manager.RegisterFlagForCmd(&quietFlag, rootCmd)
	manager.RegisterFlagForCmd(&silentFlag, rootCmd)
	manager.RegisterFlagForCmd(&noColorFlag, rootCmd)

	rootCmd.PersistentPreRunE = persistentPreRun

	for _, initFn := range cmdInits {
		initFn(manager)
	}

	if errs := manager.GetError(); len(errs) > 0 {
		for _, err := range errs {
			sylog.Errorf("%s", err)
		}
		sylog.Fatalf("command-line registration reported %d error(s)", len(errs))
	}
}

// Execute runs the root command and translates its returned error into
// a process exit code via e4serr.CodeOf, per spec.md §6's exit code
// table. This is the only place os.Exit is called outside sylog.Fatalf.
func Execute() {
	Init()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(e4serr.CodeOf(err))
	}
}
