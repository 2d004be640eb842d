package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/E4S-Project/e4s-cl/internal/pkg/classify"
	"github.com/E4S-Project/e4s-cl/internal/pkg/detect"
	"github.com/E4S-Project/e4s-cl/internal/pkg/profile"
	"github.com/E4S-Project/e4s-cl/pkg/cmdline"
	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

// profileCmd is the parent of every `profile` verb, per spec.md §6's
// `profile {create|copy|delete|edit|list|show|select|unselect|detect|
// dump|diff}` tree.
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage profiles",
}

func levelFromSystemFlag(system bool) profile.Level {
	if system {
		return profile.System
	}
	return profile.User
}

// --- create ---

var (
	profileCreateSystemFlagValue  bool
	profileCreateBackendFlagValue string
	profileCreateImageFlagValue   string
	profileCreateSourceFlagValue  string
	profileCreateWi4mpiFlagValue  string
)

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return profile.Create(levelFromSystemFlag(profileCreateSystemFlagValue), profile.Profile{
			Name:    args[0],
			Backend: profile.Backend(profileCreateBackendFlagValue),
			Image:   profileCreateImageFlagValue,
			Source:  profileCreateSourceFlagValue,
			Wi4mpi:  profileCreateWi4mpiFlagValue,
		})
	},
}

// --- copy ---

var profileCopyCmd = &cobra.Command{
	Use:   "copy <source> <destination>",
	Short: "Duplicate a profile under a new name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return profile.Copy(args[0], args[1])
	},
}

// --- delete ---

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile from the user store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return profile.Delete(args[0])
	},
}

// --- edit ---

var (
	profileEditBackendFlagValue     string
	profileEditImageFlagValue       string
	profileEditSourceFlagValue      string
	profileEditWi4mpiFlagValue      string
	profileEditAddLibrariesValue    []string
	profileEditAddFilesValue        []string
)

var profileEditCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Modify a profile in the user store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		return profile.Update(name, func(p *profile.Profile) {
			if profileEditBackendFlagValue != "" {
				p.Backend = profile.Backend(profileEditBackendFlagValue)
			}
			if profileEditImageFlagValue != "" {
				p.Image = profileEditImageFlagValue
			}
			if profileEditSourceFlagValue != "" {
				p.Source = profileEditSourceFlagValue
			}
			if profileEditWi4mpiFlagValue != "" {
				p.Wi4mpi = profileEditWi4mpiFlagValue
			}
			if libs := splitNonEmpty(profileEditAddLibrariesValue); len(libs) > 0 {
				p.Libraries = mergePathsByKey(p.Libraries, classify.Classify(libs, classify.Policy{}).Libraries)
			}
			if files := splitNonEmpty(profileEditAddFilesValue); len(files) > 0 {
				p.Files = mergePathsByKey(p.Files, classify.Classify(files, classify.Policy{}).Files)
			}
		})
	},
}

// mergePathsByKey unions existing and fresh by classify.Path.Key,
// letting fresh win on collisions, matching spec.md §3's dedup-by-key
// invariant and detect.mergeByKey's own merge semantics, applied here
// to an explicit `profile edit --add-libraries/--add-files` instead of
// a trace result.
func mergePathsByKey(existing, fresh []classify.Path) []classify.Path {
	byKey := map[string]classify.Path{}
	for _, p := range existing {
		byKey[p.Key()] = p
	}
	for _, p := range fresh {
		byKey[p.Key()] = p
	}
	out := make([]classify.Path, 0, len(byKey))
	for _, p := range byKey {
		out = append(out, p)
	}
	return out
}

// --- list ---

var profileListSystemFlagValue bool

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var level *profile.Level
		if cmd.Flags().Changed("system") {
			l := levelFromSystemFlag(profileListSystemFlagValue)
			level = &l
		}
		profiles, err := profile.List(level)
		if err != nil {
			return err
		}
		selected, err := profile.Selected()
		if err != nil {
			return err
		}
		for _, p := range profiles {
			marker := " "
			if p.Name == selected {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, p.Name)
		}
		return nil
	},
}

// --- show ---

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Display a profile's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, level, err := profile.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("name:    %s\n", p.Name)
		fmt.Printf("level:   %s\n", level)
		fmt.Printf("backend: %s\n", p.Backend)
		fmt.Printf("image:   %s\n", p.Image)
		fmt.Printf("source:  %s\n", p.Source)
		fmt.Printf("wi4mpi:  %s\n", p.Wi4mpi)
		fmt.Printf("libraries (%d):\n", len(p.Libraries))
		for _, l := range p.Libraries {
			fmt.Printf("  %s\n", l.HostPath)
		}
		fmt.Printf("files (%d):\n", len(p.Files))
		for _, f := range p.Files {
			fmt.Printf("  %s\n", f.HostPath)
		}
		return nil
	},
}

// --- select / unselect ---

var profileSelectCmd = &cobra.Command{
	Use:   "select <name>",
	Short: "Mark a profile as the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return profile.Select(args[0])
	},
}

var profileUnselectCmd = &cobra.Command{
	Use:   "unselect",
	Short: "Clear the active profile selection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return profile.Unselect()
	},
}

// --- detect ---

var (
	profileDetectSystemFlagValue       bool
	profileDetectMPIFlagValue          string
	profileDetectLauncherFlagValue     string
	profileDetectLauncherArgsFlagValue string
)

var profileDetectCmd = &cobra.Command{
	Use:   "detect <name>",
	Short: "Populate a profile by tracing a sample MPI execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var launcherCmd []string
		if profileDetectLauncherFlagValue != "" {
			launcherCmd = append(launcherCmd, profileDetectLauncherFlagValue)
			launcherCmd = append(launcherCmd, strings.Fields(profileDetectLauncherArgsFlagValue)...)
		}
		if profileDetectMPIFlagValue != "" {
			launcherCmd = append(launcherCmd, profileDetectMPIFlagValue)
		}

		level := levelFromSystemFlag(profileDetectSystemFlagValue)
		sylog.Infof("profile detect: tracing profile %q", args[0])
		return detect.Run(context.Background(), level, args[0], detect.Options{Launcher: launcherCmd})
	},
}

// --- dump ---

var profileDumpSystemFlagValue bool

var profileDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every profile at a storage level in a diffable form",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := profile.Dump(levelFromSystemFlag(profileDumpSystemFlagValue))
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	},
}

// --- diff ---

var profileDiffCmd = &cobra.Command{
	Use:   "diff <profile-a> <profile-b>",
	Short: "Compare two profiles' libraries, files and fields",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := profile.Get(args[0])
		if err != nil {
			return err
		}
		b, _, err := profile.Get(args[1])
		if err != nil {
			return err
		}
		d := profile.DiffProfiles(*a, *b)
		for _, k := range d.OnlyInA {
			fmt.Printf("- %s\n", k)
		}
		for _, k := range d.OnlyInB {
			fmt.Printf("+ %s\n", k)
		}
		for field, values := range d.Fields {
			fmt.Printf("~ %s: %s -> %s\n", field, values[0], values[1])
		}
		return nil
	},
}

func init() {
	addCmdInit(func(manager *cmdline.CommandManager) {
		manager.RegisterCmd(profileCmd)

		profileCmd.AddCommand(profileCreateCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileCreateSystemFlag", Value: &profileCreateSystemFlagValue, DefaultValue: false, Name: "system", Usage: "create in the system store"}, profileCreateCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileCreateBackendFlag", Value: &profileCreateBackendFlagValue, Name: "backend", Usage: "container backend"}, profileCreateCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileCreateImageFlag", Value: &profileCreateImageFlagValue, Name: "image", Usage: "container image"}, profileCreateCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileCreateSourceFlag", Value: &profileCreateSourceFlagValue, Name: "source", Usage: "shell script to source"}, profileCreateCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileCreateWi4mpiFlag", Value: &profileCreateWi4mpiFlagValue, Name: "wi4mpi", Usage: "Wi4MPI installation directory"}, profileCreateCmd)

		profileCmd.AddCommand(profileCopyCmd)
		profileCmd.AddCommand(profileDeleteCmd)

		profileCmd.AddCommand(profileEditCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileEditBackendFlag", Value: &profileEditBackendFlagValue, Name: "backend", Usage: "container backend"}, profileEditCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileEditImageFlag", Value: &profileEditImageFlagValue, Name: "image", Usage: "container image"}, profileEditCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileEditSourceFlag", Value: &profileEditSourceFlagValue, Name: "source", Usage: "shell script to source"}, profileEditCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileEditWi4mpiFlag", Value: &profileEditWi4mpiFlagValue, Name: "wi4mpi", Usage: "Wi4MPI installation directory"}, profileEditCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileEditAddLibrariesFlag", Value: &profileEditAddLibrariesValue, Name: "add-libraries", Usage: "comma-separated libraries to add"}, profileEditCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileEditAddFilesFlag", Value: &profileEditAddFilesValue, Name: "add-files", Usage: "comma-separated files to add"}, profileEditCmd)

		profileCmd.AddCommand(profileListCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileListSystemFlag", Value: &profileListSystemFlagValue, DefaultValue: false, Name: "system", Usage: "list the system store instead of both stores"}, profileListCmd)

		profileCmd.AddCommand(profileShowCmd)
		profileCmd.AddCommand(profileSelectCmd)
		profileCmd.AddCommand(profileUnselectCmd)

		profileCmd.AddCommand(profileDetectCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileDetectSystemFlag", Value: &profileDetectSystemFlagValue, DefaultValue: false, Name: "system", Usage: "store the profile in the system store"}, profileDetectCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileDetectMPIFlag", Value: &profileDetectMPIFlagValue, Name: "mpi", Usage: "sample MPI program to trace"}, profileDetectCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileDetectLauncherFlag", Value: &profileDetectLauncherFlagValue, Name: "launcher", Usage: "launcher binary to run the sample program with"}, profileDetectCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileDetectLauncherArgsFlag", Value: &profileDetectLauncherArgsFlagValue, Name: "launcher_args", Usage: "launcher arguments, as one shell-quoted string"}, profileDetectCmd)

		profileCmd.AddCommand(profileDumpCmd)
		manager.RegisterFlagForCmd(&cmdline.Flag{ID: "profileDumpSystemFlag", Value: &profileDumpSystemFlagValue, DefaultValue: false, Name: "system", Usage: "dump the system store instead of the user store"}, profileDumpCmd)

		profileCmd.AddCommand(profileDiffCmd)
	})
}
