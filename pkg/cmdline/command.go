package cmdline

import (
	"errors"

	"github.com/spf13/cobra"
)

// CommandManager collects registration errors across a batch of
// RegisterCmd/RegisterFlagForCmd calls instead of failing fast, so a CLI
// init routine can attempt every registration and report every mistake
// at once (apptainer.go's own "any error reported by command manager is
// considered fatal" pattern).
type CommandManager struct {
	root       *cobra.Command
	errPool    []error
	flagsByCmd map[*cobra.Command][]*Flag
}

// NewCommandManager returns a manager rooted at root.
func NewCommandManager(root *cobra.Command) *CommandManager {
	return &CommandManager{root: root, flagsByCmd: map[*cobra.Command][]*Flag{}}
}

func errNilRegistration(flag *Flag, cmd *cobra.Command) error {
	switch {
	case flag == nil && cmd == nil:
		return errors.New("cmdline: nil flag and nil command")
	case flag == nil:
		return errors.New("cmdline: nil flag")
	default:
		return errors.New("cmdline: nil command")
	}
}

// RegisterCmd attaches cmd as a child of the manager's root command.
func (m *CommandManager) RegisterCmd(cmd *cobra.Command) {
	m.root.AddCommand(cmd)
}

// RegisterFlagForCmd binds flag onto cmd, recording any error rather
// than returning it, matching the fire-and-forget style every call site
// in cmd/internal/cli uses.
func (m *CommandManager) RegisterFlagForCmd(flag *Flag, cmd *cobra.Command) {
	if flag == nil || cmd == nil {
		m.errPool = append(m.errPool, errNilRegistration(flag, cmd))
		return
	}
	if err := flag.registerOn(cmd); err != nil {
		m.errPool = append(m.errPool, err)
		return
	}
	m.flagsByCmd[cmd] = append(m.flagsByCmd[cmd], flag)
}

// UpdateCmdFlagFromEnv applies environment overrides for every flag
// registered on cmd, in declaration order. seen is shared across
// multiple precedence levels by the caller (see apptainer.go's
// ApptainerPrefixes loop) so a value already resolved at a higher
// precedence is not clobbered by a lower one. The int precedence
// argument exists for call-site compatibility and is unused.
func (m *CommandManager) UpdateCmdFlagFromEnv(cmd *cobra.Command, _ int, seen map[string]string) error {
	for _, flag := range m.flagsByCmd[cmd] {
		if err := flag.updateFromEnv(cmd.Flags(), seen); err != nil {
			return err
		}
	}
	return nil
}

// GetError returns every registration error recorded so far.
func (m *CommandManager) GetError() []error {
	return m.errPool
}
