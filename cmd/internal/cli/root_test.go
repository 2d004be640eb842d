package cli

import (
	"testing"

	"github.com/E4S-Project/e4s-cl/pkg/sylog"
)

func resetLevelFlags() {
	debugFlagValue = false
	verboseFlagValue = false
	quietFlagValue = false
	silentFlagValue = false
	noColorValue = false
}

func TestSetSylogMessageLevelFromFlags(t *testing.T) {
	tests := []struct {
		name  string
		set   func()
		level sylog.MessageLevel
	}{
		{"default", func() {}, sylog.InfoLevel},
		{"quiet", func() { quietFlagValue = true }, sylog.WarnLevel},
		{"silent", func() { silentFlagValue = true }, sylog.ErrorLevel},
		{"verbose", func() { verboseFlagValue = true }, sylog.VerboseLevel},
		{"debug", func() { debugFlagValue = true }, sylog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLevelFlags()
			tt.set()
			setSylogMessageLevel()
			if sylog.GetLevel() != tt.level {
				t.Errorf("got level %v, want %v", sylog.GetLevel(), tt.level)
			}
		})
	}
	resetLevelFlags()
}

func TestSetSylogMessageLevelDebugTakesPriority(t *testing.T) {
	resetLevelFlags()
	defer resetLevelFlags()

	debugFlagValue = true
	silentFlagValue = true

	setSylogMessageLevel()

	if sylog.GetLevel() != sylog.DebugLevel {
		t.Errorf("expected debug to take priority over silent, got %v", sylog.GetLevel())
	}
}
