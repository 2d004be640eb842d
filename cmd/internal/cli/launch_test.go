package cli

import (
	"errors"
	"testing"

	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
)

func TestSplitNonEmptyDropsEmptyValues(t *testing.T) {
	got := splitNonEmpty([]string{"a", "", "b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestSplitNonEmptyOfEmptySliceIsNil(t *testing.T) {
	if got := splitNonEmpty(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestRunForwardingRejectsEmptyCommand(t *testing.T) {
	if err := runForwarding(nil); err == nil {
		t.Fatal("expected an error for an empty command")
	}
}

func TestRunForwardingPropagatesExitCode(t *testing.T) {
	err := runForwarding([]string{"sh", "-c", "exit 3"})
	if err == nil {
		t.Fatal("expected an error for a non-zero exit")
	}
	var coder e4serr.ExitCoder
	if !errors.As(err, &coder) {
		t.Fatalf("expected an ExitCoder, got %T", err)
	}
	if coder.ExitCode() != 3 {
		t.Fatalf("expected exit code 3, got %d", coder.ExitCode())
	}
}

func TestRunForwardingSucceedsOnZeroExit(t *testing.T) {
	if err := runForwarding([]string{"true"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestRunForwardingReportsMissingBinaryAsEnvironmentError(t *testing.T) {
	err := runForwarding([]string{"e4s-cl-definitely-not-a-real-binary"})
	if err == nil {
		t.Fatal("expected an error for a missing binary")
	}
	var coder e4serr.ExitCoder
	if !errors.As(err, &coder) {
		t.Fatalf("expected an ExitCoder, got %T", err)
	}
	if coder.ExitCode() != e4serr.ExitEnvironment {
		t.Fatalf("expected ExitEnvironment, got %d", coder.ExitCode())
	}
}
