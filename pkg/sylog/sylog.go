// Package sylog provides the level-gated logger used across e4s-cl,
// modeled on apptainer's pkg/sylog: a small set of package-level
// Debugf/Verbosef/Infof/Warningf/Errorf/Fatalf functions writing to
// stderr, gated by a level read from an environment variable at process
// start and settable at runtime by the CLI's -d/-v/-q/-s flags.
package sylog

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// MessageLevel mirrors apptainer's messageLevel enum.
type MessageLevel int

const (
	FatalLevel MessageLevel = iota - 4
	ErrorLevel
	WarnLevel
	LogLevel
	InfoLevel
	VerboseLevel
	Verbose2Level
	Verbose3Level
	DebugLevel
)

func (l MessageLevel) String() string {
	switch l {
	case FatalLevel:
		return "FATAL"
	case ErrorLevel:
		return "ERROR"
	case WarnLevel:
		return "WARNING"
	case LogLevel:
		return "LOG"
	case InfoLevel:
		return "INFO"
	case DebugLevel:
		return "DEBUG"
	default:
		return "VERBOSE"
	}
}

// MessageLevelEnv is checked at init, following apptainer's
// APPTAINER_MESSAGELEVEL convention.
const MessageLevelEnv = "E4S_CL_MESSAGELEVEL"

var (
	loggerLevel = InfoLevel
	logWriter   = io.Writer(os.Stderr)
	noColor     = false
)

var messageColor = map[MessageLevel]color.Attribute{
	FatalLevel: color.FgRed,
	ErrorLevel: color.FgRed,
	WarnLevel:  color.FgYellow,
	InfoLevel:  color.FgBlue,
}

func init() {
	if l, err := strconv.Atoi(os.Getenv(MessageLevelEnv)); err == nil {
		loggerLevel = MessageLevel(l)
	}
	if os.Getenv("NO_COLOR") != "" {
		noColor = true
	}
}

// SetLevel overrides the active logger level, used by the CLI's
// -d/-v/-q/-s flags.
func SetLevel(l MessageLevel) { loggerLevel = l }

// SetNoColor disables ANSI coloring of level prefixes, used by --nocolor.
func SetNoColor(v bool) { noColor = v }

// GetLevel returns the active logger level.
func GetLevel() MessageLevel { return loggerLevel }

func prefix(msgLevel MessageLevel) string {
	tag := msgLevel.String() + ":"
	if noColor {
		return fmt.Sprintf("%-8s ", tag)
	}
	attr, ok := messageColor[msgLevel]
	if !ok {
		return fmt.Sprintf("%-8s ", tag)
	}
	return color.New(attr).Sprintf("%-8s ", tag)
}

func writef(msgLevel MessageLevel, format string, a ...interface{}) {
	if loggerLevel < msgLevel {
		return
	}
	message := fmt.Sprintf(format, a...)
	message = strings.TrimRight(message, "\n")

	if loggerLevel >= DebugLevel {
		pc, _, _, ok := runtime.Caller(2)
		funcName := "????()"
		if ok {
			if details := runtime.FuncForPC(pc); details != nil {
				parts := strings.Split(details.Name(), ".")
				funcName = parts[len(parts)-1] + "()"
			}
		}
		fmt.Fprintf(logWriter, "%s[U=%d,P=%d] %-30s %s\n",
			prefix(msgLevel), os.Geteuid(), os.Getpid(), funcName, message)
		return
	}

	fmt.Fprintf(logWriter, "%s%s\n", prefix(msgLevel), message)
}

func Debugf(format string, a ...interface{})   { writef(DebugLevel, format, a...) }
func Verbosef(format string, a ...interface{}) { writef(VerboseLevel, format, a...) }
func Infof(format string, a ...interface{})    { writef(InfoLevel, format, a...) }
func Logf(format string, a ...interface{})     { writef(LogLevel, format, a...) }
func Warningf(format string, a ...interface{}) { writef(WarnLevel, format, a...) }
func Errorf(format string, a ...interface{})   { writef(ErrorLevel, format, a...) }

// Fatalf logs at FatalLevel then terminates the process. Only called from
// cmd/internal/cli top-level handlers, never from internal packages,
// which must return errors instead (spec.md §7: "no silent failure of
// any stage").
func Fatalf(format string, a ...interface{}) {
	writef(FatalLevel, format, a...)
	os.Exit(1)
}
