package errors

import (
	"fmt"
	"os"

	"github.com/julianstephens/habitsync/internal/logger"
)

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Exit codes, so scripts can tell a queued change from a rejected one.
const (
	ExitFailure     = 1
	ExitUnavailable = 3 // no durable local storage
	ExitUnreachable = 4 // backend unreachable or busy
	ExitRejected    = 5 // backend rejected the request
)

// ExitCode maps err onto the process exit code.
func ExitCode(err error) int {
	switch Classify(err) {
	case KindNone:
		return 0
	case KindCapability:
		return ExitUnavailable
	case KindConnectivity, KindBusy:
		return ExitUnreachable
	case KindRemote:
		return ExitRejected
	default:
		return ExitFailure
	}
}

// Fatal logs an error, prints it with a hint and exits with ExitCode(err)
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err, "kind", Classify(err))
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		if hint := Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "%s\n", hint)
		}
		os.Exit(ExitCode(err))
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(ExitFailure)
}
