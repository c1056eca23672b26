package cli

import (
	"fmt"
	"os"

	"github.com/chrisns/pcb-forge/internal/forgeerr"
	"github.com/chrisns/pcb-forge/internal/progress"
)

// PrintWarning prints a warning message to stderr.
// Format: "WARNING: <message>"
func PrintWarning(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "WARNING: %s\n", fmt.Sprintf(format, args...))
}

// PrintSummary prints a completed build's statistics to stdout.
func PrintSummary(stats progress.BuildStats) {
	(&progress.ResultFormatter{}).Display(stats)
}

// PrintError prints a "Fatal error" message to stderr (§6 "Exit code 0 on
// success, non-zero with a logged 'Fatal error' on failure") and returns
// the exit code forgeerr.ExitCode maps the error's kind to.
func PrintError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	return forgeerr.ExitCode(err)
}
