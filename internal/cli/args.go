package cli

import (
	"flag"
	"fmt"
	"runtime"
	"strings"
)

// Version information (set during build with -ldflags).
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildArgs holds the parsed `build` subcommand flags (§6 "CLI").
type BuildArgs struct {
	ForgeFilePath   string
	TargetDirectory string
	Debug           bool
}

// DefaultForgeFilePath and DefaultTargetDirectory are the build
// subcommand's flag defaults (§6).
const (
	DefaultForgeFilePath   = "forge.yaml"
	DefaultTargetDirectory = "forge"
)

// ParseBuildArgs parses the flags following a `build` subcommand (or, via
// ShouldDefaultToBuild, the bare top-level argument list).
func ParseBuildArgs(args []string) (*BuildArgs, error) {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)

	result := &BuildArgs{}
	fs.StringVar(&result.ForgeFilePath, "forge-file-path", DefaultForgeFilePath, "Path to the forge recipe YAML file")
	fs.StringVar(&result.TargetDirectory, "target-directory", DefaultTargetDirectory, "Directory gcode_files outputs are written into")
	fs.BoolVar(&result.Debug, "debug", false, "Emit a best-effort SVG debug render alongside any failure")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	if extra := fs.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("unexpected positional arguments: %v", extra)
	}
	return result, nil
}

// ShouldDefaultToBuild reports whether a bare `pcb-forge` invocation (no
// recognised subcommand) should be treated as `pcb-forge build` with
// default flags, per the original tool's arguments.rs ([EXPANSION]).
func ShouldDefaultToBuild(args []string) bool {
	if len(args) == 0 {
		return true
	}
	first := args[0]
	if first == "build" || ShouldShowHelp(args) || ShouldShowVersion(args) {
		return false
	}
	return strings.HasPrefix(first, "-")
}

// ShouldShowHelp checks if --help or -h is present.
func ShouldShowHelp(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// ShouldShowVersion checks if --version or -v is present.
func ShouldShowVersion(args []string) bool {
	for _, arg := range args {
		if arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// GetHelpText returns the help message text.
func GetHelpText() string {
	var sb strings.Builder

	sb.WriteString("pcb-forge: Gerber/Excellon to G-code compiler\n\n")
	sb.WriteString("Usage: pcb-forge build [FLAGS]\n\n")

	sb.WriteString("Flags:\n")
	sb.WriteString(fmt.Sprintf("  --forge-file-path=<path>     Forge recipe YAML file (default: %s)\n", DefaultForgeFilePath))
	sb.WriteString(fmt.Sprintf("  --target-directory=<path>    Output directory for gcode_files (default: %s)\n", DefaultTargetDirectory))
	sb.WriteString("  --debug                      Emit a best-effort SVG debug render on failure\n")
	sb.WriteString("  --help, -h                   Display this help message\n")
	sb.WriteString("  --version, -v                Display version information\n\n")

	sb.WriteString("A bare `pcb-forge` invocation with no subcommand is an alias for\n")
	sb.WriteString("`pcb-forge build` with default flags.\n\n")

	sb.WriteString("Examples:\n")
	sb.WriteString("  pcb-forge build\n")
	sb.WriteString("  pcb-forge build --forge-file-path board.yaml --target-directory out\n")

	return sb.String()
}

// GetVersionText returns the version information text.
func GetVersionText() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("pcb-forge version %s\n", Version))
	sb.WriteString(fmt.Sprintf("Built with Go %s\n", runtime.Version()))
	sb.WriteString(fmt.Sprintf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH))

	if GitCommit != "unknown" {
		sb.WriteString(fmt.Sprintf("Git commit: %s\n", GitCommit))
	}
	if BuildDate != "unknown" {
		sb.WriteString(fmt.Sprintf("Build date: %s\n", BuildDate))
	}
	return sb.String()
}
