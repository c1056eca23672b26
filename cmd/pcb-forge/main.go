package main

import (
	"fmt"
	"os"

	"github.com/chrisns/pcb-forge/internal/cli"
	"github.com/chrisns/pcb-forge/internal/forge"
)

func main() {
	exitCode := run(os.Args[1:])
	os.Exit(exitCode)
}

func run(args []string) int {
	if cli.ShouldShowHelp(args) {
		fmt.Print(cli.GetHelpText())
		return 0
	}
	if cli.ShouldShowVersion(args) {
		fmt.Print(cli.GetVersionText())
		return 0
	}

	if !(len(args) > 0 && args[0] == "build") && !cli.ShouldDefaultToBuild(args) {
		fmt.Fprintf(os.Stderr, "Fatal error: unrecognized subcommand %q\n", args[0])
		return 2
	}

	buildArgs := args
	if len(args) > 0 && args[0] == "build" {
		buildArgs = args[1:]
	}

	parsed, err := cli.ParseBuildArgs(buildArgs)
	if err != nil {
		return cli.PrintError(err)
	}

	stats, err := forge.Run(forge.Options{
		ForgeFilePath:   parsed.ForgeFilePath,
		TargetDirectory: parsed.TargetDirectory,
		Debug:           parsed.Debug,
	}, os.Stdout)
	if err != nil {
		return cli.PrintError(err)
	}

	cli.PrintSummary(stats)
	return 0
}
