package cli

import "testing"

func TestParseBuildArgsDefaults(t *testing.T) {
	args, err := ParseBuildArgs(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if args.ForgeFilePath != DefaultForgeFilePath || args.TargetDirectory != DefaultTargetDirectory || args.Debug {
		t.Fatalf("unexpected defaults: %+v", args)
	}
}

func TestParseBuildArgsOverrides(t *testing.T) {
	args, err := ParseBuildArgs([]string{"--forge-file-path", "board.yaml", "--target-directory", "out", "--debug"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if args.ForgeFilePath != "board.yaml" || args.TargetDirectory != "out" || !args.Debug {
		t.Fatalf("unexpected overrides: %+v", args)
	}
}

func TestParseBuildArgsRejectsPositional(t *testing.T) {
	if _, err := ParseBuildArgs([]string{"unexpected"}); err == nil {
		t.Fatal("expected an error for unexpected positional arguments")
	}
}

func TestShouldDefaultToBuildBareInvocation(t *testing.T) {
	if !ShouldDefaultToBuild(nil) {
		t.Fatal("expected a bare invocation to default to build")
	}
	if !ShouldDefaultToBuild([]string{"--debug"}) {
		t.Fatal("expected a flag-only invocation to default to build")
	}
}

func TestShouldDefaultToBuildRejectsExplicitSubcommand(t *testing.T) {
	if ShouldDefaultToBuild([]string{"build"}) {
		t.Fatal("expected an explicit build subcommand not to re-default")
	}
	if ShouldDefaultToBuild([]string{"--help"}) {
		t.Fatal("expected --help not to default to build")
	}
}

func TestShouldShowHelpAndVersion(t *testing.T) {
	if !ShouldShowHelp([]string{"--help"}) {
		t.Fatal("expected --help to be detected")
	}
	if !ShouldShowVersion([]string{"-v"}) {
		t.Fatal("expected -v to be detected")
	}
}
