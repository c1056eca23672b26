package gcode

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseCommandBlankLine(t *testing.T) {
	cmd, err := ParseCommand("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.Letter != "" {
		t.Fatalf("expected empty command for blank line, got %+v", cmd)
	}
}

func TestParseCommandComment(t *testing.T) {
	cmd, err := ParseCommand("; laser on")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cmd.IsComment() {
		t.Fatalf("expected a comment command, got %+v", cmd)
	}
}

func TestParseCommandMoveWithParams(t *testing.T) {
	cmd, err := ParseCommand("G1 X10 Y20 F1500")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.Letter != "G" || cmd.Value != 1 {
		t.Fatalf("expected G1, got %+v", cmd)
	}
	if !cmd.HasParam("X") || !cmd.HasParam("F") {
		t.Fatalf("expected X and F params, got %+v", cmd.Params)
	}
}

func TestLintFlagsUnparseableLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "init.gcode")
	content := "G90\nG0 X0 Y0\nnot valid gcode !!\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	issues, err := Lint(path)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(issues) != 1 || issues[0].Line != 3 {
		t.Fatalf("expected exactly one issue on line 3, got %+v", issues)
	}
}

func TestLintCleanFileHasNoIssues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shutdown.gcode")
	content := "M5\nG0 Z5\n; done\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	issues, err := Lint(path)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}
