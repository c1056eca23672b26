package gcode

import (
	"bufio"
	"fmt"
	"os"
)

// ReadLines reads a G-code fragment file and returns every line, used by
// Lint to walk an include file's contents before internal/motion splices
// it verbatim.
func ReadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return lines, nil
}

// Issue is one line Lint could not parse as a G-code command.
type Issue struct {
	Line    int
	Text    string
	Problem error
}

// Lint parses every line of an include-file fragment and reports the ones
// that don't parse as valid G-code, without treating any of them as fatal
// (IncludeFile splices the file's bytes regardless — see package doc).
func Lint(path string) ([]Issue, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	var issues []Issue
	for i, line := range lines {
		if _, err := ParseCommand(line); err != nil {
			issues = append(issues, Issue{Line: i + 1, Text: line, Problem: err})
		}
	}
	return issues, nil
}
