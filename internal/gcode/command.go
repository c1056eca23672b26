// Package gcode is a best-effort linter for the literal G-code fragments a
// forge recipe splices in via IncludeFile (init_gcode/shutdown_gcode, §4.H
// "IncludeFile"): it parses each line with github.com/256dpi/gcode, the
// same library internal/motion uses to emit moves, and reports lines that
// don't parse as a G-code command so the orchestrator can warn about a
// malformed include file without blocking the splice — the spec treats
// IncludeFile's payload as opaque literal text, so a lint finding is
// advisory, never fatal.
package gcode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/256dpi/gcode"
)

// Command is a parsed G-code line, kept as a flat struct with a Comment
// field rather than a dedicated comment type, mirroring the flat
// discriminated-struct idiom used throughout this repo's command streams.
type Command struct {
	Letter  string
	Value   int
	Params  map[string]float64
	Comment string
}

// ParseCommand parses a single G-code line into a Command. Blank lines and
// full-line comments (leading `;`) parse successfully with no codes.
func ParseCommand(input string) (Command, error) {
	input = strings.TrimSpace(input)

	if input == "" {
		return Command{}, nil
	}

	if strings.HasPrefix(input, ";") {
		return Command{Comment: input}, nil
	}

	parsed, err := gcode.ParseLine(input)
	if err != nil {
		return Command{}, fmt.Errorf("failed to parse line: %w", err)
	}

	cmd := Command{Params: make(map[string]float64)}
	for _, c := range parsed.Codes {
		switch c.Letter {
		case "G", "M", "T":
			cmd.Letter = c.Letter
			cmd.Value = int(c.Value)
		default:
			cmd.Params[c.Letter] = c.Value
		}
	}
	if parsed.Comment != "" {
		cmd.Comment = parsed.Comment
	}
	return cmd, nil
}

// IsComment reports whether this command is a full-line comment.
func (c Command) IsComment() bool {
	return c.Comment != "" && c.Letter == ""
}

// IsMachineCode reports whether this is an M-code.
func (c Command) IsMachineCode() bool {
	return c.Letter == "M"
}

// HasParam reports whether the command carries the named parameter.
func (c Command) HasParam(param string) bool {
	_, ok := c.Params[param]
	return ok
}

// String renders the command back to G-code text.
func (c Command) String() string {
	if c.IsComment() {
		return c.Comment
	}
	if c.Letter == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(c.Letter)
	sb.WriteString(strconv.Itoa(c.Value))

	order := []string{"X", "Y", "Z", "B", "A", "F", "S", "I", "J", "K", "P", "Q", "R"}
	seen := map[string]bool{}
	for _, p := range order {
		if val, ok := c.Params[p]; ok {
			seen[p] = true
			sb.WriteString(" ")
			sb.WriteString(p)
			sb.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
		}
	}
	for p, val := range c.Params {
		if seen[p] {
			continue
		}
		sb.WriteString(" ")
		sb.WriteString(p)
		sb.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
	}
	if c.Comment != "" {
		sb.WriteString(" ")
		sb.WriteString(c.Comment)
	}
	return sb.String()
}
