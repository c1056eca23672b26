package drill

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chrisns/pcb-forge/internal/forgeerr"
)

func parseErr(pos Pos, format string, args ...interface{}) error {
	return forgeerr.At(forgeerr.Parse, "", pos, fmt.Sprintf(format, args...), nil)
}

// Parse lexes and parses an XNC source into a flat, located command stream.
// A hard error is raised if unit mode is never declared in the header, per
// §4.B.
func Parse(src string) ([]Command, error) {
	lines := strings.Split(src, "\n")
	var cmds []Command
	unitDeclared := false
	inHeader := false

	for i, raw := range lines {
		pos := Pos{Line: i + 1, Column: 1}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		cmd, err := parseLine(line, pos)
		if err != nil {
			return nil, err
		}
		if cmd == nil {
			continue
		}
		switch cmd.Kind {
		case CmdHeaderOpen:
			inHeader = true
		case CmdHeaderClose:
			inHeader = false
		case CmdUnitMode:
			if inHeader {
				unitDeclared = true
			}
		}
		cmds = append(cmds, *cmd)
	}

	if !unitDeclared {
		return nil, parseErr(Pos{Line: 1, Column: 1}, "unit mode (METRIC or INCH) was never declared in the header")
	}
	return cmds, nil
}

func parseLine(line string, pos Pos) (*Command, error) {
	switch {
	case strings.HasPrefix(line, ";"):
		return &Command{Kind: CmdComment, Pos: pos, Comment: strings.TrimSpace(line[1:])}, nil
	case line == "M48":
		return &Command{Kind: CmdHeaderOpen, Pos: pos}, nil
	case line == "%":
		return &Command{Kind: CmdHeaderClose, Pos: pos}, nil
	case line == "M30":
		return &Command{Kind: CmdProgramEnd, Pos: pos}, nil
	case line == "METRIC" || strings.HasPrefix(line, "METRIC,"):
		return &Command{Kind: CmdUnitMode, Pos: pos, Metric: true}, nil
	case line == "INCH" || strings.HasPrefix(line, "INCH,"):
		return &Command{Kind: CmdUnitMode, Pos: pos, Metric: false}, nil
	case strings.HasPrefix(line, "FMAT"):
		return &Command{Kind: CmdFormatStub, Pos: pos}, nil
	case line == "G90":
		return &Command{Kind: CmdPositionMode, Pos: pos, PositionMode: PositionAbsolute}, nil
	case line == "G91":
		return &Command{Kind: CmdPositionMode, Pos: pos, PositionMode: PositionIncremental}, nil
	case line == "G05":
		return &Command{Kind: CmdMotionMode, Pos: pos, MotionMode: MotionDrill}, nil
	case line == "G00":
		return &Command{Kind: CmdMotionMode, Pos: pos, MotionMode: MotionRoute}, nil
	case strings.HasPrefix(line, "G01"):
		return parseXY(line[3:], CmdLinearMove, pos)
	case line == "M15":
		return &Command{Kind: CmdToolDown, Pos: pos}, nil
	case line == "M16":
		return &Command{Kind: CmdToolUp, Pos: pos}, nil
	case strings.HasPrefix(line, "G02") || strings.HasPrefix(line, "G03"):
		return parseCurve(line, pos)
	case strings.HasPrefix(line, "T") && len(line) > 1 && line[1] >= '0' && line[1] <= '9':
		return parseTool(line, pos)
	case strings.HasPrefix(line, "X") || strings.HasPrefix(line, "Y"):
		return parseXY(line, CmdHit, pos)
	default:
		return nil, parseErr(pos, "unknown verb %q", line)
	}
}

func parseTool(line string, pos Pos) (*Command, error) {
	rest := line[1:]
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return nil, parseErr(pos, "malformed tool number in %q", line)
	}
	num, err := strconv.Atoi(rest[:i])
	if err != nil {
		return nil, parseErr(pos, "malformed tool number in %q: %v", line, err)
	}
	tail := rest[i:]
	if tail == "" {
		return &Command{Kind: CmdToolSelect, Pos: pos, ToolNumber: num}, nil
	}
	if tail[0] != 'C' {
		return nil, parseErr(pos, "malformed tool declaration %q", line)
	}
	diameter, err := strconv.ParseFloat(tail[1:], 64)
	if err != nil {
		return nil, parseErr(pos, "malformed tool diameter in %q: %v", line, err)
	}
	return &Command{Kind: CmdToolDeclare, Pos: pos, ToolNumber: num, ToolDiameter: diameter}, nil
}

func parseXY(fields string, kind CommandKind, pos Pos) (*Command, error) {
	cmd := &Command{Kind: kind, Pos: pos}
	rest := fields
	for len(rest) > 0 {
		switch rest[0] {
		case 'X':
			v, tail, err := scanFloat(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed X coordinate: %v", err)
			}
			cmd.HasX = true
			cmd.X = v
			rest = tail
		case 'Y':
			v, tail, err := scanFloat(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed Y coordinate: %v", err)
			}
			cmd.HasY = true
			cmd.Y = v
			rest = tail
		default:
			return nil, parseErr(pos, "unexpected field %q", rest)
		}
	}
	if kind == CmdHit && !cmd.HasX && !cmd.HasY {
		return nil, parseErr(pos, "expected X or Y field")
	}
	return cmd, nil
}

func parseCurve(line string, pos Pos) (*Command, error) {
	dir := CurveClockwise
	if strings.HasPrefix(line, "G03") {
		dir = CurveCounterClockwise
	}
	cmd := &Command{Kind: CmdCurve, Pos: pos, Direction: dir}
	rest := line[3:]
	for len(rest) > 0 {
		switch rest[0] {
		case 'X':
			v, tail, err := scanFloat(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed X coordinate: %v", err)
			}
			cmd.HasX = true
			cmd.X = v
			rest = tail
		case 'Y':
			v, tail, err := scanFloat(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed Y coordinate: %v", err)
			}
			cmd.HasY = true
			cmd.Y = v
			rest = tail
		case 'A':
			v, tail, err := scanFloat(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed A diameter: %v", err)
			}
			cmd.HasDiameter = true
			cmd.CurveDiameter = v
			rest = tail
		default:
			return nil, parseErr(pos, "unexpected field %q in %q", rest, line)
		}
	}
	if !cmd.HasDiameter {
		return nil, parseErr(pos, "curve command %q missing A<diameter>", line)
	}
	return cmd, nil
}

func scanFloat(s string) (float64, string, error) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	if i == 0 {
		return 0, s, fmt.Errorf("expected a number")
	}
	f, err := strconv.ParseFloat(s[:i], 64)
	return f, s[i:], err
}
