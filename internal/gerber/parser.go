package gerber

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chrisns/pcb-forge/internal/forgeerr"
)

// Parse lexes and parses a full Gerber source into a flat, located command
// stream. Region/step-and-repeat/aperture-block nesting is left to the
// image builder (§4.E), which walks the flat stream with its own mode
// stack — the parser's job ends at grammar recognition, per the ownership
// rule in §3.
//
// Extended commands (AD, AM, FS, MO, LP, LM, LR, LS, SR, AB, TF, TA, TO, TD)
// are wrapped in a "%...%" group; graphic commands (G01/G02/G03/G36/G37/G75,
// D01-D03 coordinate operations, M02) appear bare, each terminated by its
// own '*'. A macro definition's body is the only case where a single '%'
// group holds more than one '*'-terminated statement — one for the "AM
// <name>" opener, one per primitive — so those are special-cased below.
func Parse(src string) ([]Command, error) {
	p := &parser{src: src, line: 1, col: 1}
	var cmds []Command
	for {
		p.skipSpace()
		if p.atEOF() {
			break
		}
		if p.src[p.pos] == '%' {
			groupCmds, err := p.parseExtendedGroup()
			if err != nil {
				return nil, err
			}
			cmds = append(cmds, groupCmds...)
			continue
		}
		startLine, startCol := p.line, p.col
		stmt, complete := p.nextBareStatement()
		if stmt == "" {
			continue
		}
		if !complete {
			return nil, parseErr(Pos{Line: startLine, Column: startCol}, "unexpected EOF: unterminated statement %q", stmt)
		}
		cmd, err := parseStatement(stmt, Pos{Line: startLine, Column: startCol})
		if err != nil {
			return nil, err
		}
		if cmd != nil {
			cmds = append(cmds, *cmd)
		}
	}
	return cmds, nil
}

// parseExtendedGroup consumes a leading '%', the statements up to the
// closing '%', and the closing '%' itself.
func (p *parser) parseExtendedGroup() ([]Command, error) {
	p.advance() // consume opening '%'
	var stmts []string
	var firstLine, firstCol int
	for {
		p.skipSpace()
		if p.atEOF() {
			return nil, parseErr(Pos{Line: p.line, Column: p.col}, "unexpected EOF: unmatched '%%'")
		}
		if p.src[p.pos] == '%' {
			p.advance() // consume closing '%'
			break
		}
		line, col := p.line, p.col
		if len(stmts) == 0 {
			firstLine, firstCol = line, col
		}
		stmt, complete := p.nextBareStatement()
		if !complete {
			return nil, parseErr(Pos{Line: line, Column: col}, "unexpected EOF: unterminated statement %q", stmt)
		}
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	if len(stmts) == 0 {
		return nil, nil
	}
	pos := Pos{Line: firstLine, Column: firstCol}
	if strings.HasPrefix(stmts[0], "AM") {
		cmd, err := parseApertureMacroGroup(stmts, pos)
		if err != nil {
			return nil, err
		}
		return []Command{*cmd}, nil
	}
	var out []Command
	for _, stmt := range stmts {
		cmd, err := parseStatement(stmt, pos)
		if err != nil {
			return nil, err
		}
		if cmd != nil {
			out = append(out, *cmd)
		}
	}
	return out, nil
}

func parseApertureMacroGroup(stmts []string, pos Pos) (*Command, error) {
	name := strings.TrimPrefix(stmts[0], "AM")
	if name == "" {
		return nil, parseErr(pos, "malformed macro definition: missing name")
	}
	body := strings.Join(stmts[1:], "*\n")
	return &Command{Kind: CmdApertureMacro, Pos: pos, MacroName: name, MacroBody: body}, nil
}

// parser is a byte-oriented scanner tracking line:column for diagnostics.
type parser struct {
	src  string
	pos  int
	line int
	col  int
}

func (p *parser) atEOF() bool { return p.pos >= len(p.src) }

func (p *parser) advance() byte {
	c := p.src[p.pos]
	p.pos++
	if c == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	return c
}

// skipSpace consumes whitespace between statements.
func (p *parser) skipSpace() {
	for !p.atEOF() {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			p.advance()
			continue
		}
		break
	}
}

// nextBareStatement consumes up to and including the next '*' (or the next
// unescaped '%', which ends the enclosing group without its own
// terminator), returning the statement body and whether it was properly
// terminated. Reaching EOF first means the caller should report
// unexpected-EOF.
func (p *parser) nextBareStatement() (string, bool) {
	start := p.pos
	for !p.atEOF() {
		c := p.src[p.pos]
		if c == '*' {
			p.advance()
			return strings.TrimSpace(p.src[start : p.pos-1]), true
		}
		if c == '%' {
			return strings.TrimSpace(p.src[start:p.pos]), true
		}
		p.advance()
	}
	return strings.TrimSpace(p.src[start:p.pos]), false
}

func parseErr(pos Pos, format string, args ...interface{}) error {
	return forgeerr.At(forgeerr.Parse, "", pos, fmt.Sprintf(format, args...), nil)
}

func parseStatement(stmt string, pos Pos) (*Command, error) {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return nil, nil
	}

	switch {
	case strings.HasPrefix(stmt, "G04"):
		return &Command{Kind: CmdComment, Pos: pos, Comment: strings.TrimSpace(stmt[3:])}, nil
	case strings.HasPrefix(stmt, "AD"):
		return parseApertureDefine(stmt, pos)
	case strings.HasPrefix(stmt, "FS"):
		return parseFormatSpec(stmt, pos)
	case strings.HasPrefix(stmt, "MO"):
		return parseUnitMode(stmt, pos)
	case stmt == "G75":
		return &Command{Kind: CmdMultiQuadrant, Pos: pos}, nil
	case stmt == "G36":
		return &Command{Kind: CmdRegionStart, Pos: pos}, nil
	case stmt == "G37":
		return &Command{Kind: CmdRegionEnd, Pos: pos}, nil
	case stmt == "G01" || stmt == "G1":
		return &Command{Kind: CmdSetDrawMode, Pos: pos, DrawMode: DrawLinear}, nil
	case stmt == "G02" || stmt == "G2":
		return &Command{Kind: CmdSetDrawMode, Pos: pos, DrawMode: DrawCW}, nil
	case stmt == "G03" || stmt == "G3":
		return &Command{Kind: CmdSetDrawMode, Pos: pos, DrawMode: DrawCCW}, nil
	case stmt == "M02" || stmt == "M00" || stmt == "M01":
		return &Command{Kind: CmdEndOfFile, Pos: pos}, nil
	case strings.HasPrefix(stmt, "LP"):
		return &Command{Kind: CmdLoadPolarity, Pos: pos, Polarity: strings.TrimPrefix(stmt, "LP")}, nil
	case strings.HasPrefix(stmt, "LM"):
		return &Command{Kind: CmdLoadMirroring, Pos: pos, Mirroring: strings.TrimPrefix(stmt, "LM")}, nil
	case strings.HasPrefix(stmt, "LR"):
		v, err := strconv.ParseFloat(strings.TrimPrefix(stmt, "LR"), 64)
		if err != nil {
			return nil, parseErr(pos, "malformed LR rotation: %v", err)
		}
		return &Command{Kind: CmdLoadRotation, Pos: pos, Rotation: v}, nil
	case strings.HasPrefix(stmt, "LS"):
		v, err := strconv.ParseFloat(strings.TrimPrefix(stmt, "LS"), 64)
		if err != nil {
			return nil, parseErr(pos, "malformed LS scaling: %v", err)
		}
		return &Command{Kind: CmdLoadScaling, Pos: pos, Scaling: v}, nil
	case strings.HasPrefix(stmt, "SR") && stmt != "SR":
		return parseStepRepeat(stmt, pos)
	case stmt == "SR":
		return &Command{Kind: CmdStepRepeatEnd, Pos: pos}, nil
	case strings.HasPrefix(stmt, "AB") && stmt != "AB":
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimPrefix(stmt, "AB"), "D"))
		if err != nil {
			return nil, parseErr(pos, "malformed AB block number: %v", err)
		}
		return &Command{Kind: CmdApertureBlockStart, Pos: pos, BlockNumber: n}, nil
	case stmt == "AB":
		return &Command{Kind: CmdApertureBlockEnd, Pos: pos}, nil
	case strings.HasPrefix(stmt, "TF"):
		return parseAttribute(stmt, "TF", pos)
	case strings.HasPrefix(stmt, "TA"):
		return parseAttribute(stmt, "TA", pos)
	case strings.HasPrefix(stmt, "TO"):
		return parseAttribute(stmt, "TO", pos)
	case strings.HasPrefix(stmt, "TD"):
		return parseAttribute(stmt, "TD", pos)
	case strings.HasPrefix(stmt, "D") && isAllDigits(stmt[1:]):
		return parseDSelect(stmt, pos)
	default:
		return parseCoordOp(stmt, pos)
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseDSelect(stmt string, pos Pos) (*Command, error) {
	n, err := strconv.Atoi(stmt[1:])
	if err != nil {
		return nil, parseErr(pos, "malformed D-code %q: %v", stmt, err)
	}
	if n < 10 {
		// D01/D02/D03 without preceding coordinates: a bare operation code,
		// legal but rarely used on its own.
		return &Command{Kind: CmdOperation, Pos: pos, Operation: OperationKind(n - 1)}, nil
	}
	return &Command{Kind: CmdSetAperture, Pos: pos, ApertureNumber: n}, nil
}

// parseCoordOp parses an operation statement of the form
// [X<coord>][Y<coord>][I<coord>][J<coord>]D0n.
func parseCoordOp(stmt string, pos Pos) (*Command, error) {
	cmd := &Command{Kind: CmdOperation, Pos: pos}
	rest := stmt
	found := false
	for len(rest) > 0 {
		switch rest[0] {
		case 'X':
			c, tail, err := scanCoord(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed X coordinate: %v", err)
			}
			cmd.X = c
			rest = tail
			found = true
		case 'Y':
			c, tail, err := scanCoord(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed Y coordinate: %v", err)
			}
			cmd.Y = c
			rest = tail
			found = true
		case 'I':
			c, tail, err := scanCoord(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed I coordinate: %v", err)
			}
			cmd.I = c
			rest = tail
			found = true
		case 'J':
			c, tail, err := scanCoord(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed J coordinate: %v", err)
			}
			cmd.J = c
			rest = tail
			found = true
		case 'D':
			n, err := strconv.Atoi(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed operation code in %q: %v", stmt, err)
			}
			if n < 1 || n > 3 {
				return nil, parseErr(pos, "unknown operation code D%02d", n)
			}
			cmd.Operation = OperationKind(n - 1)
			rest = ""
			found = true
		default:
			return nil, parseErr(pos, "unknown verb %q", stmt)
		}
	}
	if !found {
		return nil, parseErr(pos, "unknown verb %q", stmt)
	}
	return cmd, nil
}

// scanCoord reads a raw signed digit span starting at s (after the axis
// letter), returning the coordinate and the unconsumed remainder.
func scanCoord(s string) (RawCoord, string, error) {
	i := 0
	sign := int8(0)
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		if s[i] == '-' {
			sign = -1
		} else {
			sign = 1
		}
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return RawCoord{}, s, fmt.Errorf("expected digits at offset %d", i)
	}
	return RawCoord{Present: true, Sign: sign, Digits: s[start:i]}, s[i:], nil
}

func parseUnitMode(stmt string, pos Pos) (*Command, error) {
	switch strings.TrimPrefix(stmt, "MO") {
	case "MM":
		return &Command{Kind: CmdUnitMode, Pos: pos, Metric: true}, nil
	case "IN":
		return &Command{Kind: CmdUnitMode, Pos: pos, Metric: false}, nil
	default:
		return nil, parseErr(pos, "unknown unit mode %q", stmt)
	}
}

func parseFormatSpec(stmt string, pos Pos) (*Command, error) {
	// FSLAX<i><d>Y<i><d> — leading-zero suppression, absolute coordinates.
	body := strings.TrimPrefix(stmt, "FS")
	if len(body) < 2 {
		return nil, parseErr(pos, "malformed format spec %q", stmt)
	}
	trailing := body[0] == 'T'
	body = body[2:] // skip zero-suppression + coordinate-mode letters
	xi := strings.IndexByte(body, 'X')
	yi := strings.IndexByte(body, 'Y')
	if xi != 0 || yi < 0 {
		return nil, parseErr(pos, "malformed format spec %q: expected X...Y...", stmt)
	}
	xPart := body[xi+1 : yi]
	yPart := body[yi+1:]
	if len(xPart) != 2 || len(yPart) != 2 {
		return nil, parseErr(pos, "malformed format spec %q: expected 2-digit X/Y field widths", stmt)
	}
	xInt, err1 := strconv.Atoi(string(xPart[0]))
	xDec, err2 := strconv.Atoi(string(xPart[1]))
	yInt, err3 := strconv.Atoi(string(yPart[0]))
	yDec, err4 := strconv.Atoi(string(yPart[1]))
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return nil, parseErr(pos, "malformed format spec digit counts in %q", stmt)
	}
	if xInt != yInt || xDec != yDec {
		return nil, parseErr(pos, "format spec requires X and Y digit counts to match, got X%d.%d Y%d.%d", xInt, xDec, yInt, yDec)
	}
	if xInt < 1 || xInt > 6 {
		return nil, parseErr(pos, "format spec integer digit count %d out of range [1,6]", xInt)
	}
	if xDec < 5 || xDec > 6 {
		return nil, parseErr(pos, "format spec fractional digit count %d out of range [5,6]", xDec)
	}
	return &Command{
		Kind:           CmdFormatSpec,
		Pos:            pos,
		IntegerDigits:  xInt,
		DecimalDigits:  xDec,
		TrailingZeroes: trailing,
	}, nil
}

func parseApertureDefine(stmt string, pos Pos) (*Command, error) {
	body := strings.TrimPrefix(stmt, "AD")
	if len(body) == 0 || body[0] != 'D' {
		return nil, parseErr(pos, "malformed aperture define %q", stmt)
	}
	i := 1
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}
	num, err := strconv.Atoi(body[1:i])
	if err != nil {
		return nil, parseErr(pos, "malformed aperture number in %q: %v", stmt, err)
	}
	if num < 10 {
		return nil, parseErr(pos, "aperture number %d must be >= 10", num)
	}
	rest := body[i:]
	comma := strings.IndexByte(rest, ',')
	var templateName, modifierStr string
	if comma < 0 {
		templateName = rest
	} else {
		templateName = rest[:comma]
		modifierStr = rest[comma+1:]
	}

	ad := ApertureDefine{Number: num}
	var fields []string
	if modifierStr != "" {
		fields = strings.Split(modifierStr, "X")
	}
	parseFloats := func(strs []string) ([]float64, error) {
		out := make([]float64, len(strs))
		for i, s := range strs {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	switch templateName {
	case "C":
		vals, err := parseFloats(fields)
		if err != nil || len(vals) < 1 {
			return nil, parseErr(pos, "malformed circle aperture modifiers in %q", stmt)
		}
		ad.Template = TemplateCircle
		ad.Modifiers = vals[:1]
		if len(vals) > 1 {
			ad.HasHole = true
			ad.HoleDiameter = vals[1]
		}
	case "R":
		vals, err := parseFloats(fields)
		if err != nil || len(vals) < 2 {
			return nil, parseErr(pos, "malformed rectangle aperture modifiers in %q", stmt)
		}
		ad.Template = TemplateRectangle
		ad.Modifiers = vals[:2]
		if len(vals) > 2 {
			ad.HasHole = true
			ad.HoleDiameter = vals[2]
		}
	case "O":
		vals, err := parseFloats(fields)
		if err != nil || len(vals) < 2 {
			return nil, parseErr(pos, "malformed obround aperture modifiers in %q", stmt)
		}
		ad.Template = TemplateObround
		ad.Modifiers = vals[:2]
		if len(vals) > 2 {
			ad.HasHole = true
			ad.HoleDiameter = vals[2]
		}
	case "P":
		vals, err := parseFloats(fields)
		if err != nil || len(vals) < 2 {
			return nil, parseErr(pos, "malformed polygon aperture modifiers in %q", stmt)
		}
		ad.Template = TemplatePolygon
		ad.Modifiers = vals
	default:
		vals, err := parseFloats(fields)
		if err != nil {
			return nil, parseErr(pos, "malformed macro aperture modifiers in %q", stmt)
		}
		ad.Template = TemplateMacro
		ad.MacroName = templateName
		ad.Modifiers = vals
	}

	return &Command{Kind: CmdApertureDefine, Pos: pos, Aperture: ad}, nil
}

func parseStepRepeat(stmt string, pos Pos) (*Command, error) {
	body := strings.TrimPrefix(stmt, "SR")
	cmd := &Command{Kind: CmdStepRepeat, Pos: pos, SRX: 1, SRY: 1}
	rest := body
	for len(rest) > 0 {
		switch rest[0] {
		case 'X':
			n, tail, err := scanInt(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed SR X count: %v", err)
			}
			cmd.SRX = n
			rest = tail
		case 'Y':
			n, tail, err := scanInt(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed SR Y count: %v", err)
			}
			cmd.SRY = n
			rest = tail
		case 'I':
			f, tail, err := scanFloat(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed SR I delta: %v", err)
			}
			cmd.SRDeltaX = f
			rest = tail
		case 'J':
			f, tail, err := scanFloat(rest[1:])
			if err != nil {
				return nil, parseErr(pos, "malformed SR J delta: %v", err)
			}
			cmd.SRDeltaY = f
			rest = tail
		default:
			return nil, parseErr(pos, "malformed step-and-repeat statement %q", stmt)
		}
	}
	return cmd, nil
}

func scanInt(s string) (int, string, error) {
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9') {
		i++
	}
	if i == 0 {
		return 0, s, fmt.Errorf("expected digits")
	}
	n, err := strconv.Atoi(s[:i])
	return n, s[i:], err
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

func parseAttribute(stmt, table string, pos Pos) (*Command, error) {
	body := strings.TrimPrefix(stmt, table)
	parts := strings.Split(body, ",")
	cmd := &Command{Kind: CmdAttribute, Pos: pos, AttributeTable: table}
	if len(parts) > 0 {
		cmd.AttributeName = parts[0]
	}
	if len(parts) > 1 {
		cmd.AttributeArgs = parts[1:]
	}
	return cmd, nil
}
