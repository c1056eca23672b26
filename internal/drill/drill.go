// Package drill implements a lexer/parser for the XNC/Excellon drill format
// (§4.B): header tool declarations, unit mode, and a body of absolute or
// incremental drill hits, routed curves, and tool up/down markers.
package drill

import "github.com/chrisns/pcb-forge/internal/forgeerr"

// Pos is a 1-indexed line:column source location.
type Pos = forgeerr.Pos

// CommandKind discriminates the XNC command stream.
type CommandKind int

const (
	CmdComment CommandKind = iota
	CmdHeaderOpen      // M48
	CmdHeaderClose     // %
	CmdProgramEnd      // M30
	CmdUnitMode        // METRIC | INCH
	CmdFormatStub      // FMAT (accepted and ignored)
	CmdToolDeclare     // T<n>C<diameter>
	CmdToolSelect      // T<n>
	CmdPositionMode    // G90 (absolute) | G91 (incremental)
	CmdMotionMode      // G05 (drill) | G00 (route)
	CmdHit             // X<x>Y<y>
	CmdLinearMove      // G01
	CmdCurve           // G02/G03 with A<diameter>
	CmdToolDown        // M15
	CmdToolUp          // M16
)

// PositionMode is the REDESIGN FLAG-corrected G90/G91 mapping: G90 selects
// absolute coordinates, G91 selects incremental — the standard Excellon
// semantics, rather than the original implementation's swapped mapping.
type PositionMode int

const (
	PositionAbsolute PositionMode = iota
	PositionIncremental
)

// MotionMode distinguishes drill (G05) from route (G00) body mode.
type MotionMode int

const (
	MotionDrill MotionMode = iota
	MotionRoute
)

// CurveDirection distinguishes G02 (clockwise) from G03 (counter-clockwise).
type CurveDirection int

const (
	CurveClockwise CurveDirection = iota
	CurveCounterClockwise
)

// Command is one parsed XNC command.
type Command struct {
	Kind CommandKind
	Pos  Pos

	Comment string

	Metric bool // CmdUnitMode

	ToolNumber   int     // CmdToolDeclare, CmdToolSelect
	ToolDiameter float64 // CmdToolDeclare

	PositionMode PositionMode // CmdPositionMode
	MotionMode   MotionMode   // CmdMotionMode

	HasX, HasY bool // CmdHit, CmdLinearMove, CmdCurve
	X, Y       float64

	Direction    CurveDirection // CmdCurve
	HasDiameter  bool
	CurveDiameter float64 // CmdCurve "A<diameter>"
}
