// Package gerber implements a lexer/parser for the RS-274X subset used in
// PCB fabrication artwork: apertures, macros, format specification, regions,
// step-and-repeat, polarity/mirroring/rotation/scaling, attributes. It
// produces a located command stream (§4.A); coordinate literals stay raw
// digit spans until the image builder resolves them against the active
// format, per the data model's ownership rule.
package gerber

import "github.com/chrisns/pcb-forge/internal/forgeerr"

// Pos is a 1-indexed line:column source location.
type Pos = forgeerr.Pos

// RawCoord is an unconverted coordinate literal: a sign and a raw digit
// span, resolved against the active format specification only at image
// time (§4.A).
type RawCoord struct {
	Present bool
	Sign    int8 // -1, 0 (absent/implicit positive), +1
	Digits  string
}

// CommandKind discriminates the RS-274X command stream.
type CommandKind int

const (
	CmdComment CommandKind = iota
	CmdApertureDefine
	CmdApertureMacro
	CmdFormatSpec
	CmdUnitMode
	CmdSetAperture
	CmdSetDrawMode // G01/G02/G03
	CmdOperation   // D01/D02/D03
	CmdMultiQuadrant
	CmdRegionStart    // G36
	CmdRegionEnd      // G37
	CmdStepRepeat     // SR (open, carries X/Y/I/J)
	CmdStepRepeatEnd  // SR (bare, closes the lattice)
	CmdLoadPolarity
	CmdLoadMirroring
	CmdLoadRotation
	CmdLoadScaling
	CmdApertureBlockStart // AB Dnn
	CmdApertureBlockEnd   // AB (bare)
	CmdAttribute          // TF/TA/TO/TD
	CmdEndOfFile          // M02
)

// DrawMode mirrors the plotting state's draw_mode field.
type DrawMode int

const (
	DrawLinear DrawMode = iota
	DrawCW
	DrawCCW
)

// OperationKind distinguishes D01/D02/D03.
type OperationKind int

const (
	OpPlot OperationKind = iota
	OpMove
	OpFlash
)

// ApertureTemplateKind identifies a standard aperture template shape.
type ApertureTemplateKind int

const (
	TemplateCircle ApertureTemplateKind = iota
	TemplateRectangle
	TemplateObround
	TemplatePolygon
	TemplateMacro
)

// ApertureDefine is the AD command body: a template or macro reference
// bound to an integer identity.
type ApertureDefine struct {
	Number       int
	Template     ApertureTemplateKind
	MacroName    string // set when Template == TemplateMacro
	Modifiers    []float64
	HoleDiameter float64 // 0 if none
	HasHole      bool
}

// Command is one parsed RS-274X command, flat-struct-with-discriminant per
// the corpus's idiom (mirrors the teacher's gcode.Command shape).
type Command struct {
	Kind CommandKind
	Pos  Pos

	Comment string

	Aperture ApertureDefine // CmdApertureDefine

	MacroName string // CmdApertureMacro
	MacroBody string // CmdApertureMacro

	IntegerDigits  int  // CmdFormatSpec
	DecimalDigits  int  // CmdFormatSpec
	TrailingZeroes bool // CmdFormatSpec (false = leading-zero suppression)

	Metric bool // CmdUnitMode

	ApertureNumber int // CmdSetAperture

	DrawMode DrawMode // CmdSetDrawMode

	Operation OperationKind // CmdOperation
	X, Y      RawCoord
	I, J      RawCoord

	Polarity  string // CmdLoadPolarity: "D" or "C"
	Mirroring string // CmdLoadMirroring: "N","X","Y","XY"
	Rotation  float64 // CmdLoadRotation
	Scaling   float64 // CmdLoadScaling

	SRX, SRY           int     // CmdStepRepeat
	SRDeltaX, SRDeltaY float64 // CmdStepRepeat

	BlockNumber int // CmdApertureBlockStart

	AttributeTable string // CmdAttribute: "TF","TA","TO","TD"
	AttributeName  string
	AttributeArgs  []string
}
