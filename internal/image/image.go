// Package image implements the Gerber image builder (§4.E): a plotting
// state machine that consumes the internal/gerber command stream plus
// internal/macro macro definitions and produces an internal/shape.Set.
package image

import (
	"fmt"
	"math"

	"github.com/chrisns/pcb-forge/internal/forgeerr"
	"github.com/chrisns/pcb-forge/internal/gerber"
	"github.com/chrisns/pcb-forge/internal/macro"
	"github.com/chrisns/pcb-forge/internal/shape"
)

// Mirroring mirrors the plotting state's mirroring axis selection.
type Mirroring int

const (
	MirrorNone Mirroring = iota
	MirrorX
	MirrorY
	MirrorXAndY
)

// apertureDef is a resolved, ready-to-flash aperture: either a standard
// template, a macro reference with bound arguments, or a block body.
type apertureDef struct {
	isMacro bool
	macroName string
	macroArgs []float64

	isBlock    bool
	blockStart int // index into the command stream where the block body begins
	blockEnd   int

	template  gerber.ApertureTemplateKind
	modifiers []float64
	hasHole   bool
	holeDia   float64
}

func (a apertureDef) isCircle() bool {
	return !a.isMacro && !a.isBlock && a.template == gerber.TemplateCircle
}

// attributeTables implements the four-table attribute store from §4.E,
// with the REDESIGN FLAG TD deletion semantics: TD with no name clears all
// entries in the non-file tables; TD<name> clears only that name; file
// attributes (TF) are never deleted by TD.
type attributeTables struct {
	file   map[string][]string
	aper   map[string][]string
	obj    map[string][]string
	user   map[string][]string
}

func newAttributeTables() *attributeTables {
	return &attributeTables{
		file: map[string][]string{},
		aper: map[string][]string{},
		obj:  map[string][]string{},
		user: map[string][]string{},
	}
}

func (t *attributeTables) set(table, name string, args []string) {
	switch table {
	case "TF":
		t.file[name] = args
	case "TA":
		t.aper[name] = args
	case "TO":
		t.obj[name] = args
	case "TD":
		if name == "" {
			t.aper = map[string][]string{}
			t.obj = map[string][]string{}
			t.user = map[string][]string{}
			return
		}
		delete(t.aper, name)
		delete(t.obj, name)
		delete(t.user, name)
	}
}

// state is the plotting state (§3), mutated only by stream commands.
type state struct {
	integerDigits int
	decimalDigits int
	metric        bool
	current       shape.Point
	aperture      int
	drawMode      gerber.DrawMode
	polarity      shape.Polarity
	mirroring     Mirroring
	rotation      float64
	scaling       float64
	attrs         *attributeTables
}

func newState() *state {
	return &state{
		integerDigits: 3,
		decimalDigits: 5,
		metric:        true,
		polarity:      shape.Dark,
		mirroring:     MirrorNone,
		rotation:      0,
		scaling:       1,
		attrs:         newAttributeTables(),
	}
}

// Builder images a single Gerber file's command stream into a shape.Set.
type Builder struct {
	cmds      []gerber.Command
	macros    map[string]macro.Macro
	apertures map[int]apertureDef
	st        *state
	set       shape.Set

	// region collection
	inRegion    bool
	regionStart shape.Point
	regionSegs  []shape.Segment
	regionFirst bool
}

// NewBuilder constructs a Builder for a parsed command stream.
func NewBuilder(cmds []gerber.Command) *Builder {
	return &Builder{
		cmds:      cmds,
		macros:    map[string]macro.Macro{},
		apertures: map[int]apertureDef{},
		st:        newState(),
	}
}

func semErr(pos gerber.Pos, format string, args ...interface{}) error {
	return forgeerr.At(forgeerr.Semantic, "", pos, fmt.Sprintf(format, args...), nil)
}

// Build walks the command stream and returns the imaged shape set.
func (b *Builder) Build() (shape.Set, error) {
	for i := 0; i < len(b.cmds); i++ {
		cmd := b.cmds[i]

		if cmd.Kind == gerber.CmdStepRepeat {
			end, err := b.findStepRepeatEnd(i)
			if err != nil {
				return shape.Set{}, err
			}
			if err := b.runStepRepeat(cmd, i+1, end); err != nil {
				return shape.Set{}, err
			}
			i = end
			continue
		}

		if err := b.apply(cmd); err != nil {
			return shape.Set{}, err
		}
	}
	if b.inRegion {
		return shape.Set{}, semErr(b.cmds[len(b.cmds)-1].Pos, "unterminated region: G36 without matching G37")
	}
	return b.set, nil
}

func (b *Builder) findStepRepeatEnd(openIdx int) (int, error) {
	for i := openIdx + 1; i < len(b.cmds); i++ {
		if b.cmds[i].Kind == gerber.CmdStepRepeatEnd {
			return i, nil
		}
	}
	return 0, semErr(b.cmds[openIdx].Pos, "unterminated step-and-repeat block")
}

// runStepRepeat re-applies the enclosed commands on an X x Y lattice,
// offsetting every resolved coordinate additively (§4.E).
func (b *Builder) runStepRepeat(open gerber.Command, bodyStart, bodyEnd int) error {
	nx, ny := open.SRX, open.SRY
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	for jy := 0; jy < ny; jy++ {
		for jx := 0; jx < nx; jx++ {
			offset := shape.Point{X: float64(jx) * open.SRDeltaX, Y: float64(jy) * open.SRDeltaY}
			for i := bodyStart; i < bodyEnd; i++ {
				if err := b.applyWithOffset(b.cmds[i], offset); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (b *Builder) applyWithOffset(cmd gerber.Command, offset shape.Point) error {
	if cmd.Kind != gerber.CmdOperation {
		return b.apply(cmd)
	}
	return b.applyOperation(cmd, offset)
}

// apply handles every command kind except step-and-repeat, which Build
// handles directly so it can locate the matching end marker.
func (b *Builder) apply(cmd gerber.Command) error {
	switch cmd.Kind {
	case gerber.CmdComment:
		return nil
	case gerber.CmdUnitMode:
		b.st.metric = cmd.Metric
		return nil
	case gerber.CmdFormatSpec:
		b.st.integerDigits = cmd.IntegerDigits
		b.st.decimalDigits = cmd.DecimalDigits
		return nil
	case gerber.CmdApertureMacro:
		m, err := macro.ParseMacro(cmd.MacroName, cmd.MacroBody)
		if err != nil {
			return semErr(cmd.Pos, "macro %s: %v", cmd.MacroName, err)
		}
		b.macros[cmd.MacroName] = m
		return nil
	case gerber.CmdApertureDefine:
		ad := cmd.Aperture
		def := apertureDef{
			template:  ad.Template,
			modifiers: ad.Modifiers,
			hasHole:   ad.HasHole,
			holeDia:   ad.HoleDiameter,
		}
		if ad.Template == gerber.TemplateMacro {
			def.isMacro = true
			def.macroName = ad.MacroName
			def.macroArgs = ad.Modifiers
		}
		b.apertures[ad.Number] = def
		return nil
	case gerber.CmdSetAperture:
		if _, ok := b.apertures[cmd.ApertureNumber]; !ok {
			return semErr(cmd.Pos, "select of undefined aperture D%d", cmd.ApertureNumber)
		}
		b.st.aperture = cmd.ApertureNumber
		return nil
	case gerber.CmdSetDrawMode:
		b.st.drawMode = cmd.DrawMode
		return nil
	case gerber.CmdMultiQuadrant:
		// G75: single-quadrant is unsupported; accepted and ignored (§4.A).
		return nil
	case gerber.CmdLoadPolarity:
		if cmd.Polarity == "C" {
			b.st.polarity = shape.Clear
		} else {
			b.st.polarity = shape.Dark
		}
		return nil
	case gerber.CmdLoadMirroring:
		switch cmd.Mirroring {
		case "N":
			b.st.mirroring = MirrorNone
		case "X":
			b.st.mirroring = MirrorX
		case "Y":
			b.st.mirroring = MirrorY
		case "XY":
			b.st.mirroring = MirrorXAndY
		default:
			return semErr(cmd.Pos, "unknown mirroring %q", cmd.Mirroring)
		}
		return nil
	case gerber.CmdLoadRotation:
		b.st.rotation = cmd.Rotation
		return nil
	case gerber.CmdLoadScaling:
		b.st.scaling = cmd.Scaling
		return nil
	case gerber.CmdAttribute:
		b.st.attrs.set(cmd.AttributeTable, cmd.AttributeName, cmd.AttributeArgs)
		return nil
	case gerber.CmdRegionStart:
		b.inRegion = true
		b.regionFirst = true
		b.regionSegs = nil
		return nil
	case gerber.CmdRegionEnd:
		if !b.inRegion {
			return semErr(cmd.Pos, "G37 without matching G36")
		}
		b.set.Append(shape.Shape{Polarity: b.st.polarity, StartingPoint: b.regionStart, Segments: b.regionSegs})
		b.inRegion = false
		return nil
	case gerber.CmdApertureBlockStart, gerber.CmdApertureBlockEnd:
		// The AB markers themselves are ignored: commands between them are
		// imaged in place like any others, and no block aperture is
		// registered, so selecting its D-code fails as undefined.
		return nil
	case gerber.CmdOperation:
		return b.applyOperation(cmd, shape.Point{})
	case gerber.CmdEndOfFile:
		return nil
	default:
		return nil
	}
}

func (b *Builder) resolveCoord(c gerber.RawCoord) (float64, error) {
	if !c.Present {
		return 0, nil
	}
	digits := c.Digits
	for _, d := range digits {
		if d < '0' || d > '9' {
			return 0, fmt.Errorf("coordinate digit span %q contains a non-digit character", digits)
		}
	}
	intLen := len(digits) - b.st.decimalDigits
	var whole, frac string
	if intLen >= 0 {
		whole = digits[:intLen]
		frac = digits[intLen:]
	} else {
		whole = "0"
		frac = digits
	}
	wholeVal := 0.0
	for _, d := range whole {
		wholeVal = wholeVal*10 + float64(d-'0')
	}
	fracVal := 0.0
	scale := 0.1
	for _, d := range frac {
		fracVal += float64(d-'0') * scale
		scale /= 10
	}
	v := wholeVal + fracVal
	if c.Sign < 0 {
		v = -v
	}
	if !b.st.metric {
		v *= 25.4
	}
	return v, nil
}

func (b *Builder) applyOperation(cmd gerber.Command, offset shape.Point) error {
	var target shape.Point
	hasTarget := cmd.X.Present || cmd.Y.Present
	if hasTarget {
		x, err := b.resolveCoord(cmd.X)
		if err != nil {
			return semErr(cmd.Pos, "malformed X coordinate: %v", err)
		}
		y, err := b.resolveCoord(cmd.Y)
		if err != nil {
			return semErr(cmd.Pos, "malformed Y coordinate: %v", err)
		}
		if !cmd.X.Present {
			x = b.st.current.X - offset.X
		}
		if !cmd.Y.Present {
			y = b.st.current.Y - offset.Y
		}
		target = shape.Point{X: x + offset.X, Y: y + offset.Y}
	} else {
		target = b.st.current
	}

	switch cmd.Operation {
	case gerber.OpMove:
		if b.inRegion {
			if len(b.regionSegs) > 0 {
				b.set.Append(shape.Shape{Polarity: b.st.polarity, StartingPoint: b.regionStart, Segments: b.regionSegs})
				b.regionSegs = nil
			}
			b.regionStart = target
			b.regionFirst = true
		}
		b.st.current = target
		return nil
	case gerber.OpPlot:
		return b.plot(cmd, target, offset)
	case gerber.OpFlash:
		return b.flash(cmd, target)
	default:
		return semErr(cmd.Pos, "unknown operation")
	}
}

func (b *Builder) plot(cmd gerber.Command, target shape.Point, offset shape.Point) error {
	if b.inRegion {
		seg, err := b.segmentFor(cmd, target, offset)
		if err != nil {
			return err
		}
		if b.regionFirst {
			b.regionStart = b.st.current
			b.regionFirst = false
		}
		b.regionSegs = append(b.regionSegs, seg)
		b.st.current = target
		return nil
	}

	ap, ok := b.apertures[b.st.aperture]
	if !ok {
		return semErr(cmd.Pos, "draw operation without a selected aperture")
	}
	if !ap.isCircle() {
		return semErr(cmd.Pos, "draw operation requires a hole-free circular aperture")
	}
	if ap.hasHole {
		return semErr(cmd.Pos, "draw operation's aperture has a center hole")
	}
	diameter := 0.0
	if len(ap.modifiers) > 0 {
		diameter = ap.modifiers[0]
	}

	var s shape.Shape
	switch b.st.drawMode {
	case gerber.DrawLinear:
		s = shape.Line(b.st.current, target, diameter, false)
	case gerber.DrawCW, gerber.DrawCCW:
		if !cmd.I.Present && !cmd.J.Present {
			return semErr(cmd.Pos, "arc operation missing I/J offset")
		}
		i, _ := b.resolveCoord(cmd.I)
		j, _ := b.resolveCoord(cmd.J)
		center := shape.Point{X: b.st.current.X + i, Y: b.st.current.Y + j}
		kind := shape.SegClockwiseArc
		if b.st.drawMode == gerber.DrawCCW {
			kind = shape.SegCounterClockwiseArc
		}
		s = strokeArc(b.st.current, target, center, kind, diameter)
	}
	s.Polarity = b.st.polarity
	b.set.Append(b.transform(s))
	b.st.current = target
	return nil
}

// strokeArc approximates a stroked arc as a closed ring: the arc itself
// plus a straight line back to its start. The stroke width is not applied;
// the ring traces the arc's centre line only.
func strokeArc(start, end, center shape.Point, kind shape.SegmentKind, width float64) shape.Shape {
	return shape.Shape{
		Polarity:      shape.Dark,
		StartingPoint: start,
		Segments: []shape.Segment{
			{Kind: kind, End: end, Center: center},
			{Kind: shape.SegLine, End: start},
		},
	}
}

func (b *Builder) segmentFor(cmd gerber.Command, target shape.Point, offset shape.Point) (shape.Segment, error) {
	switch b.st.drawMode {
	case gerber.DrawLinear:
		return shape.Segment{Kind: shape.SegLine, End: target}, nil
	case gerber.DrawCW, gerber.DrawCCW:
		if !cmd.I.Present && !cmd.J.Present {
			return shape.Segment{}, semErr(cmd.Pos, "region arc missing I/J offset")
		}
		i, _ := b.resolveCoord(cmd.I)
		j, _ := b.resolveCoord(cmd.J)
		center := shape.Point{X: b.st.current.X + i, Y: b.st.current.Y + j}
		kind := shape.SegClockwiseArc
		if b.st.drawMode == gerber.DrawCCW {
			kind = shape.SegCounterClockwiseArc
		}
		return shape.Segment{Kind: kind, End: target, Center: center}, nil
	default:
		return shape.Segment{}, semErr(cmd.Pos, "unsupported draw mode in region")
	}
}

func (b *Builder) flash(cmd gerber.Command, at shape.Point) error {
	ap, ok := b.apertures[b.st.aperture]
	if !ok {
		return semErr(cmd.Pos, "flash operation without a selected aperture")
	}
	b.st.current = at

	if ap.isMacro {
		m, ok := b.macros[ap.macroName]
		if !ok {
			return semErr(cmd.Pos, "flash references undefined macro %q", ap.macroName)
		}
		shapes, err := macro.Evaluate(m, ap.macroArgs)
		if err != nil {
			return semErr(cmd.Pos, "macro %s: %v", ap.macroName, err)
		}
		var flashed []shape.Shape
		for _, s := range shapes {
			flashed = append(flashed, b.transform(translate(s, at)))
		}
		b.set.AppendFlash(flashed)
		return nil
	}

	var s shape.Shape
	switch ap.template {
	case gerber.TemplateCircle:
		s = shape.Circle(at, modifierOr(ap.modifiers, 0, 0))
	case gerber.TemplateRectangle:
		s = shape.Rectangle(at, modifierOr(ap.modifiers, 0, 0), modifierOr(ap.modifiers, 1, 0))
	case gerber.TemplateObround:
		s = shape.Obround(at, modifierOr(ap.modifiers, 0, 0), modifierOr(ap.modifiers, 1, 0))
	case gerber.TemplatePolygon:
		diameter := modifierOr(ap.modifiers, 0, 0)
		sides := int(modifierOr(ap.modifiers, 1, 3))
		rot := modifierOr(ap.modifiers, 2, 0)
		s = shape.RegularPolygon(at, diameter, sides, rot)
	default:
		return semErr(cmd.Pos, "unsupported aperture template for flash")
	}
	s.Polarity = b.st.polarity
	b.set.Append(b.transform(s))
	return nil
}

func modifierOr(mods []float64, idx int, def float64) float64 {
	if idx < len(mods) {
		return mods[idx]
	}
	return def
}

func translate(s shape.Shape, by shape.Point) shape.Shape {
	out := shape.Shape{Polarity: s.Polarity, StartingPoint: s.StartingPoint.Add(by)}
	for _, seg := range s.Segments {
		ns := seg
		ns.End = seg.End.Add(by)
		if seg.Kind != shape.SegLine {
			ns.Center = seg.Center.Add(by)
		}
		out.Segments = append(out.Segments, ns)
	}
	return out
}

// transform applies the plotting state's Mirror * Rotate(theta) * Scale(s)
// matrix to a shape, pivoting on the origin (the Gerber convention: the
// transform is applied relative to the aperture's own coordinate frame
// before translation to the flash point, which callers already apply).
func (b *Builder) transform(s shape.Shape) shape.Shape {
	if b.st.mirroring == MirrorNone && b.st.rotation == 0 && b.st.scaling == 1 {
		return s
	}
	apply := func(p shape.Point) shape.Point {
		x, y := p.X, p.Y
		switch b.st.mirroring {
		case MirrorX:
			x = -x
		case MirrorY:
			y = -y
		case MirrorXAndY:
			x, y = -x, -y
		}
		if b.st.rotation != 0 {
			rad := b.st.rotation * math.Pi / 180
			cos, sin := math.Cos(rad), math.Sin(rad)
			x, y = x*cos-y*sin, x*sin+y*cos
		}
		x *= b.st.scaling
		y *= b.st.scaling
		return shape.Point{X: x, Y: y}
	}
	out := shape.Shape{Polarity: s.Polarity, StartingPoint: apply(s.StartingPoint)}
	for _, seg := range s.Segments {
		ns := seg
		ns.End = apply(seg.End)
		if seg.Kind != shape.SegLine {
			ns.Center = apply(seg.Center)
		}
		out.Segments = append(out.Segments, ns)
	}
	return out
}
