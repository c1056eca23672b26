// Package motion implements the motion emitter (§4.H): a modal state
// machine that turns a planner.Command queue into G-code text, built on
// the teacher's kept dependency github.com/256dpi/gcode — every emitted
// instruction is assembled as a gcode.Line and serialized with
// line.String(), the same construction pattern the teacher's
// (now-deleted) optimizer.SplitMove used to synthesize new lines.
package motion

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	gc "github.com/256dpi/gcode"

	"github.com/chrisns/pcb-forge/internal/forgeerr"
	"github.com/chrisns/pcb-forge/internal/planner"
)

// lineWriter is the minimal GCode line sink the emitter writes through —
// folded in from the teacher's standalone writer package, which had this
// single caller.
type lineWriter struct {
	w io.Writer
}

func (lw *lineWriter) WriteLine(l gc.Line) error {
	_, err := fmt.Fprintf(lw.w, "%s\n", l.String())
	return err
}

func emitErr(format string, args ...interface{}) error {
	return forgeerr.New(forgeerr.Emit, fmt.Sprintf(format, args...), nil)
}

func code(letter string, value float64) gc.GCode {
	return gc.GCode{Letter: letter, Value: value}
}

func line(codes ...gc.GCode) gc.Line {
	return gc.Line{Codes: codes}
}

// Emitter is the motion state machine. IncludeDir resolves relative
// IncludeFile paths against the stage's include-file search directory
// (§4.I).
type Emitter struct {
	IncludeDir string

	buf bytes.Buffer
	w   *lineWriter

	metric       bool
	side         planner.Side
	xOffset      float64
	readyToCut   bool
	hasLastPos   bool
	lastX, lastY float64
	lastWorkSpeed float64
	tool         planner.Tool
	hasTool      bool
}

// NewEmitter constructs an Emitter; xOffset is the project-wide
// max_x−min_x used for back-side mirroring (§4.H).
func NewEmitter(xOffset float64) *Emitter {
	e := &Emitter{xOffset: xOffset, metric: true}
	e.w = &lineWriter{w: &e.buf}
	return e
}

// Header emits the deterministic `G90` / `G0 X0 Y0` preamble (§4.H).
func (e *Emitter) Header() error {
	if err := e.w.WriteLine(line(code("G", 90))); err != nil {
		return emitErr("writing header G90: %v", err)
	}
	if err := e.w.WriteLine(line(code("G", 0), code("X", 0), code("Y", 0))); err != nil {
		return emitErr("writing header home move: %v", err)
	}
	return nil
}

// Run drives every planner command through the emitter in order.
func (e *Emitter) Run(queue []planner.Command) error {
	if err := e.Header(); err != nil {
		return err
	}
	for _, c := range queue {
		if err := e.apply(c); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) apply(c planner.Command) error {
	switch c.Kind {
	case planner.CmdEquipTool:
		return e.equipTool(c.Tool)
	case planner.CmdUnitMode:
		return e.unitMode(c.Metric)
	case planner.CmdSetRapidSpeed:
		return e.setRapidSpeed(c.Speed)
	case planner.CmdSetWorkSpeed:
		return e.setWorkSpeed(c.Speed)
	case planner.CmdSetSpindleSpeed:
		return e.setSpindleSpeed(c.Ratio)
	case planner.CmdSetPower:
		return e.setPower(c.Ratio)
	case planner.CmdMoveTo:
		return e.moveTo(c.X, c.Y)
	case planner.CmdCut:
		return e.cut(c.PassIndex, c.X, c.Y)
	case planner.CmdIncludeFile:
		return e.includeFile(c.Path)
	case planner.CmdSetSide:
		e.side = c.Side
		return nil
	case planner.CmdSetFanPower:
		return e.setFanPower(c.Ratio)
	default:
		return emitErr("unknown planner command kind %d", c.Kind)
	}
}

// equipTool disengages the outgoing tool, then assigns the new one. For a
// spindle, the new tool is raised to travel height and the ready flag is
// cleared (§4.H "EquipTool").
func (e *Emitter) equipTool(t planner.Tool) error {
	if e.hasTool {
		if err := e.disengage(); err != nil {
			return err
		}
	}
	e.tool = t
	e.hasTool = true
	e.readyToCut = false
	if t.Kind == planner.ToolSpindle {
		if err := e.w.WriteLine(line(code("G", 0), code("Z", t.TravelHeight))); err != nil {
			return emitErr("raising spindle to travel height: %v", err)
		}
	}
	return nil
}

// disengage stops the outgoing tool: laser ⇒ M5, spindle ⇒ rapid to
// travel height.
func (e *Emitter) disengage() error {
	if !e.hasTool {
		return nil
	}
	switch e.tool.Kind {
	case planner.ToolLaser:
		if err := e.w.WriteLine(line(code("M", 5))); err != nil {
			return emitErr("disengaging laser: %v", err)
		}
	case planner.ToolSpindle:
		if err := e.w.WriteLine(line(code("G", 0), code("Z", e.tool.TravelHeight))); err != nil {
			return emitErr("disengaging spindle: %v", err)
		}
	}
	e.readyToCut = false
	return nil
}

func (e *Emitter) unitMode(metric bool) error {
	e.metric = metric
	g := 21.0
	if !metric {
		g = 22
	}
	if err := e.w.WriteLine(line(code("G", g))); err != nil {
		return emitErr("writing unit mode: %v", err)
	}
	return nil
}

func (e *Emitter) setRapidSpeed(speed float64) error {
	if err := e.w.WriteLine(line(code("G", 0), code("F", speed))); err != nil {
		return emitErr("writing rapid speed: %v", err)
	}
	return nil
}

func (e *Emitter) setWorkSpeed(speed float64) error {
	e.lastWorkSpeed = speed
	if err := e.w.WriteLine(line(code("G", 1), code("F", speed))); err != nil {
		return emitErr("writing work speed: %v", err)
	}
	return nil
}

// setPower computes the ratio against max_power and arms (but does not
// fire) the laser: M3 P<percent> S<0..255> then M5 (§4.H "SetPower").
func (e *Emitter) setPower(ratio float64) error {
	if !e.hasTool || e.tool.Kind != planner.ToolLaser {
		return emitErr("SetPower requires a laser to be equipped")
	}
	percent := ratio * 100
	pwmValue := math.Trunc(ratio * 255)
	if err := e.w.WriteLine(line(code("M", 3), code("P", percent), code("S", pwmValue))); err != nil {
		return emitErr("arming laser power: %v", err)
	}
	if err := e.w.WriteLine(line(code("M", 5))); err != nil {
		return emitErr("disarming after power set: %v", err)
	}
	return nil
}

// setSpindleSpeed computes the ratio against max_spindle_speed: positive
// ⇒ M3, negative ⇒ M4 (§4.H "SetSpindleSpeed").
func (e *Emitter) setSpindleSpeed(ratio float64) error {
	if !e.hasTool || e.tool.Kind != planner.ToolSpindle {
		return emitErr("SetSpindleSpeed requires a spindle to be equipped")
	}
	speed := ratio * e.tool.MaxSpindleSpeed
	if ratio >= 0 {
		if err := e.w.WriteLine(line(code("M", 3), code("S", speed))); err != nil {
			return emitErr("writing spindle forward speed: %v", err)
		}
		return nil
	}
	if err := e.w.WriteLine(line(code("M", 4), code("S", -speed))); err != nil {
		return emitErr("writing spindle reverse speed: %v", err)
	}
	return nil
}

// setFanPower is the [EXPANSION] air-assist control surfaced from
// original_source/'s MachineConfig.fan_speed but absent from spec.md.
func (e *Emitter) setFanPower(ratio float64) error {
	pwmValue := math.Trunc(ratio * 255)
	if err := e.w.WriteLine(line(code("M", 106), code("S", pwmValue))); err != nil {
		return emitErr("writing fan power: %v", err)
	}
	return nil
}

// mirror applies the back-side X mirror: x' = −x + x_offset.
func (e *Emitter) mirror(x float64) float64 {
	if e.side == planner.SideBack {
		return -x + e.xOffset
	}
	return x
}

// cut implements §4.H "Cut": on the first cut after a disengage, engages
// the tool (laser ⇒ M3; spindle ⇒ plunge to the pass's target depth then
// restore work speed), mirrors X for the back side, and emits the linear
// move.
func (e *Emitter) cut(passIndex int, x, y float64) error {
	if !e.hasTool || e.tool.Kind == planner.ToolNone {
		return emitErr("Cut issued with no tool equipped")
	}
	if !e.readyToCut {
		switch e.tool.Kind {
		case planner.ToolLaser:
			if err := e.w.WriteLine(line(code("M", 3))); err != nil {
				return emitErr("engaging laser before cut: %v", err)
			}
		case planner.ToolSpindle:
			target := e.tool.CutDepth
			if e.tool.HasPassDepth {
				target = e.tool.TravelHeight - e.tool.PassDepth*float64(passIndex)
			}
			if err := e.w.WriteLine(line(code("G", 1), code("Z", target), code("F", e.tool.PlungeSpeed))); err != nil {
				return emitErr("plunging spindle: %v", err)
			}
			if err := e.w.WriteLine(line(code("G", 1), code("F", e.lastWorkSpeed))); err != nil {
				return emitErr("restoring work speed after plunge: %v", err)
			}
		}
		e.readyToCut = true
	}
	mx := e.mirror(x)
	if err := e.w.WriteLine(line(code("G", 1), code("X", mx), code("Y", y))); err != nil {
		return emitErr("writing cut move: %v", err)
	}
	e.lastX, e.lastY = x, y
	e.hasLastPos = true
	return nil
}

// moveTo implements §4.H "MoveTo": a no-op (beyond clearing the ready
// flag) if the target equals the recorded position, otherwise disengages,
// mirrors X, and emits a rapid move.
func (e *Emitter) moveTo(x, y float64) error {
	if e.hasLastPos && x == e.lastX && y == e.lastY {
		e.readyToCut = false
		return nil
	}
	if err := e.disengage(); err != nil {
		return err
	}
	mx := e.mirror(x)
	if err := e.w.WriteLine(line(code("G", 0), code("X", mx), code("Y", y))); err != nil {
		return emitErr("writing rapid move: %v", err)
	}
	e.lastX, e.lastY = x, y
	e.hasLastPos = true
	return nil
}

// includeFile splices a referenced file's literal contents into the
// stream, resolved against IncludeDir if the path is relative, ensuring a
// trailing newline (§4.H "IncludeFile").
func (e *Emitter) includeFile(path string) error {
	resolved := path
	if !isAbs(path) && e.IncludeDir != "" {
		resolved = e.IncludeDir + string(os.PathSeparator) + path
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return emitErr("reading include file %q: %v", resolved, err)
	}
	if _, err := e.buf.Write(data); err != nil {
		return emitErr("splicing include file %q: %v", resolved, err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		if _, err := e.buf.WriteString("\n"); err != nil {
			return emitErr("appending trailing newline after include file %q: %v", resolved, err)
		}
	}
	return nil
}

func isAbs(path string) bool {
	return strings.HasPrefix(path, "/") || strings.HasPrefix(path, string(os.PathSeparator))
}

// WriteTo flushes the accumulated G-code text to w.
func (e *Emitter) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(e.buf.Bytes())
	return int64(n), err
}

// Bytes returns the accumulated G-code text.
func (e *Emitter) Bytes() []byte {
	return e.buf.Bytes()
}
