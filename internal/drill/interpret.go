package drill

import (
	"fmt"
	"math"

	"github.com/chrisns/pcb-forge/internal/forgeerr"
	"github.com/chrisns/pcb-forge/internal/shape"
)

func semErr(pos Pos, format string, args ...interface{}) error {
	return forgeerr.At(forgeerr.Semantic, "", pos, fmt.Sprintf(format, args...), nil)
}

// Hole is one drilled hit: tool-diameter circle centered at Center, in the
// same millimetre space as internal/shape.
type Hole struct {
	Center   shape.Point
	Diameter float64
}

// RoutedPath is one continuous tool-down traversal recorded while the
// header was in route mode (G00), used for board-outline milling drill
// files rather than simple hole drilling.
type RoutedPath struct {
	Points []shape.Point
}

// Program is the interpreted result of an XNC command stream: the drilled
// hits plus any routed (milled) paths.
type Program struct {
	Holes  []Hole
	Routes []RoutedPath
}

// Interpret walks a parsed XNC command stream, tracking tool/unit/position/
// motion mode the way a physical drill controller would, and produces the
// hole list §4.B's planner stage (component G's PlanDrill) consumes plus
// any routed paths for board-outline drill files. distancePerStep controls
// arc-to-polyline sampling density for G02/G03 route segments.
func Interpret(cmds []Command, distancePerStep float64) (Program, error) {
	var prog Program

	scale := 1.0
	posMode := PositionAbsolute
	motionMode := MotionDrill
	tools := map[int]float64{}
	curToolDiameter := 0.0
	curX, curY := 0.0, 0.0
	toolDown := false
	var route []shape.Point

	flushRoute := func() {
		if len(route) > 1 {
			prog.Routes = append(prog.Routes, RoutedPath{Points: append([]shape.Point{}, route...)})
		}
		route = nil
	}

	resolve := func(hasX, hasY bool, x, y float64) (float64, float64) {
		nx, ny := curX, curY
		if posMode == PositionAbsolute {
			if hasX {
				nx = x * scale
			}
			if hasY {
				ny = y * scale
			}
			return nx, ny
		}
		if hasX {
			nx = curX + x*scale
		}
		if hasY {
			ny = curY + y*scale
		}
		return nx, ny
	}

	for _, c := range cmds {
		switch c.Kind {
		case CmdUnitMode:
			if c.Metric {
				scale = 1.0
			} else {
				scale = 25.4
			}
		case CmdPositionMode:
			posMode = c.PositionMode
		case CmdMotionMode:
			if motionMode == MotionRoute && c.MotionMode == MotionDrill {
				flushRoute()
				toolDown = false
			}
			motionMode = c.MotionMode
		case CmdToolDeclare:
			tools[c.ToolNumber] = c.ToolDiameter
		case CmdToolSelect:
			d, ok := tools[c.ToolNumber]
			if !ok {
				return prog, semErr(c.Pos, "tool select references undeclared tool T%d", c.ToolNumber)
			}
			curToolDiameter = d
		case CmdToolDown:
			toolDown = true
			route = []shape.Point{{X: curX, Y: curY}}
		case CmdToolUp:
			toolDown = false
			flushRoute()
		case CmdHit:
			nx, ny := resolve(c.HasX, c.HasY, c.X, c.Y)
			curX, curY = nx, ny
			if motionMode == MotionDrill {
				prog.Holes = append(prog.Holes, Hole{Center: shape.Point{X: nx, Y: ny}, Diameter: curToolDiameter * scale})
			}
		case CmdLinearMove:
			nx, ny := resolve(c.HasX, c.HasY, c.X, c.Y)
			curX, curY = nx, ny
			if toolDown {
				route = append(route, shape.Point{X: nx, Y: ny})
			}
		case CmdCurve:
			nx, ny := resolve(c.HasX, c.HasY, c.X, c.Y)
			if !c.HasDiameter {
				return prog, semErr(c.Pos, "curve route segment missing A<diameter>")
			}
			if toolDown {
				pts := sampleArcSegment(shape.Point{X: curX, Y: curY}, shape.Point{X: nx, Y: ny},
					c.CurveDiameter*scale/2, c.Direction == CurveClockwise, distancePerStep)
				route = append(route, pts...)
			}
			curX, curY = nx, ny
		}
	}
	flushRoute()

	return prog, nil
}

// sampleArcSegment approximates a G02/G03 route arc from start to end with
// the given radius, sampling into a polyline. The center is the
// perpendicular-bisector solution nearer the arc direction's expected
// side; if the chord is longer than the diameter (malformed input), it
// falls back to a straight line rather than producing NaN points.
func sampleArcSegment(start, end shape.Point, radius float64, clockwise bool, distancePerStep float64) []shape.Point {
	chord := start.Dist(end)
	if radius <= 0 || chord == 0 || chord/2 > radius {
		return []shape.Point{end}
	}
	mid := shape.Point{X: (start.X + end.X) / 2, Y: (start.Y + end.Y) / 2}
	h := math.Sqrt(radius*radius - (chord/2)*(chord/2))
	dir := end.Sub(start)
	perp := shape.Point{X: -dir.Y, Y: dir.X}
	n := unit(perp)
	if clockwise {
		n = shape.Point{X: -n.X, Y: -n.Y}
	}
	center := shape.Point{X: mid.X + n.X*h, Y: mid.Y + n.Y*h}

	startAngle := math.Atan2(start.Y-center.Y, start.X-center.X)
	endAngle := math.Atan2(end.Y-center.Y, end.X-center.X)
	if clockwise && endAngle > startAngle {
		endAngle -= 2 * math.Pi
	}
	if !clockwise && endAngle < startAngle {
		endAngle += 2 * math.Pi
	}

	arcLen := math.Abs(endAngle-startAngle) * radius
	steps := int(arcLen/distancePerStep) + 1
	if steps < 1 {
		steps = 1
	}
	pts := make([]shape.Point, 0, steps+1)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		a := startAngle + (endAngle-startAngle)*t
		pts = append(pts, shape.Point{X: center.X + radius*math.Cos(a), Y: center.Y + radius*math.Sin(a)})
	}
	return pts
}

func unit(p shape.Point) shape.Point {
	d := math.Hypot(p.X, p.Y)
	if d == 0 {
		return shape.Point{}
	}
	return shape.Point{X: p.X / d, Y: p.Y / d}
}
