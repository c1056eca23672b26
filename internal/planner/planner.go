// Package planner implements the toolpath planner (§4.G): it consumes a
// geometry.MultiPolygon plus a job configuration and issues the ordered
// command queue the motion emitter serializes into G-code.
package planner

import (
	"fmt"
	"math"

	polyclip "github.com/ctessum/polyclip-go"

	"github.com/chrisns/pcb-forge/internal/forgeerr"
	"github.com/chrisns/pcb-forge/internal/geometry"
	"github.com/chrisns/pcb-forge/internal/shape"
)

// ToolKind discriminates the equipped tool.
type ToolKind int

const (
	ToolNone ToolKind = iota
	ToolLaser
	ToolSpindle
)

// Tool describes the physical tool driving pass-count and depth logic.
type Tool struct {
	Kind ToolKind

	// Laser
	MaxPower float64

	// Spindle
	MaxSpindleSpeed float64
	PlungeSpeed     float64
	TravelHeight    float64
	CutDepth        float64
	HasPassDepth    bool
	PassDepth       float64

	Diameter float64
}

// JobConfig carries the per-stage cutting parameters.
type JobConfig struct {
	Tool            Tool
	DistancePerStep float64
	Passes          int // laser pass count (ignored for spindle; derived from depth)
	RapidSpeed      float64
	WorkSpeed       float64
	Power           float64 // ratio 0..1, laser only
	SpindleSpeed    float64 // signed ratio, spindle only
}

// CommandKind discriminates the flat planner command stream.
type CommandKind int

const (
	CmdEquipTool CommandKind = iota
	CmdUnitMode
	CmdSetRapidSpeed
	CmdSetWorkSpeed
	CmdSetSpindleSpeed
	CmdSetPower
	CmdMoveTo
	CmdCut
	CmdIncludeFile
	CmdSetSide
	CmdSetFanPower // [EXPANSION]: retained from original_source air-assist control
)

// Side selects which face of the board a stage targets.
type Side int

const (
	SideFront Side = iota
	SideBack
)

// Command is one planner instruction, flat-struct-with-discriminant per the
// corpus idiom.
type Command struct {
	Kind CommandKind

	Tool Tool    // CmdEquipTool
	Path string  // CmdIncludeFile
	Side Side    // CmdSetSide
	Metric bool  // CmdUnitMode

	Speed float64 // CmdSetRapidSpeed/CmdSetWorkSpeed
	Ratio float64 // CmdSetSpindleSpeed/CmdSetPower/CmdSetFanPower

	PassIndex int // CmdCut
	X, Y      float64
}

func plannerErr(format string, args ...interface{}) error {
	return forgeerr.New(forgeerr.Planner, fmt.Sprintf(format, args...), nil)
}

// Plan is the inputs/outputs of one planning pass.
type Plan struct {
	Polygon geometry.MultiPolygon
	Invert  bool // engrave-only: whether the masked region is the cleared area
	IsInfillEligible bool
	Holes   []Hole // drill files
	RoutedPolygon *geometry.MultiPolygon // drill G00 routed regions, pre-dilation
}

// Hole is one drill hit.
type Hole struct {
	Center   shape.Point
	Diameter float64
}

// state threads the "last position" across Plan() invocations within one
// stage's queue build, per the nearest-neighbour traversal rule.
type state struct {
	lastPos    shape.Point
	hasLastPos bool
}

// Planner accumulates commands for one output queue.
type Planner struct {
	cfg   JobConfig
	st    state
	queue []Command
}

// New constructs a Planner for the given job configuration.
func New(cfg JobConfig) *Planner {
	return &Planner{cfg: cfg}
}

// Queue returns the accumulated command stream.
func (p *Planner) Queue() []Command { return p.queue }

func (p *Planner) emit(c Command) { p.queue = append(p.queue, c) }

// PlanEngrave implements outline traversal + infill for an engrave-mask
// stage (§4.G "Outline traversal" / "Infill (engrave only)").
func (p *Planner) PlanEngrave(mp geometry.MultiPolygon, invert bool) error {
	if len(mp.Polygons) == 0 || len(mp.Polygons[0]) == 0 {
		return plannerErr("empty polygon passed to engrave planner")
	}
	passes := p.passCount()
	for k := 0; k < passes; k++ {
		p.traverseOutline(mp, k)
		p.traverseInfill(mp, invert, k)
	}
	return nil
}

// PlanCutBoard implements outline traversal only, for a routed-board cut
// stage where infill never applies.
func (p *Planner) PlanCutBoard(mp geometry.MultiPolygon) error {
	if len(mp.Polygons) == 0 || len(mp.Polygons[0]) == 0 {
		return plannerErr("empty polygon passed to cut-board planner")
	}
	passes := p.passCount()
	for k := 0; k < passes; k++ {
		p.traverseOutline(mp, k)
	}
	return nil
}

// PlanDrill implements drill-hit nearest-neighbour ordering (§4.G "Drill
// hits").
func (p *Planner) PlanDrill(holes []Hole) error {
	if len(holes) == 0 {
		return plannerErr("no drill hits to plan")
	}
	if p.cfg.Tool.Diameter <= 0 {
		return plannerErr("zero tool diameter for drill planning")
	}
	passes := p.passCount()
	remaining := append([]Hole{}, holes...)
	for k := 0; k < passes; k++ {
		ordered := nearestNeighbourHoles(remaining, p.lastPos())
		for _, h := range ordered {
			ringDia := h.Diameter - p.cfg.Tool.Diameter/2
			if ringDia <= 0 {
				ringDia = h.Diameter
			}
			ring := shape.Circle(h.Center, ringDia).Polyline(p.cfg.DistancePerStep)
			p.emitRing(ring, k)
		}
		if p.cfg.Tool.Kind != ToolLaser {
			break // non-laser tools drill each hole once, not once per pass.
		}
	}
	return nil
}

// PlanRoutedPath implements routed-polygon traversal (§4.G "Routed
// paths"): the route polyline is pre-dilated by −tool_diameter by the
// caller (via geometry.Offset) before being handed here.
func (p *Planner) PlanRoutedPath(mp geometry.MultiPolygon) error {
	return p.PlanCutBoard(mp)
}

func (p *Planner) passCount() int {
	if p.cfg.Tool.Kind == ToolLaser {
		if p.cfg.Passes > 0 {
			return p.cfg.Passes
		}
		return 1
	}
	if p.cfg.Tool.HasPassDepth && p.cfg.Tool.PassDepth > 0 {
		depth := p.cfg.Tool.TravelHeight - p.cfg.Tool.CutDepth
		n := int(math.Floor(depth / p.cfg.Tool.PassDepth))
		if n < 1 {
			n = 1
		}
		return n
	}
	return 1
}

func (p *Planner) lastPos() shape.Point {
	if !p.st.hasLastPos {
		return shape.Point{}
	}
	return p.st.lastPos
}

func (p *Planner) moveTo(pt shape.Point) {
	p.emit(Command{Kind: CmdMoveTo, X: pt.X, Y: pt.Y})
	p.st.lastPos = pt
	p.st.hasLastPos = true
}

func (p *Planner) cutTo(pt shape.Point, pass int) {
	p.emit(Command{Kind: CmdCut, X: pt.X, Y: pt.Y, PassIndex: pass})
	p.st.lastPos = pt
	p.st.hasLastPos = true
}

func (p *Planner) emitRing(ring []shape.Point, pass int) {
	if len(ring) == 0 {
		return
	}
	p.moveTo(ring[0])
	for _, pt := range ring[1:] {
		p.cutTo(pt, pass)
	}
}

// ringRef is one exterior-or-interior ring extracted from a MultiPolygon,
// tagged so traverseOutline can group interior rings under the nearest
// preceding exterior.
type ringRef struct {
	pts      []shape.Point
	interior bool
}

// traverseOutline dequeues polygons by nearest-neighbour from the last
// position (the bounding-box minimum corner when nothing has been visited
// yet), then each polygon's exterior ring followed by its interior rings,
// nearest first-vertex.
func (p *Planner) traverseOutline(mp geometry.MultiPolygon, pass int) {
	if !p.st.hasLastPos {
		b := boundsOf(mp)
		p.st.lastPos = shape.Point{X: b.MinX, Y: b.MinY}
		p.st.hasLastPos = true
	}
	var rings []ringRef
	for _, poly := range mp.Polygons {
		for i, c := range poly {
			pts := fromContour(c)
			rings = append(rings, ringRef{pts: pts, interior: i != 0})
		}
	}

	// Separate exterior rings (each opens a new polygon group) from
	// interior rings owned by the nearest preceding exterior.
	var exteriors []ringRef
	interiorGroups := map[int][]ringRef{}
	lastExterior := -1
	for _, r := range rings {
		if !r.interior {
			exteriors = append(exteriors, r)
			lastExterior++
			continue
		}
		interiorGroups[lastExterior] = append(interiorGroups[lastExterior], r)
	}

	remaining := make([]int, len(exteriors))
	for i := range remaining {
		remaining[i] = i
	}
	for len(remaining) > 0 {
		best, bestIdx := -1, -1
		bestDist := math.Inf(1)
		for idx, ei := range remaining {
			if len(exteriors[ei].pts) == 0 {
				continue
			}
			d := p.lastPos().Dist(exteriors[ei].pts[0])
			if d < bestDist {
				bestDist = d
				best = ei
				bestIdx = idx
			}
		}
		if best < 0 {
			break
		}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		p.emitRing(exteriors[best].pts, pass)
		holes := interiorGroups[best]
		for len(holes) > 0 {
			bi := nearestRingIndex(holes, p.lastPos())
			p.emitRing(holes[bi].pts, pass)
			holes = append(holes[:bi], holes[bi+1:]...)
		}
	}
}

func nearestRingIndex(rings []ringRef, from shape.Point) int {
	best, bestDist := 0, math.Inf(1)
	for i, r := range rings {
		if len(r.pts) == 0 {
			continue
		}
		d := from.Dist(r.pts[0])
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// traverseInfill implements alternating-axis hatch fill for engrave
// passes: even passes hatch horizontally, odd vertically; spacing is
// tool_diameter/2; segments are collected then ordered nearest-endpoint
// first (§4.G).
func (p *Planner) traverseInfill(mp geometry.MultiPolygon, invert bool, pass int) {
	spacing := p.cfg.Tool.Diameter / 2
	if spacing <= 0 {
		spacing = 0.1
	}
	bounds := boundsOf(mp)
	horizontal := pass%2 == 0

	type segment struct{ a, b shape.Point }
	var segments []segment

	if horizontal {
		for y := bounds.MinY; y <= bounds.MaxY; y += spacing {
			ivs := scanlineIntervals(mp, invert, y, bounds.MinX, bounds.MaxX, true, spacing)
			for _, iv := range ivs {
				segments = append(segments, segment{shape.Point{X: iv[0], Y: y}, shape.Point{X: iv[1], Y: y}})
			}
		}
	} else {
		for x := bounds.MinX; x <= bounds.MaxX; x += spacing {
			ivs := scanlineIntervals(mp, invert, x, bounds.MinY, bounds.MaxY, false, spacing)
			for _, iv := range ivs {
				segments = append(segments, segment{shape.Point{X: x, Y: iv[0]}, shape.Point{X: x, Y: iv[1]}})
			}
		}
	}

	remaining := segments
	for len(remaining) > 0 {
		best, bestDist := 0, math.Inf(1)
		bestReversed := false
		for i, s := range remaining {
			if d := p.lastPos().Dist(s.a); d < bestDist {
				bestDist, best, bestReversed = d, i, false
			}
			if d := p.lastPos().Dist(s.b); d < bestDist {
				bestDist, best, bestReversed = d, i, true
			}
		}
		s := remaining[best]
		remaining = append(remaining[:best], remaining[best+1:]...)
		start, end := s.a, s.b
		if bestReversed {
			start, end = end, start
		}
		p.moveTo(start)
		p.cutTo(end, pass)
	}
}

// scanlineIntervals samples contains() along a scanline at spacing/4
// granularity (fine enough to resolve hatch spacing without a dedicated
// ray-polygon intersection routine) and groups consecutive "inside" steps
// into intervals. invert flips the containment test per the spec's
// `contains(point) XOR invert` rule.
func scanlineIntervals(mp geometry.MultiPolygon, invert bool, fixed, lo, hi float64, horizontal bool, spacing float64) [][2]float64 {
	step := spacing / 4
	if step <= 0 {
		step = 0.025
	}
	var out [][2]float64
	inInterval := false
	var start float64
	for v := lo; v <= hi+step; v += step {
		var pt shape.Point
		if horizontal {
			pt = shape.Point{X: v, Y: fixed}
		} else {
			pt = shape.Point{X: fixed, Y: v}
		}
		inside := containsPoint(mp, pt) != invert
		if inside && !inInterval {
			inInterval = true
			start = v
		} else if !inside && inInterval {
			inInterval = false
			out = append(out, [2]float64{start, v})
		}
	}
	if inInterval {
		out = append(out, [2]float64{start, hi})
	}
	return out
}

// containsPoint implements a ray-casting point-in-multipolygon test against
// every contour's edges (odd crossing count ⇒ inside), honoring hole
// contours implicitly since they contribute crossings the same as any
// other ring.
func containsPoint(mp geometry.MultiPolygon, pt shape.Point) bool {
	crossings := 0
	for _, poly := range mp.Polygons {
		for _, c := range poly {
			n := len(c)
			for i := 0; i < n; i++ {
				a := c[i]
				b := c[(i+1)%n]
				if (a.Y > pt.Y) != (b.Y > pt.Y) {
					xint := a.X + (pt.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
					if pt.X < xint {
						crossings++
					}
				}
			}
		}
	}
	return crossings%2 == 1
}

func boundsOf(mp geometry.MultiPolygon) shape.Rect {
	var r shape.Rect
	first := true
	for _, poly := range mp.Polygons {
		for _, c := range poly {
			for _, pt := range c {
				p := shape.Point{X: pt.X, Y: pt.Y}
				if first {
					r = shape.Rect{MinX: p.X, MaxX: p.X, MinY: p.Y, MaxY: p.Y}
					first = false
					continue
				}
				r = r.Union(shape.Rect{MinX: p.X, MaxX: p.X, MinY: p.Y, MaxY: p.Y})
			}
		}
	}
	return r
}

func fromContour(c polyclip.Contour) []shape.Point {
	pts := make([]shape.Point, len(c))
	for i, p := range c {
		pts[i] = shape.Point{X: p.X, Y: p.Y}
	}
	return pts
}

// nearestNeighbourHoles orders holes starting from `from`, always picking
// the closest remaining centre next.
func nearestNeighbourHoles(holes []Hole, from shape.Point) []Hole {
	remaining := append([]Hole{}, holes...)
	ordered := make([]Hole, 0, len(remaining))
	cur := from
	for len(remaining) > 0 {
		best, bestDist := 0, math.Inf(1)
		for i, h := range remaining {
			if d := cur.Dist(h.Center); d < bestDist {
				bestDist, best = d, i
			}
		}
		ordered = append(ordered, remaining[best])
		cur = remaining[best].Center
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return ordered
}
