// Package shape holds the imaged-geometry primitives produced by the Gerber
// image builder: points, polarity-tagged shapes built from line/arc
// segments, and a ShapeSet that chains top-level shapes with nested flash
// shapes. Segments are modeled as a flat struct with a Kind discriminant
// rather than one Go type per variant, the same flat-struct-plus-tag idiom
// the teacher repo uses for gcode.Command (internal/gcode/command.go).
package shape

import "math"

// Point is a location in millimetres.
type Point struct {
	X, Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Scale returns p scaled by s.
func (p Point) Scale(s float64) Point { return Point{p.X * s, p.Y * s} }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Equal reports whether p and q coincide within tolerance eps.
func (p Point) Equal(q Point, eps float64) bool {
	return math.Abs(p.X-q.X) <= eps && math.Abs(p.Y-q.Y) <= eps
}

// Polarity flags whether an imaged operation adds (Dark) or subtracts
// (Clear) material.
type Polarity int

const (
	Dark Polarity = iota
	Clear
)

// Inverse returns the opposite polarity.
func (p Polarity) Inverse() Polarity {
	if p == Dark {
		return Clear
	}
	return Dark
}

func (p Polarity) String() string {
	if p == Dark {
		return "dark"
	}
	return "clear"
}

// SegmentKind discriminates the variants of Segment.
type SegmentKind int

const (
	SegLine SegmentKind = iota
	SegClockwiseArc
	SegCounterClockwiseArc
)

// Segment is one edge of a Shape. For arcs, Center is the arc center and
// the invariant |start-center| == |end-center| holds within ArcTolerance
// of the shape that owns it.
type Segment struct {
	Kind   SegmentKind
	End    Point
	Center Point // meaningful only when Kind != SegLine
}

// ArcTolerance is the default parser-level tolerance for the arc radius
// invariant, per the data model's "within a parser-level tolerance" note.
const ArcTolerance = 1e-6

// Shape is a polarity-tagged outline: a starting point plus an ordered list
// of segments. It is Closed when the last segment's end coincides with
// StartingPoint. Imaged Gerber shapes (flashes, strokes) are always closed;
// region shapes (G36/G37) are closed by construction.
type Shape struct {
	Polarity      Polarity
	StartingPoint Point
	Segments      []Segment
}

// Closed reports whether the last segment's endpoint returns to the start,
// within VertexTolerance.
func (s Shape) Closed() bool {
	if len(s.Segments) == 0 {
		return false
	}
	return s.Segments[len(s.Segments)-1].End.Equal(s.StartingPoint, VertexTolerance)
}

// VertexTolerance is the default tolerance for vertex coincidence used by
// closure checks and the polygon algebra layer (Design Note §9: default
// 1e-9 mm).
const VertexTolerance = 1e-9

// Bounds computes the shape's axis-aligned bounding box. Arc extrema are
// derived from true arc geometry (center, radius, and the quadrant points
// the arc's angular span actually crosses) rather than `end ± diameter*2`,
// correcting the flagged bug in the original tool (see REDESIGN FLAGS in
// SPEC_FULL.md).
func (s Shape) Bounds() Rect {
	r := Rect{MinX: s.StartingPoint.X, MaxX: s.StartingPoint.X, MinY: s.StartingPoint.Y, MaxY: s.StartingPoint.Y}
	cur := s.StartingPoint
	for _, seg := range s.Segments {
		switch seg.Kind {
		case SegLine:
			r = r.include(seg.End)
		default:
			r = r.includeRect(arcBounds(cur, seg.End, seg.Center, seg.Kind == SegClockwiseArc))
		}
		cur = seg.End
	}
	return r
}

// arcBounds returns the bounding box of the arc from start to end around
// center, sweeping clockwise (cw=true) or counter-clockwise.
func arcBounds(start, end, center Point, cw bool) Rect {
	radius := start.Dist(center)
	r := Rect{MinX: math.Min(start.X, end.X), MaxX: math.Max(start.X, end.X),
		MinY: math.Min(start.Y, end.Y), MaxY: math.Max(start.Y, end.Y)}

	startAngle := math.Atan2(start.Y-center.Y, start.X-center.X)
	endAngle := math.Atan2(end.Y-center.Y, end.X-center.X)

	// Normalize the swept angular range to [0, 2π) in the direction of travel.
	sweep := func(from, to float64, clockwise bool) (float64, float64) {
		if clockwise {
			for to > from {
				to -= 2 * math.Pi
			}
		} else {
			for to < from {
				to += 2 * math.Pi
			}
		}
		return from, to
	}
	lo, hi := sweep(startAngle, endAngle, cw)
	if lo > hi {
		lo, hi = hi, lo
	}

	// Quadrant extrema occur at angles 0, π/2, π, 3π/2 (mod 2π).
	for k := -2; k <= 2; k++ {
		for _, quadrant := range [4]float64{0, math.Pi / 2, math.Pi, 3 * math.Pi / 2} {
			a := quadrant + float64(k)*2*math.Pi
			if a >= lo && a <= hi {
				candidate := Point{center.X + radius*math.Cos(a), center.Y + radius*math.Sin(a)}
				r = r.include(candidate)
			}
		}
	}
	return r
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

func (r Rect) include(p Point) Rect {
	if p.X < r.MinX {
		r.MinX = p.X
	}
	if p.X > r.MaxX {
		r.MaxX = p.X
	}
	if p.Y < r.MinY {
		r.MinY = p.Y
	}
	if p.Y > r.MaxY {
		r.MaxY = p.Y
	}
	return r
}

func (r Rect) includeRect(o Rect) Rect {
	r = r.include(Point{o.MinX, o.MinY})
	r = r.include(Point{o.MaxX, o.MaxY})
	return r
}

// Union returns the smallest Rect containing both r and o.
func (r Rect) Union(o Rect) Rect {
	return r.includeRect(o)
}

// Width and Height report the rect's extent.
func (r Rect) Width() float64  { return r.MaxX - r.MinX }
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Polyline samples the shape into a closed polyline at approximately
// distancePerStep millimetres per chord, per §4.D / §4.F. Arcs use a
// ceiling step count bounded by the half-angle between radii so that chord
// error stays within r*(1-cos(s/r)), matching the Arc sampling fidelity
// invariant in spec.md §8.
func (s Shape) Polyline(distancePerStep float64) []Point {
	if distancePerStep <= 0 {
		distancePerStep = 0.1
	}
	pts := make([]Point, 0, len(s.Segments)+1)
	pts = append(pts, s.StartingPoint)
	cur := s.StartingPoint
	for _, seg := range s.Segments {
		switch seg.Kind {
		case SegLine:
			pts = append(pts, seg.End)
		default:
			pts = append(pts, sampleArc(cur, seg.End, seg.Center, seg.Kind == SegClockwiseArc, distancePerStep)...)
		}
		cur = seg.End
	}
	return CollapseColinear(pts)
}

// sampleArc returns the polyline points strictly after the start point,
// including the end point, approximating the arc from start to end around
// center at the requested chord length.
func sampleArc(start, end, center Point, cw bool, distancePerStep float64) []Point {
	radius := start.Dist(center)
	if radius <= 0 {
		return []Point{end}
	}

	startAngle := math.Atan2(start.Y-center.Y, start.X-center.X)
	endAngle := math.Atan2(end.Y-center.Y, end.X-center.X)

	var sweep float64
	if start.Equal(end, VertexTolerance) {
		// A closed arc where start == end is a full revolution.
		sweep = 2 * math.Pi
	} else if cw {
		sweep = startAngle - endAngle
		for sweep <= 0 {
			sweep += 2 * math.Pi
		}
	} else {
		sweep = endAngle - startAngle
		for sweep <= 0 {
			sweep += 2 * math.Pi
		}
	}

	// Chord length c for half-angle theta: c = 2*r*sin(theta/2). Solve
	// step count by bounding the per-step angle to keep chord <= distancePerStep.
	stepAngle := 2 * math.Asin(math.Min(1, distancePerStep/(2*radius)))
	if stepAngle <= 0 {
		stepAngle = sweep
	}
	steps := int(math.Ceil(sweep / stepAngle))
	if steps < 1 {
		steps = 1
	}

	pts := make([]Point, 0, steps)
	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		var a float64
		if cw {
			a = startAngle - sweep*frac
		} else {
			a = startAngle + sweep*frac
		}
		if i == steps {
			pts = append(pts, end)
			continue
		}
		pts = append(pts, Point{center.X + radius*math.Cos(a), center.Y + radius*math.Sin(a)})
	}
	return pts
}

// CollapseColinear removes redundant consecutive points whose incoming and
// outgoing unit directions agree to within 1±ε, per §4.D.
func CollapseColinear(pts []Point) []Point {
	if len(pts) < 3 {
		return pts
	}
	const eps = 1e-9
	out := make([]Point, 0, len(pts))
	out = append(out, pts[0])
	for i := 1; i < len(pts)-1; i++ {
		prev := out[len(out)-1]
		cur := pts[i]
		next := pts[i+1]
		d1 := unit(cur.Sub(prev))
		d2 := unit(next.Sub(cur))
		dot := d1.X*d2.X + d1.Y*d2.Y
		if math.Abs(dot-1) <= eps {
			continue // cur is redundant: prev->next is the same direction.
		}
		out = append(out, cur)
	}
	out = append(out, pts[len(pts)-1])
	return out
}

func unit(v Point) Point {
	l := math.Hypot(v.X, v.Y)
	if l == 0 {
		return Point{}
	}
	return Point{v.X / l, v.Y / l}
}

// Set is the imaged geometry of one Gerber file: top-level shapes plus,
// per flash, a nested shape list (e.g. a macro aperture's evaluated
// primitives). All iterates both.
type Set struct {
	Top     []Shape
	Flashes [][]Shape
}

// All invokes fn for every shape in the set, top-level first.
func (s *Set) All(fn func(Shape)) {
	for _, sh := range s.Top {
		fn(sh)
	}
	for _, flash := range s.Flashes {
		for _, sh := range flash {
			fn(sh)
		}
	}
}

// Append adds top-level shapes to the set.
func (s *Set) Append(shapes ...Shape) {
	s.Top = append(s.Top, shapes...)
}

// AppendFlash adds a nested flash's shape list to the set.
func (s *Set) AppendFlash(shapes []Shape) {
	s.Flashes = append(s.Flashes, shapes)
}

// Bounds returns the union of every shape's bounding box.
func (s *Set) Bounds() Rect {
	var r Rect
	first := true
	s.All(func(sh Shape) {
		b := sh.Bounds()
		if first {
			r = b
			first = false
			return
		}
		r = r.Union(b)
	})
	return r
}
