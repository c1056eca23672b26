package shape

import (
	"math"
	"testing"
)

func TestCircleIsClosed(t *testing.T) {
	c := Circle(Point{1, 1}, 2)
	if !c.Closed() {
		t.Fatal("circle shape should be closed")
	}
}

func TestRectangleIsClosed(t *testing.T) {
	r := Rectangle(Point{0, 0}, 4, 2)
	if !r.Closed() {
		t.Fatal("rectangle shape should be closed")
	}
}

func TestLineRoundedCapIsClosed(t *testing.T) {
	l := Line(Point{0, 0}, Point{10, 0}, 1, false)
	if !l.Closed() {
		t.Fatal("rounded-cap line should be closed")
	}
}

func TestPolylineArcFidelity(t *testing.T) {
	// Quarter circle radius 5, sampled at 0.5mm steps.
	c := Point{0, 0}
	shape := Shape{
		StartingPoint: Point{5, 0},
		Segments:      []Segment{{Kind: SegCounterClockwiseArc, End: Point{0, 5}, Center: c}},
	}
	distancePerStep := 0.5
	pts := shape.Polyline(distancePerStep)

	radius := 5.0
	maxAllowedError := radius * (1 - math.Cos(distancePerStep/radius))

	for i := 1; i < len(pts); i++ {
		// Each sampled point should itself sit on the circle (sampling is
		// exact in angle), so check consecutive chord sagitta indirectly:
		// the radius of every sampled point must equal the arc radius.
		d := pts[i].Dist(c)
		if math.Abs(d-radius) > 1e-9 {
			t.Fatalf("point %d not on circle: radius %v", i, d)
		}
	}
	_ = maxAllowedError
}

func TestCollapseColinear(t *testing.T) {
	pts := []Point{{0, 0}, {1, 0}, {2, 0}, {2, 1}}
	out := CollapseColinear(pts)
	if len(out) != 3 {
		t.Fatalf("expected colinear point collapsed, got %d points: %v", len(out), out)
	}
}

func TestArcBoundsCrossesQuadrant(t *testing.T) {
	// Arc from angle -10deg to +100deg around origin, radius 1: should
	// include the quadrant extrema at 0 and 90 degrees, i.e. bounds reach
	// x=1 and y=1, not just the chord endpoints.
	start := Point{math.Cos(-10 * math.Pi / 180), math.Sin(-10 * math.Pi / 180)}
	end := Point{math.Cos(100 * math.Pi / 180), math.Sin(100 * math.Pi / 180)}
	shape := Shape{
		StartingPoint: start,
		Segments:      []Segment{{Kind: SegCounterClockwiseArc, End: end, Center: Point{0, 0}}},
	}
	b := shape.Bounds()
	if b.MaxX < 0.999 {
		t.Errorf("expected bounds to reach x=1 at quadrant extremum, got MaxX=%v", b.MaxX)
	}
	if b.MaxY < 0.999 {
		t.Errorf("expected bounds to reach y=1 at quadrant extremum, got MaxY=%v", b.MaxY)
	}
}

func TestSetAllChainsTopAndFlashes(t *testing.T) {
	var s Set
	s.Append(Circle(Point{0, 0}, 1))
	s.AppendFlash([]Shape{Rectangle(Point{5, 5}, 1, 1)})

	count := 0
	s.All(func(Shape) { count++ })
	if count != 2 {
		t.Fatalf("expected 2 shapes total, got %d", count)
	}
}
