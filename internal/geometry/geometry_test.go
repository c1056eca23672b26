package geometry

import (
	"testing"

	polyclip "github.com/ctessum/polyclip-go"

	"github.com/chrisns/pcb-forge/internal/shape"
)

func square(c shape.Point, side float64) shape.Shape {
	h := side / 2
	return shape.Polygon([]shape.Point{
		{X: c.X - h, Y: c.Y - h},
		{X: c.X + h, Y: c.Y - h},
		{X: c.X + h, Y: c.Y + h},
		{X: c.X - h, Y: c.Y + h},
		{X: c.X - h, Y: c.Y - h},
	})
}

func TestToRingsSingleOuterLoop(t *testing.T) {
	s := square(shape.Point{}, 10)
	rings := ToRings(s, 1)
	if len(rings) != 1 {
		t.Fatalf("expected 1 ring, got %d", len(rings))
	}
	if rings[0].Interior {
		t.Fatal("expected the only ring to be exterior")
	}
}

func TestUnionOfTwoSquaresProducesOnePolygon(t *testing.T) {
	var set shape.Set
	set.Append(square(shape.Point{X: 0, Y: 0}, 10))
	set.Append(square(shape.Point{X: 3, Y: 0}, 10))
	mp := Union(&set, 1)
	if len(mp.Polygons) != 1 {
		t.Fatalf("expected 1 result multipolygon entry, got %d", len(mp.Polygons))
	}
}

func TestOffsetDilateGrowsBounds(t *testing.T) {
	var set shape.Set
	set.Append(square(shape.Point{}, 10))
	mp := Union(&set, 1)
	grown := Offset(mp, 1)
	if len(grown.Polygons) == 0 || len(grown.Polygons[0]) == 0 {
		t.Fatal("expected a non-empty dilated polygon")
	}
}

func TestOffsetErodeShrinksConvexSquare(t *testing.T) {
	var set shape.Set
	set.Append(square(shape.Point{}, 10))
	mp := Union(&set, 1)
	shrunk := Offset(mp, -2)
	if len(shrunk.Polygons) == 0 || len(shrunk.Polygons[0]) == 0 {
		t.Fatal("expected a non-empty eroded polygon")
	}
}

func TestSelectLinesOuterOnly(t *testing.T) {
	outer := Ring{Points: square(shape.Point{}, 10).Polyline(1)}
	inner := Ring{Points: square(shape.Point{}, 4).Polyline(1), Interior: true}
	poly := ToPolygon(outer, []Ring{inner})
	mp := MultiPolygon{Polygons: []polyclip.Polygon{poly}}
	lines := SelectLines(mp, SelectOuter)
	if len(lines) != 1 {
		t.Fatalf("expected 1 outer contour, got %d", len(lines))
	}
	lines = SelectLines(mp, SelectInner)
	if len(lines) != 1 {
		t.Fatalf("expected 1 inner contour, got %d", len(lines))
	}
}
