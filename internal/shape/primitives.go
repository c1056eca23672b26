package shape

import "math"

// Circle returns a Dark-polarity circular outline of the given diameter
// centred on c, approximated by two semicircular arcs so that Polyline
// sampling applies uniformly.
func Circle(c Point, diameter float64) Shape {
	r := diameter / 2
	start := Point{c.X + r, c.Y}
	opposite := Point{c.X - r, c.Y}
	return Shape{
		Polarity:      Dark,
		StartingPoint: start,
		Segments: []Segment{
			{Kind: SegClockwiseArc, End: opposite, Center: c},
			{Kind: SegClockwiseArc, End: start, Center: c},
		},
	}
}

// Rectangle returns an axis-aligned rectangle of width w and height h
// centred on c.
func Rectangle(c Point, w, h float64) Shape {
	hw, hh := w/2, h/2
	corners := []Point{
		{c.X - hw, c.Y - hh},
		{c.X + hw, c.Y - hh},
		{c.X + hw, c.Y + hh},
		{c.X - hw, c.Y + hh},
	}
	return polygonFromPoints(corners)
}

// Obround returns a rectangle of width w, height h with the shorter pair of
// sides capped by semicircles (a "stadium" shape), matching the Gerber
// obround aperture template.
func Obround(c Point, w, h float64) Shape {
	if w <= h {
		return roundedCapLine(Point{c.X, c.Y - (h-w)/2}, Point{c.X, c.Y + (h-w)/2}, w)
	}
	return roundedCapLine(Point{c.X - (w-h)/2, c.Y}, Point{c.X + (w-h)/2, c.Y}, h)
}

// RegularPolygon returns a regular n-gon inscribed in the given diameter,
// centred on c, with its first vertex at angle rotationDeg from +X.
func RegularPolygon(c Point, diameter float64, n int, rotationDeg float64) Shape {
	if n < 3 {
		n = 3
	}
	r := diameter / 2
	rot := rotationDeg * math.Pi / 180
	pts := make([]Point, n)
	for i := 0; i < n; i++ {
		a := rot + 2*math.Pi*float64(i)/float64(n)
		pts[i] = Point{c.X + r*math.Cos(a), c.Y + r*math.Sin(a)}
	}
	return polygonFromPoints(pts)
}

// Polygon returns a closed shape from n+1 caller-supplied vertices (the
// outline primitive): the last vertex must equal the first, or it is
// appended to close the ring.
func Polygon(points []Point) Shape {
	return polygonFromPoints(points)
}

func polygonFromPoints(pts []Point) Shape {
	if len(pts) == 0 {
		return Shape{}
	}
	start := pts[0]
	segs := make([]Segment, 0, len(pts))
	for i := 1; i < len(pts); i++ {
		segs = append(segs, Segment{Kind: SegLine, End: pts[i]})
	}
	if !pts[len(pts)-1].Equal(start, VertexTolerance) {
		segs = append(segs, Segment{Kind: SegLine, End: start})
	}
	return Shape{Polarity: Dark, StartingPoint: start, Segments: segs}
}

// Line returns a stroke of width w from p1 to p2. squareCap selects a
// sharp-cornered rectangle ("vector line" / square aperture drag); the
// default is a rounded-cap rectangle (two half-disks plus a rectangle),
// matching the plot/draw semantics of a circular aperture in §4.E.
func Line(p1, p2 Point, w float64, squareCap bool) Shape {
	if squareCap {
		return squareCapLine(p1, p2, w)
	}
	return roundedCapLine(p1, p2, w)
}

func roundedCapLine(p1, p2 Point, w float64) Shape {
	dir := unit(p2.Sub(p1))
	if dir == (Point{}) {
		return Circle(p1, w)
	}
	normal := Point{-dir.Y, dir.X}
	r := w / 2
	a := p1.Add(normal.Scale(r))
	b := p2.Add(normal.Scale(r))
	c := p2.Sub(normal.Scale(r))
	d := p1.Sub(normal.Scale(r))
	centerP2 := p2
	centerP1 := p1
	return Shape{
		Polarity:      Dark,
		StartingPoint: a,
		Segments: []Segment{
			{Kind: SegLine, End: b},
			{Kind: SegClockwiseArc, End: c, Center: centerP2},
			{Kind: SegLine, End: d},
			{Kind: SegClockwiseArc, End: a, Center: centerP1},
		},
	}
}

func squareCapLine(p1, p2 Point, w float64) Shape {
	dir := unit(p2.Sub(p1))
	if dir == (Point{}) {
		return Rectangle(p1, w, w)
	}
	normal := Point{-dir.Y, dir.X}
	r := w / 2
	a := p1.Add(normal.Scale(r))
	b := p2.Add(normal.Scale(r))
	c := p2.Sub(normal.Scale(r))
	d := p1.Sub(normal.Scale(r))
	return polygonFromPoints([]Point{a, b, c, d})
}

// QuarterAnnulus returns one quarter of an annular ring between inner
// diameter id and outer diameter od, centred on c, spanning from startDeg
// to startDeg+90, used to build the four limbs of a thermal relief.
func QuarterAnnulus(c Point, od, id, startDeg float64) Shape {
	return AnnulusLimb(c, od, id, startDeg, 90)
}

// AnnulusLimb returns one limb of an annular ring between inner diameter id
// and outer diameter od, centred on c, spanning sweepDeg degrees starting at
// startDeg. Used directly (rather than through QuarterAnnulus) when a
// thermal relief's gap angle trims the limb's sweep below a fixed 90
// degrees.
func AnnulusLimb(c Point, od, id, startDeg, sweepDeg float64) Shape {
	outerR := od / 2
	innerR := id / 2
	a0 := startDeg * math.Pi / 180
	a1 := a0 + sweepDeg*math.Pi/180

	outerStart := Point{c.X + outerR*math.Cos(a0), c.Y + outerR*math.Sin(a0)}
	outerEnd := Point{c.X + outerR*math.Cos(a1), c.Y + outerR*math.Sin(a1)}
	innerEnd := Point{c.X + innerR*math.Cos(a1), c.Y + innerR*math.Sin(a1)}
	innerStart := Point{c.X + innerR*math.Cos(a0), c.Y + innerR*math.Sin(a0)}

	return Shape{
		Polarity:      Dark,
		StartingPoint: outerStart,
		Segments: []Segment{
			{Kind: SegCounterClockwiseArc, End: outerEnd, Center: c},
			{Kind: SegLine, End: innerEnd},
			{Kind: SegClockwiseArc, End: innerStart, Center: c},
			{Kind: SegLine, End: outerStart},
		},
	}
}
