package macro

import (
	"fmt"
	"math"

	"github.com/chrisns/pcb-forge/internal/shape"
)

// PrimitiveKind identifies an aperture-macro primitive code.
type PrimitiveKind int

const (
	PrimComment PrimitiveKind = iota
	PrimCircle
	PrimVectorLine
	PrimCenterLine
	PrimOutline
	PrimPolygon
	PrimThermal
	PrimVariableDef
)

// Primitive is one statement in a macro body. Args holds the primitive's
// numeric modifiers in source order (exposure, dimensions, position,
// rotation, as documented per code in §4.C); Outline holds the (n+1)
// vertex pairs for the outline primitive; VarIndex is set for variable
// definitions.
type Primitive struct {
	Kind     PrimitiveKind
	Args     []Expr
	Outline  []OutlinePoint
	VarIndex int
}

// OutlinePoint is one (x, y) vertex of an PrimOutline primitive.
type OutlinePoint struct {
	X, Y Expr
}

// Macro is an ordered list of primitives bound to a name.
type Macro struct {
	Name       string
	Primitives []Primitive
}

// Evaluate binds args to variables 1..N and evaluates the macro body in
// order, appending emitted shapes to the result. Variable assignments made
// by earlier primitives are visible to later ones, per §4.C.
func Evaluate(m Macro, args []float64) ([]shape.Shape, error) {
	vars := make(map[int]float64, len(args)+4)
	for i, a := range args {
		vars[i+1] = a
	}

	var shapes []shape.Shape
	for i, prim := range m.Primitives {
		switch prim.Kind {
		case PrimComment:
			continue
		case PrimVariableDef:
			v, err := prim.Args[0].Eval(vars)
			if err != nil {
				return nil, fmt.Errorf("macro %s: primitive %d: %w", m.Name, i, err)
			}
			vars[prim.VarIndex] = v
		case PrimCircle:
			s, err := evalCircle(prim, vars)
			if err != nil {
				return nil, fmt.Errorf("macro %s: primitive %d: %w", m.Name, i, err)
			}
			shapes = append(shapes, s)
		case PrimVectorLine:
			s, err := evalVectorLine(prim, vars)
			if err != nil {
				return nil, fmt.Errorf("macro %s: primitive %d: %w", m.Name, i, err)
			}
			shapes = append(shapes, s)
		case PrimCenterLine:
			s, err := evalCenterLine(prim, vars)
			if err != nil {
				return nil, fmt.Errorf("macro %s: primitive %d: %w", m.Name, i, err)
			}
			shapes = append(shapes, s)
		case PrimOutline:
			s, err := evalOutline(prim, vars)
			if err != nil {
				return nil, fmt.Errorf("macro %s: primitive %d: %w", m.Name, i, err)
			}
			shapes = append(shapes, s)
		case PrimPolygon:
			s, err := evalPolygon(prim, vars)
			if err != nil {
				return nil, fmt.Errorf("macro %s: primitive %d: %w", m.Name, i, err)
			}
			shapes = append(shapes, s)
		case PrimThermal:
			ts, err := evalThermal(prim, vars)
			if err != nil {
				return nil, fmt.Errorf("macro %s: primitive %d: %w", m.Name, i, err)
			}
			shapes = append(shapes, ts...)
		default:
			return nil, fmt.Errorf("macro %s: primitive %d: unknown primitive kind", m.Name, i)
		}
	}
	return shapes, nil
}

func evalAll(vars map[int]float64, exprs ...Expr) ([]float64, error) {
	out := make([]float64, len(exprs))
	for i, e := range exprs {
		v, err := e.Eval(vars)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func applyExposure(s shape.Shape, exposure float64) shape.Shape {
	if exposure == 0 {
		s.Polarity = shape.Clear
	} else {
		s.Polarity = shape.Dark
	}
	return s
}

// evalCircle implements primitive code 1: exposure, diameter, x, y, [rotation].
func evalCircle(p Primitive, vars map[int]float64) (shape.Shape, error) {
	v, err := evalAll(vars, p.Args...)
	if err != nil {
		return shape.Shape{}, err
	}
	if len(v) < 4 {
		return shape.Shape{}, fmt.Errorf("circle primitive requires at least 4 args, got %d", len(v))
	}
	exposure, d, x, y := v[0], v[1], v[2], v[3]
	rot := 0.0
	if len(v) > 4 {
		rot = v[4]
	}
	center := rotatePoint(shape.Point{X: x, Y: y}, rot)
	return applyExposure(shape.Circle(center, d), exposure), nil
}

// evalVectorLine implements primitive code 20: exposure, width, x1, y1, x2,
// y2, rotation.
func evalVectorLine(p Primitive, vars map[int]float64) (shape.Shape, error) {
	v, err := evalAll(vars, p.Args...)
	if err != nil {
		return shape.Shape{}, err
	}
	if len(v) < 7 {
		return shape.Shape{}, fmt.Errorf("vector line primitive requires 7 args, got %d", len(v))
	}
	exposure, w, x1, y1, x2, y2, rot := v[0], v[1], v[2], v[3], v[4], v[5], v[6]
	p1 := rotatePoint(shape.Point{X: x1, Y: y1}, rot)
	p2 := rotatePoint(shape.Point{X: x2, Y: y2}, rot)
	return applyExposure(shape.Line(p1, p2, w, true), exposure), nil
}

// evalCenterLine implements primitive code 21: exposure, width, height, cx,
// cy, rotation.
func evalCenterLine(p Primitive, vars map[int]float64) (shape.Shape, error) {
	v, err := evalAll(vars, p.Args...)
	if err != nil {
		return shape.Shape{}, err
	}
	if len(v) < 6 {
		return shape.Shape{}, fmt.Errorf("center line primitive requires 6 args, got %d", len(v))
	}
	exposure, w, h, cx, cy, rot := v[0], v[1], v[2], v[3], v[4], v[5]
	rectShape := shape.Rectangle(shape.Point{X: cx, Y: cy}, w, h)
	rectShape = rotateShape(rectShape, shape.Point{X: cx, Y: cy}, rot)
	return applyExposure(rectShape, exposure), nil
}

// evalOutline implements primitive code 4: exposure, n, x0,y0 ... xn,yn,
// rotation.
func evalOutline(p Primitive, vars map[int]float64) (shape.Shape, error) {
	v, err := evalAll(vars, p.Args...)
	if err != nil {
		return shape.Shape{}, err
	}
	if len(v) < 2 {
		return shape.Shape{}, fmt.Errorf("outline primitive requires exposure and vertex count")
	}
	exposure, rot := v[0], v[len(v)-1]
	pts := make([]shape.Point, 0, len(p.Outline))
	for _, vert := range p.Outline {
		x, err := vert.X.Eval(vars)
		if err != nil {
			return shape.Shape{}, err
		}
		y, err := vert.Y.Eval(vars)
		if err != nil {
			return shape.Shape{}, err
		}
		pts = append(pts, rotatePoint(shape.Point{X: x, Y: y}, rot))
	}
	return applyExposure(shape.Polygon(pts), exposure), nil
}

// evalPolygon implements primitive code 5: exposure, n, cx, cy, d, rotation.
func evalPolygon(p Primitive, vars map[int]float64) (shape.Shape, error) {
	v, err := evalAll(vars, p.Args...)
	if err != nil {
		return shape.Shape{}, err
	}
	if len(v) < 6 {
		return shape.Shape{}, fmt.Errorf("polygon primitive requires 6 args, got %d", len(v))
	}
	exposure, n, cx, cy, d, rot := v[0], int(v[1]), v[2], v[3], v[4], v[5]
	return applyExposure(shape.RegularPolygon(shape.Point{X: cx, Y: cy}, d, n, rot), exposure), nil
}

// evalThermal implements primitive code 7: cx, cy, outerDiameter,
// innerDiameter, gap, rotation. Always Dark per spec.
func evalThermal(p Primitive, vars map[int]float64) ([]shape.Shape, error) {
	v, err := evalAll(vars, p.Args...)
	if err != nil {
		return nil, err
	}
	if len(v) < 6 {
		return nil, fmt.Errorf("thermal primitive requires 6 args, got %d", len(v))
	}
	cx, cy, od, id, gap, rot := v[0], v[1], v[2], v[3], v[4], v[5]

	if gap >= od/math.Sqrt2 {
		return nil, fmt.Errorf("thermal primitive: gap %v must be less than od/sqrt(2) (%v)", gap, od/math.Sqrt2)
	}

	center := shape.Point{X: cx, Y: cy}
	// Each limb spans one quadrant minus the gap's angular half-width on
	// each side, measured at the mean radius.
	meanR := (od + id) / 4
	halfGapAngle := math.Asin(math.Min(1, (gap/2)/meanR)) * 180 / math.Pi
	sweep := 90 - 2*halfGapAngle
	if sweep <= 0 {
		return nil, fmt.Errorf("thermal primitive: gap %v leaves no room for limbs at radius %v", gap, meanR)
	}

	shapes := make([]shape.Shape, 0, 4)
	for q := 0; q < 4; q++ {
		start := float64(q)*90 + halfGapAngle + rot
		shapes = append(shapes, shape.AnnulusLimb(center, od, id, start, sweep))
	}
	return shapes, nil
}

func rotatePoint(p shape.Point, deg float64) shape.Point {
	if deg == 0 {
		return p
	}
	rad := deg * math.Pi / 180
	return shape.Point{
		X: p.X*math.Cos(rad) - p.Y*math.Sin(rad),
		Y: p.X*math.Sin(rad) + p.Y*math.Cos(rad),
	}
}

func rotateShape(s shape.Shape, pivot shape.Point, deg float64) shape.Shape {
	if deg == 0 {
		return s
	}
	rotateAround := func(p shape.Point) shape.Point {
		rel := p.Sub(pivot)
		rotated := rotatePoint(rel, deg)
		return pivot.Add(rotated)
	}
	out := shape.Shape{Polarity: s.Polarity, StartingPoint: rotateAround(s.StartingPoint)}
	for _, seg := range s.Segments {
		newSeg := seg
		newSeg.End = rotateAround(seg.End)
		if seg.Kind != shape.SegLine {
			newSeg.Center = rotateAround(seg.Center)
		}
		out.Segments = append(out.Segments, newSeg)
	}
	return out
}
