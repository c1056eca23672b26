// Package debugsvg renders an imaged shape.Set to SVG for best-effort
// inspection when a later pipeline stage fails (§7 "on failure, a
// best-effort debug render of partial geometry is emitted before the error
// is returned"). Grounded on original_source/src/geometry.rs's
// debug_render, which did the same thing through the Rust svg_composer
// crate; zappem.net/pub/graphics/svgof is the float-coordinate SVG writer
// this pack actually exercises directly (other_examples' drl2svg.go:
// New/Decimals/StartviewUnit/Circle/End), used here in place of
// ajstarks/svgo which only ever appears as an indirect transitive
// dependency across the pack's go.mod files — no directly-used API to
// ground against.
package debugsvg

import (
	"io"
	"os"

	"zappem.net/pub/graphics/svgof"

	"github.com/chrisns/pcb-forge/internal/shape"
)

// Margin is the border added around the imaged bounds so strokes at the
// extreme edge aren't clipped.
const Margin = 1.0

// DistancePerStep controls arc-to-polyline sampling density for the debug
// render; coarser than production imaging since this is a failure-path
// aid, not an output artifact.
const DistancePerStep = 0.2

// Render writes an SVG document depicting every shape in set to w: dark
// shapes stroked black, clear (subtractive) shapes stroked red so a reader
// can tell polarity apart at a glance.
func Render(w io.Writer, set *shape.Set) error {
	bounds := set.Bounds()
	width := bounds.Width() + 2*Margin
	height := bounds.Height() + 2*Margin
	if width <= 0 {
		width = 2 * Margin
	}
	if height <= 0 {
		height = 2 * Margin
	}

	canvas := svgof.New(w)
	canvas.Decimals = 4
	canvas.StartviewUnit(width, height, "mm",
		bounds.MinX-Margin, bounds.MinY-Margin, width, height)
	defer canvas.End()

	set.All(func(s shape.Shape) {
		renderShape(canvas, s)
	})
	return nil
}

func renderShape(canvas *svgof.SVG, s shape.Shape) {
	pts := s.Polyline(DistancePerStep)
	if len(pts) < 2 {
		return
	}
	style := "fill:none;stroke:black;stroke-width:0.05"
	if s.Polarity == shape.Clear {
		style = "fill:none;stroke:red;stroke-width:0.05"
	}
	for i := 1; i < len(pts); i++ {
		canvas.Line(pts[i-1].X, pts[i-1].Y, pts[i].X, pts[i].Y, style)
	}
}

// RenderToFile is the convenience entry point orchestration calls for each
// Gerber-backed stage of a debug run, whether or not imaging failed: it
// never itself returns an error that would mask a failure, since a debug
// render is best-effort.
func RenderToFile(path string, set *shape.Set) {
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	_ = Render(f, set)
}
