package debugsvg

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chrisns/pcb-forge/internal/shape"
)

func TestRenderProducesSVGDocument(t *testing.T) {
	var set shape.Set
	set.Append(shape.Line(shape.Point{X: 0, Y: 0}, shape.Point{X: 10, Y: 0}, 0.2, false))

	var buf bytes.Buffer
	if err := Render(&buf, &set); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<svg") || !strings.Contains(out, "</svg>") {
		t.Fatalf("expected an SVG document, got %q", out)
	}
}

func TestRenderEmptySetStillProducesValidDocument(t *testing.T) {
	var set shape.Set
	var buf bytes.Buffer
	if err := Render(&buf, &set); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Fatal("expected an SVG document even for an empty shape set")
	}
}

func TestRenderDistinguishesClearPolarity(t *testing.T) {
	var set shape.Set
	dark := shape.Line(shape.Point{X: 0, Y: 0}, shape.Point{X: 10, Y: 0}, 0.2, false)
	clear := shape.Line(shape.Point{X: 0, Y: 5}, shape.Point{X: 10, Y: 5}, 0.2, false)
	clear.Polarity = shape.Clear
	set.Append(dark, clear)

	var buf bytes.Buffer
	if err := Render(&buf, &set); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "stroke:black") || !strings.Contains(out, "stroke:red") {
		t.Fatalf("expected both dark (black) and clear (red) strokes, got %q", out)
	}
}
