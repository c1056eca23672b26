package drill

import "testing"

func header(body string) string {
	return "M48\n" + body + "%\n"
}

func TestParseHeaderAndToolDeclare(t *testing.T) {
	src := header("METRIC,TZ\nT1C0.3\nT2C0.8\n") + "M30\n"
	cmds, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var tools int
	for _, c := range cmds {
		if c.Kind == CmdToolDeclare {
			tools++
		}
	}
	if tools != 2 {
		t.Fatalf("expected 2 tool declarations, got %d", tools)
	}
}

func TestParseMissingUnitModeFails(t *testing.T) {
	src := "M48\nT1C0.3\n%\nM30\n"
	if _, err := Parse(src); err == nil {
		t.Fatal("expected error when unit mode is never declared")
	}
}

func TestPositionModeMappingCorrected(t *testing.T) {
	src := header("METRIC\n") + "G90\nG91\n"
	cmds, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var g90, g91 *Command
	for i := range cmds {
		if cmds[i].Kind == CmdPositionMode {
			if g90 == nil {
				g90 = &cmds[i]
			} else {
				g91 = &cmds[i]
			}
		}
	}
	if g90 == nil || g90.PositionMode != PositionAbsolute {
		t.Fatalf("expected G90 to map to PositionAbsolute, got %+v", g90)
	}
	if g91 == nil || g91.PositionMode != PositionIncremental {
		t.Fatalf("expected G91 to map to PositionIncremental, got %+v", g91)
	}
}

func TestParseDrillHit(t *testing.T) {
	src := header("METRIC\n") + "T1\nX010000Y020000\n"
	cmds, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var hit *Command
	for i := range cmds {
		if cmds[i].Kind == CmdHit {
			hit = &cmds[i]
		}
	}
	if hit == nil || hit.X != 10000 || hit.Y != 20000 {
		t.Fatalf("unexpected hit command: %+v", hit)
	}
}

func TestParseCurveRequiresDiameter(t *testing.T) {
	src := header("METRIC\n") + "G02X100Y100\n"
	if _, err := Parse(src); err == nil {
		t.Fatal("expected error for curve missing A<diameter>")
	}
}

func TestParseCurveWithDiameter(t *testing.T) {
	src := header("METRIC\n") + "G02X100Y100A50\n"
	cmds, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var curve *Command
	for i := range cmds {
		if cmds[i].Kind == CmdCurve {
			curve = &cmds[i]
		}
	}
	if curve == nil || curve.Direction != CurveClockwise || curve.CurveDiameter != 50 {
		t.Fatalf("unexpected curve command: %+v", curve)
	}
}

func TestParseToolUpDown(t *testing.T) {
	src := header("METRIC\n") + "M15\nX0Y0\nM16\n"
	cmds, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var sawToolDown bool
	for _, c := range cmds {
		if c.Kind == CmdToolDown {
			sawToolDown = true
		}
	}
	if !sawToolDown {
		t.Fatalf("expected a tool down command among %+v", cmds)
	}
}

func TestParseUnknownVerbFails(t *testing.T) {
	src := header("METRIC\n") + "Z99\n"
	if _, err := Parse(src); err == nil {
		t.Fatal("expected error for unknown verb")
	}
}
