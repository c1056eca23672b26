package gerber

import "testing"

func TestParseFormatSpecAndUnitMode(t *testing.T) {
	cmds, err := Parse("%FSLAX36Y36*%\n%MOMM*%\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Kind != CmdFormatSpec || cmds[0].IntegerDigits != 3 || cmds[0].DecimalDigits != 6 {
		t.Fatalf("unexpected format spec command: %+v", cmds[0])
	}
	if cmds[1].Kind != CmdUnitMode || !cmds[1].Metric {
		t.Fatalf("unexpected unit mode command: %+v", cmds[1])
	}
}

func TestParseFormatSpecRejectsMismatchedDigits(t *testing.T) {
	if _, err := Parse("%FSLAX36Y25*%"); err == nil {
		t.Fatal("expected error for mismatched X/Y digit counts")
	}
}

func TestParseApertureDefineCircle(t *testing.T) {
	cmds, err := Parse("%ADD10C,1.5*%")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Kind != CmdApertureDefine {
		t.Fatalf("expected 1 aperture define command, got %+v", cmds)
	}
	ad := cmds[0].Aperture
	if ad.Number != 10 || ad.Template != TemplateCircle || ad.Modifiers[0] != 1.5 || ad.HasHole {
		t.Fatalf("unexpected aperture: %+v", ad)
	}
}

func TestParseApertureDefineWithHole(t *testing.T) {
	cmds, err := Parse("%ADD11C,2.0X0.5*%")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ad := cmds[0].Aperture
	if !ad.HasHole || ad.HoleDiameter != 0.5 {
		t.Fatalf("expected hole diameter 0.5, got %+v", ad)
	}
}

func TestParseApertureMacroMultiStatementGroup(t *testing.T) {
	src := "%AMTHERMAL*\n7,0,0,2,1,0.1,0*%"
	cmds, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Kind != CmdApertureMacro {
		t.Fatalf("expected 1 macro definition command, got %+v", cmds)
	}
	if cmds[0].MacroName != "THERMAL" {
		t.Fatalf("expected macro name THERMAL, got %q", cmds[0].MacroName)
	}
	if cmds[0].MacroBody == "" {
		t.Fatal("expected non-empty macro body")
	}
}

func TestParseCoordOperation(t *testing.T) {
	cmds, err := Parse("X1000Y2000D02*\nX1500Y2500D01*\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Operation != OpMove || cmds[0].X.Digits != "1000" {
		t.Fatalf("unexpected move command: %+v", cmds[0])
	}
	if cmds[1].Operation != OpPlot || cmds[1].Y.Digits != "2500" {
		t.Fatalf("unexpected plot command: %+v", cmds[1])
	}
}

func TestParseSetApertureAndDrawMode(t *testing.T) {
	cmds, err := Parse("G01*\nD10*\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmds[0].Kind != CmdSetDrawMode || cmds[0].DrawMode != DrawLinear {
		t.Fatalf("unexpected draw mode command: %+v", cmds[0])
	}
	if cmds[1].Kind != CmdSetAperture || cmds[1].ApertureNumber != 10 {
		t.Fatalf("unexpected set aperture command: %+v", cmds[1])
	}
}

func TestParseRegionAndStepRepeat(t *testing.T) {
	cmds, err := Parse("G36*\nG37*\n%SRX2Y3I5.0J6.0*%\n%SR*%")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmds[0].Kind != CmdRegionStart || cmds[1].Kind != CmdRegionEnd {
		t.Fatalf("unexpected region commands: %+v", cmds[:2])
	}
	sr := cmds[2]
	if sr.Kind != CmdStepRepeat || sr.SRX != 2 || sr.SRY != 3 || sr.SRDeltaX != 5.0 || sr.SRDeltaY != 6.0 {
		t.Fatalf("unexpected step-repeat command: %+v", sr)
	}
	if cmds[3].Kind != CmdStepRepeatEnd {
		t.Fatalf("unexpected step-repeat end command: %+v", cmds[3])
	}
}

func TestParseAttributesAndDeletion(t *testing.T) {
	cmds, err := Parse("%TFPartNumber,ABC123*%\n%TD*%")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmds[0].Kind != CmdAttribute || cmds[0].AttributeTable != "TF" || cmds[0].AttributeName != "PartNumber" {
		t.Fatalf("unexpected attribute command: %+v", cmds[0])
	}
	if cmds[1].AttributeTable != "TD" || cmds[1].AttributeName != "" {
		t.Fatalf("unexpected TD command: %+v", cmds[1])
	}
}

func TestParseUnknownVerbFails(t *testing.T) {
	if _, err := Parse("Z99*"); err == nil {
		t.Fatal("expected error for unknown verb")
	}
}

func TestParseUnterminatedStatementFails(t *testing.T) {
	if _, err := Parse("G01"); err == nil {
		t.Fatal("expected error for unterminated statement")
	}
}

func TestParseRejectsNonCircularModifierCount(t *testing.T) {
	if _, err := Parse("%ADD10R,2.0*%"); err == nil {
		t.Fatal("expected error: rectangle aperture requires width and height")
	}
}
