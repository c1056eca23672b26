package motion

import (
	"strings"
	"testing"

	"github.com/chrisns/pcb-forge/internal/planner"
)

func TestHeaderEmitsHomeSequence(t *testing.T) {
	e := NewEmitter(0)
	if err := e.Header(); err != nil {
		t.Fatalf("header: %v", err)
	}
	out := string(e.Bytes())
	if !strings.Contains(out, "G90") || !strings.Contains(out, "G0") {
		t.Fatalf("expected header to contain G90 and G0, got %q", out)
	}
}

func TestSetPowerRequiresLaser(t *testing.T) {
	e := NewEmitter(0)
	if err := e.setPower(0.5); err == nil {
		t.Fatal("expected error setting power with no laser equipped")
	}
}

func TestSetSpindleSpeedRequiresSpindle(t *testing.T) {
	e := NewEmitter(0)
	if err := e.setSpindleSpeed(0.5); err == nil {
		t.Fatal("expected error setting spindle speed with no spindle equipped")
	}
}

func TestEquipToolThenSetPowerSucceeds(t *testing.T) {
	e := NewEmitter(0)
	if err := e.equipTool(planner.Tool{Kind: planner.ToolLaser, MaxPower: 5}); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if err := e.setPower(0.5); err != nil {
		t.Fatalf("set power: %v", err)
	}
	out := string(e.Bytes())
	if !strings.Contains(out, "M3") || !strings.Contains(out, "M5") {
		t.Fatalf("expected M3 arm and M5 disarm, got %q", out)
	}
}

func TestMoveToSamePositionIsNoOp(t *testing.T) {
	e := NewEmitter(0)
	if err := e.equipTool(planner.Tool{Kind: planner.ToolLaser}); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if err := e.moveTo(10, 10); err != nil {
		t.Fatalf("move: %v", err)
	}
	before := len(e.Bytes())
	if err := e.moveTo(10, 10); err != nil {
		t.Fatalf("move again: %v", err)
	}
	if len(e.Bytes()) != before {
		t.Fatal("expected moving to the same position to emit nothing")
	}
}

func TestBackSideMirroringFlipsX(t *testing.T) {
	e := NewEmitter(20)
	e.side = planner.SideBack
	if err := e.equipTool(planner.Tool{Kind: planner.ToolLaser}); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if err := e.moveTo(5, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	out := string(e.Bytes())
	if !strings.Contains(out, "15") {
		t.Fatalf("expected mirrored X of -5+20=15 to appear in output, got %q", out)
	}
}

func TestCutWithNoToolFails(t *testing.T) {
	e := NewEmitter(0)
	if err := e.cut(0, 1, 1); err == nil {
		t.Fatal("expected error cutting with no tool equipped")
	}
}

func TestCutAfterEquipToolNoneFails(t *testing.T) {
	e := NewEmitter(0)
	if err := e.equipTool(planner.Tool{Kind: planner.ToolNone}); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if err := e.cut(0, 1, 1); err == nil {
		t.Fatal("expected error cutting after EquipTool(None)")
	}
}

func TestSetPowerTruncatesToIntegerPWM(t *testing.T) {
	e := NewEmitter(0)
	if err := e.equipTool(planner.Tool{Kind: planner.ToolLaser, MaxPower: 5}); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if err := e.setPower(0.5); err != nil {
		t.Fatalf("set power: %v", err)
	}
	out := string(e.Bytes())
	if !strings.Contains(out, "S127") || strings.Contains(out, "S127.5") {
		t.Fatalf("expected S127 (truncated PWM byte), got %q", out)
	}
}

func TestSpindleCutPlungesOnFirstCut(t *testing.T) {
	e := NewEmitter(0)
	if err := e.equipTool(planner.Tool{Kind: planner.ToolSpindle, TravelHeight: 5, CutDepth: -1, PlungeSpeed: 100}); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if err := e.cut(0, 1, 1); err != nil {
		t.Fatalf("cut: %v", err)
	}
	out := string(e.Bytes())
	if !strings.Contains(out, "-1") {
		t.Fatalf("expected a plunge to cut depth -1 to appear in output, got %q", out)
	}
}
