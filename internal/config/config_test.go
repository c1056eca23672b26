package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "forge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp forge file: %v", err)
	}
	return path
}

func TestLoadForgeRecipeDefaultsAlignBackside(t *testing.T) {
	path := writeTemp(t, `
project_name: test-board
board_version: rev-a
machines: {}
gcode_files: {}
`)
	recipe, err := LoadForgeRecipe(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !recipe.AlignBackside {
		t.Fatal("expected align_backside to default to true")
	}
	if recipe.ProjectName != "test-board" {
		t.Fatalf("unexpected project name %q", recipe.ProjectName)
	}
}

func TestLoadForgeRecipeHonoursExplicitAlignBackside(t *testing.T) {
	path := writeTemp(t, `
project_name: test-board
board_version: rev-a
align_backside: false
machines: {}
gcode_files: {}
`)
	recipe, err := LoadForgeRecipe(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if recipe.AlignBackside {
		t.Fatal("expected explicit align_backside: false to be honoured")
	}
}

func TestStageUnmarshalDiscriminatesEngraveMask(t *testing.T) {
	path := writeTemp(t, `
project_name: test-board
board_version: rev-a
machines: {}
gcode_files:
  top_mask:
    - machine_config: snapmaker/laser_1w
      gerber_file: top_mask.gbr
      invert: true
`)
	recipe, err := LoadForgeRecipe(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	stages := recipe.GCodeFiles["top_mask"]
	if len(stages) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(stages))
	}
	if stages[0].Kind != "engrave_mask" {
		t.Fatalf("expected engrave_mask, got %q", stages[0].Kind)
	}
	if !stages[0].Invert {
		t.Fatal("expected invert: true to be decoded")
	}
}

func TestStageUnmarshalDiscriminatesCutBoardGerber(t *testing.T) {
	path := writeTemp(t, `
project_name: test-board
board_version: rev-a
machines: {}
gcode_files:
  outline:
    - machine_config: snapmaker/1_8mm_end_mill
      gerber_file: outline.gbr
      select_lines: outer
`)
	recipe, err := LoadForgeRecipe(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	stage := recipe.GCodeFiles["outline"][0]
	if stage.Kind != "cut_board" {
		t.Fatalf("expected cut_board, got %q", stage.Kind)
	}
	if stage.SelectLines != SelectOuter {
		t.Fatalf("expected select_lines outer, got %q", stage.SelectLines)
	}
	if stage.IsDrill() {
		t.Fatal("expected gerber variant, not drill")
	}
}

func TestStageUnmarshalDiscriminatesCutBoardDrill(t *testing.T) {
	path := writeTemp(t, `
project_name: test-board
board_version: rev-a
machines: {}
gcode_files:
  holes:
    - machine_config: snapmaker/1mm_drill
      drill_file: board.drl
`)
	recipe, err := LoadForgeRecipe(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	stage := recipe.GCodeFiles["holes"][0]
	if stage.Kind != "cut_board" || !stage.IsDrill() {
		t.Fatalf("expected a drill cut_board stage, got %+v", stage)
	}
}

func TestToolUnmarshalDiscriminatesLaserVsSpindle(t *testing.T) {
	path := writeTemp(t, `
project_name: test-board
board_version: rev-a
machines:
  snapmaker:
    jog_speed: 1500mm/min
    tools:
      laser_1w:
        point_diameter: 0.1mm
        max_power: 1000mW
      1_8mm_end_mill:
        max_speed: 10000rpm
        bits:
          default:
            diameter: 0.8mm
    engraving_configs: {}
    cutting_configs: {}
    workspace_area:
      width: 200mm
      height: 200mm
gcode_files: {}
`)
	recipe, err := LoadForgeRecipe(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m := recipe.Machines["snapmaker"]
	if m.Tools["laser_1w"].Kind != "laser" {
		t.Fatalf("expected laser_1w to be classified as laser, got %q", m.Tools["laser_1w"].Kind)
	}
	if m.Tools["1_8mm_end_mill"].Kind != "spindle" {
		t.Fatalf("expected end mill to be classified as spindle, got %q", m.Tools["1_8mm_end_mill"].Kind)
	}
}

func TestResolveMachineConfigPrefersLocalOverGlobal(t *testing.T) {
	local := map[string]Machine{
		"snapmaker": {
			EngravingConfigs: map[string]JobConfig{
				"laser_1w": {Tool: "laser_1w"},
			},
		},
	}
	global := &Catalogue{Machines: map[string]Machine{
		"snapmaker": {CuttingConfigs: map[string]JobConfig{"laser_1w": {Tool: "wrong"}}},
	}}
	_, jc, err := ResolveMachineConfig("snapmaker/laser_1w", local, global)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if jc.Tool != "laser_1w" {
		t.Fatalf("expected local job config to win, got %+v", jc)
	}
}

func TestResolveMachineConfigFallsBackToGlobal(t *testing.T) {
	global := &Catalogue{Machines: map[string]Machine{
		"snapmaker": {CuttingConfigs: map[string]JobConfig{"end_mill": {Tool: "1_8mm_end_mill"}}},
	}}
	_, jc, err := ResolveMachineConfig("snapmaker/end_mill", map[string]Machine{}, global)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if jc.Tool != "1_8mm_end_mill" {
		t.Fatalf("expected global job config, got %+v", jc)
	}
}

func TestResolveMachineConfigRejectsMalformedPath(t *testing.T) {
	if _, _, err := ResolveMachineConfig("snapmaker-only", map[string]Machine{}, nil); err == nil {
		t.Fatal("expected error for a path without a machine/profile separator")
	}
}

func TestResolveMachineConfigReportsMissing(t *testing.T) {
	if _, _, err := ResolveMachineConfig("snapmaker/missing", map[string]Machine{}, &Catalogue{}); err == nil {
		t.Fatal("expected error for an unresolvable machine config path")
	}
}

func TestParseDistancePerStepDefaultsWhenEmpty(t *testing.T) {
	v, err := ParseDistancePerStep("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v != 0.1 {
		t.Fatalf("expected default distance_per_step of 0.1mm, got %v", v)
	}
}

func TestParseDistancePerStepHonoursExplicitUnit(t *testing.T) {
	v, err := ParseDistancePerStep("1cm")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v != 10 {
		t.Fatalf("expected 1cm to canonicalise to 10mm, got %v", v)
	}
}

func TestLoadGlobalCatalogueMissingIsNotFatal(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cat, err := LoadGlobalCatalogue()
	if err != nil {
		t.Fatalf("expected missing global catalogue to be non-fatal, got %v", err)
	}
	if cat == nil || cat.Machines == nil {
		t.Fatal("expected an empty-but-initialized catalogue")
	}
}

func TestResolveMachineConfigSourceReportsLocalOrGlobal(t *testing.T) {
	local := map[string]Machine{
		"snapmaker": {CuttingConfigs: map[string]JobConfig{"fast": {Tool: "laser"}}},
	}
	global := &Catalogue{Machines: map[string]Machine{
		"shapeoko": {CuttingConfigs: map[string]JobConfig{"fast": {Tool: "spindle/1-8in"}}},
	}}

	if _, _, fromLocal, err := ResolveMachineConfigSource("snapmaker/fast", local, global); err != nil || !fromLocal {
		t.Fatalf("expected a local match, got fromLocal=%v err=%v", fromLocal, err)
	}
	if _, _, fromLocal, err := ResolveMachineConfigSource("shapeoko/fast", local, global); err != nil || fromLocal {
		t.Fatalf("expected a global match, got fromLocal=%v err=%v", fromLocal, err)
	}
}

func TestResolveToolLaserNeedsNoBitName(t *testing.T) {
	m := Machine{Tools: map[string]Tool{"laser": {Kind: "laser", MaxPower: "5W"}}}
	tool, _, err := ResolveTool(m, "laser")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tool.MaxPower != "5W" {
		t.Fatalf("unexpected tool: %+v", tool)
	}
}

func TestResolveToolSpindleRequiresBitName(t *testing.T) {
	m := Machine{Tools: map[string]Tool{
		"spindle": {Kind: "spindle", Bits: map[string]EndMillBit{"1-8in": {Diameter: "3.175mm"}}},
	}}
	if _, _, err := ResolveTool(m, "spindle"); err == nil {
		t.Fatal("expected an error when no bit name is given for a spindle")
	}
	tool, bit, err := ResolveTool(m, "spindle/1-8in")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tool.Kind != "spindle" || bit.Diameter != "3.175mm" {
		t.Fatalf("unexpected resolution: tool=%+v bit=%+v", tool, bit)
	}
}

func TestResolveToolRejectsUnknownBit(t *testing.T) {
	m := Machine{Tools: map[string]Tool{
		"spindle": {Kind: "spindle", Bits: map[string]EndMillBit{"1-8in": {Diameter: "3.175mm"}}},
	}}
	if _, _, err := ResolveTool(m, "spindle/missing"); err == nil {
		t.Fatal("expected an error for an unknown bit name")
	}
}
