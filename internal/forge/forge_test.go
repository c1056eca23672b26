package forge

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	polyclip "github.com/ctessum/polyclip-go"

	"github.com/chrisns/pcb-forge/internal/config"
	"github.com/chrisns/pcb-forge/internal/geometry"
)

// writeProject lays out a minimal forge recipe plus its Gerber/drill inputs
// in a fresh temp directory and returns the forge file's path.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir()) // force an empty global catalogue (§6 "Environment")
	dir := t.TempDir()
	var forgePath string
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if name == "forge.yaml" {
			forgePath = p
		}
	}
	return forgePath
}

const laserMachineYAML = `
machines:
  snapmaker:
    jog_speed: 1500mm/min
    tools:
      laser_1w:
        point_diameter: 0.1mm
        max_power: 1000mW
    engraving_configs:
      fast:
        tool: laser_1w
        distance_per_step: 0.2mm
        tool_power:
          laser_power: 500mW
          work_speed: 500mm/s
          passes: 1
    cutting_configs: {}
    workspace_area:
      width: 200mm
      height: 200mm
`

func TestRunSingleEngraveMaskStage(t *testing.T) {
	gerber := "%FSLAX36Y36*%\n%MOMM*%\n%ADD10C,1.5*%\nD10*\nX1000000Y2000000D03*\n"
	forgeYAML := `
project_name: single-pad
board_version: rev-a
align_backside: false
` + laserMachineYAML + `
gcode_files:
  top_mask.gcode:
    - machine_config: snapmaker/fast
      gerber_file: top_mask.gbr
      invert: false
`
	forgePath := writeProject(t, map[string]string{
		"forge.yaml":   forgeYAML,
		"top_mask.gbr": gerber,
	})
	outDir := filepath.Join(filepath.Dir(forgePath), "out")

	var stdout bytes.Buffer
	stats, err := Run(Options{ForgeFilePath: forgePath, TargetDirectory: outDir}, &stdout)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.FilesWritten != 1 || stats.TotalStages != 1 || stats.StagesCompleted != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.CommandsEmitted == 0 {
		t.Fatal("expected a non-empty command stream")
	}

	out := filepath.Join(outDir, "top_mask.gcode")
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty gcode output")
	}
}

func TestRunAbortsWholeOutputOnStageError(t *testing.T) {
	forgeYAML := `
project_name: broken
board_version: rev-a
align_backside: false
` + laserMachineYAML + `
gcode_files:
  bad.gcode:
    - machine_config: snapmaker/fast
      gerber_file: missing.gbr
      invert: false
`
	forgePath := writeProject(t, map[string]string{"forge.yaml": forgeYAML})
	outDir := filepath.Join(filepath.Dir(forgePath), "out")

	var stdout bytes.Buffer
	if _, err := Run(Options{ForgeFilePath: forgePath, TargetDirectory: outDir}, &stdout); err == nil {
		t.Fatal("expected an error for a missing gerber file")
	}
	if _, err := os.Stat(filepath.Join(outDir, "bad.gcode")); err == nil {
		t.Fatal("expected no output file to be written after a stage failure")
	}
}

func TestRunDrillStageWithHitsWritesOneFile(t *testing.T) {
	spindleYAML := `
machines:
  shapeoko:
    jog_speed: 3000mm/min
    tools:
      1_8mm_end_mill:
        max_speed: 10000rpm
        bits:
          default:
            diameter: 0.8mm
    engraving_configs: {}
    cutting_configs:
      drill:
        tool: 1_8mm_end_mill/default
        distance_per_step: 0.2mm
        tool_power:
          spindle_speed: 100%
          travel_height: 3mm
          cut_depth: 1.6mm
          plunge_speed: 100mm/min
          work_speed: 800mm/min
`
	drillSrc := "M48\nMETRIC\nT01C0.8\n%\nT01\nX10Y20\nX15Y20\nM30\n"
	forgeYAML := `
project_name: holes
board_version: rev-a
align_backside: false
` + spindleYAML + `
gcode_files:
  drill.gcode:
    - machine_config: shapeoko/drill
      drill_file: board.drl
`
	forgePath := writeProject(t, map[string]string{
		"forge.yaml": forgeYAML,
		"board.drl":  drillSrc,
	})
	outDir := filepath.Join(filepath.Dir(forgePath), "out")

	var stdout bytes.Buffer
	stats, err := Run(Options{ForgeFilePath: forgePath, TargetDirectory: outDir}, &stdout)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.FilesWritten != 1 {
		t.Fatalf("expected 1 file written, got %d", stats.FilesWritten)
	}
}

func TestRunBacksideStageWithAlignBacksideWritesOneFile(t *testing.T) {
	gerberFront := "%FSLAX36Y36*%\n%MOMM*%\n%ADD10C,1.5*%\nD10*\nX1000000Y2000000D03*\n"
	gerberBack := "%FSLAX36Y36*%\n%MOMM*%\n%ADD10C,1.5*%\nD10*\nX5000000Y2000000D03*\n"
	forgeYAML := `
project_name: two-sided
board_version: rev-a
align_backside: true
` + laserMachineYAML + `
gcode_files:
  both.gcode:
    - machine_config: snapmaker/fast
      gerber_file: front.gbr
      invert: false
    - machine_config: snapmaker/fast
      gerber_file: back.gbr
      invert: false
      backside: true
`
	forgePath := writeProject(t, map[string]string{
		"forge.yaml": forgeYAML,
		"front.gbr":  gerberFront,
		"back.gbr":   gerberBack,
	})
	outDir := filepath.Join(filepath.Dir(forgePath), "out")

	var stdout bytes.Buffer
	stats, err := Run(Options{ForgeFilePath: forgePath, TargetDirectory: outDir}, &stdout)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.FilesWritten != 1 {
		t.Fatalf("expected 1 file written, got %d", stats.FilesWritten)
	}
}

func TestRunWritesDebugSVGWhenRequested(t *testing.T) {
	gerber := "%FSLAX36Y36*%\n%MOMM*%\n%ADD10C,1.5*%\nD10*\nX1000000Y2000000D03*\n"
	forgeYAML := `
project_name: debug-run
board_version: rev-a
align_backside: false
` + laserMachineYAML + `
gcode_files:
  top_mask.gcode:
    - machine_config: snapmaker/fast
      gerber_file: top_mask.gbr
      invert: false
`
	forgePath := writeProject(t, map[string]string{
		"forge.yaml":   forgeYAML,
		"top_mask.gbr": gerber,
	})
	outDir := filepath.Join(filepath.Dir(forgePath), "out")

	var stdout bytes.Buffer
	if _, err := Run(Options{ForgeFilePath: forgePath, TargetDirectory: outDir, Debug: true}, &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(outDir, "debug"))
	if err != nil {
		t.Fatalf("reading debug dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one debug SVG artefact")
	}
}

func TestWrapContoursProducesOneRingPerContour(t *testing.T) {
	contours := []polyclip.Contour{
		{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}},
		{{X: 2, Y: 2}, {X: 3, Y: 2}, {X: 3, Y: 3}},
	}
	mp := wrapContours(contours)
	if len(mp.Polygons) != 2 {
		t.Fatalf("expected 2 polygons, got %d", len(mp.Polygons))
	}
	for _, p := range mp.Polygons {
		if len(p) != 1 {
			t.Fatalf("expected each polygon to wrap exactly one contour, got %d rings", len(p))
		}
	}
}

func TestLineSelectionForMapsConfigToGeometry(t *testing.T) {
	cases := map[config.SelectLines]geometry.LineSelection{
		config.SelectAll:   geometry.SelectAll,
		config.SelectInner: geometry.SelectInner,
		config.SelectOuter: geometry.SelectOuter,
		"":                 geometry.SelectAll,
	}
	for in, want := range cases {
		if got := lineSelectionFor(in); got != want {
			t.Fatalf("lineSelectionFor(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBuildToolAndJobConfigRejectsMismatchedToolPowerKind(t *testing.T) {
	m := config.Machine{Tools: map[string]config.Tool{
		"laser_1w": {Kind: "laser", PointDiameter: "0.1mm", MaxPower: "1000mW"},
	}}
	jc := config.JobConfig{
		Tool:            "laser_1w",
		DistancePerStep: "0.2mm",
		ToolPower: config.ToolPower{
			Kind:         "end_mill",
			SpindleSpeed: "100%",
		},
	}
	if _, _, _, err := buildToolAndJobConfig(m, jc); err == nil {
		t.Fatal("expected an error when tool_power kind doesn't match the tool")
	}
}

func TestSanitizeStemReplacesPathSeparators(t *testing.T) {
	if got := sanitizeStem("nested/output.gcode"); got != "nested_output.gcode" {
		t.Fatalf("unexpected sanitized stem: %q", got)
	}
}
