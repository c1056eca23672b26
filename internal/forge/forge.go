// Package forge implements the job orchestrator (§4.I): it reads a forge
// recipe, resolves each stage's machine configuration against the recipe's
// local machines or the global catalogue, drives a stage's file through
// §4.E (imaging) → §4.F (polygon algebra) → §4.G (toolpath planning),
// aggregates every stage of one output into a single command queue, and
// only then invokes §4.H to serialize and write that output file. This
// mirrors the teacher's `cmd/*/main.go` driver shape — parse args, build a
// pipeline, track progress, write output, report a summary — generalized
// from "optimize one gcode file" to "build every output a forge recipe
// names".
package forge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	polyclip "github.com/ctessum/polyclip-go"

	"github.com/chrisns/pcb-forge/internal/config"
	"github.com/chrisns/pcb-forge/internal/debugsvg"
	"github.com/chrisns/pcb-forge/internal/drill"
	"github.com/chrisns/pcb-forge/internal/forgeerr"
	"github.com/chrisns/pcb-forge/internal/gcode"
	"github.com/chrisns/pcb-forge/internal/geometry"
	"github.com/chrisns/pcb-forge/internal/gerber"
	"github.com/chrisns/pcb-forge/internal/image"
	"github.com/chrisns/pcb-forge/internal/motion"
	"github.com/chrisns/pcb-forge/internal/planner"
	"github.com/chrisns/pcb-forge/internal/progress"
	"github.com/chrisns/pcb-forge/internal/quantity"
	"github.com/chrisns/pcb-forge/internal/shape"
)

// Options configures one build run (§6 "build" subcommand).
type Options struct {
	ForgeFilePath   string
	TargetDirectory string
	Debug           bool
}

func cfgErr(format string, args ...interface{}) error {
	return forgeerr.New(forgeerr.Config, fmt.Sprintf(format, args...), nil)
}

func warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "WARNING: %s\n", fmt.Sprintf(format, args...))
}

// Run loads the forge recipe at opts.ForgeFilePath, builds every output it
// names, and writes each completed output under opts.TargetDirectory.
// Outputs are processed in lexicographic order of their gcode_files key; a
// failure at any stage aborts the whole run without writing that output's
// (or any subsequent output's) file — already-written outputs from earlier
// in the run stay on disk. Progress is reported to stdout as stages
// complete.
func Run(opts Options, stdout io.Writer) (progress.BuildStats, error) {
	recipe, err := config.LoadForgeRecipe(opts.ForgeFilePath)
	if err != nil {
		return progress.BuildStats{}, err
	}
	global, err := config.LoadGlobalCatalogue()
	if err != nil {
		return progress.BuildStats{}, err
	}

	forgeDir := filepath.Dir(opts.ForgeFilePath)
	globalCataloguePath, err := config.GlobalCataloguePath()
	if err != nil {
		return progress.BuildStats{}, err
	}
	globalDir := filepath.Dir(globalCataloguePath)

	keys := make([]string, 0, len(recipe.GCodeFiles))
	total := 0
	for k, stages := range recipe.GCodeFiles {
		keys = append(keys, k)
		total += len(stages)
	}
	sort.Strings(keys)

	if err := os.MkdirAll(opts.TargetDirectory, 0o755); err != nil {
		return progress.BuildStats{}, cfgErr("creating target directory %q: %v", opts.TargetDirectory, err)
	}

	rep := progress.NewReporter(total)
	stats := progress.BuildStats{TotalStages: total}

	env := buildEnv{
		forgeDir:  forgeDir,
		globalDir: globalDir,
		recipe:    recipe,
		global:    global,
		debug:     opts.Debug,
		debugDir:  filepath.Join(opts.TargetDirectory, "debug"),
	}
	if env.debug {
		if err := os.MkdirAll(env.debugDir, 0o755); err != nil {
			return stats, cfgErr("creating debug output directory %q: %v", env.debugDir, err)
		}
	}

	for _, key := range keys {
		stages := recipe.GCodeFiles[key]
		q, err := buildOutput(env, key, stages, &stats, rep, stdout)
		if err != nil {
			return stats, err
		}

		xOffset := 0.0
		if recipe.AlignBackside && q.hasBounds {
			xOffset = q.maxX - q.minX
		}
		emitter := motion.NewEmitter(xOffset)
		emitter.IncludeDir = q.lastIncludeDir
		if err := emitter.Run(q.commands); err != nil {
			return stats, err
		}

		outPath := filepath.Join(opts.TargetDirectory, key)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return stats, cfgErr("creating directory for output %q: %v", outPath, err)
		}
		if err := os.WriteFile(outPath, emitter.Bytes(), 0o644); err != nil {
			return stats, cfgErr("writing output %q: %v", outPath, err)
		}

		stats.FilesWritten++
		stats.CommandsEmitted += int64(len(q.commands))
	}

	rep.Finish(stdout)
	return stats, nil
}

// buildEnv carries the per-run context every stage needs to resolve paths.
type buildEnv struct {
	forgeDir  string
	globalDir string
	recipe    *config.ForgeRecipe
	global    *config.Catalogue
	debug     bool
	debugDir  string
}

// outputQueue accumulates one gcode_files entry's aggregated planner
// command stream plus the project-wide bounds used for back-side mirroring
// (§4.H: "x_offset is the project-wide max_x − min_x across all imaged
// Gerbers").
type outputQueue struct {
	commands       []planner.Command
	minX, maxX     float64
	hasBounds      bool
	lastIncludeDir string
}

func (q *outputQueue) includeBounds(b shape.Rect) {
	if !q.hasBounds {
		q.minX, q.maxX = b.MinX, b.MaxX
		q.hasBounds = true
		return
	}
	if b.MinX < q.minX {
		q.minX = b.MinX
	}
	if b.MaxX > q.maxX {
		q.maxX = b.MaxX
	}
}

func buildOutput(env buildEnv, outputKey string, stages []config.Stage, stats *progress.BuildStats, rep *progress.Reporter, stdout io.Writer) (outputQueue, error) {
	var q outputQueue
	for i, stage := range stages {
		side := planner.SideFront
		if stage.Backside {
			side = planner.SideBack
		}

		cmds, includeDir, bounds, hasBounds, err := processStage(env, outputKey, i, stage)
		if err != nil {
			return outputQueue{}, err
		}
		if hasBounds {
			q.includeBounds(bounds)
		}
		q.lastIncludeDir = includeDir

		q.commands = append(q.commands, planner.Command{Kind: planner.CmdSetSide, Side: side})
		q.commands = append(q.commands, cmds...)

		stats.StagesCompleted++
		rep.Update(stdout, stats.StagesCompleted)
	}
	return q, nil
}

// processStage runs one stage through §4.E→§4.F→§4.G and returns the
// commands to append to its output's queue (not including SetSide, which
// the caller issues uniformly) plus the raw imaged bounds (for Gerber-
// backed stages only, matching the original's bounds accumulation).
func processStage(env buildEnv, outputKey string, stageIndex int, stage config.Stage) ([]planner.Command, string, shape.Rect, bool, error) {
	switch stage.Kind {
	case "engrave_mask":
		return processEngraveMask(env, outputKey, stageIndex, stage)
	case "cut_board":
		if stage.IsDrill() {
			return processCutBoardDrill(env, outputKey, stageIndex, stage)
		}
		return processCutBoardGerber(env, outputKey, stageIndex, stage)
	default:
		return nil, "", shape.Rect{}, false, cfgErr("unrecognized stage kind %q", stage.Kind)
	}
}

func (env buildEnv) resolveMachine(path, fallback string) (config.Machine, config.JobConfig, string, error) {
	if path == "" {
		path = fallback
	}
	if path == "" {
		return config.Machine{}, config.JobConfig{}, "", cfgErr("no machine configuration specified and no global default is set")
	}
	m, jc, fromLocal, err := config.ResolveMachineConfigSource(path, env.recipe.Machines, env.global)
	if err != nil {
		return config.Machine{}, config.JobConfig{}, "", err
	}
	includeDir := env.globalDir
	if fromLocal {
		includeDir = env.forgeDir
	}
	return m, jc, includeDir, nil
}

func processEngraveMask(env buildEnv, outputKey string, stageIndex int, stage config.Stage) ([]planner.Command, string, shape.Rect, bool, error) {
	machine, jc, includeDir, err := env.resolveMachine(stage.MachineConfig, env.global.DefaultEngraver)
	if err != nil {
		return nil, "", shape.Rect{}, false, err
	}
	cfgTool, tool, pjc, err := buildToolAndJobConfig(machine, jc)
	if err != nil {
		return nil, "", shape.Rect{}, false, err
	}

	set, bounds, err := imageGerberFile(env, filepath.Join(env.forgeDir, stage.GerberFile), outputKey, stageIndex)
	if err != nil {
		return nil, "", shape.Rect{}, false, err
	}

	mp := geometry.Union(&set, pjc.DistancePerStep)
	if !stage.Invert {
		mp = geometry.Offset(mp, tool.Diameter/2)
	}

	p := planner.New(pjc)
	if err := p.PlanEngrave(mp, stage.Invert); err != nil {
		return nil, "", shape.Rect{}, false, err
	}

	cmds := toolSetupCommands(machine, cfgTool, tool, pjc, includeDir)
	cmds = append(cmds, p.Queue()...)
	cmds = append(cmds, toolShutdownCommands(cfgTool, includeDir)...)
	return cmds, includeDir, bounds, true, nil
}

func processCutBoardGerber(env buildEnv, outputKey string, stageIndex int, stage config.Stage) ([]planner.Command, string, shape.Rect, bool, error) {
	machine, jc, includeDir, err := env.resolveMachine(stage.MachineConfig, env.global.DefaultCutter)
	if err != nil {
		return nil, "", shape.Rect{}, false, err
	}
	cfgTool, tool, pjc, err := buildToolAndJobConfig(machine, jc)
	if err != nil {
		return nil, "", shape.Rect{}, false, err
	}

	set, bounds, err := imageGerberFile(env, filepath.Join(env.forgeDir, stage.CutBoardFile.GerberFile), outputKey, stageIndex)
	if err != nil {
		return nil, "", shape.Rect{}, false, err
	}

	mp := geometry.Union(&set, pjc.DistancePerStep)
	mp = geometry.Offset(mp, tool.Diameter/2)

	sel := lineSelectionFor(stage.SelectLines)
	contours := geometry.SelectLines(mp, sel)
	selected := wrapContours(contours)

	p := planner.New(pjc)
	if err := p.PlanCutBoard(selected); err != nil {
		return nil, "", shape.Rect{}, false, err
	}

	cmds := toolSetupCommands(machine, cfgTool, tool, pjc, includeDir)
	cmds = append(cmds, p.Queue()...)
	cmds = append(cmds, toolShutdownCommands(cfgTool, includeDir)...)
	return cmds, includeDir, bounds, true, nil
}

func processCutBoardDrill(env buildEnv, outputKey string, stageIndex int, stage config.Stage) ([]planner.Command, string, shape.Rect, bool, error) {
	machine, jc, includeDir, err := env.resolveMachine(stage.MachineConfig, env.global.DefaultCutter)
	if err != nil {
		return nil, "", shape.Rect{}, false, err
	}
	cfgTool, tool, pjc, err := buildToolAndJobConfig(machine, jc)
	if err != nil {
		return nil, "", shape.Rect{}, false, err
	}

	path := filepath.Join(env.forgeDir, stage.DrillFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", shape.Rect{}, false, cfgErr("reading drill file %q: %v", path, err)
	}
	cmdsXNC, err := drill.Parse(string(data))
	if err != nil {
		return nil, "", shape.Rect{}, false, err
	}
	prog, err := drill.Interpret(cmdsXNC, pjc.DistancePerStep)
	if err != nil {
		return nil, "", shape.Rect{}, false, err
	}

	p := planner.New(pjc)
	if len(prog.Holes) > 0 {
		holes := make([]planner.Hole, len(prog.Holes))
		for i, h := range prog.Holes {
			holes[i] = planner.Hole{Center: h.Center, Diameter: h.Diameter}
		}
		if err := p.PlanDrill(holes); err != nil {
			return nil, "", shape.Rect{}, false, err
		}
	}
	for _, route := range prog.Routes {
		if len(route.Points) < 3 {
			continue
		}
		var set shape.Set
		set.Append(shape.Polygon(route.Points))
		mp := geometry.Union(&set, pjc.DistancePerStep)
		mp = geometry.Offset(mp, -tool.Diameter)
		if err := p.PlanRoutedPath(mp); err != nil {
			return nil, "", shape.Rect{}, false, err
		}
	}

	cmds := toolSetupCommands(machine, cfgTool, tool, pjc, includeDir)
	cmds = append(cmds, p.Queue()...)
	cmds = append(cmds, toolShutdownCommands(cfgTool, includeDir)...)
	return cmds, includeDir, shape.Rect{}, false, nil
}

// imageGerberFile parses and images a Gerber file. When debug is set it
// writes a best-effort debug SVG of the imaged shapes before returning
// (an empty render when imaging fails); a parse error returns before any
// SVG is written.
func imageGerberFile(env buildEnv, path, outputKey string, stageIndex int) (shape.Set, shape.Rect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return shape.Set{}, shape.Rect{}, cfgErr("reading gerber file %q: %v", path, err)
	}

	cmds, err := gerber.Parse(string(data))
	if err != nil {
		return shape.Set{}, shape.Rect{}, err
	}
	set, err := image.NewBuilder(cmds).Build()
	if env.debug {
		debugsvg.RenderToFile(debugFilePath(env.debugDir, outputKey, stageIndex), &set)
	}
	if err != nil {
		return shape.Set{}, shape.Rect{}, err
	}
	return set, set.Bounds(), nil
}

func debugFilePath(debugDir, outputKey string, stageIndex int) string {
	stem := sanitizeStem(outputKey)
	return filepath.Join(debugDir, fmt.Sprintf("%s-stage%d.svg", stem, stageIndex))
}

func sanitizeStem(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		if r == '/' || r == os.PathSeparator {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func lineSelectionFor(sel config.SelectLines) geometry.LineSelection {
	switch sel {
	case config.SelectInner:
		return geometry.SelectInner
	case config.SelectOuter:
		return geometry.SelectOuter
	default:
		return geometry.SelectAll
	}
}

// wrapContours rewraps §4.F's flat contour selection into a MultiPolygon of
// single-ring polygons, so the planner sees one outline per selected
// contour rather than the grouped exterior+holes structure SelectLines
// discards.
func wrapContours(contours []polyclip.Contour) geometry.MultiPolygon {
	mp := geometry.MultiPolygon{Polygons: make([]polyclip.Polygon, 0, len(contours))}
	for _, c := range contours {
		mp.Polygons = append(mp.Polygons, polyclip.Polygon{c})
	}
	return mp
}

// buildToolAndJobConfig resolves a stage's tool path against its machine
// and converts the YAML-level quantities into the planner's numeric
// JobConfig/Tool (§4.G/§4.H inputs).
func buildToolAndJobConfig(m config.Machine, jc config.JobConfig) (config.Tool, planner.Tool, planner.JobConfig, error) {
	cfgTool, bit, err := config.ResolveTool(m, jc.Tool)
	if err != nil {
		return config.Tool{}, planner.Tool{}, planner.JobConfig{}, err
	}

	distancePerStep, err := config.ParseDistancePerStep(jc.DistancePerStep)
	if err != nil {
		return config.Tool{}, planner.Tool{}, planner.JobConfig{}, err
	}

	pjc := planner.JobConfig{DistancePerStep: distancePerStep}
	var tool planner.Tool

	switch cfgTool.Kind {
	case "laser":
		maxPower, err := parseQ(cfgTool.MaxPower, quantity.Power)
		if err != nil {
			return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("parsing tool max_power: %v", err)
		}
		diameter, err := parseQ(cfgTool.PointDiameter, quantity.Length)
		if err != nil {
			return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("parsing tool point_diameter: %v", err)
		}
		if jc.ToolPower.Kind != "laser" {
			return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("job config tool_power kind %q does not match laser tool", jc.ToolPower.Kind)
		}
		power, err := parseQ(jc.ToolPower.LaserPower, quantity.Power)
		if err != nil {
			return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("parsing tool_power laser_power: %v", err)
		}
		workSpeed, err := parseQ(jc.ToolPower.WorkSpeed, quantity.Velocity)
		if err != nil {
			return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("parsing tool_power work_speed: %v", err)
		}
		tool = planner.Tool{Kind: planner.ToolLaser, MaxPower: maxPower, Diameter: diameter}
		pjc.Tool = tool
		pjc.Passes = jc.ToolPower.Passes
		pjc.WorkSpeed = workSpeed
		if maxPower > 0 {
			pjc.Power = power / maxPower
		}

	case "spindle":
		maxSpeed, err := parseQ(cfgTool.MaxSpeed, quantity.AngularVelocity)
		if err != nil {
			return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("parsing tool max_speed: %v", err)
		}
		diameter, err := parseQ(bit.Diameter, quantity.Length)
		if err != nil {
			return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("parsing bit diameter: %v", err)
		}
		if jc.ToolPower.Kind != "end_mill" {
			return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("job config tool_power kind %q does not match spindle tool", jc.ToolPower.Kind)
		}
		travelHeight, err := parseQ(jc.ToolPower.TravelHeight, quantity.Length)
		if err != nil {
			return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("parsing tool_power travel_height: %v", err)
		}
		cutDepth, err := parseQ(jc.ToolPower.CutDepth, quantity.Length)
		if err != nil {
			return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("parsing tool_power cut_depth: %v", err)
		}
		plungeSpeed, err := parseQ(jc.ToolPower.PlungeSpeed, quantity.Velocity)
		if err != nil {
			return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("parsing tool_power plunge_speed: %v", err)
		}
		workSpeed, err := parseQ(jc.ToolPower.WorkSpeed, quantity.Velocity)
		if err != nil {
			return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("parsing tool_power work_speed: %v", err)
		}
		var passDepth float64
		hasPassDepth := jc.ToolPower.PassDepth != ""
		if hasPassDepth {
			passDepth, err = parseQ(jc.ToolPower.PassDepth, quantity.Length)
			if err != nil {
				return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("parsing tool_power pass_depth: %v", err)
			}
		}
		var spindleSpeed float64
		if jc.ToolPower.SpindleSpeed != "" {
			spindleSpeed, err = parseQ(jc.ToolPower.SpindleSpeed, quantity.Ratio)
			if err != nil {
				return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("parsing tool_power spindle_speed: %v", err)
			}
		}
		tool = planner.Tool{
			Kind:            planner.ToolSpindle,
			MaxSpindleSpeed: maxSpeed,
			PlungeSpeed:     plungeSpeed,
			TravelHeight:    travelHeight,
			CutDepth:        cutDepth,
			HasPassDepth:    hasPassDepth,
			PassDepth:       passDepth,
			Diameter:        diameter,
		}
		pjc.Tool = tool
		pjc.WorkSpeed = workSpeed
		pjc.SpindleSpeed = spindleSpeed

	default:
		return config.Tool{}, planner.Tool{}, planner.JobConfig{}, cfgErr("unrecognized tool kind %q", cfgTool.Kind)
	}

	return cfgTool, tool, pjc, nil
}

// toolSetupCommands issues the manual planner commands a stage's own
// Plan*() call never emits: equipping the tool, selecting metric units,
// the [EXPANSION] jog_speed → rapid-speed mapping, the work speed/power
// (or spindle speed) the planner's cut/move commands assume is already
// armed, and the tool's init_gcode splice.
func toolSetupCommands(m config.Machine, cfgTool config.Tool, tool planner.Tool, jc planner.JobConfig, includeDir string) []planner.Command {
	var cmds []planner.Command
	cmds = append(cmds, planner.Command{Kind: planner.CmdEquipTool, Tool: tool})
	cmds = append(cmds, planner.Command{Kind: planner.CmdUnitMode, Metric: true})
	if jogSpeed, err := parseQ(m.JogSpeed, quantity.Velocity); err == nil && jogSpeed > 0 {
		cmds = append(cmds, planner.Command{Kind: planner.CmdSetRapidSpeed, Speed: jogSpeed})
	}
	if jc.WorkSpeed > 0 {
		cmds = append(cmds, planner.Command{Kind: planner.CmdSetWorkSpeed, Speed: jc.WorkSpeed})
	}
	switch tool.Kind {
	case planner.ToolLaser:
		cmds = append(cmds, planner.Command{Kind: planner.CmdSetPower, Ratio: jc.Power})
	case planner.ToolSpindle:
		cmds = append(cmds, planner.Command{Kind: planner.CmdSetSpindleSpeed, Ratio: jc.SpindleSpeed})
	}
	if cfgTool.InitGCode != "" {
		lintIncludeFile(includeDir, cfgTool.InitGCode)
		cmds = append(cmds, planner.Command{Kind: planner.CmdIncludeFile, Path: cfgTool.InitGCode})
	}
	return cmds
}

func toolShutdownCommands(cfgTool config.Tool, includeDir string) []planner.Command {
	if cfgTool.ShutdownGCode == "" {
		return nil
	}
	lintIncludeFile(includeDir, cfgTool.ShutdownGCode)
	return []planner.Command{{Kind: planner.CmdIncludeFile, Path: cfgTool.ShutdownGCode}}
}

// lintIncludeFile is a best-effort pre-flight check: include-file splicing
// never fails on a lint issue (the bytes get spliced regardless, per
// §4.H), but a malformed line is worth a warning before it's silently
// baked into the output.
func lintIncludeFile(includeDir, path string) {
	resolved := path
	if !filepath.IsAbs(path) && includeDir != "" {
		resolved = filepath.Join(includeDir, path)
	}
	issues, err := gcode.Lint(resolved)
	if err != nil {
		return
	}
	for _, issue := range issues {
		warnf("include file %q line %d: %v", resolved, issue.Line, issue.Problem)
	}
}

func parseQ(s string, kind quantity.Kind) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("quantity: empty value")
	}
	q, err := quantity.Parse(s, kind)
	if err != nil {
		return 0, err
	}
	return q.Value, nil
}
