// Package config holds the YAML-tagged forge recipe and machine catalogue
// structures described in §6 of the specification, decoded with
// gopkg.in/yaml.v3, plus ParseDistancePerStep for the "0.1mm"-style step
// field. The other dimensioned fields ("1500mm/min", "50%") are turned
// into internal units by internal/forge.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chrisns/pcb-forge/internal/forgeerr"
	"github.com/chrisns/pcb-forge/internal/quantity"
)

func configErr(format string, args ...interface{}) error {
	return forgeerr.New(forgeerr.Config, fmt.Sprintf(format, args...), nil)
}

// SelectLines mirrors geometry.LineSelection's YAML spelling.
type SelectLines string

const (
	SelectAll   SelectLines = "all"
	SelectInner SelectLines = "inner"
	SelectOuter SelectLines = "outer"
)

// CutBoardFile is the flattened Gerber-or-Drill variant of a cut_board
// stage's input file (§6).
type CutBoardFile struct {
	GerberFile  string      `yaml:"gerber_file,omitempty"`
	SelectLines SelectLines `yaml:"select_lines,omitempty"`
	DrillFile   string      `yaml:"drill_file,omitempty"`
}

// IsDrill reports whether this variant names a drill file rather than a
// Gerber file.
func (f CutBoardFile) IsDrill() bool { return f.DrillFile != "" }

// Stage is one step of a gcode_files pipeline: either engrave_mask or
// cut_board (§6).
type Stage struct {
	Kind string `yaml:"-"` // "engrave_mask" or "cut_board", set by UnmarshalYAML

	MachineConfig string `yaml:"machine_config,omitempty"`
	Backside      bool   `yaml:"backside,omitempty"`

	// engrave_mask
	GerberFile string `yaml:"gerber_file,omitempty"`
	Invert     bool   `yaml:"invert,omitempty"`

	// cut_board (flattened CutBoardFile)
	CutBoardFile `yaml:",inline"`
}

// rawStage lets UnmarshalYAML distinguish the two stage variants by which
// fields are present, since the forge recipe doesn't carry an explicit
// discriminant key.
type rawStage struct {
	MachineConfig string      `yaml:"machine_config"`
	Backside      bool        `yaml:"backside"`
	GerberFile    string      `yaml:"gerber_file"`
	Invert        *bool       `yaml:"invert"`
	SelectLines   SelectLines `yaml:"select_lines"`
	DrillFile     string      `yaml:"drill_file"`
}

// UnmarshalYAML implements the engrave_mask/cut_board stage-variant
// discrimination: a stage naming invert or lacking a select_lines/
// drill_file field is treated as engrave_mask; otherwise cut_board.
func (s *Stage) UnmarshalYAML(value *yaml.Node) error {
	var raw rawStage
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.MachineConfig = raw.MachineConfig
	s.Backside = raw.Backside
	if raw.Invert != nil || raw.DrillFile == "" && raw.SelectLines == "" {
		s.Kind = "engrave_mask"
		s.GerberFile = raw.GerberFile
		if raw.Invert != nil {
			s.Invert = *raw.Invert
		}
		return nil
	}
	s.Kind = "cut_board"
	s.CutBoardFile = CutBoardFile{GerberFile: raw.GerberFile, SelectLines: raw.SelectLines, DrillFile: raw.DrillFile}
	return nil
}

// ForgeRecipe is the top-level forge file (§6 "Forge recipe (YAML)").
type ForgeRecipe struct {
	ProjectName   string             `yaml:"project_name"`
	BoardVersion  string             `yaml:"board_version"`
	AlignBackside bool               `yaml:"align_backside"`
	Machines      map[string]Machine `yaml:"machines"`
	GCodeFiles    map[string][]Stage `yaml:"gcode_files"`
}

// DefaultAlignBackside is the ForgeRecipe.AlignBackside default (§6: "=
// true").
const DefaultAlignBackside = true

// LoadForgeRecipe decodes a forge recipe YAML file, defaulting
// align_backside to true when the key is absent.
func LoadForgeRecipe(path string) (*ForgeRecipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configErr("reading forge file %q: %v", path, err)
	}
	recipe := &ForgeRecipe{AlignBackside: DefaultAlignBackside}
	if err := yaml.Unmarshal(data, recipe); err != nil {
		return nil, configErr("parsing forge file %q: %v", path, err)
	}
	return recipe, nil
}

// EndMillBit is one named end-mill bit's diameter.
type EndMillBit struct {
	Diameter string `yaml:"diameter"`
}

// Tool is a laser or spindle tool definition (§6 "Tool = laser{...} |
// spindle{...}").
type Tool struct {
	Kind string `yaml:"-"`

	// laser
	PointDiameter string `yaml:"point_diameter,omitempty"`
	MaxPower      string `yaml:"max_power,omitempty"`

	// spindle
	MaxSpeed string                `yaml:"max_speed,omitempty"`
	Bits     map[string]EndMillBit `yaml:"bits,omitempty"`

	InitGCode     string `yaml:"init_gcode,omitempty"`
	ShutdownGCode string `yaml:"shutdown_gcode,omitempty"`
}

// UnmarshalYAML discriminates laser vs. spindle by which fields decode
// non-empty, since the catalogue doesn't carry an explicit tag either.
func (t *Tool) UnmarshalYAML(value *yaml.Node) error {
	type rawTool Tool
	var raw rawTool
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*t = Tool(raw)
	if t.MaxPower != "" || t.PointDiameter != "" {
		t.Kind = "laser"
	} else {
		t.Kind = "spindle"
	}
	return nil
}

// WorkspaceArea is a machine's travel envelope.
type WorkspaceArea struct {
	Width  string `yaml:"width"`
	Height string `yaml:"height"`
}

// ToolPower is the JobConfig.tool_power union (§6).
type ToolPower struct {
	Kind string `yaml:"-"`

	// Laser
	LaserPower string `yaml:"laser_power,omitempty"`
	WorkSpeed  string `yaml:"work_speed,omitempty"`
	Passes     int    `yaml:"passes,omitempty"`

	// EndMill
	SpindleSpeed string `yaml:"spindle_speed,omitempty"`
	TravelHeight string `yaml:"travel_height,omitempty"`
	CutDepth     string `yaml:"cut_depth,omitempty"`
	PassDepth    string `yaml:"pass_depth,omitempty"`
	PlungeSpeed  string `yaml:"plunge_speed,omitempty"`
}

func (tp *ToolPower) UnmarshalYAML(value *yaml.Node) error {
	type rawToolPower ToolPower
	var raw rawToolPower
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*tp = ToolPower(raw)
	if tp.LaserPower != "" {
		tp.Kind = "laser"
	} else {
		tp.Kind = "end_mill"
	}
	return nil
}

// JobConfig is a named cutting/engraving profile (§6 "JobConfig").
type JobConfig struct {
	Tool            string    `yaml:"tool"`
	DistancePerStep string    `yaml:"distance_per_step,omitempty"`
	ToolPower       ToolPower `yaml:"tool_power"`
}

// DefaultDistancePerStep is JobConfig.DistancePerStep's default ("=0.1 mm").
const DefaultDistancePerStep = "0.1mm"

// Machine is one catalogue entry (§6 "Machine").
type Machine struct {
	Tools            map[string]Tool      `yaml:"tools"`
	JogSpeed         string               `yaml:"jog_speed"`
	EngravingConfigs map[string]JobConfig `yaml:"engraving_configs"`
	CuttingConfigs   map[string]JobConfig `yaml:"cutting_configs"`
	WorkspaceArea    WorkspaceArea        `yaml:"workspace_area"`
}

// Catalogue is the global machine catalogue (§6 "Machine catalogue").
type Catalogue struct {
	Machines        map[string]Machine `yaml:"machines"`
	DefaultEngraver string             `yaml:"default_engraver,omitempty"`
	DefaultCutter   string             `yaml:"default_cutter,omitempty"`
}

// GlobalCataloguePath resolves the well-known global catalogue location
// (§6 "Environment"): `$HOME/.config/pcb_forge/config.yaml`.
func GlobalCataloguePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", configErr("resolving home directory: %v", err)
	}
	return filepath.Join(home, ".config", "pcb_forge", "config.yaml"), nil
}

// LoadGlobalCatalogue loads the global catalogue, returning an empty
// Catalogue (not an error) if the file doesn't exist.
func LoadGlobalCatalogue() (*Catalogue, error) {
	path, err := GlobalCataloguePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Catalogue{Machines: map[string]Machine{}}, nil
	}
	if err != nil {
		return nil, configErr("reading global catalogue %q: %v", path, err)
	}
	cat := &Catalogue{}
	if err := yaml.Unmarshal(data, cat); err != nil {
		return nil, configErr("parsing global catalogue %q: %v", path, err)
	}
	return cat, nil
}

// ResolveMachineConfig resolves a two-segment "machine/profile" path
// against local machines first, then the global catalogue (§4.I). profile
// is looked up in both EngravingConfigs and CuttingConfigs.
func ResolveMachineConfig(path string, local map[string]Machine, global *Catalogue) (Machine, JobConfig, error) {
	m, jc, _, err := ResolveMachineConfigSource(path, local, global)
	return m, jc, err
}

// ResolveMachineConfigSource is ResolveMachineConfig plus the fromLocal
// flag the job orchestrator needs: §4.I resolves machine_config_path and
// the include-file search directory with the same lookup, so the
// orchestrator must know which catalogue answered in order to pick the
// forge file's directory or the global catalogue's directory.
func ResolveMachineConfigSource(path string, local map[string]Machine, global *Catalogue) (m Machine, jc JobConfig, fromLocal bool, err error) {
	machineName, profileName, err := splitMachineConfigPath(path)
	if err != nil {
		return Machine{}, JobConfig{}, false, err
	}
	if m, ok := local[machineName]; ok {
		if jc, ok := lookupProfile(m, profileName); ok {
			return m, jc, true, nil
		}
	}
	if global != nil {
		if m, ok := global.Machines[machineName]; ok {
			if jc, ok := lookupProfile(m, profileName); ok {
				return m, jc, false, nil
			}
		}
	}
	return Machine{}, JobConfig{}, false, configErr("machine config %q not found in local or global catalogue", path)
}

// ResolveTool resolves a JobConfig.Tool path against a machine's tool
// table: a bare tool name for a laser, or "tool_name/bit_name" for a
// spindle, mirroring original_source's get_tool_selection bit-popping.
// The returned EndMillBit is the zero value for a laser tool.
func ResolveTool(m Machine, toolPath string) (Tool, EndMillBit, error) {
	toolName, bitName, hasBit := splitToolPath(toolPath)
	tool, ok := m.Tools[toolName]
	if !ok {
		return Tool{}, EndMillBit{}, configErr("tool %q not found on machine", toolName)
	}
	if tool.Kind == "spindle" {
		if !hasBit {
			return Tool{}, EndMillBit{}, configErr("no bit name provided for spindle tool %q", toolName)
		}
		bit, ok := tool.Bits[bitName]
		if !ok {
			return Tool{}, EndMillBit{}, configErr("spindle %q has no bit named %q", toolName, bitName)
		}
		return tool, bit, nil
	}
	return tool, EndMillBit{}, nil
}

func splitToolPath(path string) (tool, bit string, hasBit bool) {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i], path[i+1:], true
		}
	}
	return path, "", false
}

func lookupProfile(m Machine, profile string) (JobConfig, bool) {
	if jc, ok := m.EngravingConfigs[profile]; ok {
		return jc, true
	}
	if jc, ok := m.CuttingConfigs[profile]; ok {
		return jc, true
	}
	return JobConfig{}, false
}

func splitMachineConfigPath(path string) (machine, profile string, err error) {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i], path[i+1:], nil
		}
	}
	return "", "", configErr("malformed machine_config path %q: expected machine/profile", path)
}

// ParseDistancePerStep resolves a JobConfig's distance_per_step field,
// defaulting to DefaultDistancePerStep when empty.
func ParseDistancePerStep(s string) (float64, error) {
	if s == "" {
		s = DefaultDistancePerStep
	}
	q, err := quantity.Parse(s, quantity.Length)
	if err != nil {
		return 0, configErr("parsing distance_per_step %q: %v", s, err)
	}
	return q.Value, nil
}
