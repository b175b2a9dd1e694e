package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
)

// Config is the top-level configuration for fsm-lower
type Config struct {
	// Inputs selects the design files lowered when no file is given
	Inputs InputsConfig `json:"inputs,omitempty" toml:"inputs"`

	// Lowering controls the pass pipeline
	Lowering LoweringConfig `json:"lowering,omitempty" toml:"lowering"`

	// Output controls what is written after lowering
	Output OutputConfig `json:"output,omitempty" toml:"output"`

	// Policy contains design rule configuration
	Policy PolicyConfig `json:"policy,omitempty" toml:"policy"`

	// Analysis contains timing and parallelism options
	Analysis AnalysisConfig `json:"analysis,omitempty" toml:"analysis"`
}

// InputsConfig lists design files by glob
type InputsConfig struct {
	// Files is a list of glob patterns for design files; ** recurses
	Files []string `json:"files,omitempty" toml:"files,omitempty"`

	// Exclude is a list of glob patterns removed from Files
	Exclude []string `json:"exclude,omitempty" toml:"exclude,omitempty"`
}

// LoweringConfig contains pass pipeline options
type LoweringConfig struct {
	// Separator joins parent and child names of flattened entities
	Separator string `json:"separator,omitempty" toml:"separator,omitempty"`

	// CheckTrees runs the invariant checks after every pass
	CheckTrees *bool `json:"checkTrees,omitempty" toml:"check-trees,omitempty"`

	// NormalizeRounds repeats the normalization passes (0 = default)
	NormalizeRounds int `json:"normalizeRounds,omitempty" toml:"normalize-rounds,omitempty"`

	// StopAfter ends the pipeline after the named pass
	StopAfter string `json:"stopAfter,omitempty" toml:"stop-after,omitempty"`
}

// OutputConfig selects the output format and destination
type OutputConfig struct {
	// Format is "text" (lowered tree) or "json" (netlist tables)
	Format string `json:"format,omitempty" toml:"format,omitempty"`

	// Path is the output file; empty writes to stdout
	Path string `json:"path,omitempty" toml:"path,omitempty"`
}

// PolicyConfig contains design rule configuration
type PolicyConfig struct {
	// Enabled runs the design rules over the lowered netlist
	Enabled *bool `json:"enabled,omitempty" toml:"enabled,omitempty"`

	// Rules maps rule names to severity: "off", "info", "warning", "error"
	Rules map[string]string `json:"rules,omitempty" toml:"rules,omitempty"`
}

// AnalysisConfig contains analysis options
type AnalysisConfig struct {
	// TimingPath receives one JSON line per pass (empty = off)
	TimingPath string `json:"timingPath,omitempty" toml:"timing-path,omitempty"`

	// MaxParallelEntities limits concurrent netlist building (0 = auto)
	MaxParallelEntities int `json:"maxParallelEntities,omitempty" toml:"max-parallel-entities,omitempty"`

	// SnapshotDir holds the previous netlist for deltas (relative to root)
	SnapshotDir string `json:"snapshotDir,omitempty" toml:"snapshot-dir,omitempty"`
}

const (
	DefaultSeparator       = "__"
	DefaultNormalizeRounds = 2
	DefaultSnapshotDir     = ".fsm_lower_cache"
)

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Inputs: InputsConfig{
			Files:   []string{"*.fsm.json", "**/*.fsm.json"},
			Exclude: []string{},
		},
		Lowering: LoweringConfig{
			Separator:       DefaultSeparator,
			CheckTrees:      boolPtr(false),
			NormalizeRounds: DefaultNormalizeRounds,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Policy: PolicyConfig{
			Enabled: boolPtr(true),
			Rules:   map[string]string{},
		},
		Analysis: AnalysisConfig{
			MaxParallelEntities: 0, // auto
			SnapshotDir:         DefaultSnapshotDir,
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./fsm_lower.json, ./.fsm_lower.json, ./fsm_lower.toml (current working directory)
//  2. the same names under <rootPath> (if different from cwd)
//  3. ~/.config/fsm_lower/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	names := []string{"fsm_lower.json", ".fsm_lower.json", "fsm_lower.toml"}
	var searchPaths []string
	for _, name := range names {
		searchPaths = append(searchPaths, filepath.Join(cwd, name))
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			for _, name := range names {
				searchPaths = append(searchPaths, filepath.Join(rootPath, name))
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "fsm_lower", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file. Files ending in .toml
// are read as TOML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if len(c.Inputs.Files) == 0 {
		c.Inputs.Files = []string{"*.fsm.json", "**/*.fsm.json"}
	}

	if c.Lowering.Separator == "" {
		c.Lowering.Separator = DefaultSeparator
	}
	if c.Lowering.CheckTrees == nil {
		c.Lowering.CheckTrees = boolPtr(false)
	}
	if c.Lowering.NormalizeRounds <= 0 {
		c.Lowering.NormalizeRounds = DefaultNormalizeRounds
	}

	if c.Output.Format == "" {
		c.Output.Format = "text"
	}

	if c.Policy.Enabled == nil {
		c.Policy.Enabled = boolPtr(true)
	}
	if c.Policy.Rules == nil {
		c.Policy.Rules = make(map[string]string)
	}

	if c.Analysis.SnapshotDir == "" {
		c.Analysis.SnapshotDir = DefaultSnapshotDir
	}
}

// Save writes the configuration to a file in the format its extension
// selects
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(*c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// TreeChecks reports whether invariant checks are on.
func (c *Config) TreeChecks() bool {
	return c.Lowering.CheckTrees != nil && *c.Lowering.CheckTrees
}

// PolicyEnabled reports whether design rules run.
func (c *Config) PolicyEnabled() bool {
	return c.Policy.Enabled == nil || *c.Policy.Enabled
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Policy.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Policy.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}
