package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveInputsWithExclude(t *testing.T) {
	root := t.TempDir()
	rtlDir := filepath.Join(root, "rtl", "core")
	genDir := filepath.Join(root, "gen")
	if err := os.MkdirAll(rtlDir, 0o755); err != nil {
		t.Fatalf("mkdir rtl: %v", err)
	}
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		t.Fatalf("mkdir gen: %v", err)
	}

	top := filepath.Join(root, "top.fsm.json")
	alu := filepath.Join(rtlDir, "alu.fsm.json")
	gen := filepath.Join(genDir, "stack.fsm.json")
	notes := filepath.Join(rtlDir, "notes.txt")
	for _, f := range []string{top, alu, gen, notes} {
		if err := os.WriteFile(f, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}

	cfg := Config{
		Inputs: InputsConfig{
			Files:   []string{"*.fsm.json", "**/*.fsm.json", "rtl/**/*.txt"},
			Exclude: []string{"gen/*.fsm.json"},
		},
	}

	files, err := cfg.ResolveInputs(root)
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 design files, got %v", files)
	}
	if !containsPath(files, top) || !containsPath(files, alu) {
		t.Fatalf("expected %s and %s, got %v", top, alu, files)
	}
	if containsPath(files, gen) {
		t.Fatalf("expected %s to be excluded, got %v", gen, files)
	}
	if files[0] > files[1] {
		t.Fatalf("expected sorted files, got %v", files)
	}
}

func TestResolveInputsSkipsHiddenDirs(t *testing.T) {
	root := t.TempDir()
	cache := filepath.Join(root, DefaultSnapshotDir)
	if err := os.MkdirAll(cache, 0o755); err != nil {
		t.Fatalf("mkdir cache: %v", err)
	}
	design := filepath.Join(root, "top.fsm.json")
	cached := filepath.Join(cache, "old.fsm.json")
	for _, f := range []string{design, cached} {
		if err := os.WriteFile(f, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}

	cfg := Config{Inputs: InputsConfig{Files: []string{"**/*.fsm.json", "*.fsm.json", "[bad"}}}
	files, err := cfg.ResolveInputs(root)
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}
	if len(files) != 1 || !containsPath(files, design) {
		t.Fatalf("expected only %s, got %v", design, files)
	}
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsm_lower.toml")
	src := `
[lowering]
separator = "_x_"
check-trees = true
stop-after = "LiftEntities"

[policy.rules]
undriven_output = "off"
multiple_drivers = "warning"

[analysis]
timing-path = "timing.jsonl"
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Lowering.Separator != "_x_" {
		t.Fatalf("expected separator _x_, got %q", cfg.Lowering.Separator)
	}
	if !cfg.TreeChecks() {
		t.Fatalf("expected tree checks on")
	}
	if cfg.Lowering.StopAfter != "LiftEntities" {
		t.Fatalf("expected stop-after LiftEntities, got %q", cfg.Lowering.StopAfter)
	}
	if cfg.Lowering.NormalizeRounds != DefaultNormalizeRounds {
		t.Fatalf("expected default rounds, got %d", cfg.Lowering.NormalizeRounds)
	}
	if cfg.IsRuleEnabled("undriven_output") {
		t.Fatalf("expected undriven_output to be off")
	}
	if got := cfg.GetRuleSeverity("multiple_drivers", "error"); got != "warning" {
		t.Fatalf("expected warning severity, got %q", got)
	}
	if got := cfg.GetRuleSeverity("dangling_instance", "error"); got != "error" {
		t.Fatalf("expected default severity, got %q", got)
	}
	if cfg.Analysis.TimingPath != "timing.jsonl" {
		t.Fatalf("expected timing path, got %q", cfg.Analysis.TimingPath)
	}
	if !cfg.PolicyEnabled() {
		t.Fatalf("expected policy enabled by default")
	}
}

func TestSaveAndLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsm_lower.json")

	cfg := DefaultConfig()
	cfg.Lowering.NormalizeRounds = 3
	cfg.Policy.Rules["dangling_instance"] = "info"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Lowering.NormalizeRounds != 3 {
		t.Fatalf("expected 3 rounds, got %d", loaded.Lowering.NormalizeRounds)
	}
	if loaded.Lowering.Separator != DefaultSeparator {
		t.Fatalf("expected default separator, got %q", loaded.Lowering.Separator)
	}
	if got := loaded.GetRuleSeverity("dangling_instance", "warning"); got != "info" {
		t.Fatalf("expected info severity, got %q", got)
	}
}

func TestLoadFileRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsm_lower.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func containsPath(files []string, target string) bool {
	for _, f := range files {
		if filepath.Clean(f) == filepath.Clean(target) {
			return true
		}
	}
	return false
}
