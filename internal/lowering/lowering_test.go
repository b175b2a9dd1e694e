package lowering

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/fsm-lower/internal/config"
	"github.com/robert-at-pretension-io/fsm-lower/internal/passes"
)

// passthrough: one register output copying one input.
const passthroughDesign = `{
  "version": 1,
  "symbols": [
    {"id": 1, "name": "top", "class": "type", "loc": {"file": "p.fsm", "line": 1, "col": 1},
     "type": {"kind": "entity", "ports": [2, 3]}},
    {"id": 2, "name": "a", "class": "term", "loc": {"file": "p.fsm", "line": 2, "col": 3},
     "type": {"kind": "in", "elem": {"kind": "uint", "width": 8}}},
    {"id": 3, "name": "o", "class": "term", "loc": {"file": "p.fsm", "line": 3, "col": 3},
     "type": {"kind": "out", "elem": {"kind": "uint", "width": 8}}}
  ],
  "entities": [
    {"symbol": 1, "loc": {"file": "p.fsm", "line": 1, "col": 1},
     "decls": [{"symbol": 2}, {"symbol": 3}],
     "stmts": [{"stmt": "assign", "lhs": {"op": "ref", "symbol": 3}, "rhs": {"op": "ref", "symbol": 2}}]}
  ]
}`

func testLowerer(t *testing.T) *Lowerer {
	t.Helper()
	t.Setenv("FSM_LOWER_TIMING_JSONL", "")
	cfg := config.DefaultConfig()
	cfg.Analysis.SnapshotDir = filepath.Join(t.TempDir(), "snap")
	l := New(cfg)
	l.Out = io.Discard
	l.Log = io.Discard
	return l
}

func TestLowerRunsEveryPass(t *testing.T) {
	l := testLowerer(t)
	result, err := l.Lower(context.Background(), "p.fsm.json", []byte(passthroughDesign))
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}

	want := 3 + 3*config.DefaultNormalizeRounds
	if len(result.Passes) != want {
		t.Fatalf("expected %d passes, got %d", want, len(result.Passes))
	}
	names := passes.Names()
	for i, p := range result.Passes[:len(names)] {
		if p.Name != names[i] {
			t.Fatalf("pass %d: expected %s, got %s", i, names[i], p.Name)
		}
	}
	if result.StoppedAt != "" {
		t.Fatalf("unexpected stop after %s", result.StoppedAt)
	}
	if result.Root == nil || len(result.Root.Entities) != 1 {
		t.Fatalf("expected lowered root with one entity")
	}

	if result.Netlist == nil {
		t.Fatalf("expected netlist")
	}
	if len(result.Netlist.Entities) != 1 || len(result.Netlist.Ports) != 2 {
		t.Fatalf("unexpected netlist %+v", result.Netlist)
	}
	if len(result.Netlist.Drivers) != 1 || result.Netlist.Drivers[0].Signal != "o" {
		t.Fatalf("expected o driven by the body, got %+v", result.Netlist.Drivers)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("unexpected violations %+v", result.Violations)
	}
	if result.Delta != nil {
		t.Fatalf("first run must not produce a delta")
	}
}

func TestLowerStopAfter(t *testing.T) {
	l := testLowerer(t)
	l.Config.Lowering.StopAfter = "LiftEntities"

	result, err := l.Lower(context.Background(), "p.fsm.json", []byte(passthroughDesign))
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if result.StoppedAt != "LiftEntities" {
		t.Fatalf("expected stop after LiftEntities, got %q", result.StoppedAt)
	}
	if len(result.Passes) != 3 {
		t.Fatalf("expected 3 passes, got %d", len(result.Passes))
	}
	if result.Netlist != nil {
		t.Fatalf("stopped run must not build a netlist")
	}
}

func TestLowerRejectsContractViolation(t *testing.T) {
	l := testLowerer(t)
	bad := strings.Replace(passthroughDesign, `"class": "term"`, `"class": "value"`, 1)

	_, err := l.Lower(context.Background(), "bad.fsm.json", []byte(bad))
	if err == nil || !strings.Contains(err.Error(), "design contract violation") {
		t.Fatalf("expected contract violation, got %v", err)
	}
}

func TestLowerDeltaAgainstSnapshot(t *testing.T) {
	l := testLowerer(t)
	ctx := context.Background()

	if _, err := l.Lower(ctx, "p.fsm.json", []byte(passthroughDesign)); err != nil {
		t.Fatalf("first Lower: %v", err)
	}
	result, err := l.Lower(ctx, "p.fsm.json", []byte(passthroughDesign))
	if err != nil {
		t.Fatalf("second Lower: %v", err)
	}
	if result.Delta == nil {
		t.Fatalf("expected delta on second run")
	}
	if !result.Delta.Empty() {
		t.Fatalf("unchanged design must give an empty delta, got %+v", result.Delta)
	}
}

func TestTimingJSONLWritten(t *testing.T) {
	l := testLowerer(t)
	timingPath := filepath.Join(t.TempDir(), "timing.jsonl")
	l.Config.Analysis.TimingPath = timingPath

	if _, err := l.Lower(context.Background(), "p.fsm.json", []byte(passthroughDesign)); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	raw, err := os.ReadFile(timingPath)
	if err != nil {
		t.Fatalf("read timing file: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	if len(lines) == 0 {
		t.Fatalf("expected timing events, found none")
	}

	var foundPass, foundTotal bool
	var run string
	for _, line := range lines {
		var ev timingLine
		if err := json.Unmarshal(line, &ev); err != nil {
			t.Fatalf("parse timing event: %v", err)
		}
		if run == "" {
			run = ev.Run
		}
		if ev.Run == "" || ev.Run != run {
			t.Fatalf("events of one run must share a run id, got %q and %q", run, ev.Run)
		}
		if ev.Kind == "pass" && ev.Phase == "LowerPipeline" && ev.Design == "p.fsm.json" {
			foundPass = true
		}
		if ev.Kind == "stage" && ev.Phase == "total" {
			foundTotal = true
		}
	}
	if !foundPass || !foundTotal {
		t.Fatalf("expected LowerPipeline and total timing events")
	}
}

func TestRunJSONOutput(t *testing.T) {
	l := testLowerer(t)
	var out bytes.Buffer
	l.Out = &out
	l.JSONOutput = true

	path := filepath.Join(t.TempDir(), "p.fsm.json")
	if err := os.WriteFile(path, []byte(passthroughDesign), 0o644); err != nil {
		t.Fatalf("write design: %v", err)
	}
	if err := l.Run(context.Background(), path); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var got struct {
		Design string `json:"design"`
		Passes []struct {
			Name string `json:"name"`
		} `json:"passes"`
		Netlist struct {
			Ports []struct {
				Name string `json:"name"`
			} `json:"ports"`
		} `json:"netlist"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.Design != "p.fsm.json" || len(got.Passes) == 0 || len(got.Netlist.Ports) != 2 {
		t.Fatalf("unexpected output %s", out.String())
	}
}

func TestFormatPipelineErrors(t *testing.T) {
	err := joinPipelineErrors([]error{io.EOF, io.ErrUnexpectedEOF})
	if err == nil {
		t.Fatalf("expected error")
	}
	want := "pipeline errors:\n- EOF\n- unexpected EOF"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if joinPipelineErrors(nil) != nil {
		t.Fatalf("no errors must give nil")
	}
}
