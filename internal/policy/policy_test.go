package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/fsm-lower/internal/netlist"
)

// tables models
//
//	entity top { in a; out o; out z; c_i = new child; d_i = new ghost; c_i.x -> o; o = 1; }
//	entity child { in en; out x; x = en; }
func tables() netlist.Tables {
	return netlist.Tables{
		Entities: []netlist.EntityRow{{Name: "child", File: "d.fsm", Line: 10}, {Name: "top", File: "d.fsm", Line: 1}},
		Ports: []netlist.PortRow{
			{Entity: "top", Name: "a", Direction: "in", Type: "u1", Width: 1, Flow: "none", File: "d.fsm", Line: 2},
			{Entity: "top", Name: "o", Direction: "out", Type: "u1", Width: 1, Flow: "none", Storage: "wire", File: "d.fsm", Line: 3},
			{Entity: "top", Name: "z", Direction: "out", Type: "u1", Width: 1, Flow: "none", Storage: "reg", File: "d.fsm", Line: 4},
			{Entity: "child", Name: "en", Direction: "in", Type: "u1", Width: 1, Flow: "none", File: "d.fsm", Line: 11},
			{Entity: "child", Name: "x", Direction: "out", Type: "u1", Width: 1, Flow: "none", Storage: "reg", File: "d.fsm", Line: 12},
		},
		Decls: []netlist.DeclRow{},
		Instances: []netlist.InstanceRow{
			{Entity: "top", Name: "c_i", Target: "child", File: "d.fsm", Line: 5},
			{Entity: "top", Name: "d_i", Target: "ghost", File: "d.fsm", Line: 6},
		},
		Connects: []netlist.ConnectRow{{Entity: "top", Source: "c_i.x", Sink: "o", File: "d.fsm", Line: 7}},
		Drivers: []netlist.DriverRow{
			{Entity: "top", Signal: "o", Kind: "connect", File: "d.fsm", Line: 7},
			{Entity: "top", Signal: "o", Kind: "assign", File: "d.fsm", Line: 8},
			{Entity: "child", Signal: "x", Kind: "assign", File: "d.fsm", Line: 13},
		},
	}
}

func rulesOf(result *Result) map[string]Violation {
	out := map[string]Violation{}
	for _, v := range result.Violations {
		out[v.Rule] = v
	}
	return out
}

func TestRulesFire(t *testing.T) {
	engine, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := engine.Evaluate(context.Background(), Input{Tables: tables()})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(result.Violations) != 4 {
		t.Fatalf("expected 4 violations, got %+v", result.Violations)
	}
	got := rulesOf(result)

	md, ok := got["multiple_drivers"]
	if !ok || md.Severity != "error" || md.Line != 7 || !strings.Contains(md.Message, "top.o has 2 drivers") {
		t.Fatalf("unexpected multiple_drivers violation: %+v", md)
	}
	if v := got["undriven_output"]; !strings.Contains(v.Message, "top.z") || v.Line != 4 {
		t.Fatalf("unexpected undriven_output violation: %+v", v)
	}
	if v := got["dangling_instance"]; !strings.Contains(v.Message, "unknown entity ghost") {
		t.Fatalf("unexpected dangling_instance violation: %+v", v)
	}
	if v := got["unconnected_input"]; v.Severity != "warning" || !strings.Contains(v.Message, "input port en of instance c_i") {
		t.Fatalf("unexpected unconnected_input violation: %+v", v)
	}

	if result.Summary.TotalViolations != 4 || result.Summary.Errors != 3 || result.Summary.Warnings != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
}

func TestSeverityOverrides(t *testing.T) {
	engine, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := engine.Evaluate(context.Background(), Input{
		Tables: tables(),
		Severities: map[string]string{
			"multiple_drivers":  "off",
			"dangling_instance": "info",
		},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	got := rulesOf(result)
	if _, ok := got["multiple_drivers"]; ok {
		t.Fatalf("multiple_drivers must be off, got %+v", result.Violations)
	}
	if got["dangling_instance"].Severity != "info" {
		t.Fatalf("expected info severity, got %+v", got["dangling_instance"])
	}
	if result.Summary.TotalViolations != 3 || result.Summary.Errors != 1 || result.Summary.Warnings != 1 || result.Summary.Info != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
}

func TestCleanNetlist(t *testing.T) {
	engine, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tb := tables()
	tb.Ports = tb.Ports[:2]
	tb.Instances = tb.Instances[:0]
	tb.Drivers = tb.Drivers[:1]

	result, err := engine.Evaluate(context.Background(), Input{Tables: tb})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Violations) != 0 || result.Summary.TotalViolations != 0 {
		t.Fatalf("expected no violations, got %+v", result)
	}
}

func TestDefaultSeveritiesMatchRules(t *testing.T) {
	for rule, sev := range Rules {
		if !strings.Contains(rulesModule, `"`+rule+`": "`+sev+`"`) {
			t.Fatalf("rule %s: default severity %s not found in rules module", rule, sev)
		}
	}
}
