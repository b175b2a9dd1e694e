package validator

import (
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/fsm-lower/internal/netlist"
)

const validDesign = `{
  "version": 1,
  "symbols": [
    {"id": 1, "name": "top", "class": "type", "type": {"kind": "entity", "ports": [2]}},
    {"id": 2, "name": "o", "class": "term", "loc": {"file": "top.fsm", "line": 2, "col": 3},
     "type": {"kind": "out", "flow": "none", "storage": "reg", "elem": {"kind": "uint", "width": 4}}}
  ],
  "entities": [
    {"symbol": 1, "decls": [{"symbol": 2}],
     "stmts": [{"stmt": "assign", "lhs": {"op": "ref", "symbol": 2}, "rhs": {"op": "num", "value": "3"}}]}
  ]
}`

// TestDesignContract checks the input contract. Missing fields are allowed
// by CUE (they stay incomplete); present fields must match the schema and
// definitions are closed.
func TestDesignContract(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "valid_design", data: validDesign},
		{name: "empty_design", data: `{"version": 1, "symbols": [], "entities": []}`},
		{
			name:    "wrong_version",
			data:    `{"version": 2, "symbols": [], "entities": []}`,
			wantErr: true,
		},
		{
			name:    "invalid_flow",
			data:    strings.Replace(validDesign, `"flow": "none"`, `"flow": "handshake"`, 1),
			wantErr: true,
		},
		{
			name:    "zero_symbol_id",
			data:    strings.Replace(validDesign, `{"symbol": 2}`, `{"symbol": 0}`, 1),
			wantErr: true,
		},
		{
			name:    "unknown_statement",
			data:    strings.Replace(validDesign, `"stmt": "assign"`, `"stmt": "goto_fsm"`, 1),
			wantErr: true,
		},
		{
			name:    "non_numeric_literal",
			data:    strings.Replace(validDesign, `"value": "3"`, `"value": "three"`, 1),
			wantErr: true,
		},
		{
			name:    "unknown_field",
			data:    strings.Replace(validDesign, `"class": "type",`, `"class": "type", "kindof": "entity",`, 1),
			wantErr: true,
		},
		{
			name:    "connect_without_sinks",
			data:    strings.Replace(validDesign, `"decls": [{"symbol": 2}],`, `"decls": [{"symbol": 2}], "connects": [{"lhs": {"op": "ref", "symbol": 2}, "rhs": []}],`, 1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateJSON([]byte(tt.data))
			if tt.wantErr && err == nil {
				t.Fatalf("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestDesignValidationErrors(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	if errs := v.ValidationErrors([]byte(validDesign)); errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}

	bad := strings.Replace(validDesign, `"class": "term"`, `"class": "value"`, 1)
	errs := v.ValidationErrors([]byte(bad))
	if len(errs) == 0 {
		t.Fatalf("expected errors for bad symbol class")
	}
	if !strings.Contains(strings.Join(errs, "\n"), "class") {
		t.Fatalf("expected errors to name the class field, got %v", errs)
	}
}

func TestNetlistContract(t *testing.T) {
	v, err := NewNetlistValidator()
	if err != nil {
		t.Fatalf("new netlist validator: %v", err)
	}

	valid := netlist.Tables{
		Entities: []netlist.EntityRow{{Name: "top", File: "top.fsm", Line: 1}},
		Ports: []netlist.PortRow{
			{Entity: "top", Name: "a", Direction: "in", Type: "u8", Width: 8, Flow: "ready"},
			{Entity: "top", Name: "o", Direction: "out", Type: "u8", Width: 8, Flow: "none", Storage: "fslice bubble"},
		},
		Decls:     []netlist.DeclRow{{Entity: "top", Name: "K", Kind: "const", Type: "u8", Width: 8, Init: "8'd3"}},
		Instances: []netlist.InstanceRow{},
		Connects:  []netlist.ConnectRow{},
		Drivers:   []netlist.DriverRow{{Entity: "top", Signal: "o", Kind: "assign"}},
	}
	if err := v.Validate(valid); err != nil {
		t.Fatalf("expected valid tables, got error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*netlist.Tables)
	}{
		{"input_with_storage", func(tb *netlist.Tables) { tb.Ports[0].Storage = "reg" }},
		{"bad_storage", func(tb *netlist.Tables) { tb.Ports[1].Storage = "latch" }},
		{"pipeline_decl", func(tb *netlist.Tables) { tb.Decls[0].Kind = "pipeline" }},
		{"stack_type", func(tb *netlist.Tables) { tb.Decls[0].Type = "stack<u8>" }},
		{"negative_line", func(tb *netlist.Tables) { tb.Entities[0].Line = -1 }},
		{"unknown_driver_kind", func(tb *netlist.Tables) { tb.Drivers[0].Kind = "latch" }},
		{"empty_entity_name", func(tb *netlist.Tables) { tb.Entities[0].Name = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := valid
			tb.Entities = append([]netlist.EntityRow(nil), valid.Entities...)
			tb.Ports = append([]netlist.PortRow(nil), valid.Ports...)
			tb.Decls = append([]netlist.DeclRow(nil), valid.Decls...)
			tb.Drivers = append([]netlist.DriverRow(nil), valid.Drivers...)
			tt.mutate(&tb)
			if err := v.Validate(tb); err == nil {
				t.Fatalf("expected validation error, got nil")
			}
		})
	}
}
